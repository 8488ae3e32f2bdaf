package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var authHeader = regexp.MustCompile(`^HMAC-SHA256 apiKey=(\S+), date=(\S+), salt=([0-9a-f]{64}), signature=([0-9a-f]{64})$`)

func TestSolapiClient_Send(t *testing.T) {
	var (
		gotAuth string
		gotBody map[string]map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages/v4/send", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"groupId":"G1","messageId":"M1","statusCode":"2000"}`))
	}))
	defer srv.Close()

	c := NewSolapiClient("KEY", "SECRET", "0212345678", srv.URL, false, zap.NewNop())
	c.Now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, c.Send(context.Background(), "+821012345678", "code 123456"))

	assert.Equal(t, "01012345678", gotBody["message"]["to"])
	assert.Equal(t, "0212345678", gotBody["message"]["from"])
	assert.Equal(t, "code 123456", gotBody["message"]["text"])

	m := authHeader.FindStringSubmatch(gotAuth)
	require.Len(t, m, 5, gotAuth)
	assert.Equal(t, "KEY", m[1])
	assert.Equal(t, "2025-01-01T00:00:00Z", m[2])
	assert.Equal(t, SolapiSignature("SECRET", m[2], m[3]), m[4])
}

func TestSolapiClient_SendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errorCode":"InvalidAPIKey"}`))
	}))
	defer srv.Close()

	c := NewSolapiClient("KEY", "SECRET", "01000000000", srv.URL, false, nil)
	err := c.Send(context.Background(), "+821012345678", "hi")
	assert.ErrorContains(t, err, "403")
}

func TestSolapiClient_DryRunSkipsHTTP(t *testing.T) {
	c := NewSolapiClient("KEY", "SECRET", "01000000000", "http://127.0.0.1:1", true, nil)
	assert.NoError(t, c.Send(context.Background(), "+821012345678", "hi"))
}

func TestDomesticNumber(t *testing.T) {
	assert.Equal(t, "01012345678", domesticNumber("+821012345678"))
	assert.Equal(t, "+14155552671", domesticNumber("+14155552671"))
}

func TestNewRefreshToken(t *testing.T) {
	tok, err := NewRefreshToken(0)
	require.NoError(t, err)
	assert.Len(t, tok, 64)

	other, err := NewRefreshToken(16)
	require.NoError(t, err)
	assert.Len(t, other, 32)
	assert.NotEqual(t, tok, other)
}
