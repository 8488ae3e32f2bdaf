package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"partnerhub/internal/models"
	"partnerhub/internal/services"
)

type stubParser map[string]*services.Claims

func (s stubParser) ParseAccessToken(token string) (*services.Claims, error) {
	if c, ok := s[token]; ok {
		return c, nil
	}
	return nil, services.ErrInvalidToken
}

func newRouter(roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	parser := stubParser{
		"good":  {UserID: 5, Username: "jimin", Role: models.RoleUser},
		"admin": {UserID: 1, Username: "root", Role: models.RoleAdmin},
	}
	r.GET("/me", AuthMiddleware(parser), RequireRoles(roles...), func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt64(UserIDKey), "username": claims.Username})
	})
	return r
}

func call(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(models.RoleUser, models.RoleAdmin)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"unknown token", "Bearer forged", http.StatusUnauthorized},
		{"ok", "Bearer good", http.StatusOK},
		{"case insensitive scheme", "bearer good", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := call(r, req)
			assert.Equal(t, tc.want, w.Code)
			if tc.want == http.StatusUnauthorized {
				assert.JSONEq(t, `{"success":false,"message":"`+messageFor(tc.header)+`","data":null}`, w.Body.String())
			}
		})
	}
}

func messageFor(header string) string {
	if header == "Bearer forged" {
		return "Invalid or expired token"
	}
	return "Authentication credentials were not provided"
}

func TestAuthMiddleware_QueryTokenOnlyForWebsocket(t *testing.T) {
	r := newRouter(models.RoleUser)

	req := httptest.NewRequest(http.MethodGet, "/me?token=good", nil)
	assert.Equal(t, http.StatusUnauthorized, call(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/me?token=good", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	w := call(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":5,"username":"jimin"}`, w.Body.String())
}

func TestRequireRoles(t *testing.T) {
	r := newRouter(models.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	assert.Equal(t, http.StatusForbidden, call(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer admin")
	assert.Equal(t, http.StatusOK, call(r, req).Code)
}

func TestPreflightSkipsAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.OPTIONS("/me", AuthMiddleware(stubParser{}), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := call(r, httptest.NewRequest(http.MethodOptions, "/me", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
