package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"partnerhub/internal/models"
)

func newTestAuth(now func() time.Time) *authService {
	a := NewAuthService("test-secret-0123456789", time.Minute).(*authService)
	a.cost = bcrypt.MinCost
	if now != nil {
		a.now = now
	}
	return a
}

func TestAuthService_Passwords(t *testing.T) {
	a := newTestAuth(nil)
	hash, err := a.HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.True(t, a.CheckPassword(hash, "s3cret-pass"))
	assert.False(t, a.CheckPassword(hash, "wrong"))
	assert.False(t, a.CheckPassword("", "s3cret-pass"))
}

func TestAuthService_AccessTokenRoundTrip(t *testing.T) {
	now := time.Now()
	a := newTestAuth(func() time.Time { return now })

	tok, err := a.IssueAccessToken(&models.User{ID: 7, Username: "jimin", Role: models.RoleUser, IsVerified: true})
	require.NoError(t, err)

	claims, err := a.ParseAccessToken(tok)
	require.NoError(t, err)
	assert.EqualValues(t, 7, claims.UserID)
	assert.Equal(t, "jimin", claims.Username)
	assert.Equal(t, models.RoleUser, claims.Role)
	assert.True(t, claims.IsVerified)
}

func TestAuthService_RejectsExpiredAndForeignTokens(t *testing.T) {
	now := time.Now()
	a := newTestAuth(func() time.Time { return now })
	tok, err := a.IssueAccessToken(&models.User{ID: 1})
	require.NoError(t, err)

	later := newTestAuth(func() time.Time { return now.Add(2 * time.Minute) })
	_, err = later.ParseAccessToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewAuthService("another-secret-0123456789", time.Minute)
	_, err = other.ParseAccessToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: 1}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = a.ParseAccessToken(none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
