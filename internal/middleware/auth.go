package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"partnerhub/internal/services"
)

const (
	UserIDKey = "user_id"
	RoleKey   = "role"
	ClaimsKey = "claims"
)

// TokenParser is the part of services.AuthService the middleware needs.
type TokenParser interface {
	ParseAccessToken(token string) (*services.Claims, error)
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": msg, "data": nil})
}

// AuthMiddleware requires a valid Bearer access token and puts its claims into the context.
func AuthMiddleware(auth TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		// preflight пропускаем
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		token, ok := bearerToken(c)
		if !ok {
			unauthorized(c, "Authentication credentials were not provided")
			return
		}

		claims, err := auth.ParseAccessToken(token)
		if err != nil {
			unauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(RoleKey, claims.Role)
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// bearerToken reads the Authorization header. Websocket handshakes from browsers
// cannot set headers, so they may pass the token as ?token= instead.
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader == "" && websocket.IsWebSocketUpgrade(c.Request) {
		t := strings.TrimSpace(c.Query("token"))
		return t, t != ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	t := strings.TrimSpace(parts[1])
	return t, t != ""
}

// ClaimsFrom returns the claims stored by AuthMiddleware.
func ClaimsFrom(c *gin.Context) (*services.Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*services.Claims)
	return claims, ok
}
