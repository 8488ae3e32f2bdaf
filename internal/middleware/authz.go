package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireRoles lets through only tokens whose role is in allowed.
func RequireRoles(allowed ...string) gin.HandlerFunc {
	allowedSet := map[string]struct{}{}
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}
	return func(c *gin.Context) {
		role := c.GetString(RoleKey)
		if role == "" {
			unauthorized(c, "Authentication credentials were not provided")
			return
		}
		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "You do not have permission to perform this action", "data": nil})
			return
		}
		c.Next()
	}
}
