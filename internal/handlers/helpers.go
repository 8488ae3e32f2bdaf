package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"partnerhub/internal/middleware"
	"partnerhub/internal/models"
)

// currentUserID reads the id AuthMiddleware put into the context.
func currentUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case int64:
		return t, t > 0
	case int:
		return int64(t), t > 0
	}
	return 0, false
}

// currentUser builds the sender identity from the token claims.
func currentUser(c *gin.Context) (*models.User, bool) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok || claims.UserID <= 0 {
		return nil, false
	}
	return &models.User{
		ID:         claims.UserID,
		Username:   claims.Username,
		Role:       claims.Role,
		IsVerified: claims.IsVerified,
	}, true
}

func pathInt64(c *gin.Context, name string) (int64, bool) {
	n, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func requireUser(c *gin.Context) (int64, bool) {
	id, ok := currentUserID(c)
	if !ok {
		respondFail(c, http.StatusUnauthorized, "Authentication credentials were not provided", nil)
	}
	return id, ok
}
