package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"partnerhub/internal/logger"
	"partnerhub/internal/services"
	"partnerhub/internal/validation"
)

// Envelope is the body of every response.
// @Description Standard response wrapper
type Envelope struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message" example:"ok"`
	Data    any    `json:"data"`
}

// ErrorEnvelope documents failed responses.
// @Description Failed response; data carries field errors for validation failures
type ErrorEnvelope struct {
	Success bool                `json:"success" example:"false"`
	Message string              `json:"message" example:"This field is required"`
	Data    map[string][]string `json:"data"`
}

func respondOK(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

func respondFail(c *gin.Context, status int, message string, data any) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Message: message, Data: data})
}

// badRequest answers a body that could not be decoded at all.
func badRequest(c *gin.Context, err error) {
	logger.FromGin(c).Debug("bad request body", zap.Error(err))
	respondFail(c, http.StatusBadRequest, "Invalid request body", nil)
}

type errorRule struct {
	target error
	status int
}

// порядок важен: первое совпадение выигрывает
var errorRules = []errorRule{
	{services.ErrDuplicateUsername, http.StatusConflict},
	{services.ErrDuplicateEmail, http.StatusConflict},
	{services.ErrDuplicatePhone, http.StatusConflict},
	{services.ErrDuplicateContact, http.StatusConflict},
	{services.ErrDuplicateRequest, http.StatusConflict},
	{services.ErrStoreAlreadyExists, http.StatusConflict},
	{services.ErrCouponAlreadyIssued, http.StatusConflict},

	{services.ErrNoSuchRequest, http.StatusBadRequest},
	{services.ErrCodeMismatch, http.StatusBadRequest},
	{services.ErrExpired, http.StatusBadRequest},
	{services.ErrAlreadyVerified, http.StatusBadRequest},
	{services.ErrContactNotVerified, http.StatusBadRequest},
	{services.ErrInvalidResetToken, http.StatusBadRequest},
	{services.ErrResetTokenExpired, http.StatusBadRequest},
	{services.ErrResetTokenUsed, http.StatusBadRequest},
	{services.ErrOwnPost, http.StatusBadRequest},
	{services.ErrCouponUsed, http.StatusBadRequest},
	{services.ErrCouponExpired, http.StatusBadRequest},

	{services.ErrInvalidCredentials, http.StatusUnauthorized},
	{services.ErrInvalidRefreshToken, http.StatusUnauthorized},
	{services.ErrInvalidToken, http.StatusUnauthorized},
	{services.ErrInactiveAccount, http.StatusForbidden},

	{services.ErrUserNotFound, http.StatusNotFound},
	{services.ErrStoreNotFound, http.StatusNotFound},
	{services.ErrPostNotFound, http.StatusNotFound},
	{services.ErrNotificationNotFound, http.StatusNotFound},
	{services.ErrQRNotFound, http.StatusNotFound},
	{services.ErrCouponNotFound, http.StatusNotFound},

	{services.ErrResendThrottled, http.StatusTooManyRequests},
	{services.ErrDispatchFailed, http.StatusBadGateway},
	{services.ErrStorageUnavailable, http.StatusServiceUnavailable},
}

// statusFor returns the HTTP status and the client-facing message for err.
func statusFor(err error) (int, string) {
	for _, r := range errorRules {
		if errors.Is(err, r.target) {
			return r.status, r.target.Error()
		}
	}
	return http.StatusInternalServerError, "Internal server error"
}

// respondError writes the failure envelope for err.
func respondError(c *gin.Context, err error) {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		respondFail(c, http.StatusBadRequest, verrs.Message(), verrs.Fields())
		return
	}

	status, msg := statusFor(err)
	log := logger.FromGin(c)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Int("status", status), zap.Error(err))
		_ = c.Error(err)
	} else {
		log.Info("request rejected", zap.Int("status", status), zap.Error(err))
	}
	respondFail(c, status, msg, nil)
}
