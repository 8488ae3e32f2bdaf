package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"partnerhub/internal/services"
	"partnerhub/internal/validation"
)

type AuthHandler struct {
	users   services.UserService
	resets  services.PasswordResetService
	storage services.StorageService
}

func NewAuthHandler(users services.UserService, resets services.PasswordResetService, storage services.StorageService) *AuthHandler {
	return &AuthHandler{users: users, resets: resets, storage: storage}
}

type emailRequest struct {
	Email string `json:"email"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// @Summary      Sign up
// @Description  Creates an account; the email must have been verified within the last 10 minutes
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      services.SignupInput  true  "Account data"
// @Success      201   {object}  Envelope{data=models.User}
// @Failure      400   {object}  ErrorEnvelope
// @Failure      409   {object}  ErrorEnvelope
// @Router       /auth/signup/ [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req services.SignupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.users.Signup(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "Sign up completed", user)
}

// @Summary      Log in
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      services.LoginInput  true  "Credentials"
// @Success      200   {object}  Envelope{data=services.LoginResult}
// @Failure      401   {object}  ErrorEnvelope
// @Router       /auth/login/ [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.users.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Login successful", res)
}

// @Summary      Rotate refresh token
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      refreshRequest  true  "Refresh token"
// @Success      200   {object}  Envelope{data=services.LoginResult}
// @Failure      401   {object}  ErrorEnvelope
// @Router       /auth/token/refresh/ [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.users.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Token refreshed", res)
}

// @Summary      Current user
// @Tags         Auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Envelope{data=models.User}
// @Failure      401  {object}  ErrorEnvelope
// @Router       /auth/me/ [get]
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	user, err := h.users.Me(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "User info", user)
}

// @Summary      Find username
// @Description  Returns the masked username registered with both email and phone number
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      services.FindIDInput  true  "Email and phone"
// @Success      200   {object}  Envelope{data=map[string]string}
// @Failure      404   {object}  ErrorEnvelope
// @Router       /auth/find-id/ [post]
func (h *AuthHandler) FindID(c *gin.Context) {
	var req services.FindIDInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	masked, err := h.users.FindID(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Username found", gin.H{"username": masked})
}

// @Summary      Request password reset
// @Description  Always succeeds for well-formed emails so account existence is not revealed
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      emailRequest  true  "Email"
// @Success      200   {object}  Envelope
// @Router       /auth/reset-password-request/ [post]
func (h *AuthHandler) ResetPasswordRequest(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.resets.RequestReset(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "If the email is registered, a reset link has been sent", nil)
}

// @Summary      Validate password reset link
// @Tags         Auth
// @Produce      json
// @Param        uid    query     int     true  "User id"
// @Param        token  query     string  true  "Reset token"
// @Success      200    {object}  Envelope
// @Failure      400    {object}  ErrorEnvelope
// @Router       /auth/reset-password-validate/ [get]
func (h *AuthHandler) ResetPasswordValidate(c *gin.Context) {
	uid, err := strconv.ParseInt(c.Query("uid"), 10, 64)
	if err != nil {
		respondError(c, validation.Single("uid", "A valid integer is required"))
		return
	}
	if err := h.resets.Validate(c.Request.Context(), uid, c.Query("token")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Reset link is valid", nil)
}

// @Summary      Set a new password
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      services.ResetConfirmInput  true  "Token and new password"
// @Success      200   {object}  Envelope
// @Failure      400   {object}  ErrorEnvelope
// @Router       /auth/reset-password-confirm/ [post]
func (h *AuthHandler) ResetPasswordConfirm(c *gin.Context) {
	var req services.ResetConfirmInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.resets.Confirm(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Password has been changed", nil)
}

// @Summary      Send email verification code
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      emailRequest  true  "Email"
// @Success      200   {object}  Envelope
// @Failure      409   {object}  ErrorEnvelope
// @Failure      502   {object}  ErrorEnvelope
// @Router       /auth/email-verify/send/ [post]
func (h *AuthHandler) EmailVerifySend(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.users.SendEmailCode(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Verification code has been sent", nil)
}

// @Summary      Confirm email verification code
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      services.EmailCodeInput  true  "Email and code"
// @Success      200   {object}  Envelope
// @Failure      400   {object}  ErrorEnvelope
// @Router       /auth/email-verify/confirm/ [post]
func (h *AuthHandler) EmailVerifyConfirm(c *gin.Context) {
	var req services.EmailCodeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.users.ConfirmEmailCode(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Email has been verified", nil)
}

// @Summary      Presigned upload for a profile image
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      services.UploadInput  true  "File name and content type"
// @Success      200   {object}  Envelope{data=services.UploadTicket}
// @Failure      400   {object}  ErrorEnvelope
// @Router       /auth/image-upload/ [post]
func (h *AuthHandler) ImageUpload(c *gin.Context) {
	presignUpload(c, h.storage, h.storage.UserImageFolder())
}

// presignUpload is shared by every image-upload endpoint.
func presignUpload(c *gin.Context, storage services.StorageService, folder string) {
	var req services.UploadInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ticket, err := storage.PresignUpload(c.Request.Context(), folder, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Presigned URL created", ticket)
}
