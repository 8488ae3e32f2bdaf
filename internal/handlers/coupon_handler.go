package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"partnerhub/internal/services"
)

type CouponHandler struct {
	coupons services.CouponService
}

func NewCouponHandler(coupons services.CouponService) *CouponHandler {
	return &CouponHandler{coupons: coupons}
}

type phoneRequest struct {
	PhoneNumber string `json:"phone_number"`
}

// @Summary      Send phone verification code
// @Tags         Coupons
// @Accept       json
// @Produce      json
// @Param        body  body      phoneRequest  true  "Phone number"
// @Success      200   {object}  Envelope
// @Failure      429   {object}  ErrorEnvelope
// @Failure      502   {object}  ErrorEnvelope
// @Router       /coupons/phone-verify/send/ [post]
func (h *CouponHandler) PhoneVerifySend(c *gin.Context) {
	var req phoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.coupons.SendPhoneCode(c.Request.Context(), req.PhoneNumber); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Verification code has been sent", nil)
}

// @Summary      Confirm phone verification code
// @Tags         Coupons
// @Accept       json
// @Produce      json
// @Param        body  body      services.PhoneCodeInput  true  "Phone and code"
// @Success      200   {object}  Envelope
// @Failure      400   {object}  ErrorEnvelope
// @Router       /coupons/phone-verify/confirm/ [post]
func (h *CouponHandler) PhoneVerifyConfirm(c *gin.Context) {
	var req services.PhoneCodeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	already, err := h.coupons.ConfirmPhoneCode(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	if already {
		respondOK(c, http.StatusOK, "Phone number is already verified", nil)
		return
	}
	respondOK(c, http.StatusOK, "Phone number has been verified", nil)
}

// @Summary      Issue a coupon
// @Description  Scanned QR token plus a phone verified within the last 10 minutes
// @Tags         Coupons
// @Accept       json
// @Produce      json
// @Param        body  body      services.IssueCouponInput  true  "QR token and phone"
// @Success      201   {object}  Envelope{data=models.Coupon}
// @Failure      400   {object}  ErrorEnvelope
// @Failure      409   {object}  ErrorEnvelope
// @Router       /coupons/issue/ [post]
func (h *CouponHandler) Issue(c *gin.Context) {
	var req services.IssueCouponInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	coupon, err := h.coupons.IssueCoupon(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "Coupon issued", coupon)
}

// @Summary      Register or rotate my store's coupon QR
// @Tags         Coupons
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      services.RegisterQRInput  true  "QR image"
// @Success      200   {object}  Envelope{data=models.CouponQR}
// @Failure      404   {object}  ErrorEnvelope
// @Router       /coupons/qr/ [post]
func (h *CouponHandler) RegisterQR(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req services.RegisterQRInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	qr, err := h.coupons.RegisterCouponQR(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Coupon QR registered", qr)
}

// @Summary      Coupons my store issued
// @Tags         Coupons
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Envelope{data=[]models.Coupon}
// @Router       /coupons/issued/ [get]
func (h *CouponHandler) Issued(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	list, err := h.coupons.ListIssuedCoupons(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Issued coupons", list)
}

// @Summary      Redeem a coupon at my store
// @Tags         Coupons
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Coupon id"
// @Success      200  {object}  Envelope{data=models.Coupon}
// @Failure      400  {object}  ErrorEnvelope
// @Failure      404  {object}  ErrorEnvelope
// @Router       /coupons/{id}/redeem/ [post]
func (h *CouponHandler) Redeem(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, services.ErrCouponNotFound)
		return
	}
	coupon, err := h.coupons.RedeemCoupon(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Coupon redeemed", coupon)
}
