package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"partnerhub/internal/logger"
	"partnerhub/internal/realtime"
	"partnerhub/internal/services"
)

type NotificationHandler struct {
	notifications services.NotificationService
	hub           *realtime.Hub
}

func NewNotificationHandler(notifications services.NotificationService, hub *realtime.Hub) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, hub: hub}
}

// @Summary      Send a partnership request
// @Description  Creates the request and notifies the post author atomically
// @Tags         Notifications
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      services.PartnerRequestInput  true  "Target post and message"
// @Success      201   {object}  Envelope{data=models.PartnerRequest}
// @Failure      400   {object}  ErrorEnvelope
// @Failure      404   {object}  ErrorEnvelope
// @Failure      409   {object}  ErrorEnvelope
// @Router       /notifications/partner-request/ [post]
func (h *NotificationHandler) PartnerRequest(c *gin.Context) {
	sender, ok := currentUser(c)
	if !ok {
		respondFail(c, http.StatusUnauthorized, "Authentication credentials were not provided", nil)
		return
	}
	var req services.PartnerRequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	pr, err := h.notifications.RequestPartnership(c.Request.Context(), sender, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "Partnership request sent", pr)
}

// @Summary      My notifications
// @Tags         Notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Envelope{data=[]models.Notification}
// @Router       /notifications/ [get]
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	list, err := h.notifications.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Notification list", list)
}

// @Summary      Mark a notification as read
// @Tags         Notifications
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Notification id"
// @Success      200  {object}  Envelope
// @Failure      404  {object}  ErrorEnvelope
// @Router       /notifications/{id}/read/ [patch]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathInt64(c, "id")
	if !ok {
		respondError(c, services.ErrNotificationNotFound)
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), userID, id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Notification marked as read", nil)
}

// @Summary      Unread notification count
// @Tags         Notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Envelope{data=map[string]int}
// @Router       /notifications/unread-count/ [get]
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	n, err := h.notifications.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Unread count", gin.H{"unread_count": n})
}

// @Summary      Partnership requests I sent
// @Tags         Notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Envelope{data=[]models.SentPartnerRequest}
// @Router       /notifications/sent/ [get]
func (h *NotificationHandler) Sent(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	list, err := h.notifications.ListSent(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Sent requests", list)
}

// @Summary      Live notifications
// @Description  Websocket; every new notification arrives as {"type":"notification","data":{...}}. Browsers may pass the access token as ?token=
// @Tags         Notifications
// @Security     BearerAuth
// @Param        token  query  string  false  "Access token for clients that cannot set headers"
// @Success      101
// @Failure      401  {object}  ErrorEnvelope
// @Failure      503  {object}  ErrorEnvelope
// @Router       /notifications/ws/ [get]
func (h *NotificationHandler) Stream(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if h.hub == nil {
		respondFail(c, http.StatusServiceUnavailable, "Live notifications are disabled", nil)
		return
	}
	log := logger.FromGin(c).With(zap.Int64("user_id", userID))

	client, err := h.hub.Accept(c.Writer, c.Request)
	if err != nil {
		log.Info("[notifications][ws] upgrade failed", zap.Error(err))
		c.Abort()
		return
	}
	h.hub.Register(userID, client)
	defer h.hub.Unregister(userID, client)

	log.Debug("[notifications][ws] connected")
	if err := client.Serve(c.Request.Context()); err != nil {
		log.Debug("[notifications][ws] closed", zap.Error(err))
	}
}
