package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"partnerhub/internal/services"
)

type StoreHandler struct {
	stores services.StoreService
}

func NewStoreHandler(stores services.StoreService) *StoreHandler {
	return &StoreHandler{stores: stores}
}

// @Summary      Register my store
// @Tags         Stores
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      services.CreateStoreInput  true  "Store"
// @Success      201   {object}  Envelope{data=models.Store}
// @Failure      409   {object}  ErrorEnvelope
// @Router       /stores/ [post]
func (h *StoreHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req services.CreateStoreInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	store, err := h.stores.CreateStore(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "Store registered", store)
}

// @Summary      My store
// @Tags         Stores
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Envelope{data=models.Store}
// @Failure      404  {object}  ErrorEnvelope
// @Router       /stores/me/ [get]
func (h *StoreHandler) Me(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	store, err := h.stores.MyStore(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "My store", store)
}

// @Summary      My page
// @Description  Store, own posts and sent partnership requests in one call
// @Tags         Notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Envelope{data=services.MyPage}
// @Router       /notifications/mypage/ [get]
func (h *StoreHandler) MyPage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	page, err := h.stores.MyPage(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "My page", page)
}
