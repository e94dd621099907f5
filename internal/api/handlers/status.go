package handlers

import (
	"net/http"

	"lazychat/internal/api/middleware"
	"lazychat/internal/settings"

	"github.com/gin-gonic/gin"
)

// StatusHandler serves the health route that LazyChat and the self-test call.
type StatusHandler struct {
	settings *settings.Store
	version  string
	storeURL string
}

func NewStatusHandler(st *settings.Store, version, storeURL string) *StatusHandler {
	return &StatusHandler{settings: st, version: version, storeURL: storeURL}
}

func (h *StatusHandler) Get(c *gin.Context) {
	st, err := h.settings.Load(c.Request.Context())
	if err != nil {
		middleware.RESTError(c, http.StatusInternalServerError, "lazychat_internal_error", "Settings could not be loaded.")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"active":      st.Active,
		"version":     h.version,
		"shop_id":     st.ShopID,
		"store_url":   h.storeURL,
		"auth_method": c.GetString(middleware.AuthMethodKey),
		"webhooks": gin.H{
			"products": st.ProductWebhooks,
			"orders":   st.OrderWebhooks,
		},
	})
}
