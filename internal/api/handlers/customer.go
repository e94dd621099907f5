package handlers

import (
	"net/http"

	"lazychat/internal/catalog"
	"lazychat/internal/logger"

	"github.com/gin-gonic/gin"
)

// CustomerHandler serves customers and coupons, both read-only.
type CustomerHandler struct {
	store  *catalog.Store
	logger *logger.Logger
}

func NewCustomerHandler(store *catalog.Store, logger *logger.Logger) *CustomerHandler {
	return &CustomerHandler{store: store, logger: logger}
}

func (h *CustomerHandler) List(c *gin.Context) {
	page := pageFrom(c)
	customers, total, err := h.store.ListCustomers(c.Request.Context(), catalog.CustomerQuery{
		Page:   page,
		Email:  c.Query("email"),
		Search: c.Query("search"),
	})
	if err != nil {
		restFail(c, h.logger, err)
		return
	}
	writeList(c, customers, total, page)
}

func (h *CustomerHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	customer, err := h.store.Customer(c.Request.Context(), id)
	if err != nil {
		restFail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *CustomerHandler) Coupons(c *gin.Context) {
	page := pageFrom(c)
	coupons, total, err := h.store.ListCoupons(c.Request.Context(), page)
	if err != nil {
		restFail(c, h.logger, err)
		return
	}
	writeList(c, coupons, total, page)
}
