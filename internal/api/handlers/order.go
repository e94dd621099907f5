package handlers

import (
	"net/http"
	"strconv"

	"lazychat/internal/catalog"
	"lazychat/internal/logger"
	"lazychat/internal/models"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	store  *catalog.Store
	logger *logger.Logger
}

func NewOrderHandler(store *catalog.Store, logger *logger.Logger) *OrderHandler {
	return &OrderHandler{store: store, logger: logger}
}

func (h *OrderHandler) List(c *gin.Context) {
	page := pageFrom(c)
	customerID, _ := strconv.ParseUint(c.Query("customer"), 10, 64)
	orders, total, err := h.store.ListOrders(c.Request.Context(), catalog.OrderQuery{
		Page:       page,
		Status:     models.OrderStatus(c.Query("status")),
		CustomerID: uint(customerID),
	})
	if err != nil {
		restFail(c, h.logger, err)
		return
	}
	writeList(c, orders, total, page)
}

func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	order, err := h.store.Order(c.Request.Context(), id)
	if err != nil {
		restFail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) Create(c *gin.Context) {
	var in catalog.OrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	order, err := h.store.CreateOrder(c.Request.Context(), in)
	if err != nil {
		restFail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

type statusUpdate struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req statusUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	order, err := h.store.UpdateOrderStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		restFail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
