package handlers

import (
	"net/http"

	"lazychat/internal/catalog"
	"lazychat/internal/logger"
	"lazychat/internal/models"

	"github.com/gin-gonic/gin"
)

type ProductHandler struct {
	store  *catalog.Store
	logger *logger.Logger
}

func NewProductHandler(store *catalog.Store, logger *logger.Logger) *ProductHandler {
	return &ProductHandler{
		store:  store,
		logger: logger,
	}
}

func (h *ProductHandler) List(c *gin.Context) {
	page := pageFrom(c)
	products, total, err := h.store.ListProducts(c.Request.Context(), catalog.ProductQuery{
		Page:   page,
		Search: c.Query("search"),
		Status: models.ProductStatus(c.Query("status")),
		SKU:    c.Query("sku"),
	})
	if err != nil {
		restFail(c, h.logger, err)
		return
	}
	writeList(c, products, total, page)
}

func (h *ProductHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	product, err := h.store.Product(c.Request.Context(), id)
	if err != nil {
		restFail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) Create(c *gin.Context) {
	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		badRequest(c, err)
		return
	}
	product.ID = 0

	if err := h.store.CreateProduct(c.Request.Context(), &product); err != nil {
		restFail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

// Update applies the fields present in the body on top of the stored product.
func (h *ProductHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var bindErr error
	product, err := h.store.UpdateProduct(c.Request.Context(), id, func(p *models.Product) error {
		bindErr = c.ShouldBindJSON(p)
		return bindErr
	})
	if bindErr != nil {
		badRequest(c, bindErr)
		return
	}
	if err != nil {
		restFail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.store.DeleteProduct(c.Request.Context(), id); err != nil {
		restFail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true})
}
