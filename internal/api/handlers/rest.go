package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"lazychat/internal/api/middleware"
	"lazychat/internal/catalog"
	"lazychat/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// pageFrom reads WooCommerce style page/per_page parameters.
func pageFrom(c *gin.Context) catalog.Page {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))
	return catalog.Page{
		Page:    lo.Max([]int{page, 1}),
		PerPage: lo.Clamp(perPage, 1, 100),
	}
}

// writeList sends a bare JSON array with the total counts in headers.
func writeList(c *gin.Context, items interface{}, total int64, page catalog.Page) {
	pages := (total + int64(page.PerPage) - 1) / int64(page.PerPage)
	c.Header("X-WP-Total", strconv.FormatInt(total, 10))
	c.Header("X-WP-TotalPages", strconv.FormatInt(pages, 10))
	c.JSON(http.StatusOK, items)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		middleware.RESTError(c, http.StatusBadRequest, "lazychat_invalid_id", "Invalid ID.")
		return 0, false
	}
	return uint(id), true
}

// restFail maps catalog errors onto REST status codes.
func restFail(c *gin.Context, logger *logger.Logger, err error) {
	var verr *catalog.ValidationError
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"code":    "lazychat_invalid_request",
			"message": verr.Message,
			"data": gin.H{
				"status": http.StatusBadRequest,
				"errors": verr.Items,
			},
		})
	case errors.Is(err, catalog.ErrInvalidStatus):
		middleware.RESTError(c, http.StatusBadRequest, "lazychat_invalid_status", err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		middleware.RESTError(c, http.StatusNotFound, "lazychat_not_found", "Resource not found.")
	case errors.Is(err, catalog.ErrDuplicateSKU):
		middleware.RESTError(c, http.StatusConflict, "lazychat_duplicate_sku", "A product with this SKU already exists.")
	default:
		logger.Error("REST request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		middleware.RESTError(c, http.StatusInternalServerError, "lazychat_internal_error", "An unexpected error occurred.")
	}
}

func badRequest(c *gin.Context, err error) {
	middleware.RESTError(c, http.StatusBadRequest, "lazychat_invalid_request", err.Error())
}
