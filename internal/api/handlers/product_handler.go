package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"devbills/backend/internal/models"
	"devbills/backend/internal/services"
)

// ProductHandler handles the session-scoped product shortlist and the invoice
// preview hand-off.
type ProductHandler struct {
	sessionService services.ISessionService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(sessionService services.ISessionService) *ProductHandler {
	return &ProductHandler{sessionService: sessionService}
}

// ListProducts handles GET /v1/products.
func (h *ProductHandler) ListProducts(c *gin.Context) {
	products, err := h.sessionService.Products(c.Request.Context(), ownerKey(c))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load products"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

type addProductRequest struct {
	Description string  `json:"description" binding:"required"`
	Rate        float64 `json:"rate"`
	Stock       int     `json:"stock"`
}

// AddProduct handles POST /v1/products.
func (h *ProductHandler) AddProduct(c *gin.Context) {
	var req addProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	products, err := h.sessionService.AddProduct(c.Request.Context(), ownerKey(c), models.Product{
		Description: req.Description,
		Rate:        req.Rate,
		Stock:       req.Stock,
	})
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add product"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"products": products})
}

// RemoveProduct handles DELETE /v1/products/:index.
func (h *ProductHandler) RemoveProduct(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product index"})
		return
	}

	products, err := h.sessionService.RemoveProduct(c.Request.Context(), ownerKey(c), index)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove product"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

// GetPreview handles GET /v1/preview. An absent preview is reported as 404 so
// the client can redirect back to the edit form.
func (h *ProductHandler) GetPreview(c *gin.Context) {
	preview, err := h.sessionService.Preview(c.Request.Context(), ownerKey(c))
	if err != nil {
		if errors.Is(err, services.ErrNoPreview) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No invoice preview saved"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load preview"})
		return
	}
	c.JSON(http.StatusOK, preview)
}

// PutPreview handles PUT /v1/preview. The stored totals are recomputed from
// the submitted items, never trusted from the request.
func (h *ProductHandler) PutPreview(c *gin.Context) {
	var payload models.PreviewPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	stored, err := h.sessionService.PutPreview(c.Request.Context(), ownerKey(c), payload)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store preview"})
		return
	}

	c.JSON(http.StatusOK, stored)
}
