package handlers

import (
	"io"
	"log"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"devbills/backend/internal/api/middleware"
	"devbills/backend/internal/config"
	"devbills/backend/internal/services"
	"devbills/backend/internal/storage"
	"devbills/backend/internal/tasks"
)

// ShopHandler handles shop branding endpoints.
type ShopHandler struct {
	cfg            *config.Config
	shopService    services.IShopService
	storageService storage.IS3Storage
	taskClient     IAsynqClient
}

// NewShopHandler creates a new ShopHandler.
func NewShopHandler(
	cfg *config.Config,
	shopService services.IShopService,
	storageService storage.IS3Storage,
	taskClient IAsynqClient,
) *ShopHandler {
	return &ShopHandler{
		cfg:            cfg,
		shopService:    shopService,
		storageService: storageService,
		taskClient:     taskClient,
	}
}

// ownerKey identifies whose session state a request touches. Signed-in users
// are keyed by their user ID; guests by the X-Session-Key header their client
// generates once and keeps sending.
func ownerKey(c *gin.Context) string {
	if id := c.GetString(middleware.ContextKeyUserID); id != "" {
		return id
	}
	if key := c.GetHeader("X-Session-Key"); key != "" {
		return key
	}
	return "guest"
}

// GetShop handles GET /v1/shop.
func (h *ShopHandler) GetShop(c *gin.Context) {
	settings, err := h.shopService.Get(c.Request.Context(), ownerKey(c))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load shop settings"})
		return
	}
	c.JSON(http.StatusOK, settings)
}

type updateShopRequest struct {
	Name string `json:"name" binding:"required"`
}

// UpdateShop handles PUT /v1/shop. Only the display name is writable here;
// the logo key is managed by the upload flow.
func (h *ShopHandler) UpdateShop(c *gin.Context) {
	var req updateShopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	key := ownerKey(c)
	settings, err := h.shopService.Get(c.Request.Context(), key)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load shop settings"})
		return
	}

	settings.Name = req.Name
	if err := h.shopService.Update(c.Request.Context(), key, *settings); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update shop settings"})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// UploadLogo handles POST /v1/shop/logo. The raw upload goes straight to S3;
// resizing and recording on the shop settings happen in the background.
func (h *ShopHandler) UploadLogo(c *gin.Context) {
	fileHeader, err := c.FormFile("logo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing logo file"})
		return
	}

	maxSizeBytes := int64(h.cfg.LogoMaxSizeMB) * 1024 * 1024
	if fileHeader.Size > maxSizeBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Logo exceeds maximum size"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read logo"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxSizeBytes+1))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read logo"})
		return
	}
	if int64(len(data)) > maxSizeBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Logo exceeds maximum size"})
		return
	}

	key := ownerKey(c)
	objectKey := h.storageService.LogoKey(key, filepath.Base(fileHeader.Filename))
	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := h.storageService.Upload(c.Request.Context(), objectKey, contentType, data); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store logo"})
		return
	}

	task, err := tasks.NewLogoProcessTask(objectKey, key)
	if err == nil {
		if _, enqErr := h.taskClient.EnqueueContext(c.Request.Context(), task); enqErr != nil {
			log.Printf("Failed to enqueue logo processing for %s: %v", objectKey, enqErr)
		}
	}

	c.JSON(http.StatusAccepted, gin.H{"key": objectKey, "status": "processing"})
}
