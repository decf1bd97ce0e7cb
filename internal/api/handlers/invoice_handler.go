package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"devbills/backend/internal/api/middleware"
	"devbills/backend/internal/billing"
	"devbills/backend/internal/config"
	"devbills/backend/internal/models"
	"devbills/backend/internal/services"
	"devbills/backend/internal/storage"
	"devbills/backend/internal/tasks"
)

// IAsynqClient defines the interface for the Asynq client methods used by the
// handlers. This allows easier mocking than using the concrete asynq.Client.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// InvoiceHandler handles invoice CRUD, history and totals endpoints.
type InvoiceHandler struct {
	cfg            *config.Config
	invoiceService services.IInvoiceService
	storageService storage.IS3Storage
	taskClient     IAsynqClient
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(
	cfg *config.Config,
	invoiceService services.IInvoiceService,
	storageService storage.IS3Storage,
	taskClient IAsynqClient,
) *InvoiceHandler {
	return &InvoiceHandler{
		cfg:            cfg,
		invoiceService: invoiceService,
		storageService: storageService,
		taskClient:     taskClient,
	}
}

// currentUserID resolves the authenticated user from the Gin context, nil for
// guests.
func currentUserID(c *gin.Context) *primitive.ObjectID {
	hex := c.GetString(middleware.ContextKeyUserID)
	if hex == "" {
		return nil
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil
	}
	return &id
}

type saveInvoiceRequest struct {
	InvoiceNumber string                   `json:"invoiceNumber" binding:"required"`
	Date          time.Time                `json:"date"`
	FromName      string                   `json:"fromName"`
	FromAddress   string                   `json:"fromAddress"`
	FromPhone     string                   `json:"fromPhone"`
	FromGstin     string                   `json:"fromGstin"`
	ToName        string                   `json:"toName" binding:"required"`
	ToAddress     string                   `json:"toAddress"`
	ToPhone       string                   `json:"toPhone"`
	ToGstin       string                   `json:"toGstin"`
	Items         []models.InvoiceLineItem `json:"items" binding:"required"`
	Tax           *models.TaxConfig        `json:"tax"`
}

// SaveInvoice handles POST /v1/invoices. Works for both signed-in users and
// guests; omitted tax rates fall back to the configured defaults.
func (h *InvoiceHandler) SaveInvoice(c *gin.Context) {
	var req saveInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	tax := models.TaxConfig{
		CgstPercent: h.cfg.DefaultCgstPercent,
		SgstPercent: h.cfg.DefaultSgstPercent,
	}
	if req.Tax != nil {
		tax = *req.Tax
	}

	draft := models.InvoiceDraft{
		InvoiceNumber: req.InvoiceNumber,
		Date:          req.Date,
		FromName:      req.FromName,
		FromAddress:   req.FromAddress,
		FromPhone:     req.FromPhone,
		FromGstin:     req.FromGstin,
		ToName:        req.ToName,
		ToAddress:     req.ToAddress,
		ToPhone:       req.ToPhone,
		ToGstin:       req.ToGstin,
		Items:         req.Items,
		Tax:           tax,
	}

	doc, err := h.invoiceService.Save(c.Request.Context(), currentUserID(c), draft)
	if err != nil {
		if errors.Is(err, services.ErrInvoiceNumberTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "Invoice number already in use"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save invoice"})
		return
	}

	// Kick off PDF rendering in the background; failure to enqueue is not
	// fatal for the save itself.
	if task, taskErr := tasks.NewInvoicePDFTask(doc.ID); taskErr == nil {
		if _, enqErr := h.taskClient.EnqueueContext(c.Request.Context(), task); enqErr != nil {
			log.Printf("Failed to enqueue PDF render for invoice %s: %v", doc.ID.Hex(), enqErr)
		}
	}

	view, err := billing.Normalize(*doc)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save invoice"})
		return
	}

	c.JSON(http.StatusCreated, view)
}

// History handles GET /v1/invoices/history. Every stored invoice is listed,
// guest-created ones included, with no login required. The optional "q"
// parameter filters by invoice number or counterpart name, matching
// case-insensitively.
func (h *InvoiceHandler) History(c *gin.Context) {
	views, skipped, err := h.invoiceService.History(c.Request.Context(), nil, c.Query("q"))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load invoice history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"invoices": views, "skipped": skipped})
}

// ListInvoices handles GET /v1/invoices: the signed-in caller's own invoices,
// same shape as History but owner-scoped.
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	owner := currentUserID(c)
	if owner == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	views, skipped, err := h.invoiceService.History(c.Request.Context(), owner, c.Query("q"))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load invoices"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"invoices": views, "skipped": skipped})
}

// DeleteInvoice handles DELETE /v1/invoices/:id.
func (h *InvoiceHandler) DeleteInvoice(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid invoice ID format"})
		return
	}

	owner := currentUserID(c)
	if owner == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	if err := h.invoiceService.Delete(c.Request.Context(), id, owner); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete invoice"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id.Hex()})
}

type totalsRequest struct {
	Items []models.InvoiceLineItem `json:"items" binding:"required"`
	Tax   *models.TaxConfig        `json:"tax"`
}

// ComputeTotals handles POST /v1/invoices/totals. A pure calculation used by
// the edit form for live preview; nothing is persisted.
func (h *InvoiceHandler) ComputeTotals(c *gin.Context) {
	var req totalsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	tax := models.TaxConfig{
		CgstPercent: h.cfg.DefaultCgstPercent,
		SgstPercent: h.cfg.DefaultSgstPercent,
	}
	if req.Tax != nil {
		tax = *req.Tax
	}

	totals := billing.RoundTotals(billing.ComputeTotals(req.Items, tax))
	c.JSON(http.StatusOK, totals)
}

// GetInvoicePDF handles GET /v1/invoices/:id/pdf. Returns a short-lived
// download URL when the PDF exists, or queues rendering and reports 202.
func (h *InvoiceHandler) GetInvoicePDF(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid invoice ID format"})
		return
	}

	view, err := h.invoiceService.ViewByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
			return
		}
		if errors.Is(err, billing.ErrMalformedRecord) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invoice record matches no known shape"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load invoice"})
		return
	}

	if view.PdfKey == "" {
		task, taskErr := tasks.NewInvoicePDFTask(id)
		if taskErr == nil {
			if _, enqErr := h.taskClient.EnqueueContext(c.Request.Context(), task); enqErr != nil {
				log.Printf("Failed to enqueue PDF render for invoice %s: %v", id.Hex(), enqErr)
			}
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "rendering"})
		return
	}

	url, err := h.storageService.GeneratePresignedGetURL(c.Request.Context(), view.PdfKey)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate download URL"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}
