package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // Logo uploads are usually PNG
	"log"

	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"devbills/backend/internal/billing"
	"devbills/backend/internal/config"
	"devbills/backend/internal/pdf"
	"devbills/backend/internal/services"
	"devbills/backend/internal/storage"
)

// TaskType defines the type of a background task.
const (
	TypeInvoicePDF  = "invoice:pdf:render"
	TypeLogoProcess = "logo:process"
)

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr: rdb.Options().Addr,
		// Add Password, DB if needed from rdb.Options()
	}
	return asynq.NewClient(clientOpt)
}

// InvoicePDFPayload identifies the invoice to render.
type InvoicePDFPayload struct {
	InvoiceID string `json:"invoice_id"`
}

// NewInvoicePDFTask builds a render task for the given invoice.
func NewInvoicePDFTask(invoiceID primitive.ObjectID) (*asynq.Task, error) {
	payload, err := json.Marshal(InvoicePDFPayload{InvoiceID: invoiceID.Hex()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeInvoicePDF, payload), nil
}

// LogoProcessPayload identifies an uploaded logo and its owner.
type LogoProcessPayload struct {
	S3Key    string `json:"s3_key"`
	OwnerKey string `json:"owner_key"`
}

// NewLogoProcessTask builds a logo normalization task.
func NewLogoProcessTask(s3Key, ownerKey string) (*asynq.Task, error) {
	payload, err := json.Marshal(LogoProcessPayload{S3Key: s3Key, OwnerKey: ownerKey})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeLogoProcess, payload), nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg            *config.Config
	invoiceService services.IInvoiceService
	shopService    services.IShopService
	storageService storage.IS3Storage
}

func NewTaskProcessor(
	cfg *config.Config,
	invoiceService services.IInvoiceService,
	shopService services.IShopService,
	storageService storage.IS3Storage,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:            cfg,
		invoiceService: invoiceService,
		shopService:    shopService,
		storageService: storageService,
	}
}

// SetupServer configures and runs an Asynq server instance. Blocks until the
// server shuts down, so callers run it on its own goroutine.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isBgWorker bool) *asynq.Server {
	serverOpt := asynq.RedisClientOpt{
		Addr: rdb.Options().Addr,
		// Add Password, DB if needed
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				fmt.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v\n", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	if !isBgWorker {
		fmt.Println("Running in API mode, no task server started.")
		return nil
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeInvoicePDF, processor.HandleInvoicePDFTask)
	mux.HandleFunc(TypeLogoProcess, processor.HandleLogoProcessTask)
	fmt.Println("Registered background task handlers (pdf rendering & logo processing).")

	if err := srv.Run(mux); err != nil {
		log.Fatalf("Could not run Asynq server: %v", err)
	}

	return srv
}

// --- Task Handlers ---

// HandleInvoicePDFTask renders an invoice to PDF, stores it in S3 and records
// the object key on the invoice document.
func (p *TaskProcessor) HandleInvoicePDFTask(ctx context.Context, t *asynq.Task) error {
	var payload InvoicePDFPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal pdf task payload: %v: %w", err, asynq.SkipRetry)
	}

	invoiceID, err := primitive.ObjectIDFromHex(payload.InvoiceID)
	if err != nil {
		log.Printf("Invalid InvoiceID in pdf task payload: %s", payload.InvoiceID)
		return fmt.Errorf("invalid invoice ID in payload: %w", asynq.SkipRetry)
	}

	log.Printf("Rendering PDF for invoice %s", payload.InvoiceID)

	view, err := p.invoiceService.ViewByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			log.Printf("Invoice %s no longer exists, skipping PDF render.", payload.InvoiceID)
			return fmt.Errorf("invoice not found: %w", asynq.SkipRetry)
		}
		if errors.Is(err, billing.ErrMalformedRecord) {
			log.Printf("Invoice %s matches no known shape, cannot render.", payload.InvoiceID)
			return fmt.Errorf("malformed invoice record: %w", asynq.SkipRetry)
		}
		return err
	}

	ownerKey := view.Owner
	if ownerKey == "" {
		ownerKey = "guest"
	}
	shop, err := p.shopService.Get(ctx, ownerKey)
	if err != nil {
		return fmt.Errorf("failed to load shop settings for invoice %s: %w", payload.InvoiceID, err)
	}

	data, err := pdf.RenderInvoice(*view, *shop)
	if err != nil {
		return err
	}

	key := p.storageService.InvoicePDFKey(payload.InvoiceID)
	if err := p.storageService.Upload(ctx, key, "application/pdf", data); err != nil {
		return err
	}

	if err := p.invoiceService.SetPDFKey(ctx, invoiceID, key); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Deleted between render and update; the orphan object is harmless
			// under a deterministic key.
			log.Printf("Invoice %s deleted during PDF render.", payload.InvoiceID)
			return nil
		}
		return err
	}

	log.Printf("PDF task processed successfully: Invoice=%s, Key=%s", payload.InvoiceID, key)
	return nil
}

// HandleLogoProcessTask normalizes an uploaded shop logo: enforces the size
// cap, scales it down to the configured maximum dimension and records the key
// on the owner's shop settings.
func (p *TaskProcessor) HandleLogoProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload LogoProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal logo task payload: %v: %w", err, asynq.SkipRetry)
	}

	log.Printf("Processing logo task: S3Key=%s, Owner=%s", payload.S3Key, payload.OwnerKey)

	imgData, err := p.storageService.Download(ctx, payload.S3Key)
	if err != nil {
		return fmt.Errorf("failed to download logo from S3: %w", err)
	}

	maxSizeBytes := int64(p.cfg.LogoMaxSizeMB) * 1024 * 1024
	if int64(len(imgData)) > maxSizeBytes {
		log.Printf("Logo %s exceeds max size (%d > %d bytes). Skipping.", payload.S3Key, len(imgData), maxSizeBytes)
		return fmt.Errorf("logo exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		log.Printf("Error decoding logo for key %s: %v", payload.S3Key, err)
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}
	log.Printf("Decoded logo %s, format: %s, size: %dx%d", payload.S3Key, format, img.Bounds().Dx(), img.Bounds().Dy())

	maxDim := uint(p.cfg.LogoMaxDimension)
	if uint(img.Bounds().Dx()) > maxDim || uint(img.Bounds().Dy()) > maxDim {
		resized := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
			return fmt.Errorf("failed to re-encode resized logo: %w", err)
		}
		if err := p.storageService.Upload(ctx, payload.S3Key, "image/jpeg", buf.Bytes()); err != nil {
			return fmt.Errorf("failed to upload processed logo: %w", err)
		}
		log.Printf("Resized logo %s to %dx%d", payload.S3Key, resized.Bounds().Dx(), resized.Bounds().Dy())
	}

	if err := p.shopService.SetLogoKey(ctx, payload.OwnerKey, payload.S3Key); err != nil {
		return fmt.Errorf("failed to record logo key for %s: %w", payload.OwnerKey, err)
	}

	log.Printf("Logo task processed successfully: Key=%s, Owner=%s", payload.S3Key, payload.OwnerKey)
	return nil
}
