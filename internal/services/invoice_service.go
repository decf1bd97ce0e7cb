package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"devbills/backend/internal/billing"
	"devbills/backend/internal/db"
	"devbills/backend/internal/models"
)

// ErrInvoiceNumberTaken is returned when saving an invoice whose number is
// already in use.
var ErrInvoiceNumberTaken = errors.New("invoice number already in use")

const invoicesCollection = "invoices"

// IInvoiceService defines the interface for invoice persistence and retrieval.
type IInvoiceService interface {
	Save(ctx context.Context, owner *primitive.ObjectID, draft models.InvoiceDraft) (*models.StoredInvoice, error)
	History(ctx context.Context, owner *primitive.ObjectID, query string) ([]models.InvoiceView, int, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.StoredInvoice, error)
	ViewByID(ctx context.Context, id primitive.ObjectID) (*models.InvoiceView, error)
	Delete(ctx context.Context, id primitive.ObjectID, owner *primitive.ObjectID) error
	SetPDFKey(ctx context.Context, id primitive.ObjectID, key string) error
}

// invoiceService implements IInvoiceService.
type invoiceService struct {
	db *mongo.Database
}

// NewInvoiceService creates a new InvoiceService.
func NewInvoiceService(db *mongo.Database) IInvoiceService {
	return &invoiceService{db: db}
}

// Save persists a new invoice in the current document layout. Totals are
// computed here from the submitted items and tax rates, never taken from the
// client, so the stored amounts always agree with the line items at write time.
func (s *invoiceService) Save(ctx context.Context, owner *primitive.ObjectID, draft models.InvoiceDraft) (*models.StoredInvoice, error) {
	collection := s.db.Collection(invoicesCollection)

	totals := billing.RoundTotals(billing.ComputeTotals(draft.Items, draft.Tax))

	items := make([]models.StoredInvoiceItem, len(draft.Items))
	for i, it := range draft.Items {
		qty := it.Quantity
		amount := billing.Round2(billing.TaxableValue(it))
		items[i] = models.StoredInvoiceItem{
			Description: it.Description,
			HSN:         it.HSN,
			Qty:         &qty,
			Rate:        it.Rate,
			Amount:      &amount,
		}
	}

	date := draft.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	var doc *models.StoredInvoice
	operation := func() error {
		doc = &models.StoredInvoice{
			ID:            primitive.NewObjectID(),
			InvoiceNumber: draft.InvoiceNumber,
			Date:          date,
			User:          owner,
			FromName:      draft.FromName,
			FromAddress:   draft.FromAddress,
			FromPhone:     draft.FromPhone,
			FromGstin:     draft.FromGstin,
			ToName:        draft.ToName,
			ToAddress:     draft.ToAddress,
			ToPhone:       draft.ToPhone,
			ToGstin:       draft.ToGstin,
			CgstPrice:     &draft.Tax.CgstPercent,
			SgstPrice:     &draft.Tax.SgstPercent,
			CgstAmount:    &totals.CgstAmount,
			SgstAmount:    &totals.SgstAmount,
			Subtotal:      &totals.Subtotal,
			Total:         &totals.Total,
			Items:         items,
		}
		_, insertErr := collection.InsertOne(ctx, doc)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		if mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), "invoiceNumber_1") {
			return nil, ErrInvoiceNumberTaken
		}
		return nil, fmt.Errorf("error inserting invoice %s: %w", draft.InvoiceNumber, err)
	}

	return doc, nil
}

// History returns the caller's invoices as normalized views, newest first,
// optionally filtered by a search query. Records matching neither known
// document shape are excluded; the second return value is how many were
// skipped.
func (s *invoiceService) History(ctx context.Context, owner *primitive.ObjectID, query string) ([]models.InvoiceView, int, error) {
	collection := s.db.Collection(invoicesCollection)

	filter := bson.M{}
	if owner != nil {
		filter["user"] = *owner
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query invoice history: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.StoredInvoice
	if err = cursor.All(ctx, &records); err != nil {
		return nil, 0, fmt.Errorf("failed to decode invoice history: %w", err)
	}

	views, skipped := billing.NormalizeAll(records)
	if skipped > 0 {
		log.Printf("Invoice history: skipped %d record(s) matching no known shape", skipped)
	}
	return billing.Filter(views, query), skipped, nil
}

// FindByID returns a single stored invoice document.
// Returns mongo.ErrNoDocuments if not found.
func (s *invoiceService) FindByID(ctx context.Context, id primitive.ObjectID) (*models.StoredInvoice, error) {
	var rec models.StoredInvoice
	collection := s.db.Collection(invoicesCollection)

	err := collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding invoice %s: %w", id.Hex(), err)
	}
	return &rec, nil
}

// ViewByID returns a single invoice already normalized to the canonical view.
func (s *invoiceService) ViewByID(ctx context.Context, id primitive.ObjectID) (*models.InvoiceView, error) {
	rec, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view, err := billing.Normalize(*rec)
	if err != nil {
		return nil, fmt.Errorf("invoice %s: %w", id.Hex(), err)
	}
	return &view, nil
}

// Delete removes an invoice permanently. When owner is non-nil the delete is
// scoped to that owner's documents, so users cannot delete each other's
// invoices by guessing IDs.
func (s *invoiceService) Delete(ctx context.Context, id primitive.ObjectID, owner *primitive.ObjectID) error {
	collection := s.db.Collection(invoicesCollection)

	filter := bson.M{"_id": id}
	if owner != nil {
		filter["user"] = *owner
	}

	result, err := collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("db error deleting invoice %s: %w", id.Hex(), err)
	}
	if result.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SetPDFKey records the storage key of a rendered PDF on the invoice document.
func (s *invoiceService) SetPDFKey(ctx context.Context, id primitive.ObjectID, key string) error {
	collection := s.db.Collection(invoicesCollection)

	result, err := collection.UpdateByID(ctx, id, bson.M{"$set": bson.M{"pdf": key}})
	if err != nil {
		return fmt.Errorf("db error setting pdf key on invoice %s: %w", id.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
