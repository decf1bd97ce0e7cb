package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"devbills/backend/internal/models"
)

func setupInvoiceServiceTest(t *testing.T) (*mongo.Database, IInvoiceService, func()) {
	dbName := fmt.Sprintf("testdb_invoice_service_%d", time.Now().UnixNano())
	db, cleanup := setupTestDB(t, dbName)
	return db, NewInvoiceService(db), cleanup
}

func sampleDraft(number string) models.InvoiceDraft {
	return models.InvoiceDraft{
		InvoiceNumber: number,
		FromName:      "Dev Electricals",
		ToName:        "Sharma Traders",
		ToPhone:       "9876543210",
		Items: []models.InvoiceLineItem{
			{Description: "Switchboard", HSN: "8536", Quantity: 2, Rate: 100},
			{Description: "Wire roll", HSN: "8544", Quantity: 1, Rate: 50},
		},
		Tax: models.TaxConfig{CgstPercent: 9, SgstPercent: 9},
	}
}

func TestInvoiceService_SaveComputesTotals(t *testing.T) {
	_, svc, cleanup := setupInvoiceServiceTest(t)
	defer cleanup()

	owner := primitive.NewObjectID()
	doc, err := svc.Save(context.Background(), &owner, sampleDraft("INV-001"))
	require.NoError(t, err)

	require.NotNil(t, doc.Subtotal)
	assert.Equal(t, 250.0, *doc.Subtotal)
	assert.Equal(t, 22.5, *doc.CgstAmount)
	assert.Equal(t, 22.5, *doc.SgstAmount)
	assert.Equal(t, 295.0, *doc.Total)
	assert.Equal(t, 9.0, *doc.CgstPrice)

	require.Len(t, doc.Items, 2)
	require.NotNil(t, doc.Items[0].Qty)
	assert.Equal(t, 2.0, *doc.Items[0].Qty)
	require.NotNil(t, doc.Items[0].Amount)
	assert.Equal(t, 200.0, *doc.Items[0].Amount)
}

func TestInvoiceService_HistoryNewestFirst(t *testing.T) {
	db, svc, cleanup := setupInvoiceServiceTest(t)
	defer cleanup()

	owner := primitive.NewObjectID()
	older := sampleDraft("INV-OLD")
	older.Date = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := sampleDraft("INV-NEW")
	newer.Date = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Save(context.Background(), &owner, older)
	require.NoError(t, err)
	_, err = svc.Save(context.Background(), &owner, newer)
	require.NoError(t, err)

	// A legacy-layout document alongside the new ones
	legacyTotal := 118.0
	rate := 9.0
	qty := 1.0
	legacy := models.StoredInvoice{
		ID:            primitive.NewObjectID(),
		InvoiceNumber: "INV-LEGACY",
		Date:          time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC),
		User:          &owner,
		CustomerName:  "Gupta Hardware",
		Cgst:          &rate,
		Sgst:          &rate,
		TotalAmount:   &legacyTotal,
		Items:         []models.StoredInvoiceItem{{Description: "Bulb", Quantity: &qty, Rate: 100}},
	}
	_, err = db.Collection(invoicesCollection).InsertOne(context.Background(), legacy)
	require.NoError(t, err)

	views, skipped, err := svc.History(context.Background(), &owner, "")
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, views, 3)
	assert.Equal(t, "INV-NEW", views[0].InvoiceNumber)
	assert.Equal(t, "INV-OLD", views[1].InvoiceNumber)
	assert.Equal(t, "INV-LEGACY", views[2].InvoiceNumber)

	// Legacy totals are recomputed from the line items, not read back
	assert.Equal(t, 100.0, views[2].Subtotal)
	assert.Equal(t, 118.0, views[2].Total)
}

func TestInvoiceService_HistoryScopedToOwner(t *testing.T) {
	_, svc, cleanup := setupInvoiceServiceTest(t)
	defer cleanup()

	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()

	_, err := svc.Save(context.Background(), &alice, sampleDraft("INV-A1"))
	require.NoError(t, err)
	_, err = svc.Save(context.Background(), &bob, sampleDraft("INV-B1"))
	require.NoError(t, err)

	views, _, err := svc.History(context.Background(), &alice, "")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "INV-A1", views[0].InvoiceNumber)
}

func TestInvoiceService_HistoryNilOwnerListsEverything(t *testing.T) {
	_, svc, cleanup := setupInvoiceServiceTest(t)
	defer cleanup()

	alice := primitive.NewObjectID()
	_, err := svc.Save(context.Background(), &alice, sampleDraft("INV-A1"))
	require.NoError(t, err)
	_, err = svc.Save(context.Background(), nil, sampleDraft("INV-GUEST"))
	require.NoError(t, err)

	views, skipped, err := svc.History(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, views, 2)

	numbers := []string{views[0].InvoiceNumber, views[1].InvoiceNumber}
	assert.Contains(t, numbers, "INV-A1")
	assert.Contains(t, numbers, "INV-GUEST")
}

func TestInvoiceService_HistorySearch(t *testing.T) {
	_, svc, cleanup := setupInvoiceServiceTest(t)
	defer cleanup()

	owner := primitive.NewObjectID()
	first := sampleDraft("INV-001")
	second := sampleDraft("QT-17")
	second.ToName = "Gupta Hardware"

	_, err := svc.Save(context.Background(), &owner, first)
	require.NoError(t, err)
	_, err = svc.Save(context.Background(), &owner, second)
	require.NoError(t, err)

	views, _, err := svc.History(context.Background(), &owner, "gupta")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "QT-17", views[0].InvoiceNumber)
}

func TestInvoiceService_HistorySkipsMalformed(t *testing.T) {
	db, svc, cleanup := setupInvoiceServiceTest(t)
	defer cleanup()

	owner := primitive.NewObjectID()
	_, err := svc.Save(context.Background(), &owner, sampleDraft("INV-OK"))
	require.NoError(t, err)

	// Neither totalAmount nor total: matches no known shape
	broken := models.StoredInvoice{
		ID:            primitive.NewObjectID(),
		InvoiceNumber: "INV-BROKEN",
		Date:          time.Now().UTC(),
		User:          &owner,
	}
	_, err = db.Collection(invoicesCollection).InsertOne(context.Background(), broken)
	require.NoError(t, err)

	views, skipped, err := svc.History(context.Background(), &owner, "")
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, views, 1)
	assert.Equal(t, "INV-OK", views[0].InvoiceNumber)
}

func TestInvoiceService_DeleteScopedToOwner(t *testing.T) {
	_, svc, cleanup := setupInvoiceServiceTest(t)
	defer cleanup()

	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()
	doc, err := svc.Save(context.Background(), &alice, sampleDraft("INV-DEL"))
	require.NoError(t, err)

	// Bob cannot delete Alice's invoice
	err = svc.Delete(context.Background(), doc.ID, &bob)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)

	err = svc.Delete(context.Background(), doc.ID, &alice)
	assert.NoError(t, err)

	_, err = svc.FindByID(context.Background(), doc.ID)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)

	// Deleting again reports not found
	err = svc.Delete(context.Background(), doc.ID, &alice)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
}

func TestInvoiceService_SetPDFKey(t *testing.T) {
	_, svc, cleanup := setupInvoiceServiceTest(t)
	defer cleanup()

	owner := primitive.NewObjectID()
	doc, err := svc.Save(context.Background(), &owner, sampleDraft("INV-PDF"))
	require.NoError(t, err)

	err = svc.SetPDFKey(context.Background(), doc.ID, "invoices/abc.pdf")
	require.NoError(t, err)

	view, err := svc.ViewByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "invoices/abc.pdf", view.PdfKey)

	err = svc.SetPDFKey(context.Background(), primitive.NewObjectID(), "x")
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
}

func TestInvoiceService_SaveGuestInvoice(t *testing.T) {
	_, svc, cleanup := setupInvoiceServiceTest(t)
	defer cleanup()

	doc, err := svc.Save(context.Background(), nil, sampleDraft("INV-GUEST"))
	require.NoError(t, err)
	assert.Nil(t, doc.User)

	view, err := svc.ViewByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Owner)
}
