package billing

import (
	"errors"
	"fmt"

	"devbills/backend/internal/models"
)

// ErrMalformedRecord marks a stored invoice that matches neither of the two
// known record shapes. Callers exclude such records from rendered lists and
// surface a skipped count instead of failing the whole listing.
var ErrMalformedRecord = errors.New("invoice record matches no known shape")

// Normalize resolves a stored invoice of either historical shape into the
// canonical view. This is the only place shape discrimination happens: the
// union is closed, so a record that matches neither shape fails loudly rather
// than being coerced.
//
// For old-shape records the totals are recomputed from the line items and tax
// rates; the stored totalAmount is deliberately never trusted, guarding
// against drift from a previous formula version. New-shape records were
// written through the calculator, so their stored totals (and possibly
// manually adjusted item amounts) are taken verbatim. The asymmetry is a
// migration artifact that is preserved for compatibility.
func Normalize(rec models.StoredInvoice) (models.InvoiceView, error) {
	switch {
	case rec.TotalAmount != nil:
		return normalizeOld(rec), nil
	case rec.Total != nil:
		return normalizeNew(rec), nil
	default:
		return models.InvoiceView{}, fmt.Errorf("%w: invoice %s", ErrMalformedRecord, rec.ID.Hex())
	}
}

// NormalizeAll converts a batch of stored records, excluding malformed ones.
// It returns the canonical views plus how many records were skipped.
func NormalizeAll(recs []models.StoredInvoice) ([]models.InvoiceView, int) {
	views := make([]models.InvoiceView, 0, len(recs))
	skipped := 0
	for _, rec := range recs {
		view, err := Normalize(rec)
		if err != nil {
			skipped++
			continue
		}
		views = append(views, view)
	}
	return views, skipped
}

func normalizeOld(rec models.StoredInvoice) models.InvoiceView {
	items := make([]models.InvoiceLineItem, 0, len(rec.Items))
	viewItems := make([]models.InvoiceViewItem, 0, len(rec.Items))
	for _, it := range rec.Items {
		item := models.InvoiceLineItem{
			Description: it.Description,
			HSN:         it.HSN,
			Quantity:    deref(it.Quantity),
			Rate:        it.Rate,
		}
		items = append(items, item)
		viewItems = append(viewItems, models.InvoiceViewItem{
			Description: item.Description,
			HSN:         item.HSN,
			Quantity:    item.Quantity,
			Rate:        item.Rate,
			LineAmount:  Round2(TaxableValue(item)),
		})
	}

	tax := models.TaxConfig{CgstPercent: deref(rec.Cgst), SgstPercent: deref(rec.Sgst)}
	totals := RoundTotals(ComputeTotals(items, tax))

	return models.InvoiceView{
		ID:              rec.ID.Hex(),
		InvoiceNumber:   rec.InvoiceNumber,
		Date:            rec.Date,
		Owner:           ownerHex(rec),
		CounterpartName: rec.CustomerName,
		Contact:         rec.CustomerNumber,
		PAN:             rec.PAN,
		Items:           viewItems,
		Subtotal:        totals.Subtotal,
		CgstRate:        tax.CgstPercent,
		SgstRate:        tax.SgstPercent,
		CgstAmount:      totals.CgstAmount,
		SgstAmount:      totals.SgstAmount,
		Total:           totals.Total,
	}
}

func normalizeNew(rec models.StoredInvoice) models.InvoiceView {
	viewItems := make([]models.InvoiceViewItem, 0, len(rec.Items))
	for _, it := range rec.Items {
		viewItems = append(viewItems, models.InvoiceViewItem{
			Description: it.Description,
			HSN:         it.HSN,
			Quantity:    deref(it.Qty),
			Rate:        it.Rate,
			// Stored amounts may carry manual adjustments; never recompute.
			LineAmount: deref(it.Amount),
		})
	}

	return models.InvoiceView{
		ID:              rec.ID.Hex(),
		InvoiceNumber:   rec.InvoiceNumber,
		Date:            rec.Date,
		Owner:           ownerHex(rec),
		CounterpartName: rec.ToName,
		Contact:         rec.ToPhone,
		Items:           viewItems,
		Subtotal:        deref(rec.Subtotal),
		CgstRate:        deref(rec.CgstPrice),
		SgstRate:        deref(rec.SgstPrice),
		CgstAmount:      deref(rec.CgstAmount),
		SgstAmount:      deref(rec.SgstAmount),
		Total:           deref(rec.Total),
		PdfKey:          rec.PdfKey,
	}
}

func ownerHex(rec models.StoredInvoice) string {
	if rec.User == nil {
		return ""
	}
	return rec.User.Hex()
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
