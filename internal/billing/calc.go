// Package billing holds the invoice computation core: the tax/total
// calculator, the two-shape record normalizer and the history search
// predicate. Everything here is a pure function of its arguments; callers
// invoke these per keystroke and per render without coordination.
package billing

import (
	"math"

	"devbills/backend/internal/models"
)

// finite maps NaN and infinities to zero. Live-preview callers feed the
// calculator whatever the form currently holds, and a half-typed number must
// never crash or poison a running total.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Round2 rounds to 2 decimal places for display and persistence. Accumulation
// inside ComputeTotals is never rounded; only the edges are.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// TaxableValue is quantity times rate for a single line item.
func TaxableValue(item models.InvoiceLineItem) float64 {
	return finite(item.Quantity) * finite(item.Rate)
}

// ComputeTotals turns line items plus tax rates into the canonical totals.
// It is the single source of truth for the subtotal/tax/total arithmetic: no
// call site recomputes these with its own formula. Negative finite values are
// taken literally; rejecting them is the form boundary's job, not ours.
func ComputeTotals(items []models.InvoiceLineItem, tax models.TaxConfig) models.InvoiceTotals {
	var subtotal float64
	for _, item := range items {
		subtotal += TaxableValue(item)
	}
	cgstAmount := subtotal * finite(tax.CgstPercent) / 100
	sgstAmount := subtotal * finite(tax.SgstPercent) / 100
	return models.InvoiceTotals{
		Subtotal:   subtotal,
		CgstAmount: cgstAmount,
		SgstAmount: sgstAmount,
		Total:      subtotal + cgstAmount + sgstAmount,
	}
}

// RoundTotals applies display rounding to each derived amount.
func RoundTotals(t models.InvoiceTotals) models.InvoiceTotals {
	return models.InvoiceTotals{
		Subtotal:   Round2(t.Subtotal),
		CgstAmount: Round2(t.CgstAmount),
		SgstAmount: Round2(t.SgstAmount),
		Total:      Round2(t.Total),
	}
}
