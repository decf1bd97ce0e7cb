package billing

import (
	"strings"

	"devbills/backend/internal/models"
)

// Matches reports whether a canonical invoice view should appear in a list
// filtered by query. The match is a case-insensitive substring test against
// the invoice number and the counterpart display name; an empty query matches
// everything. Pure and stable under repeated calls.
func Matches(view models.InvoiceView, query string) bool {
	q := strings.ToLower(query)
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(view.InvoiceNumber), q) ||
		strings.Contains(strings.ToLower(view.CounterpartName), q)
}

// Filter returns the views matching query, preserving order.
func Filter(views []models.InvoiceView, query string) []models.InvoiceView {
	if query == "" {
		return views
	}
	out := make([]models.InvoiceView, 0, len(views))
	for _, view := range views {
		if Matches(view, query) {
			out = append(out, view)
		}
	}
	return out
}
