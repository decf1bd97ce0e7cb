package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InvoiceLineItem is one billable entry as edited in the invoice form.
// Quantity and Rate are kept as general numbers; validation of negatives and
// blanks happens at the form boundary, not here.
type InvoiceLineItem struct {
	Description string  `bson:"description" json:"description"`
	HSN         string  `bson:"hsn,omitempty" json:"hsn,omitempty"` // Classification code, carried through unchanged
	Quantity    float64 `bson:"quantity" json:"quantity"`
	Rate        float64 `bson:"rate" json:"rate"`
}

// TaxConfig holds the two independent percentage rates applied to the subtotal.
// No upper bound is enforced: rates above 100 are accepted and simply produce
// large tax amounts.
type TaxConfig struct {
	CgstPercent float64 `json:"cgst"`
	SgstPercent float64 `json:"sgst"`
}

// InvoiceTotals is fully derived and always recomputable from line items plus
// tax config. Total equals Subtotal + CgstAmount + SgstAmount.
type InvoiceTotals struct {
	Subtotal   float64 `json:"subtotal"`
	CgstAmount float64 `json:"cgst_amount"`
	SgstAmount float64 `json:"sgst_amount"`
	Total      float64 `json:"total"`
}

// StoredInvoiceItem is a line item as it sits in MongoDB. Historical records
// exist in two layouts: the old one stores hsn/quantity/rate, the new one
// stores qty/rate/amount. Pointer fields keep absence distinguishable.
type StoredInvoiceItem struct {
	Description string   `bson:"description,omitempty" json:"description,omitempty"`
	HSN         string   `bson:"hsn,omitempty" json:"hsn,omitempty"`
	Quantity    *float64 `bson:"quantity,omitempty" json:"quantity,omitempty"` // old shape
	Qty         *float64 `bson:"qty,omitempty" json:"qty,omitempty"`           // new shape
	Rate        float64  `bson:"rate,omitempty" json:"rate,omitempty"`
	Amount      *float64 `bson:"amount,omitempty" json:"amount,omitempty"` // new shape, stored as-is (may be adjusted)
}

// StoredInvoice is an invoice document as read back from MongoDB. It is the
// superset of both historical record shapes; billing.Normalize is the single
// place that resolves which shape a record actually is.
//
// Old shape: customerName/customerNumber/pan/cgst/sgst/totalAmount.
// New shape: from*/to* parties, cgstPrice/sgstPrice rates, stored
// cgstAmount/sgstAmount/subtotal/total and an optional rendered pdf key.
type StoredInvoice struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	InvoiceNumber string              `bson:"invoiceNumber" json:"invoiceNumber"`
	Date          time.Time           `bson:"date" json:"date"`
	User          *primitive.ObjectID `bson:"user,omitempty" json:"user,omitempty"` // nil for guest invoices

	// Old shape fields
	CustomerName   string   `bson:"customerName,omitempty" json:"customerName,omitempty"`
	CustomerNumber string   `bson:"customerNumber,omitempty" json:"customerNumber,omitempty"`
	PAN            string   `bson:"pan,omitempty" json:"pan,omitempty"`
	Cgst           *float64 `bson:"cgst,omitempty" json:"cgst,omitempty"`
	Sgst           *float64 `bson:"sgst,omitempty" json:"sgst,omitempty"`
	TotalAmount    *float64 `bson:"totalAmount,omitempty" json:"totalAmount,omitempty"`

	// New shape fields
	FromName    string   `bson:"fromName,omitempty" json:"fromName,omitempty"`
	FromAddress string   `bson:"fromAddress,omitempty" json:"fromAddress,omitempty"`
	FromPhone   string   `bson:"fromPhone,omitempty" json:"fromPhone,omitempty"`
	FromGstin   string   `bson:"fromGstin,omitempty" json:"fromGstin,omitempty"`
	ToName      string   `bson:"toName,omitempty" json:"toName,omitempty"`
	ToAddress   string   `bson:"toAddress,omitempty" json:"toAddress,omitempty"`
	ToPhone     string   `bson:"toPhone,omitempty" json:"toPhone,omitempty"`
	ToGstin     string   `bson:"toGstin,omitempty" json:"toGstin,omitempty"`
	CgstPrice   *float64 `bson:"cgstPrice,omitempty" json:"cgstPrice,omitempty"` // percentage rate, despite the name
	SgstPrice   *float64 `bson:"sgstPrice,omitempty" json:"sgstPrice,omitempty"`
	CgstAmount  *float64 `bson:"cgstAmount,omitempty" json:"cgstAmount,omitempty"`
	SgstAmount  *float64 `bson:"sgstAmount,omitempty" json:"sgstAmount,omitempty"`
	Subtotal    *float64 `bson:"subtotal,omitempty" json:"subtotal,omitempty"`
	Total       *float64 `bson:"total,omitempty" json:"total,omitempty"`
	PdfKey      string   `bson:"pdf,omitempty" json:"pdf,omitempty"`

	Items []StoredInvoiceItem `bson:"items" json:"items"`
}

// InvoiceDraft is the payload submitted when saving a new invoice. Totals are
// never accepted from the client; the service derives them from the line items
// and tax rates before persisting.
type InvoiceDraft struct {
	InvoiceNumber string            `json:"invoiceNumber" binding:"required"`
	Date          time.Time         `json:"date"`
	FromName      string            `json:"fromName"`
	FromAddress   string            `json:"fromAddress"`
	FromPhone     string            `json:"fromPhone"`
	FromGstin     string            `json:"fromGstin"`
	ToName        string            `json:"toName" binding:"required"`
	ToAddress     string            `json:"toAddress"`
	ToPhone       string            `json:"toPhone"`
	ToGstin       string            `json:"toGstin"`
	Items         []InvoiceLineItem `json:"items" binding:"required"`
	Tax           TaxConfig         `json:"tax"`
}

// InvoiceViewItem is a line item in the canonical presentation shape.
type InvoiceViewItem struct {
	Description string  `json:"description"`
	HSN         string  `json:"hsn,omitempty"`
	Quantity    float64 `json:"quantity"`
	Rate        float64 `json:"rate"`
	LineAmount  float64 `json:"line_amount"`
}

// InvoiceView is the canonical invoice representation used uniformly by the
// history list, search, detail expansion and PDF rendering, regardless of
// which stored shape it came from.
type InvoiceView struct {
	ID              string            `json:"id"`
	InvoiceNumber   string            `json:"invoice_number"`
	Date            time.Time         `json:"date"`
	Owner           string            `json:"owner,omitempty"` // empty for guest invoices
	CounterpartName string            `json:"counterpart_name"`
	Contact         string            `json:"contact,omitempty"`
	PAN             string            `json:"pan,omitempty"`
	Items           []InvoiceViewItem `json:"items"`
	Subtotal        float64           `json:"subtotal"`
	CgstRate        float64           `json:"cgst_rate"`
	SgstRate        float64           `json:"sgst_rate"`
	CgstAmount      float64           `json:"cgst_amount"`
	SgstAmount      float64           `json:"sgst_amount"`
	Total           float64           `json:"total"`
	PdfKey          string            `json:"pdf_key,omitempty"`
}
