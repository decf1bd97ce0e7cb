// Package pdf renders invoices to A4 PDF documents.
package pdf

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf/v2"

	"devbills/backend/internal/models"
)

// RenderInvoice produces the printable PDF for a normalized invoice. Shop
// branding goes in the header; when settings carry no name the document falls
// back to the invoice's own seller name.
func RenderInvoice(view models.InvoiceView, shop models.ShopSettings) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	// Header
	title := shop.Name
	if title == "" {
		title = "Invoice"
	}
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, title, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 6, "TAX INVOICE", "", 1, "C", false, 0, "")
	pdf.Ln(3)

	// Invoice meta
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(95, 7, fmt.Sprintf("Invoice No: %s", view.InvoiceNumber), "1", 0, "L", true, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Date: %s", view.Date.Format("02-Jan-2006")), "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(95, 7, fmt.Sprintf("Billed To: %s", view.CounterpartName), "1", 0, "L", false, 0, "")
	contact := view.Contact
	if contact == "" {
		contact = "-"
	}
	pdf.CellFormat(95, 7, fmt.Sprintf("Contact: %s", contact), "1", 1, "L", false, 0, "")
	if view.PAN != "" {
		pdf.CellFormat(190, 7, fmt.Sprintf("PAN: %s", view.PAN), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	// Items table header
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(200, 200, 200)
	pdf.CellFormat(12, 7, "#", "1", 0, "C", true, 0, "")
	pdf.CellFormat(78, 7, "Item", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 7, "HSN/SAC", "1", 0, "C", true, 0, "")
	pdf.CellFormat(20, 7, "Qty", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 7, "Rate", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 7, "Amount", "1", 1, "C", true, 0, "")

	// Items
	pdf.SetFont("Arial", "", 10)
	for i, item := range view.Items {
		desc := item.Description
		if len(desc) > 40 {
			desc = desc[:37] + "..."
		}
		hsn := item.HSN
		if hsn == "" {
			hsn = "-"
		}
		pdf.CellFormat(12, 6, fmt.Sprintf("%d", i+1), "1", 0, "C", false, 0, "")
		pdf.CellFormat(78, 6, desc, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, hsn, "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, trimNumber(item.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%.2f", item.Rate), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", item.LineAmount), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	// Totals block
	pdf.SetFont("Arial", "", 10)
	totalsRow(pdf, "Subtotal", view.Subtotal, false)
	totalsRow(pdf, fmt.Sprintf("CGST @ %s%%", trimNumber(view.CgstRate)), view.CgstAmount, false)
	totalsRow(pdf, fmt.Sprintf("SGST @ %s%%", trimNumber(view.SgstRate)), view.SgstAmount, false)
	pdf.SetFont("Arial", "B", 11)
	totalsRow(pdf, "Grand Total", view.Total, true)

	pdf.Ln(3)
	pdf.SetFont("Arial", "B", 10)
	pdf.MultiCell(190, 6, "Amount in words: "+AmountInWords(view.Total), "", "L", false)

	pdf.Ln(6)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(190, 5, "*Computer-generated invoice", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render invoice %s: %w", view.InvoiceNumber, err)
	}
	return buf.Bytes(), nil
}

func totalsRow(pdf *gofpdf.Fpdf, label string, amount float64, fill bool) {
	if fill {
		pdf.SetFillColor(220, 220, 220)
	}
	pdf.CellFormat(110, 7, "", "", 0, "L", false, 0, "")
	pdf.CellFormat(50, 7, label, "1", 0, "L", fill, 0, "")
	pdf.CellFormat(30, 7, fmt.Sprintf("%.2f", amount), "1", 1, "R", fill, 0, "")
}

// trimNumber formats quantities and percentage rates without trailing zeros,
// so "2" prints as 2 and "2.5" as 2.5.
func trimNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
