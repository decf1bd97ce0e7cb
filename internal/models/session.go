package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ShopSettings is the per-session shop branding shared across pages.
// Defaults apply until the user saves their own via the settings surface.
type ShopSettings struct {
	Name    string `json:"name"`
	LogoKey string `json:"logo_key,omitempty"` // S3 object key of the processed logo
}

// StoredShopSettings is the Mongo document backing an account's branding.
// The document id is the owner's user id. Guest branding lives only in
// Redis and never reaches this collection.
type StoredShopSettings struct {
	ID        primitive.ObjectID `bson:"_id"`
	Name      string             `bson:"name"`
	LogoKey   string             `bson:"logo_key,omitempty"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

// Product is one entry of the per-session product listing.
type Product struct {
	Description string  `json:"description"`
	Rate        float64 `json:"rate"`
	Stock       int     `json:"stock"`
}

// PreviewPayload is the typed hand-off between the invoice edit view and the
// preview view. It replaces an unstructured client-side blob: the store keeps
// an explicit present/absent state, and the preview surface treats absence as
// a redirect back to the edit form.
type PreviewPayload struct {
	CompanyName    string `json:"companyName"`
	CompanyGstin   string `json:"companyGst,omitempty"`
	CompanyAddress string `json:"companyAddress,omitempty"`
	CompanyEmail   string `json:"companyEmail,omitempty"`
	CompanyPhone   string `json:"companyPhone,omitempty"`

	InvoiceNumber string `json:"invoiceNumber"`
	InvoiceDate   string `json:"invoiceDate"`
	PlaceOfSupply string `json:"placeOfSupply,omitempty"`

	CustomerName   string `json:"customerName"`
	CustomerGstin  string `json:"customerGST,omitempty"`
	CustomerPAN    string `json:"customerPAN,omitempty"`
	BillingAddress string `json:"billingAddress,omitempty"`

	Items []InvoiceLineItem `json:"items"`
	Tax   TaxConfig         `json:"tax"`

	// Derived by the calculator when the payload is stored; never supplied by
	// the client.
	Totals InvoiceTotals `json:"totals"`

	BankName      string `json:"bankName,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
	IFSC          string `json:"ifsc,omitempty"`
	Branch        string `json:"branch,omitempty"`
}
