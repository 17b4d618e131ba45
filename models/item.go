// Package models defines data structures for the scraper.
package models

// FailureKind tags why a card could not be extracted.
type FailureKind string

const (
	// MissingElement means a required field selector matched nothing.
	MissingElement FailureKind = "MissingElement"
	// Unexpected covers every other per-card fault.
	Unexpected FailureKind = "Unexpected"
)

// CatalogItem is one card as read from the page.
type CatalogItem struct {
	Title       string `csv:"title" json:"title"`
	PriceText   string `csv:"price" json:"price"`
	Description string `csv:"description" json:"description"`
	Rating      int    `csv:"rating" json:"rating"`
	Reviews     int    `csv:"reviews" json:"reviews"`
}

// ExtractionFailure records a card index that produced no item.
type ExtractionFailure struct {
	Index  int         `json:"index"`
	Reason string      `json:"reason"`
	Kind   FailureKind `json:"error_type"`
}

// PriceData is the normalized form of a raw price string. Amount and
// ConvertedAmount are nil when the text had no number or no rate was known.
type PriceData struct {
	Raw               string   `json:"raw"`
	Currency          string   `json:"currency"`
	Amount            *float64 `json:"amount"`
	ConvertedCurrency string   `json:"converted_currency"`
	ConvertedAmount   *float64 `json:"converted_amount"`
}

// ProcessedItem is a CatalogItem with its price text replaced by PriceData.
type ProcessedItem struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Rating      int       `json:"rating"`
	Reviews     int       `json:"reviews"`
	PriceData   PriceData `json:"price_data"`
}
