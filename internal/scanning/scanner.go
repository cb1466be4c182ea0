package scanning

import "context"

// LineItem is a single purchased item on a receipt
type LineItem struct {
	Item     string  `json:"item"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

// ReceiptData contains the structured information extracted from a receipt
type ReceiptData struct {
	Merchant  string     `json:"merchant"`
	Date      string     `json:"date"` // ISO 8601 when recognizable, verbatim otherwise
	Total     float64    `json:"total"`
	LineItems []LineItem `json:"items"`
}

// Scanner defines the interface for receipt extraction operations
type Scanner interface {
	// ExtractText transcribes all visible text in a receipt image/PDF
	ExtractText(ctx context.Context, imageData []byte, contentType string) (string, error)

	// Structure converts transcribed receipt text into ReceiptData
	Structure(ctx context.Context, text string) (*ReceiptData, error)

	// Close closes the scanner and releases resources
	Close() error
}
