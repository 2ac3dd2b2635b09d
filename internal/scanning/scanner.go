package scanning

// RawResult is the untrusted key-value payload produced by an extraction
// backend. Fields may be missing or wrongly typed; Normalize turns it into a
// well-formed draft.
type RawResult map[string]any

// Scanner defines the interface for receipt extraction backends
type Scanner interface {
	// ScanReceipt analyzes a receipt image/PDF and extracts structured
	// field guesses
	ScanReceipt(imageData []byte, contentType string) (RawResult, error)
	// Close closes the scanner and releases resources
	Close() error
}
