package domain

import "time"

// ProcessResult is what one pipeline run hands back to the caller. MaskedUIDs
// carry the masked textual rendering; full values never leave the core except
// sealed inside a Record.
type ProcessResult struct {
	MaskedUIDs     []string      `json:"identifiers"`
	MaskedImage    []byte        `json:"-"`
	Format         string        `json:"format"`
	LocationsFound int           `json:"locations_found"`
	ProcessingTime time.Duration `json:"-"`
}

// StoredResult extends ProcessResult with the persisted record id.
type StoredResult struct {
	ProcessResult
	RecordID string `json:"record_id"`
}

// BatchItem is one image within a bulk request.
type BatchItem struct {
	Filename string
	Image    []byte
}

// BatchItemResult reports one item's outcome; failures carry Error and leave
// the result fields zero.
type BatchItemResult struct {
	Filename string        `json:"filename"`
	Result   *StoredResult `json:"result,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// BatchResult aggregates per-item outcomes of a bulk run. One item's failure
// never aborts its siblings.
type BatchResult struct {
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Items     []BatchItemResult `json:"items"`
}

// RecordPage is one page of a record listing plus the total match count.
type RecordPage struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
}

// Health reports whether the crypto envelope is initialized and the record
// store is reachable.
type Health struct {
	EnvelopeReady bool `json:"envelope_ready"`
	StoreReady    bool `json:"store_ready"`
}

func (h Health) OK() bool {
	return h.EnvelopeReady && h.StoreReady
}
