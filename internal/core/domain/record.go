package domain

import "time"

type RecordStatus string

const (
	StatusProcessing RecordStatus = "processing"
	StatusCompleted  RecordStatus = "completed"
	StatusFailed     RecordStatus = "failed"
)

// CipherBlob is the self-describing AEAD envelope produced by sealing. The
// GCM authentication tag travels inside Ciphertext; Algorithm and KeyVersion
// let a future multi-key open dispatch correctly.
type CipherBlob struct {
	Algorithm  string `json:"algorithm"`
	KeyVersion int    `json:"key_version"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// ProcessingMetadata captures what one pipeline run did to the card.
type ProcessingMetadata struct {
	ProcessingTime time.Duration `json:"processing_time_ns"`
	LocationsFound int           `json:"locations_found"`
	OriginalSize   int           `json:"original_size"`
	MaskedSize     int           `json:"masked_size"`
	Format         string        `json:"format"`
}

// Record is the persisted unit for one processed card. Blob keys point at
// envelope-encrypted bytes in blob storage; identifiers are stored sealed.
// Only the record vault mutates a Record once it is persisted.
type Record struct {
	ID              string             `json:"id"`
	Filename        string             `json:"filename"`
	SealedUIDs      []CipherBlob       `json:"-"`
	OriginalBlobKey string             `json:"-"`
	MaskedBlobKey   string             `json:"-"`
	Metadata        ProcessingMetadata `json:"metadata"`
	Status          RecordStatus       `json:"status"`
	Error           string             `json:"error,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// BlobKind selects which stored image a retrieval refers to.
type BlobKind string

const (
	BlobOriginal BlobKind = "original"
	BlobMasked   BlobKind = "masked"
)

func (k BlobKind) Valid() bool {
	return k == BlobOriginal || k == BlobMasked
}
