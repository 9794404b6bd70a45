package ports

import (
	"context"
	"io"

	"github.com/devionx/uidshield/internal/core/domain"
)

// TextRecognizer wraps one OCR back-end. Implementations are stateless per
// call but may hold lazily initialized engine state for the process lifetime.
type TextRecognizer interface {
	Name() string
	Recognize(ctx context.Context, image []byte) ([]domain.Observation, error)
	Close() error
}

// RecordRepository persists and reads record metadata rows.
type RecordRepository interface {
	Create(ctx context.Context, rec *domain.Record) error
	GetByID(ctx context.Context, id string) (*domain.Record, error)
	Update(ctx context.Context, rec *domain.Record) error
	MarkFailed(ctx context.Context, id, errMessage string) error
	List(ctx context.Context, page, pageSize int, search string) (*domain.RecordPage, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// BlobStorage stores envelope-encrypted image bytes.
type BlobStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Sealer is the authenticated encryption envelope. Seal is non-deterministic;
// Open authenticates before returning any plaintext.
type Sealer interface {
	Seal(plaintext []byte) (domain.CipherBlob, error)
	Open(blob domain.CipherBlob) ([]byte, error)
	KeyVersion() int
}

// MessageQueue publishes/consumes staged-card processing events.
type MessageQueue interface {
	PublishCardStaged(ctx context.Context, recordID string) error
	SubscribeCardStaged(ctx context.Context, handler func(context.Context, string) error) error
}
