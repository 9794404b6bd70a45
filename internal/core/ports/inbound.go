package ports

import (
	"context"

	"github.com/devionx/uidshield/internal/core/domain"
)

// CardProcessor is the inbound contract for the detection-masking pipeline.
type CardProcessor interface {
	Process(ctx context.Context, image []byte, filename string) (*domain.ProcessResult, error)
	ProcessAndStore(ctx context.Context, image []byte, filename string) (*domain.StoredResult, error)
	ProcessBatch(ctx context.Context, items []domain.BatchItem) *domain.BatchResult
}

// CardIngestor stages a card for asynchronous processing: the original is
// sealed and persisted, a processing record is created and an event published.
type CardIngestor interface {
	Stage(ctx context.Context, image []byte, filename string) (*domain.Record, error)
}

// StagedCardProcessor is the worker-side contract completing staged records.
type StagedCardProcessor interface {
	ProcessByID(ctx context.Context, recordID string) error
}

// RecordReader is the inbound read model for persisted records.
type RecordReader interface {
	Get(ctx context.Context, id string) (*domain.Record, error)
	List(ctx context.Context, page, pageSize int, search string) (*domain.RecordPage, error)
	RetrieveBlob(ctx context.Context, id string, kind domain.BlobKind) ([]byte, error)
}

// RecordAdmin removes records together with their blobs.
type RecordAdmin interface {
	Delete(ctx context.Context, id string) error
}

// HealthChecker probes envelope and store readiness.
type HealthChecker interface {
	Check(ctx context.Context) domain.Health
}
