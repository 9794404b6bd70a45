package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/devionx/uidshield/internal/core/domain"
	"github.com/devionx/uidshield/internal/core/ports"
)

// RecordVault is the secure record store: it seals every identifier and both
// images before any byte reaches durable media, and keeps blob and metadata
// writes consistent with a staged commit. Blobs are written first (an orphan
// blob without metadata is recoverable garbage, not a consistency violation),
// metadata last, with a compensating blob delete on any failure in between.
type RecordVault struct {
	repo   ports.RecordRepository
	blobs  ports.BlobStorage
	sealer ports.Sealer
}

func NewRecordVault(repo ports.RecordRepository, blobs ports.BlobStorage, sealer ports.Sealer) *RecordVault {
	return &RecordVault{repo: repo, blobs: blobs, sealer: sealer}
}

// NewRecord creates the metadata row in processing state. The record exists
// from the instant the pipeline accepts a store request.
func (v *RecordVault) NewRecord(ctx context.Context, filename string) (*domain.Record, error) {
	now := time.Now().UTC()
	rec := &domain.Record{
		ID:        uuid.NewString(),
		Filename:  filename,
		Status:    domain.StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := v.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create record row: %w", err)
	}
	return rec, nil
}

// Complete seals identifiers and images, writes both blobs, then flips the
// record to completed in one metadata write. Any failure after a blob write
// removes the written blobs and marks the record failed, so a completed
// record never references missing blobs and no blob outlives its record.
func (v *RecordVault) Complete(
	ctx context.Context,
	rec *domain.Record,
	original, masked []byte,
	identifiers []string,
	meta domain.ProcessingMetadata,
) error {
	sealed := make([]domain.CipherBlob, 0, len(identifiers))
	for _, id := range identifiers {
		blob, err := v.sealer.Seal([]byte(id))
		if err != nil {
			return v.fail(ctx, rec, nil, fmt.Errorf("seal identifier: %w", err))
		}
		sealed = append(sealed, blob)
	}

	originalKey := rec.ID + "_original.bin"
	if err := v.writeSealedBlob(ctx, originalKey, original); err != nil {
		return v.fail(ctx, rec, nil, err)
	}
	maskedKey := rec.ID + "_masked.bin"
	if err := v.writeSealedBlob(ctx, maskedKey, masked); err != nil {
		return v.fail(ctx, rec, []string{originalKey}, err)
	}

	rec.SealedUIDs = sealed
	rec.OriginalBlobKey = originalKey
	rec.MaskedBlobKey = maskedKey
	rec.Metadata = meta
	rec.Status = domain.StatusCompleted
	rec.UpdatedAt = time.Now().UTC()

	if err := v.repo.Update(ctx, rec); err != nil {
		return v.fail(ctx, rec, []string{originalKey, maskedKey}, fmt.Errorf("update record row: %w", err))
	}
	return nil
}

// CompleteStaged finishes a record whose sealed original was written at stage
// time; only the masked blob is new.
func (v *RecordVault) CompleteStaged(
	ctx context.Context,
	rec *domain.Record,
	masked []byte,
	identifiers []string,
	meta domain.ProcessingMetadata,
) error {
	sealed := make([]domain.CipherBlob, 0, len(identifiers))
	for _, id := range identifiers {
		blob, err := v.sealer.Seal([]byte(id))
		if err != nil {
			return v.fail(ctx, rec, nil, fmt.Errorf("seal identifier: %w", err))
		}
		sealed = append(sealed, blob)
	}

	maskedKey := rec.ID + "_masked.bin"
	if err := v.writeSealedBlob(ctx, maskedKey, masked); err != nil {
		return v.fail(ctx, rec, nil, err)
	}

	rec.SealedUIDs = sealed
	rec.MaskedBlobKey = maskedKey
	rec.Metadata = meta
	rec.Status = domain.StatusCompleted
	rec.UpdatedAt = time.Now().UTC()

	if err := v.repo.Update(ctx, rec); err != nil {
		return v.fail(ctx, rec, []string{maskedKey}, fmt.Errorf("update record row: %w", err))
	}
	return nil
}

// Stage seals and persists the original image ahead of asynchronous
// processing and creates the processing record referencing it.
func (v *RecordVault) Stage(ctx context.Context, filename string, original []byte) (*domain.Record, error) {
	rec, err := v.NewRecord(ctx, filename)
	if err != nil {
		return nil, err
	}

	originalKey := rec.ID + "_original.bin"
	if err := v.writeSealedBlob(ctx, originalKey, original); err != nil {
		return nil, v.fail(ctx, rec, nil, err)
	}

	rec.OriginalBlobKey = originalKey
	rec.Metadata = domain.ProcessingMetadata{OriginalSize: len(original)}
	rec.UpdatedAt = time.Now().UTC()
	if err := v.repo.Update(ctx, rec); err != nil {
		// The record keeps its processing status; only the blob
		// reference is persisted ahead of the pipeline run.
		return nil, v.fail(ctx, rec, []string{originalKey}, fmt.Errorf("persist staged blob reference: %w", err))
	}
	return rec, nil
}

// Fail marks a record failed and removes any blobs it already references.
// Used by the pipeline for downstream failures and abandoned requests.
func (v *RecordVault) Fail(ctx context.Context, rec *domain.Record, cause error) error {
	var keys []string
	if rec.OriginalBlobKey != "" {
		keys = append(keys, rec.OriginalBlobKey)
	}
	if rec.MaskedBlobKey != "" {
		keys = append(keys, rec.MaskedBlobKey)
	}
	rec.OriginalBlobKey = ""
	rec.MaskedBlobKey = ""
	return v.fail(ctx, rec, keys, cause)
}

func (v *RecordVault) Get(ctx context.Context, id string) (*domain.Record, error) {
	return v.repo.GetByID(ctx, id)
}

func (v *RecordVault) List(ctx context.Context, page, pageSize int, search string) (*domain.RecordPage, error) {
	return v.repo.List(ctx, page, pageSize, search)
}

// Delete removes blob storage before the metadata row. Readers never observe
// a record whose blobs are partially gone: the row is loaded once up front
// and the row delete is last, so a concurrent get either sees the full
// record or not found.
func (v *RecordVault) Delete(ctx context.Context, id string) error {
	rec, err := v.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	for _, key := range []string{rec.OriginalBlobKey, rec.MaskedBlobKey} {
		if key == "" {
			continue
		}
		if err := v.blobs.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete blob %s: %w", key, err)
		}
	}
	return v.repo.Delete(ctx, id)
}

// RetrieveBlob re-decrypts on every call; plaintext never outlives the
// call's stack.
func (v *RecordVault) RetrieveBlob(ctx context.Context, id string, kind domain.BlobKind) ([]byte, error) {
	if !kind.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve blob", fmt.Errorf("unknown blob kind %q", kind))
	}
	rec, err := v.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	key := rec.OriginalBlobKey
	if kind == domain.BlobMasked {
		key = rec.MaskedBlobKey
	}
	if key == "" {
		return nil, domain.WrapError(domain.ErrRecordNotFound, "retrieve blob", fmt.Errorf("record %s has no %s blob", id, kind))
	}
	return v.openSealedBlob(ctx, key)
}

// OpenOriginal decrypts the staged original for worker-side processing.
func (v *RecordVault) OpenOriginal(ctx context.Context, rec *domain.Record) ([]byte, error) {
	if rec.OriginalBlobKey == "" {
		return nil, domain.WrapError(domain.ErrRecordNotFound, "open original", fmt.Errorf("record %s has no staged original", rec.ID))
	}
	return v.openSealedBlob(ctx, rec.OriginalBlobKey)
}

func (v *RecordVault) writeSealedBlob(ctx context.Context, key string, plaintext []byte) error {
	blob, err := v.sealer.Seal(plaintext)
	if err != nil {
		return fmt.Errorf("seal blob %s: %w", key, err)
	}
	framed, err := blob.MarshalBinary()
	if err != nil {
		return fmt.Errorf("frame blob %s: %w", key, err)
	}
	if err := v.blobs.Save(ctx, key, bytes.NewReader(framed)); err != nil {
		return fmt.Errorf("write blob %s: %w", key, err)
	}
	return nil
}

func (v *RecordVault) openSealedBlob(ctx context.Context, key string) ([]byte, error) {
	reader, err := v.blobs.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", key, err)
	}
	defer reader.Close()

	framed, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	var blob domain.CipherBlob
	if err := blob.UnmarshalBinary(framed); err != nil {
		return nil, err
	}
	return v.sealer.Open(blob)
}

// fail cleans up partially written blobs and flips the record to failed.
// Cleanup uses a detached context so an abandoned request still gets swept.
func (v *RecordVault) fail(ctx context.Context, rec *domain.Record, blobKeys []string, cause error) error {
	cleanupCtx := context.WithoutCancel(ctx)
	for _, key := range blobKeys {
		if err := v.blobs.Delete(cleanupCtx, key); err != nil {
			slog.Error("orphan blob cleanup failed", "record_id", rec.ID, "key", key, "error", err)
		}
	}
	if err := v.repo.MarkFailed(cleanupCtx, rec.ID, cause.Error()); err != nil {
		return fmt.Errorf("%w; mark failed status: %v", cause, err)
	}
	rec.Status = domain.StatusFailed
	return cause
}
