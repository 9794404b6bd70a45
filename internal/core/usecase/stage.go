package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/devionx/uidshield/internal/core/domain"
	"github.com/devionx/uidshield/internal/core/ports"
)

// StageCardUseCase is the asynchronous entry: the original is sealed and
// persisted, a processing record is created, and an event is published for
// the worker. No plaintext byte of the card is durable at any point.
type StageCardUseCase struct {
	vault    *RecordVault
	queue    ports.MessageQueue
	maxBytes int
}

func NewStageCardUseCase(vault *RecordVault, queue ports.MessageQueue, maxBytes int) *StageCardUseCase {
	return &StageCardUseCase{vault: vault, queue: queue, maxBytes: maxBytes}
}

func (uc *StageCardUseCase) Stage(ctx context.Context, image []byte, filename string) (*domain.Record, error) {
	if len(image) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "validate upload", errors.New("empty image payload"))
	}
	if uc.maxBytes > 0 && len(image) > uc.maxBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "validate upload",
			fmt.Errorf("image is %d bytes, limit is %d", len(image), uc.maxBytes))
	}
	if _, err := sniffFormat(image); err != nil {
		return nil, err
	}

	rec, err := uc.vault.Stage(ctx, filename, image)
	if err != nil {
		return nil, err
	}

	if err := uc.queue.PublishCardStaged(ctx, rec.ID); err != nil {
		return nil, uc.vault.Fail(ctx, rec, fmt.Errorf("publish staged event: %w", err))
	}
	return rec, nil
}

// ProcessStagedUseCase is the worker-side counterpart: it re-opens the sealed
// original and completes or fails the record.
type ProcessStagedUseCase struct {
	vault     *RecordVault
	processor *ProcessCardUseCase
}

func NewProcessStagedUseCase(vault *RecordVault, processor *ProcessCardUseCase) *ProcessStagedUseCase {
	return &ProcessStagedUseCase{vault: vault, processor: processor}
}

func (uc *ProcessStagedUseCase) ProcessByID(ctx context.Context, recordID string) error {
	rec, err := uc.vault.Get(ctx, recordID)
	if err != nil {
		return err
	}
	if rec.Status != domain.StatusProcessing {
		// Redelivered event for a record that already settled.
		slog.Info("skipping settled record", "record_id", recordID, "status", rec.Status)
		return nil
	}

	original, err := uc.vault.OpenOriginal(ctx, rec)
	if err != nil {
		return uc.vault.Fail(ctx, rec, err)
	}

	out, err := uc.processor.runPipeline(ctx, original, rec.Filename)
	if err != nil {
		return uc.vault.Fail(ctx, rec, err)
	}

	values := make([]string, len(out.detections))
	for i, det := range out.detections {
		values[i] = det.Value
	}
	meta := domain.ProcessingMetadata{
		ProcessingTime: out.elapsed,
		LocationsFound: len(out.masked.Regions),
		OriginalSize:   len(original),
		MaskedSize:     len(out.masked.Data),
		Format:         out.masked.Format,
	}
	return uc.vault.CompleteStaged(ctx, rec, out.masked.Data, values, meta)
}
