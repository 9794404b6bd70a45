package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/devionx/uidshield/internal/core/domain"
	"github.com/devionx/uidshield/internal/core/ports"
)

// ProcessCardUseCase sequences the pipeline: recognition, extraction,
// redaction, and optionally sealing + storage. It owns failure
// classification and timing for one request.
type ProcessCardUseCase struct {
	recognizers []ports.TextRecognizer
	extractor   *IdentifierExtractor
	redactor    *RedactionEngine
	vault       *RecordVault
	maxBytes    int
}

func NewProcessCardUseCase(
	recognizers []ports.TextRecognizer,
	extractor *IdentifierExtractor,
	redactor *RedactionEngine,
	vault *RecordVault,
	maxBytes int,
) *ProcessCardUseCase {
	return &ProcessCardUseCase{
		recognizers: recognizers,
		extractor:   extractor,
		redactor:    redactor,
		vault:       vault,
		maxBytes:    maxBytes,
	}
}

// pipelineOutput keeps the full detections for sealing; only the masked
// rendering leaves the core.
type pipelineOutput struct {
	detections []domain.Detection
	masked     *domain.MaskedImage
	elapsed    time.Duration
}

func (uc *ProcessCardUseCase) Process(ctx context.Context, image []byte, filename string) (*domain.ProcessResult, error) {
	out, err := uc.runPipeline(ctx, image, filename)
	if err != nil {
		return nil, err
	}
	return uc.buildResult(out), nil
}

func (uc *ProcessCardUseCase) ProcessAndStore(ctx context.Context, image []byte, filename string) (*domain.StoredResult, error) {
	// Gate inputs before creating any record so defective uploads never
	// leave a failed row behind.
	if err := uc.gate(image); err != nil {
		return nil, err
	}

	rec, err := uc.vault.NewRecord(ctx, filename)
	if err != nil {
		return nil, err
	}

	out, err := uc.runPipeline(ctx, image, filename)
	if err != nil {
		return nil, uc.vault.Fail(ctx, rec, err)
	}

	values := make([]string, len(out.detections))
	for i, det := range out.detections {
		values[i] = det.Value
	}
	meta := domain.ProcessingMetadata{
		ProcessingTime: out.elapsed,
		LocationsFound: len(out.masked.Regions),
		OriginalSize:   len(image),
		MaskedSize:     len(out.masked.Data),
		Format:         out.masked.Format,
	}
	if err := uc.vault.Complete(ctx, rec, image, out.masked.Data, values, meta); err != nil {
		return nil, err
	}

	return &domain.StoredResult{ProcessResult: *uc.buildResult(out), RecordID: rec.ID}, nil
}

// runPipeline executes the sequential steps of one run. Steps never overlap:
// each output is the next step's input.
func (uc *ProcessCardUseCase) runPipeline(ctx context.Context, image []byte, filename string) (*pipelineOutput, error) {
	start := time.Now()

	if err := uc.gate(image); err != nil {
		return nil, err
	}
	if _, err := sniffFormat(image); err != nil {
		return nil, err
	}

	observations, err := uc.recognize(ctx, image, filename)
	if err != nil {
		return nil, err
	}

	detections := uc.extractor.Extract(observations)
	if len(detections) == 0 {
		return nil, domain.WrapError(domain.ErrNoIdentifier, "extract identifier", errors.New(filename))
	}

	masked, err := uc.redactor.Redact(image, detections)
	if err != nil {
		return nil, err
	}

	return &pipelineOutput{
		detections: detections,
		masked:     masked,
		elapsed:    time.Since(start),
	}, nil
}

// recognize fans the image across every configured adapter and concatenates
// their observations. A single adapter failing is logged and dropped; only
// all of them failing reports the engines unavailable.
func (uc *ProcessCardUseCase) recognize(ctx context.Context, image []byte, filename string) ([]domain.Observation, error) {
	var observations []domain.Observation
	var failures []error

	for _, recognizer := range uc.recognizers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		obs, err := recognizer.Recognize(ctx, image)
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", recognizer.Name(), err))
			slog.Warn("recognition engine failed",
				"engine", recognizer.Name(),
				"filename", filename,
				"error", err,
			)
			continue
		}
		observations = append(observations, obs...)
	}

	if len(uc.recognizers) > 0 && len(failures) == len(uc.recognizers) {
		return nil, domain.WrapError(domain.ErrEngineUnavailable, "recognize", errors.Join(failures...))
	}
	return observations, nil
}

func (uc *ProcessCardUseCase) gate(image []byte) error {
	if len(image) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "validate upload", errors.New("empty image payload"))
	}
	if uc.maxBytes > 0 && len(image) > uc.maxBytes {
		return domain.WrapError(domain.ErrInvalidInput, "validate upload",
			fmt.Errorf("image is %d bytes, limit is %d", len(image), uc.maxBytes))
	}
	return nil
}

func (uc *ProcessCardUseCase) buildResult(out *pipelineOutput) *domain.ProcessResult {
	maskedUIDs := make([]string, len(out.detections))
	for i, det := range out.detections {
		maskedUIDs[i] = det.MaskedValue(uc.redactor.MaskedDigits())
	}
	return &domain.ProcessResult{
		MaskedUIDs:     maskedUIDs,
		MaskedImage:    out.masked.Data,
		Format:         out.masked.Format,
		LocationsFound: len(out.masked.Regions),
		ProcessingTime: out.elapsed,
	}
}
