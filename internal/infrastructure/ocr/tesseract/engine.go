package tesseract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/devionx/uidshield/internal/core/domain"
	"github.com/devionx/uidshield/internal/infrastructure/resilience"
)

// Engine adapts a Tesseract configuration to the TextRecognizer port. The
// runtime dependency is probed lazily on first use and never re-probed
// mid-request; each Recognize call gets its own client because gosseract
// clients are not safe for concurrent use.
type Engine struct {
	name      string
	language  string
	whitelist string
	pageSeg   gosseract.PageSegMode
	executor  *resilience.Executor

	probeOnce sync.Once
	probeErr  error
}

type Option func(*Engine)

// WithWhitelist restricts recognition to the given characters. The
// digits-focused pass uses this to sharpen identifier hits.
func WithWhitelist(chars string) Option {
	return func(e *Engine) { e.whitelist = chars }
}

func WithPageSegMode(mode gosseract.PageSegMode) Option {
	return func(e *Engine) { e.pageSeg = mode }
}

func WithExecutor(executor *resilience.Executor) Option {
	return func(e *Engine) { e.executor = executor }
}

func New(name, language string, opts ...Option) *Engine {
	if language == "" {
		language = "eng"
	}
	e := &Engine{
		name:     name,
		language: language,
		pageSeg:  gosseract.PSM_AUTO,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string {
	return e.name
}

func (e *Engine) Recognize(ctx context.Context, image []byte) ([]domain.Observation, error) {
	if err := e.probe(); err != nil {
		return nil, domain.WrapError(domain.ErrEngineUnavailable, "tesseract probe", err)
	}

	var observations []domain.Observation
	call := func(_ context.Context) error {
		obs, err := e.recognizeOnce(image)
		if err != nil {
			return err
		}
		observations = obs
		return nil
	}

	var err error
	if e.executor != nil {
		err = e.executor.Execute(ctx, "ocr."+e.name, call, classifyEngineError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}
	return observations, nil
}

func (e *Engine) recognizeOnce(image []byte) ([]domain.Observation, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.language); err != nil {
		return nil, domain.WrapError(domain.ErrEngineUnavailable, "set language", err)
	}
	if e.whitelist != "" {
		if err := client.SetWhitelist(e.whitelist); err != nil {
			return nil, domain.WrapError(domain.ErrEngineUnavailable, "set whitelist", err)
		}
	}
	if err := client.SetPageSegMode(e.pageSeg); err != nil {
		return nil, domain.WrapError(domain.ErrEngineUnavailable, "set page seg mode", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return nil, domain.WrapError(domain.ErrUnreadableImage, "set image", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("word boxes: %w", err)
	}

	observations := make([]domain.Observation, 0, len(boxes))
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}
		observations = append(observations, domain.Observation{
			Text: text,
			Box: domain.Box{
				X:      box.Box.Min.X,
				Y:      box.Box.Min.Y,
				Width:  box.Box.Dx(),
				Height: box.Box.Dy(),
			},
			// Tesseract reports word confidence on a 0-100 scale.
			Confidence: box.Confidence / 100.0,
		})
	}
	return observations, nil
}

// probe verifies the tesseract runtime once per process.
func (e *Engine) probe() error {
	e.probeOnce.Do(func() {
		languages, err := gosseract.GetAvailableLanguages()
		if err != nil {
			e.probeErr = fmt.Errorf("tesseract runtime: %w", err)
			return
		}
		if len(languages) == 0 {
			e.probeErr = errors.New("tesseract runtime has no language data")
		}
	})
	return e.probeErr
}

func (e *Engine) Close() error {
	// Clients are per-call; nothing process-wide to tear down.
	return nil
}

// classifyEngineError keeps the breaker honest: input defects are the
// caller's fault and never count against the engine, everything else records
// a failure but is not retried (recognition cost is not worth repeating
// without evidence the fault was transient).
func classifyEngineError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	if domain.IsKind(err, domain.ErrUnreadableImage) {
		return resilience.ErrorClassification{}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}
