package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/devionx/uidshield/internal/core/domain"
	"github.com/devionx/uidshield/internal/infrastructure/resilience"
)

// Storage keeps envelope-encrypted blobs as flat files. Writes go through a
// temp file + rename so a crashed write never leaves a half blob behind a
// live key.
type Storage struct {
	basePath string
	executor *resilience.Executor
}

type Options struct {
	ResilienceExecutor *resilience.Executor
}

func New(basePath string) (*Storage, error) {
	return NewWithOptions(basePath, Options{})
}

func NewWithOptions(basePath string, options Options) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/blobs"
	}
	if err := os.MkdirAll(basePath, 0o700); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &Storage{basePath: basePath, executor: options.ResilienceExecutor}, nil
}

func (s *Storage) Save(ctx context.Context, key string, data io.Reader) error {
	payload, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("read blob payload: %w", err)
	}

	call := func(_ context.Context) error {
		return s.writeAtomic(key, payload)
	}
	if s.executor != nil {
		return s.executor.Execute(ctx, "blobs.save", call, classifyIOError)
	}
	return call(ctx)
}

func (s *Storage) writeAtomic(key string, payload []byte) error {
	path := filepath.Join(s.basePath, filepath.Base(key))
	tmp, err := os.CreateTemp(s.basePath, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish blob: %w", err)
	}
	return nil
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path := filepath.Join(s.basePath, filepath.Base(key))
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrRecordNotFound, "open blob", err)
		}
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return f, nil
}

// Delete is idempotent: removing an already absent blob is not an error, so
// compensating cleanup can run twice safely.
func (s *Storage) Delete(_ context.Context, key string) error {
	path := filepath.Join(s.basePath, filepath.Base(key))
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// classifyIOError retries transient filesystem errors; a full disk or
// permission problem fails fast.
func classifyIOError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrNotExist) {
		return resilience.ErrorClassification{RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}
