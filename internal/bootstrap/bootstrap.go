package bootstrap

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/devionx/uidshield/internal/config"
	"github.com/devionx/uidshield/internal/core/ports"
	"github.com/devionx/uidshield/internal/core/usecase"
	"github.com/devionx/uidshield/internal/infrastructure/envelope"
	"github.com/devionx/uidshield/internal/infrastructure/ocr/tesseract"
	"github.com/devionx/uidshield/internal/infrastructure/queue/nats"
	"github.com/devionx/uidshield/internal/infrastructure/repository/postgres"
	"github.com/devionx/uidshield/internal/infrastructure/resilience"
	"github.com/devionx/uidshield/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue ports.MessageQueue
	Repo  ports.RecordRepository

	ProcessUC *usecase.ProcessCardUseCase
	StageUC   *usecase.StageCardUseCase
	WorkerUC  *usecase.ProcessStagedUseCase
	Vault     *usecase.RecordVault
	HealthUC  *usecase.HealthUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewRecordRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	ioExecutor := resilience.NewExecutor(resilience.DefaultConfig())
	storage, err := localfs.NewWithOptions(cfg.BlobStoragePath, localfs.Options{
		ResilienceExecutor: ioExecutor,
	})
	if err != nil {
		return nil, fmt.Errorf("init blob storage: %w", err)
	}

	sealer, err := envelope.New(cfg.EncryptionSecret, cfg.EncryptionSalt, cfg.EncryptionKeyVersion)
	if err != nil {
		return nil, fmt.Errorf("init envelope: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: ioExecutor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	// Tesseract calls are expensive and not idempotent enough to retry;
	// the breaker still shields a crashed installation.
	ocrExecutor := resilience.NewExecutor(resilience.NoRetryConfig())
	recognizers := []ports.TextRecognizer{
		tesseract.New("tesseract-general", cfg.OCRLanguage,
			tesseract.WithExecutor(ocrExecutor),
		),
		tesseract.New("tesseract-digits", cfg.OCRLanguage,
			tesseract.WithWhitelist("0123456789 "),
			tesseract.WithPageSegMode(gosseract.PSM_SINGLE_BLOCK),
			tesseract.WithExecutor(ocrExecutor),
		),
	}

	maxBytes := cfg.MaxFileSizeMB << 20
	vault := usecase.NewRecordVault(repo, storage, sealer)
	extractor := usecase.NewIdentifierExtractor(cfg.MinConfidence)
	redactor := usecase.NewRedactionEngine(cfg.MaskedDigits)

	processUC := usecase.NewProcessCardUseCase(recognizers, extractor, redactor, vault, maxBytes)
	stageUC := usecase.NewStageCardUseCase(vault, queue, maxBytes)
	workerUC := usecase.NewProcessStagedUseCase(vault, processUC)
	healthUC := usecase.NewHealthUseCase(sealer, repo)

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,

		ProcessUC: processUC,
		StageUC:   stageUC,
		WorkerUC:  workerUC,
		Vault:     vault,
		HealthUC:  healthUC,

		closeFn: func() {
			for _, rec := range recognizers {
				_ = rec.Close()
			}
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
