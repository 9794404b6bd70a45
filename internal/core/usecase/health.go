package usecase

import (
	"context"

	"github.com/devionx/uidshield/internal/core/domain"
	"github.com/devionx/uidshield/internal/core/ports"
)

// HealthUseCase probes whether the envelope was initialized and the record
// store answers.
type HealthUseCase struct {
	sealer ports.Sealer
	repo   ports.RecordRepository
}

func NewHealthUseCase(sealer ports.Sealer, repo ports.RecordRepository) *HealthUseCase {
	return &HealthUseCase{sealer: sealer, repo: repo}
}

func (uc *HealthUseCase) Check(ctx context.Context) domain.Health {
	health := domain.Health{
		EnvelopeReady: uc.sealer != nil && uc.sealer.KeyVersion() > 0,
	}
	if uc.repo != nil && uc.repo.Ping(ctx) == nil {
		health.StoreReady = true
	}
	return health
}
