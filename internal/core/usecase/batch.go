package usecase

import (
	"context"
	"sync"

	"github.com/devionx/uidshield/internal/core/domain"
)

// DefaultMaxBatchItems bounds one bulk request.
const DefaultMaxBatchItems = 10

// ProcessBatch fans a bulk request out into independent pipeline runs. Items
// run concurrently and isolated: one image failing never aborts its siblings,
// and each item's identifiers are its own.
func (uc *ProcessCardUseCase) ProcessBatch(ctx context.Context, items []domain.BatchItem) *domain.BatchResult {
	result := &domain.BatchResult{
		Total: len(items),
		Items: make([]domain.BatchItemResult, len(items)),
	}
	if len(items) == 0 {
		return result
	}

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item domain.BatchItem) {
			defer wg.Done()
			stored, err := uc.ProcessAndStore(ctx, item.Image, item.Filename)
			if err != nil {
				result.Items[i] = domain.BatchItemResult{Filename: item.Filename, Error: err.Error()}
				return
			}
			result.Items[i] = domain.BatchItemResult{Filename: item.Filename, Result: stored}
		}(i, item)
	}
	wg.Wait()

	for _, item := range result.Items {
		if item.Error != "" {
			result.Failed++
		} else {
			result.Succeeded++
		}
	}
	return result
}
