package inventory

import (
	"context"
	"errors"

	"github.com/stockledger/backend/internal/domain/shared"
)

// maxOptimisticRetries bounds how often a command is replayed after losing an
// optimistic concurrency race before the conflict is surfaced to the caller.
const maxOptimisticRetries = 3

// withOptimisticRetry re-executes fn when it fails with a concurrency
// conflict. Each attempt re-reads current state, so a retry observes the
// competing writer's committed changes.
func withOptimisticRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxOptimisticRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = fn()
		if err == nil || !errors.Is(err, shared.ErrConcurrencyConflict) {
			return err
		}
	}
	return err
}
