package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// KeyCleaner evicts idempotency keys older than the retention window.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// NewIdempotencyCleanupHandler builds the handler for TaskIdempotencyCleanup.
// Keys only guard against replays of recent requests, so a short retention
// is enough.
func NewIdempotencyCleanupHandler(logger *slog.Logger, store KeyCleaner, retention time.Duration) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		if err := store.Cleanup(ctx, retention); err != nil {
			logger.Error("idempotency cleanup", slog.Any("error", err))
			return err
		}
		logger.Info("idempotency cleanup completed", slog.Duration("retention", retention))
		return nil
	}
}
