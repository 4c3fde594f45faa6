package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// DraftPurger is the slice of the draft store the janitor needs.
type DraftPurger interface {
	PurgeStale(ctx context.Context, retention time.Duration) (int64, error)
}

// NewDraftPurgeHandler builds the handler for TaskDraftPurge. Autosave slots
// expire through their cache TTL; this job only sweeps abandoned manual
// drafts out of Postgres.
func NewDraftPurgeHandler(logger *slog.Logger, store DraftPurger, defaultRetention time.Duration) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload DraftPurgePayload
		if err := unmarshalPayload(t, &payload); err != nil {
			return asynq.SkipRetry
		}
		retention := defaultRetention
		if payload.Retention != "" {
			parsed, err := time.ParseDuration(payload.Retention)
			if err != nil {
				logger.Warn("draft purge: bad retention", slog.String("retention", payload.Retention))
				return asynq.SkipRetry
			}
			retention = parsed
		}
		removed, err := store.PurgeStale(ctx, retention)
		if err != nil {
			logger.Error("draft purge", slog.Any("error", err))
			return err
		}
		logger.Info("draft purge completed", slog.Int64("removed", removed), slog.Duration("retention", retention))
		return nil
	}
}
