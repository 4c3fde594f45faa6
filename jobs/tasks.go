// Package jobs hosts background task definitions and the Asynq worker
// runtime.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDraftPurge removes manual drafts past their retention window.
	TaskDraftPurge = "draft:purge"
	// TaskIdempotencyCleanup evicts idempotency keys past their retention.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// DraftPurgePayload parameterises a purge run. An empty retention falls back
// to the worker's configured default.
type DraftPurgePayload struct {
	Retention string `json:"retention,omitempty"`
}

// NewDraftPurgeTask constructs an Asynq task for the draft janitor.
func NewDraftPurgeTask(retention time.Duration) (*asynq.Task, error) {
	payload := DraftPurgePayload{}
	if retention > 0 {
		payload.Retention = retention.String()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDraftPurge, data), nil
}

// NewIdempotencyCleanupTask constructs the eviction task for processed keys.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}

func unmarshalPayload(t *asynq.Task, target any) error {
	return json.Unmarshal(t.Payload(), target)
}
