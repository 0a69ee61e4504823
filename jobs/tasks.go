package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReferenceWarmup reloads the cached reference lists and bumps their version.
	TaskReferenceWarmup = "reference:warmup"
)

// ReferenceWarmupPayload describes why a warmup was requested.
type ReferenceWarmupPayload struct {
	Reason      string    `json:"reason"`
	RequestedBy string    `json:"requested_by,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewReferenceWarmupTask constructs the warmup task. Duplicate warmups within a minute
// collapse into one.
func NewReferenceWarmupTask(payload ReferenceWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReferenceWarmup, data, asynq.Unique(time.Minute), asynq.MaxRetry(3)), nil
}
