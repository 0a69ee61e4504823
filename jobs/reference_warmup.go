package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/utilitydesk/billing-console/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ReferenceWarmer reloads the reference cache and returns the new cache version.
type ReferenceWarmer interface {
	Warm(ctx context.Context) (int64, error)
}

// ReferenceWarmupJob refreshes utility types, tariff plans and billing cycles in Redis so
// live dashboards pick up reference changes.
type ReferenceWarmupJob struct {
	Reference ReferenceWarmer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewReferenceWarmupJob wires dependencies for the warmup handler.
func NewReferenceWarmupJob(reference ReferenceWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReferenceWarmupJob {
	return &ReferenceWarmupJob{
		Reference: reference,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskReferenceWarmup tasks.
func (j *ReferenceWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Reference == nil {
		return errors.New("reference warmup: handler not configured")
	}
	var payload ReferenceWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.Reason == "" {
		payload.Reason = "scheduled"
	}

	tracker := j.metrics().Track(TaskReferenceWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("reason", payload.Reason))
	if !payload.RequestedAt.IsZero() {
		logger = logger.With(slog.Duration("queued_for", j.clock().Sub(payload.RequestedAt)))
	}
	version, err := j.Reference.Warm(ctx)
	if err != nil {
		logger.Error("reference warmup failed", slog.Any("error", err))
		return err
	}
	logger.Info("reference warmup completed", slog.Int64("version", version))
	return nil
}

func (j *ReferenceWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ReferenceWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
