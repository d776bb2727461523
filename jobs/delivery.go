package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-b2b/internal/communications"
	jobmetrics "github.com/odyssey-erp/odyssey-b2b/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Deliverer is the part of the communications package the worker drives.
type Deliverer interface {
	Deliver(ctx context.Context, tenantID, notificationID int64, lastAttempt bool) error
}

// DeliveryJob processes TaskDeliverNotification tasks.
type DeliveryJob struct {
	Deliverer Deliverer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	// IsLastAttempt defaults to LastAttempt.
	IsLastAttempt func(ctx context.Context) bool
}

// NewDeliveryJob wires the delivery handler.
func NewDeliveryJob(d Deliverer, logger *slog.Logger, metrics *jobmetrics.Metrics) *DeliveryJob {
	return &DeliveryJob{Deliverer: d, Logger: logger, Metrics: metrics, IsLastAttempt: LastAttempt}
}

// Handle runs one delivery attempt. Permanent failures skip the remaining retries.
func (j *DeliveryJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Deliverer == nil {
		return errors.New("notification delivery: handler not configured")
	}
	var payload DeliverPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.NotificationID <= 0 {
		return asynq.SkipRetry
	}

	isLast := j.IsLastAttempt
	if isLast == nil {
		isLast = LastAttempt
	}
	last := isLast(ctx)

	tracker := metricsOrDefault(j.Metrics).Track(TaskDeliverNotification)
	err := j.Deliverer.Deliver(ctx, payload.TenantID, payload.NotificationID, last)
	switch {
	case err == nil:
		metricsOrDefault(j.Metrics).ObserveDelivery("sent")
	case errors.Is(err, communications.ErrPermanent):
		metricsOrDefault(j.Metrics).ObserveDelivery("failed")
		j.logger().Warn("notification failed permanently",
			slog.Int64("notification_id", payload.NotificationID), slog.Any("error", err))
		err = fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	case last:
		metricsOrDefault(j.Metrics).ObserveDelivery("failed")
		j.logger().Warn("notification retries exhausted",
			slog.Int64("notification_id", payload.NotificationID), slog.Any("error", err))
	default:
		metricsOrDefault(j.Metrics).ObserveDelivery("retry")
	}
	return tracker.End(err)
}

// LastAttempt reports whether the running task has no retries left.
func LastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return false
	}
	return retried >= maxRetry
}

func (j *DeliveryJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDeliverNotification))
	}
	return slog.Default().With(slog.String("job", TaskDeliverNotification))
}
