package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDeliverNotification sends one stored notification.
	TaskDeliverNotification = "notification:deliver"
	// TaskIdempotencyCleanup drops expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
	// TaskSummaryWarmup precomputes dashboard summaries.
	TaskSummaryWarmup = "summary:warmup"
)

// DeliverPayload identifies the notification to deliver.
type DeliverPayload struct {
	TenantID       int64 `json:"tenant_id"`
	NotificationID int64 `json:"notification_id"`
}

// NewDeliverTask constructs a delivery task.
func NewDeliverTask(payload DeliverPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDeliverNotification, data), nil
}

// CleanupPayload configures the idempotency cleanup.
type CleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retentionHours int) (*asynq.Task, error) {
	data, err := json.Marshal(CleanupPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

// NewSummaryWarmupTask constructs the summary warmup task.
func NewSummaryWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskSummaryWarmup, nil)
}
