package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-b2b/internal/platform/db"
	jobmetrics "github.com/odyssey-erp/odyssey-b2b/internal/jobs"
)

// DefaultKeyRetentionHours is how long idempotency keys are kept.
const DefaultKeyRetentionHours = 48

// KeyCleaner deletes idempotency keys older than a cutoff.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob processes TaskIdempotencyCleanup tasks.
type IdempotencyCleanupJob struct {
	Store   KeyCleaner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle removes expired keys.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	payload := CleanupPayload{RetentionHours: DefaultKeyRetentionHours}
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.RetentionHours <= 0 {
		payload.RetentionHours = DefaultKeyRetentionHours
	}
	tracker := metricsOrDefault(j.Metrics).Track(TaskIdempotencyCleanup)
	removed, err := j.Store.Cleanup(ctx, time.Duration(payload.RetentionHours)*time.Hour)
	if err != nil {
		return tracker.End(err)
	}
	loggerOrDefault(j.Logger).Info("idempotency keys cleaned", slog.Int64("removed", removed))
	return tracker.End(nil)
}

// SummaryWarmer precomputes a tenant's dashboard summary.
type SummaryWarmer interface {
	WarmSummary(ctx context.Context, tenantID int64) error
}

// SummaryWarmupJob processes TaskSummaryWarmup tasks for every tenant.
type SummaryWarmupJob struct {
	Warmer  SummaryWarmer
	Tenants func(ctx context.Context) ([]int64, error)
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSummaryWarmupJob discovers tenants from the retailers table.
func NewSummaryWarmupJob(warmer SummaryWarmer, conn db.DBTX, logger *slog.Logger, metrics *jobmetrics.Metrics) *SummaryWarmupJob {
	return &SummaryWarmupJob{
		Warmer:  warmer,
		Tenants: func(ctx context.Context) ([]int64, error) { return ActiveTenants(ctx, conn) },
		Logger:  logger,
		Metrics: metrics,
	}
}

// Handle warms each tenant; one failing tenant does not stop the others.
func (j *SummaryWarmupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Warmer == nil || j.Tenants == nil {
		return errors.New("summary warmup: handler not configured")
	}
	tracker := metricsOrDefault(j.Metrics).Track(TaskSummaryWarmup)
	logger := loggerOrDefault(j.Logger).With(slog.String("job", TaskSummaryWarmup))

	tenants, err := j.Tenants(ctx)
	if err != nil {
		logger.Error("load tenants", slog.Any("error", err))
		return tracker.End(err)
	}
	var failed error
	warmed := 0
	for _, tenantID := range tenants {
		scopeCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		err := j.Warmer.WarmSummary(scopeCtx, tenantID)
		cancel()
		if err != nil {
			logger.Error("warm tenant summary", slog.Int64("tenant_id", tenantID), slog.Any("error", err))
			failed = errors.Join(failed, err)
			continue
		}
		warmed++
	}
	logger.Info("summary warmup finished", slog.Int("tenants", warmed), slog.Int("total", len(tenants)))
	return tracker.End(failed)
}

// ActiveTenants lists tenants that have at least one active retailer.
func ActiveTenants(ctx context.Context, conn db.DBTX) ([]int64, error) {
	rows, err := conn.Query(ctx, `SELECT DISTINCT tenant_id FROM retailers WHERE status = 'active' ORDER BY tenant_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func metricsOrDefault(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
