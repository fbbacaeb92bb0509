package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/evura/portal-api/internal/repository"
	"github.com/evura/portal-api/pkg/logger"
	"github.com/evura/portal-api/pkg/metrics"
)

// Pruner deletes rows created before a cutoff.
type Pruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type RetentionConfig struct {
	Schedule         string
	NotificationDays int
	AuditDays        int
}

type retentionJob struct {
	table string
	days  int
	repo  Pruner
}

// RetentionWorker prunes old notification and audit rows on a cron schedule.
type RetentionWorker struct {
	cron    *cron.Cron
	jobs    []retentionJob
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewRetentionWorker(
	notifications repository.NotificationRepository,
	audit repository.AuditRepository,
	config RetentionConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) (*RetentionWorker, error) {
	w := &RetentionWorker{
		cron: cron.New(),
		jobs: []retentionJob{
			{table: "notifications", days: config.NotificationDays, repo: notifications},
			{table: "audit_logs", days: config.AuditDays, repo: audit},
		},
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}

	if _, err := w.cron.AddFunc(config.Schedule, func() { w.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", config.Schedule, err)
	}
	return w, nil
}

// Start runs the schedule until ctx is cancelled, then waits for a running
// job to finish.
func (w *RetentionWorker) Start(ctx context.Context) {
	w.logger.Info("Starting retention worker")
	w.cron.Start()
	<-ctx.Done()
	<-w.cron.Stop().Done()
	w.logger.Info("Retention worker stopped")
}

// RunOnce prunes every table once.
func (w *RetentionWorker) RunOnce(ctx context.Context) {
	for _, job := range w.jobs {
		if job.days <= 0 {
			continue
		}
		cutoff := w.now().AddDate(0, 0, -job.days)
		deleted, err := job.repo.DeleteBefore(ctx, cutoff)
		if err != nil {
			w.logger.Error(err, "Retention job failed", "table", job.table)
			continue
		}
		w.metrics.RetentionRowsDeleted.WithLabelValues(job.table).Add(float64(deleted))
		if deleted > 0 {
			w.logger.Info("Pruned old rows", "table", job.table, "deleted", deleted, "cutoff", cutoff)
		}
	}
}
