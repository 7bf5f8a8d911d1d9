package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/helpdesk-billing/pkg/logger"
	"github.com/angelmondragon/helpdesk-billing/pkg/metrics"
)

const (
	usageRetentionJobName      = "usage-retention"
	notificationCleanupJobName = "notification-cleanup"

	defaultUsageRetention     = 90 * 24 * time.Hour
	defaultNotificationMaxAge = 30
)

type usagePruner interface {
	DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type notificationsCleanupRepo interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type UsageRetentionJobParams struct {
	Logger    *logger.Logger
	Store     usagePruner
	Metrics   *metrics.CronJobMetrics
	Retention time.Duration
}

// NewUsageRetentionJob deletes counters whose window ended before the
// retention horizon. Counters of live windows are never touched.
func NewUsageRetentionJob(params UsageRetentionJobParams) (Job, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("usage store required")
	}
	return newPruneJob(usageRetentionJobName, params.Logger, params.Metrics, params.Retention, defaultUsageRetention, params.Store.DeleteEndedBefore)
}

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	Repository notificationsCleanupRepo
	Metrics    *metrics.CronJobMetrics
	// Retention is in days.
	Retention int
}

func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	days := params.Retention
	if days <= 0 {
		days = defaultNotificationMaxAge
	}
	return newPruneJob(notificationCleanupJobName, params.Logger, params.Metrics, time.Duration(days)*24*time.Hour, 0, params.Repository.DeleteOlderThan)
}

// pruneJob deletes rows older than now minus retention through prune.
type pruneJob struct {
	name      string
	logg      *logger.Logger
	metrics   *metrics.CronJobMetrics
	retention time.Duration
	prune     func(ctx context.Context, cutoff time.Time) (int64, error)
	now       func() time.Time
}

func newPruneJob(name string, logg *logger.Logger, m *metrics.CronJobMetrics, retention, fallback time.Duration, prune func(context.Context, time.Time) (int64, error)) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if retention <= 0 {
		retention = fallback
	}
	return &pruneJob{
		name:      name,
		logg:      logg,
		metrics:   m,
		retention: retention,
		prune:     prune,
		now:       time.Now,
	}, nil
}

func (j *pruneJob) Name() string { return j.name }

func (j *pruneJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	j.metrics.AddItems(j.name, "deleted", int(deleted))
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": int(j.retention.Hours() / 24),
		"rows_deleted":   deleted,
	}), "retention prune complete")
	return nil
}
