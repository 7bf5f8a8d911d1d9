package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/helpdesk-billing/internal/billing"
	"github.com/angelmondragon/helpdesk-billing/pkg/logger"
	"github.com/angelmondragon/helpdesk-billing/pkg/metrics"
)

const periodRolloverJobName = "period-rollover"

type periodRoller interface {
	Rollover(ctx context.Context) (billing.RolloverSummary, error)
}

type PeriodRolloverJobParams struct {
	Logger  *logger.Logger
	Manager periodRoller
	Metrics *metrics.CronJobMetrics
}

// NewPeriodRolloverJob advances every due subscription to its next window.
func NewPeriodRolloverJob(params PeriodRolloverJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Manager == nil {
		return nil, fmt.Errorf("billing period manager required")
	}
	return &periodRolloverJob{logg: params.Logger, manager: params.Manager, metrics: params.Metrics}, nil
}

type periodRolloverJob struct {
	logg    *logger.Logger
	manager periodRoller
	metrics *metrics.CronJobMetrics
}

func (j *periodRolloverJob) Name() string { return periodRolloverJobName }

// Run reports partial progress even when some tenants fail; the combined
// error only marks the job as failed.
func (j *periodRolloverJob) Run(ctx context.Context) error {
	summary, err := j.manager.Rollover(ctx)
	j.metrics.AddItems(periodRolloverJobName, "rolled", summary.Rolled)
	j.metrics.AddItems(periodRolloverJobName, "skipped", summary.Skipped)
	j.metrics.AddItems(periodRolloverJobName, "failed", summary.Failed)
	j.metrics.AddItems(periodRolloverJobName, "counters_deleted", int(summary.CountersDeleted))

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned":          summary.Scanned,
		"rolled":           summary.Rolled,
		"skipped":          summary.Skipped,
		"failed":           summary.Failed,
		"counters_deleted": summary.CountersDeleted,
	})
	if err != nil {
		return fmt.Errorf("period rollover: %w", err)
	}
	j.logg.Info(logCtx, "period rollover complete")
	return nil
}
