package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/helpdesk-billing/internal/notifications"
	"github.com/angelmondragon/helpdesk-billing/pkg/logger"
	"github.com/angelmondragon/helpdesk-billing/pkg/metrics"
)

const quotaSweepJobName = "quota-sweep"

type quotaSweeper interface {
	Sweep(ctx context.Context) (notifications.SweepSummary, error)
}

type QuotaSweepJobParams struct {
	Logger    *logger.Logger
	Scheduler quotaSweeper
	Metrics   *metrics.CronJobMetrics
}

// NewQuotaSweepJob publishes threshold alerts for every renewable tenant.
func NewQuotaSweepJob(params QuotaSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Scheduler == nil {
		return nil, fmt.Errorf("notification scheduler required")
	}
	return &quotaSweepJob{logg: params.Logger, scheduler: params.Scheduler, metrics: params.Metrics}, nil
}

type quotaSweepJob struct {
	logg      *logger.Logger
	scheduler quotaSweeper
	metrics   *metrics.CronJobMetrics
}

func (j *quotaSweepJob) Name() string { return quotaSweepJobName }

func (j *quotaSweepJob) Run(ctx context.Context) error {
	summary, err := j.scheduler.Sweep(ctx)
	j.metrics.AddItems(quotaSweepJobName, "tenants", summary.Tenants)
	j.metrics.AddItems(quotaSweepJobName, "published", summary.Alerts)
	j.metrics.AddItems(quotaSweepJobName, "failed", summary.Failed)
	if err != nil {
		return fmt.Errorf("quota sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"tenants": summary.Tenants,
		"alerts":  summary.Alerts,
	})
	j.logg.Info(logCtx, "quota sweep complete")
	return nil
}
