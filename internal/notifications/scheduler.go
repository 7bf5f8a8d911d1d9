package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/helpdesk-billing/internal/entitlements"
	"github.com/angelmondragon/helpdesk-billing/internal/quota"
	"github.com/angelmondragon/helpdesk-billing/pkg/logger"
	"github.com/angelmondragon/helpdesk-billing/pkg/metrics"
)

const defaultSweepBatch = 500

// TenantLister pages tenants with a renewing subscription.
type TenantLister interface {
	ListRenewableTenantIDs(ctx context.Context, afterTenantID uuid.UUID, limit int) ([]uuid.UUID, error)
}

// Snapshotter reads current usage for resolved entitlements.
type Snapshotter interface {
	SnapshotFor(ctx context.Context, ent entitlements.Entitlements) (quota.UsageSnapshot, error)
}

// SchedulerParams wires the quota alert sweep.
type SchedulerParams struct {
	Tenants   TenantLister
	Resolver  entitlements.Resolver
	Usage     Snapshotter
	Sink      Sink
	Logger    *logger.Logger
	Metrics   *metrics.QuotaMetrics
	BatchSize int
}

// Scheduler emits one alert per metric at or above 80% of its limit.
type Scheduler struct {
	tenants   TenantLister
	resolver  entitlements.Resolver
	usage     Snapshotter
	sink      Sink
	logg      *logger.Logger
	metrics   *metrics.QuotaMetrics
	batchSize int
}

// SweepSummary reports one sweep.
type SweepSummary struct {
	Tenants int
	Alerts  int
	Failed  int
}

// NewScheduler validates params.
func NewScheduler(params SchedulerParams) (*Scheduler, error) {
	if params.Tenants == nil {
		return nil, fmt.Errorf("tenant lister required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("entitlements resolver required")
	}
	if params.Usage == nil {
		return nil, fmt.Errorf("usage snapshotter required")
	}
	if params.Sink == nil {
		return nil, fmt.Errorf("notification sink required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &Scheduler{
		tenants:   params.Tenants,
		resolver:  params.Resolver,
		usage:     params.Usage,
		sink:      params.Sink,
		logg:      params.Logger,
		metrics:   params.Metrics,
		batchSize: batch,
	}, nil
}

// Sweep evaluates every renewing tenant. A failing tenant is logged and
// counted; the sweep continues and the failures are returned combined.
func (s *Scheduler) Sweep(ctx context.Context) (SweepSummary, error) {
	summary := SweepSummary{}
	var errs error
	after := uuid.Nil

	for {
		ids, err := s.tenants.ListRenewableTenantIDs(ctx, after, s.batchSize)
		if err != nil {
			return summary, multierr.Append(errs, fmt.Errorf("list tenants: %w", err))
		}
		for _, tenantID := range ids {
			after = tenantID
			summary.Tenants++
			sent, err := s.sweepTenant(ctx, tenantID)
			summary.Alerts += sent
			if err != nil {
				summary.Failed++
				s.logg.Error(s.logg.WithTenantID(ctx, tenantID.String()), "quota sweep failed for tenant", err)
				errs = multierr.Append(errs, fmt.Errorf("tenant %s: %w", tenantID, err))
			}
		}
		if len(ids) < s.batchSize {
			break
		}
	}
	return summary, errs
}

func (s *Scheduler) sweepTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	ent, err := s.resolver.Resolve(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("resolve entitlements: %w", err)
	}
	snap, err := s.usage.SnapshotFor(ctx, ent)
	if err != nil {
		return 0, fmt.Errorf("usage snapshot: %w", err)
	}

	sent := 0
	var errs error
	for _, m := range snap.Metrics {
		if entitlements.IsUnlimited(m.Max) {
			continue
		}
		severity, alert := Classify(m.Percentage)
		if !alert {
			continue
		}
		event := Event{
			TenantID:    tenantID,
			MetricKey:   m.MetricKey,
			Used:        m.Used,
			Max:         m.Max,
			Percentage:  m.Percentage,
			Severity:    severity,
			PeriodStart: snap.PeriodStart,
			PeriodEnd:   snap.PeriodEnd,
		}
		if err := s.sink.Publish(ctx, event); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("publish %s: %w", m.MetricKey, err))
			continue
		}
		sent++
		s.metrics.ObserveAlert(m.MetricKey, string(severity))
	}
	return sent, errs
}
