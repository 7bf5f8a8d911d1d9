package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/helpdesk-billing/internal/entitlements"
	"github.com/angelmondragon/helpdesk-billing/internal/quota"
	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
	"github.com/angelmondragon/helpdesk-billing/pkg/logger"
	"github.com/angelmondragon/helpdesk-billing/pkg/metrics"
)

type pagedTenants struct {
	ids []uuid.UUID
}

func (p pagedTenants) ListRenewableTenantIDs(_ context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	out := []uuid.UUID{}
	for _, id := range p.ids {
		if id.String() > after.String() && len(out) < limit {
			out = append(out, id)
		}
	}
	return out, nil
}

type tenantResolver struct {
	failFor uuid.UUID
}

func (r tenantResolver) Resolve(_ context.Context, tenantID uuid.UUID) (entitlements.Entitlements, error) {
	if tenantID == r.failFor {
		return entitlements.Entitlements{}, errors.New("db down")
	}
	return entitlements.Entitlements{TenantID: tenantID, Tier: enums.PlanTierFree}, nil
}

type snapshotByTenant map[uuid.UUID][]quota.MetricUsage

func (s snapshotByTenant) SnapshotFor(_ context.Context, ent entitlements.Entitlements) (quota.UsageSnapshot, error) {
	return quota.UsageSnapshot{
		Tier:        ent.Tier,
		PeriodStart: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Metrics:     s[ent.TenantID],
	}, nil
}

type recordingSink struct {
	events []Event
}

func (r *recordingSink) Publish(_ context.Context, e Event) error {
	r.events = append(r.events, e)
	return nil
}

func sortedTenants(n int) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.MustParse("00000000-0000-0000-0000-00000000000" + string(rune('1'+i)))
	}
	return ids
}

func TestSweepEmitsOneEventPerAlertableMetric(t *testing.T) {
	ids := sortedTenants(3)
	usage := snapshotByTenant{
		ids[0]: {
			{MetricKey: "messages.monthly", Used: 4000, Max: 5000, Percentage: 80},
			{MetricKey: "campaigns.daily", Used: 0, Max: 1, Percentage: 0},
			{MetricKey: "users", Used: 2, Max: 2, Percentage: 100},
			{MetricKey: "channels", Used: 0, Max: -1, Percentage: 0},
		},
		ids[1]: {
			{MetricKey: "messages.monthly", Used: 3950, Max: 5000, Percentage: 79},
		},
		ids[2]: {
			{MetricKey: "campaigns.daily", Used: 19, Max: 20, Percentage: 95},
		},
	}
	sink := &recordingSink{}
	reg := prometheus.NewRegistry()
	s, err := NewScheduler(SchedulerParams{
		Tenants:   pagedTenants{ids: ids},
		Resolver:  tenantResolver{},
		Usage:     usage,
		Sink:      sink,
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Metrics:   metrics.NewQuotaMetrics(reg),
		BatchSize: 2,
	})
	require.NoError(t, err)

	summary, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepSummary{Tenants: 3, Alerts: 3}, summary)

	require.Len(t, sink.events, 3)
	assert.Equal(t, enums.AlertSeverityInfo, sink.events[0].Severity)
	assert.Equal(t, enums.AlertSeverityCritical, sink.events[1].Severity)
	assert.Equal(t, "users", sink.events[1].MetricKey)
	assert.Equal(t, enums.AlertSeverityWarning, sink.events[2].Severity)
	assert.Equal(t, ids[2], sink.events[2].TenantID)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), sink.events[2].PeriodEnd)
}

func TestSweepContinuesPastFailingTenant(t *testing.T) {
	ids := sortedTenants(3)
	usage := snapshotByTenant{
		ids[2]: {{MetricKey: "users", Used: 2, Max: 2, Percentage: 100}},
	}
	sink := &recordingSink{}
	s, err := NewScheduler(SchedulerParams{
		Tenants:  pagedTenants{ids: ids},
		Resolver: tenantResolver{failFor: ids[1]},
		Usage:    usage,
		Sink:     sink,
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
	})
	require.NoError(t, err)

	summary, err := s.Sweep(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, summary.Tenants)
	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, sink.events, 1)
}

func TestNewSchedulerRequiresDependencies(t *testing.T) {
	_, err := NewScheduler(SchedulerParams{})
	assert.Error(t, err)
}
