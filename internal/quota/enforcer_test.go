package quota

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/helpdesk-billing/internal/billing"
	"github.com/angelmondragon/helpdesk-billing/internal/entitlements"
	"github.com/angelmondragon/helpdesk-billing/internal/usage"
	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/helpdesk-billing/pkg/errors"
	"github.com/angelmondragon/helpdesk-billing/pkg/logger"
	"github.com/angelmondragon/helpdesk-billing/pkg/metrics"
)

var (
	testNow    = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	testPeriod = billing.Period{
		Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}
)

type fixedResolver struct {
	ent entitlements.Entitlements
	err error
}

func (f fixedResolver) Resolve(_ context.Context, tenantID uuid.UUID) (entitlements.Entitlements, error) {
	ent := f.ent
	ent.TenantID = tenantID
	return ent, f.err
}

type fixedPeriods struct {
	period billing.Period
	err    error
}

func (f fixedPeriods) CurrentPeriod(context.Context, uuid.UUID) (billing.Period, error) {
	return f.period, f.err
}

type fixedCapacity map[enums.CapacityResource]int64

func (f fixedCapacity) Count(_ context.Context, _ uuid.UUID, resource enums.CapacityResource) (int64, error) {
	return f[resource], nil
}

type brokenStore struct {
	usage.Store
}

func (brokenStore) Increment(context.Context, uuid.UUID, string, time.Time, time.Time, int64) (int64, error) {
	return 0, errors.New("connection refused")
}

func (brokenStore) Read(context.Context, uuid.UUID, string, time.Time, time.Time) (int64, error) {
	return 0, errors.New("connection refused")
}

func freeEntitlements() entitlements.Entitlements {
	return entitlements.Entitlements{
		Source:             entitlements.SourceDefault,
		Tier:               enums.PlanTierFree,
		MaxUsers:           2,
		MaxChannels:        1,
		MaxMessagesMonthly: 5000,
		MaxCampaignsDaily:  1,
		RetentionDays:      30,
	}
}

type enforcerOpts struct {
	ent      entitlements.Entitlements
	store    usage.Store
	policy   Policy
	capacity fixedCapacity
	log      *bytes.Buffer
	metrics  *metrics.QuotaMetrics
}

func newTestEnforcer(t *testing.T, opts enforcerOpts) *Enforcer {
	t.Helper()
	if opts.store == nil {
		opts.store = usage.NewMemoryStore(0)
	}
	if opts.capacity == nil {
		opts.capacity = fixedCapacity{}
	}
	logOpts := logger.Options{ServiceName: "test"}
	if opts.log != nil {
		logOpts.Output = opts.log
	}
	e, err := NewEnforcer(Params{
		Resolver: fixedResolver{ent: opts.ent},
		Periods:  fixedPeriods{period: testPeriod},
		Store:    opts.store,
		Capacity: opts.capacity,
		Policy:   opts.policy,
		Logger:   logger.New(logOpts),
		Metrics:  opts.metrics,
		Now:      func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return e
}

func TestEnforceMessagesScenario(t *testing.T) {
	ctx := context.Background()
	store := usage.NewMemoryStore(0)
	tenant := uuid.New()
	_, err := store.Increment(ctx, tenant, "messages.monthly", testPeriod.Start, testPeriod.End, 4999)
	require.NoError(t, err)
	e := newTestEnforcer(t, enforcerOpts{ent: freeEntitlements(), store: store})

	res, err := e.Enforce(ctx, tenant, enums.QuotaMessagesMonthly, 1)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, int64(5000), res.Used)
	assert.Equal(t, int64(0), res.Remaining)
	assert.Equal(t, float64(100), res.Percentage)
	assert.Equal(t, testPeriod.Start, res.PeriodStart)
	assert.Equal(t, testPeriod.End, res.PeriodEnd)

	res, err = e.Enforce(ctx, tenant, enums.QuotaMessagesMonthly, 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeQuotaExceeded))
	assert.False(t, res.OK)
	assert.Equal(t, int64(5001), res.Used)

	details, ok := pkgerrors.As(err).Details().(Result)
	require.True(t, ok)
	assert.Equal(t, int64(5000), details.Max)

	stored, err := store.Read(ctx, tenant, "messages.monthly", testPeriod.Start, testPeriod.End)
	require.NoError(t, err)
	assert.Equal(t, int64(5001), stored, "record-then-reject keeps the rejected increment")
}

func TestCheckDailyQuotaUsesDayKey(t *testing.T) {
	ctx := context.Background()
	store := usage.NewMemoryStore(0)
	tenant := uuid.New()
	e := newTestEnforcer(t, enforcerOpts{ent: freeEntitlements(), store: store})

	res, err := e.Check(ctx, tenant, enums.QuotaCampaignsDaily, 1)
	require.NoError(t, err)
	assert.True(t, res.OK)

	res, err = e.Check(ctx, tenant, enums.QuotaCampaignsDaily, 1)
	require.NoError(t, err)
	assert.False(t, res.OK)

	value, err := store.Read(ctx, tenant, "campaigns.daily:2025-01-15", testPeriod.Start, testPeriod.End)
	require.NoError(t, err)
	assert.Equal(t, int64(2), value)
}

func TestReserveThenCommitDoesNotRecordRejectedCalls(t *testing.T) {
	ctx := context.Background()
	store := usage.NewMemoryStore(0)
	tenant := uuid.New()
	e := newTestEnforcer(t, enforcerOpts{ent: freeEntitlements(), store: store, policy: PolicyReserveThenCommit})
	assert.Equal(t, PolicyReserveThenCommit, e.Policy())

	_, err := e.Enforce(ctx, tenant, enums.QuotaMessagesMonthly, 4990)
	require.NoError(t, err)

	res, err := e.Enforce(ctx, tenant, enums.QuotaMessagesMonthly, 20)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeQuotaExceeded))
	assert.Equal(t, int64(4990), res.Used)
	assert.Equal(t, int64(10), res.Remaining)

	res, err = e.Enforce(ctx, tenant, enums.QuotaMessagesMonthly, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), res.Used)
}

func TestUnlimitedQuotaAlwaysAllows(t *testing.T) {
	ent := freeEntitlements()
	ent.MaxMessagesMonthly = entitlements.Unlimited
	for _, policy := range []Policy{PolicyRecordThenReject, PolicyReserveThenCommit} {
		e := newTestEnforcer(t, enforcerOpts{ent: ent, policy: policy})
		res, err := e.Enforce(context.Background(), uuid.New(), enums.QuotaMessagesMonthly, 1_000_000)
		require.NoError(t, err)
		assert.True(t, res.OK)
		assert.Equal(t, int64(-1), res.Remaining)
		assert.Zero(t, res.Percentage)
	}
}

func TestConcurrentEnforceAdmitsExactlyTheLimit(t *testing.T) {
	ent := freeEntitlements()
	ent.MaxMessagesMonthly = 50
	e := newTestEnforcer(t, enforcerOpts{ent: ent})
	tenant := uuid.New()

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Enforce(context.Background(), tenant, enums.QuotaMessagesMonthly, 1); err == nil {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), admitted.Load())
}

func TestCheckValidation(t *testing.T) {
	e := newTestEnforcer(t, enforcerOpts{ent: freeEntitlements()})
	ctx := context.Background()

	_, err := e.Check(ctx, uuid.Nil, enums.QuotaMessagesMonthly, 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = e.Check(ctx, uuid.New(), enums.QuotaKey("storage.bytes"), 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = e.Check(ctx, uuid.New(), enums.QuotaMessagesMonthly, 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestStoreFailureIsDependencyErrorNotAllow(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := newTestEnforcer(t, enforcerOpts{ent: freeEntitlements(), store: brokenStore{}, metrics: metrics.NewQuotaMetrics(reg)})

	res, err := e.Enforce(context.Background(), uuid.New(), enums.QuotaMessagesMonthly, 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.False(t, res.OK)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, mfs, 1)
	assert.Equal(t, "error", mfs[0].GetMetric()[0].GetLabel()[0].GetValue())
}

func TestWarnLoggedOnceWhenCrossingEightyPercent(t *testing.T) {
	ctx := context.Background()
	buf := &bytes.Buffer{}
	ent := freeEntitlements()
	ent.MaxMessagesMonthly = 10
	e := newTestEnforcer(t, enforcerOpts{ent: ent, log: buf})
	tenant := uuid.New()

	_, err := e.Check(ctx, tenant, enums.QuotaMessagesMonthly, 7)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "crossed warning threshold")

	_, err = e.Check(ctx, tenant, enums.QuotaMessagesMonthly, 1)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "crossed warning threshold")

	buf.Reset()
	_, err = e.Check(ctx, tenant, enums.QuotaMessagesMonthly, 1)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestEnsureCapacity(t *testing.T) {
	ctx := context.Background()
	e := newTestEnforcer(t, enforcerOpts{
		ent:      freeEntitlements(),
		capacity: fixedCapacity{enums.CapacityUsers: 1, enums.CapacityChannels: 1},
	})

	m, err := e.EnsureCapacity(ctx, uuid.New(), enums.CapacityUsers)
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.Remaining)

	m, err = e.EnsureCapacity(ctx, uuid.New(), enums.CapacityChannels)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeQuotaExceeded))
	assert.Equal(t, float64(100), m.Percentage)

	_, err = e.EnsureCapacity(ctx, uuid.New(), enums.CapacityResource("seats"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSnapshotReadsWithoutRecording(t *testing.T) {
	ctx := context.Background()
	store := usage.NewMemoryStore(0)
	tenant := uuid.New()
	_, err := store.Increment(ctx, tenant, "messages.monthly", testPeriod.Start, testPeriod.End, 4500)
	require.NoError(t, err)
	e := newTestEnforcer(t, enforcerOpts{
		ent:      freeEntitlements(),
		store:    store,
		capacity: fixedCapacity{enums.CapacityUsers: 2},
	})

	snap, err := e.Snapshot(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, enums.PlanTierFree, snap.Tier)
	assert.Equal(t, testPeriod.Start, snap.PeriodStart)
	require.Len(t, snap.Metrics, 4)

	msgs, ok := snap.Metric("messages.monthly")
	require.True(t, ok)
	assert.Equal(t, float64(90), msgs.Percentage)
	assert.Equal(t, int64(500), msgs.Remaining)

	users, ok := snap.Metric("users")
	require.True(t, ok)
	assert.Equal(t, float64(100), users.Percentage)

	again, err := store.Read(ctx, tenant, "messages.monthly", testPeriod.Start, testPeriod.End)
	require.NoError(t, err)
	assert.Equal(t, int64(4500), again)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, float64(0), Percentage(5, -1))
	assert.Equal(t, float64(0), Percentage(0, 0))
	assert.Equal(t, float64(100), Percentage(1, 0))
	assert.Equal(t, float64(150), Percentage(15, 10))
}

func TestNewEnforcerRejectsUnknownPolicy(t *testing.T) {
	_, err := NewEnforcer(Params{
		Resolver: fixedResolver{},
		Periods:  fixedPeriods{},
		Store:    usage.NewMemoryStore(0),
		Capacity: fixedCapacity{},
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Policy:   "yolo",
	})
	assert.Error(t, err)
}

func TestResultRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC)
	denied := Result{OK: false, PeriodEnd: now.Add(2 * time.Hour)}
	assert.Equal(t, 2*time.Hour, denied.RetryAfter(now))

	assert.Zero(t, Result{OK: true, PeriodEnd: now.Add(time.Hour)}.RetryAfter(now))
	assert.Zero(t, Result{OK: false}.RetryAfter(now))
	assert.Zero(t, Result{OK: false, PeriodEnd: now.Add(-time.Minute)}.RetryAfter(now))
}
