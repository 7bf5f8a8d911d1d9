// Package quota enforces metered and capacity limits against resolved entitlements.
//
// The default policy is record-then-reject: the counter is incremented
// atomically first and the call is rejected when the new value exceeds the
// limit. A rejected call therefore still consumes quota, which makes the
// counter an exact record of attempted usage and keeps enforcement to a single
// round trip. Reserve-then-commit reads first and increments only when the
// amount fits; concurrent callers can still over-admit by their burst size.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/helpdesk-billing/internal/billing"
	"github.com/angelmondragon/helpdesk-billing/internal/entitlements"
	"github.com/angelmondragon/helpdesk-billing/internal/usage"
	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/helpdesk-billing/pkg/errors"
	"github.com/angelmondragon/helpdesk-billing/pkg/logger"
	"github.com/angelmondragon/helpdesk-billing/pkg/metrics"
)

// Policy selects how an increment interacts with the limit.
type Policy string

const (
	PolicyRecordThenReject  Policy = "record_then_reject"
	PolicyReserveThenCommit Policy = "reserve_then_commit"
)

// warnThreshold is the usage percentage that triggers a warning log.
const warnThreshold = 80

// PeriodSource yields the tenant's current billing window.
type PeriodSource interface {
	CurrentPeriod(ctx context.Context, tenantID uuid.UUID) (billing.Period, error)
}

// CapacityCounter counts live count-based resources.
type CapacityCounter interface {
	Count(ctx context.Context, tenantID uuid.UUID, resource enums.CapacityResource) (int64, error)
}

// Params wires an Enforcer.
type Params struct {
	Resolver entitlements.Resolver
	Periods  PeriodSource
	Store    usage.Store
	Capacity CapacityCounter
	Policy   Policy
	Logger   *logger.Logger
	Metrics  *metrics.QuotaMetrics
	Now      func() time.Time
}

// Enforcer checks and records usage.
type Enforcer struct {
	resolver entitlements.Resolver
	periods  PeriodSource
	store    usage.Store
	capacity CapacityCounter
	policy   Policy
	logg     *logger.Logger
	metrics  *metrics.QuotaMetrics
	now      func() time.Time
}

// NewEnforcer validates params. An empty policy means record-then-reject.
func NewEnforcer(params Params) (*Enforcer, error) {
	if params.Resolver == nil {
		return nil, fmt.Errorf("entitlements resolver required")
	}
	if params.Periods == nil {
		return nil, fmt.Errorf("period source required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("usage store required")
	}
	if params.Capacity == nil {
		return nil, fmt.Errorf("capacity counter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	policy := params.Policy
	switch policy {
	case "":
		policy = PolicyRecordThenReject
	case PolicyRecordThenReject, PolicyReserveThenCommit:
	default:
		return nil, fmt.Errorf("unknown quota policy %q", policy)
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Enforcer{
		resolver: params.Resolver,
		periods:  params.Periods,
		store:    params.Store,
		capacity: params.Capacity,
		policy:   policy,
		logg:     params.Logger,
		metrics:  params.Metrics,
		now:      now,
	}, nil
}

// Policy reports the active policy.
func (e *Enforcer) Policy() Policy {
	return e.policy
}

// Check records amount against quotaKey and reports whether the tenant is still within its limit.
func (e *Enforcer) Check(ctx context.Context, tenantID uuid.UUID, quotaKey enums.QuotaKey, amount int64) (Result, error) {
	res, err := e.check(ctx, tenantID, quotaKey, amount)
	switch {
	case err != nil:
		e.metrics.ObserveCheck(string(quotaKey), metrics.OutcomeError)
	case res.OK:
		e.metrics.ObserveCheck(string(quotaKey), metrics.OutcomeAllowed)
	default:
		e.metrics.ObserveCheck(string(quotaKey), metrics.OutcomeExceeded)
	}
	return res, err
}

// Enforce is Check that turns a rejected result into a QUOTA_EXCEEDED error
// carrying the result as details.
func (e *Enforcer) Enforce(ctx context.Context, tenantID uuid.UUID, quotaKey enums.QuotaKey, amount int64) (Result, error) {
	res, err := e.Check(ctx, tenantID, quotaKey, amount)
	if err != nil {
		return res, err
	}
	if !res.OK {
		return res, pkgerrors.Newf(pkgerrors.CodeQuotaExceeded, "%s quota exceeded", quotaKey).WithDetails(res)
	}
	return res, nil
}

func (e *Enforcer) check(ctx context.Context, tenantID uuid.UUID, quotaKey enums.QuotaKey, amount int64) (Result, error) {
	if tenantID == uuid.Nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	if !quotaKey.IsValid() {
		return Result{}, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown quota key %q", quotaKey)
	}
	if amount <= 0 {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	ent, err := e.resolver.Resolve(ctx, tenantID)
	if err != nil {
		return Result{}, err
	}
	period, err := e.periods.CurrentPeriod(ctx, tenantID)
	if err != nil {
		return Result{}, err
	}
	max, _ := ent.Max(quotaKey)
	key := usage.MetricKey(quotaKey, e.now())

	res := Result{
		QuotaKey:    quotaKey,
		Max:         max,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
	}

	if e.policy == PolicyReserveThenCommit && !entitlements.IsUnlimited(max) {
		current, err := e.store.Read(ctx, tenantID, key, period.Start, period.End)
		if err != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read usage counter")
		}
		if current+amount > max {
			return e.fill(res, current, false), nil
		}
	}

	used, err := e.store.Increment(ctx, tenantID, key, period.Start, period.End, amount)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return Result{}, err
		}
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment usage counter")
	}
	res = e.fill(res, used, within(used, max))
	e.warnOnCrossing(ctx, tenantID, res, used-amount)
	return res, nil
}

func (e *Enforcer) fill(res Result, used int64, ok bool) Result {
	m := measure(string(res.QuotaKey), used, res.Max)
	res.OK = ok
	res.Used = used
	res.Remaining = m.Remaining
	res.Percentage = m.Percentage
	return res
}

func (e *Enforcer) warnOnCrossing(ctx context.Context, tenantID uuid.UUID, res Result, previous int64) {
	if res.Max <= 0 {
		return
	}
	threshold := res.Max * warnThreshold
	if previous*100 >= threshold || res.Used*100 < threshold {
		return
	}
	logCtx := e.logg.WithFields(ctx, map[string]any{
		"tenant_id":  tenantID.String(),
		"quota_key":  string(res.QuotaKey),
		"used":       res.Used,
		"max":        res.Max,
		"percentage": res.Percentage,
	})
	e.logg.Warn(logCtx, "quota usage crossed warning threshold")
}

// EnsureCapacity fails with QUOTA_EXCEEDED when adding one more resource
// would exceed the tenant limit.
func (e *Enforcer) EnsureCapacity(ctx context.Context, tenantID uuid.UUID, resource enums.CapacityResource) (MetricUsage, error) {
	if tenantID == uuid.Nil {
		return MetricUsage{}, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	if !resource.IsValid() {
		return MetricUsage{}, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown capacity resource %q", resource)
	}
	ent, err := e.resolver.Resolve(ctx, tenantID)
	if err != nil {
		return MetricUsage{}, err
	}
	limit, _ := ent.Limit(resource)
	count, err := e.capacity.Count(ctx, tenantID, resource)
	if err != nil {
		return MetricUsage{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count "+string(resource))
	}
	m := measure(string(resource), count, limit)
	if !entitlements.IsUnlimited(limit) && count >= limit {
		e.metrics.ObserveCheck(string(resource), metrics.OutcomeExceeded)
		return m, pkgerrors.Newf(pkgerrors.CodeQuotaExceeded, "%s limit reached", resource).WithDetails(m)
	}
	e.metrics.ObserveCheck(string(resource), metrics.OutcomeAllowed)
	return m, nil
}

// Snapshot reads every metric of the tenant without recording usage.
func (e *Enforcer) Snapshot(ctx context.Context, tenantID uuid.UUID) (UsageSnapshot, error) {
	if tenantID == uuid.Nil {
		return UsageSnapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	ent, err := e.resolver.Resolve(ctx, tenantID)
	if err != nil {
		return UsageSnapshot{}, err
	}
	return e.SnapshotFor(ctx, ent)
}

// SnapshotFor builds the snapshot from already resolved entitlements.
func (e *Enforcer) SnapshotFor(ctx context.Context, ent entitlements.Entitlements) (UsageSnapshot, error) {
	period, err := e.periods.CurrentPeriod(ctx, ent.TenantID)
	if err != nil {
		return UsageSnapshot{}, err
	}
	now := e.now()
	snap := UsageSnapshot{Tier: ent.Tier, PeriodStart: period.Start, PeriodEnd: period.End}

	for _, key := range enums.QuotaKeys() {
		used, err := e.store.Read(ctx, ent.TenantID, usage.MetricKey(key, now), period.Start, period.End)
		if err != nil {
			return UsageSnapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read usage counter")
		}
		max, _ := ent.Max(key)
		snap.Metrics = append(snap.Metrics, measure(string(key), used, max))
	}
	for _, resource := range []enums.CapacityResource{enums.CapacityUsers, enums.CapacityChannels} {
		count, err := e.capacity.Count(ctx, ent.TenantID, resource)
		if err != nil {
			return UsageSnapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count "+string(resource))
		}
		limit, _ := ent.Limit(resource)
		snap.Metrics = append(snap.Metrics, measure(string(resource), count, limit))
	}
	return snap, nil
}
