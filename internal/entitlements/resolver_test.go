package entitlements

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/helpdesk-billing/pkg/config"
	"github.com/angelmondragon/helpdesk-billing/pkg/db/models"
	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/helpdesk-billing/pkg/errors"
)

type stubSubscriptions struct {
	sub   *models.Subscription
	err   error
	calls int
}

func (s *stubSubscriptions) FindSubscription(context.Context, uuid.UUID) (*models.Subscription, error) {
	s.calls++
	return s.sub, s.err
}

type stubOverrides struct {
	override *models.EntitlementOverride
	err      error
}

func (s *stubOverrides) FindOverride(context.Context, uuid.UUID) (*models.EntitlementOverride, error) {
	return s.override, s.err
}

var testFree = config.FreeDefaultsConfig{
	MaxUsers:            2,
	MaxChannels:         1,
	MaxMessagesMonthly:  5000,
	MaxCampaignsDaily:   1,
	RetentionDays:       30,
	FeatureReportsLevel: "basic",
}

func newTestResolver(t *testing.T, subs SubscriptionReader, overrides OverrideReader, now time.Time) *DBResolver {
	t.Helper()
	r, err := NewResolver(ResolverParams{
		Subscriptions: subs,
		Overrides:     overrides,
		FreeDefaults:  testFree,
		Now:           func() time.Time { return now },
	})
	require.NoError(t, err)
	return r
}

func activeSubscription(tenant uuid.UUID, plan models.Plan, status enums.SubscriptionStatus, end time.Time) *models.Subscription {
	return &models.Subscription{
		ID:                 uuid.New(),
		TenantID:           tenant,
		PlanID:             plan.ID,
		Plan:               &plan,
		Status:             status,
		CurrentPeriodStart: end.AddDate(0, -1, 0),
		CurrentPeriodEnd:   end,
		AnchorDay:          1,
	}
}

func TestResolveWithoutSubscriptionReturnsDefaultFree(t *testing.T) {
	tenant := uuid.New()
	r := newTestResolver(t, &stubSubscriptions{}, &stubOverrides{
		override: &models.EntitlementOverride{MaxUsers: lo.ToPtr[int64](99)},
	}, time.Now())

	ent, err := r.Resolve(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, DefaultFree(tenant, testFree), ent)
}

func TestResolveMergesPlanAndOverride(t *testing.T) {
	tenant := uuid.New()
	now := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	subs := &stubSubscriptions{sub: activeSubscription(tenant, proPlan(), enums.SubscriptionStatusActive, now.AddDate(0, 0, 10))}
	overrides := &stubOverrides{override: &models.EntitlementOverride{MaxMessagesMonthly: lo.ToPtr[int64](75000)}}

	ent, err := newTestResolver(t, subs, overrides, now).Resolve(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, SourcePlan, ent.Source)
	assert.True(t, ent.HasOverride)
	assert.Equal(t, int64(75000), ent.MaxMessagesMonthly)
	assert.Equal(t, int64(10), ent.MaxUsers)
}

func TestResolveCanceledSubscription(t *testing.T) {
	tenant := uuid.New()
	now := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	stillPaid := &stubSubscriptions{sub: activeSubscription(tenant, proPlan(), enums.SubscriptionStatusCanceled, now.Add(time.Hour))}
	ent, err := newTestResolver(t, stillPaid, &stubOverrides{}, now).Resolve(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, enums.PlanTierPro, ent.Tier)

	lapsed := &stubSubscriptions{sub: activeSubscription(tenant, proPlan(), enums.SubscriptionStatusCanceled, now)}
	ent, err = newTestResolver(t, lapsed, &stubOverrides{}, now).Resolve(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, SourceDefault, ent.Source)
	assert.Equal(t, enums.PlanTierFree, ent.Tier)
}

func TestResolveErrors(t *testing.T) {
	tenant := uuid.New()
	now := time.Now()

	_, err := newTestResolver(t, &stubSubscriptions{}, &stubOverrides{}, now).Resolve(context.Background(), uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = newTestResolver(t, &stubSubscriptions{err: errors.New("db down")}, &stubOverrides{}, now).Resolve(context.Background(), tenant)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	_, err = newTestResolver(t, &stubSubscriptions{}, &stubOverrides{err: errors.New("db down")}, now).Resolve(context.Background(), tenant)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	orphan := activeSubscription(tenant, proPlan(), enums.SubscriptionStatusActive, now.Add(time.Hour))
	orphan.Plan = nil
	_, err = newTestResolver(t, &stubSubscriptions{sub: orphan}, &stubOverrides{}, now).Resolve(context.Background(), tenant)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
}

func TestResolveIsIdempotent(t *testing.T) {
	tenant := uuid.New()
	now := time.Now()
	subs := &stubSubscriptions{sub: activeSubscription(tenant, proPlan(), enums.SubscriptionStatusTrialing, now.Add(time.Hour))}
	r := newTestResolver(t, subs, &stubOverrides{}, now)

	first, err := r.Resolve(context.Background(), tenant)
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, subs.calls)
}

func TestNewResolverRequiresReaders(t *testing.T) {
	_, err := NewResolver(ResolverParams{Overrides: &stubOverrides{}})
	assert.Error(t, err)
	_, err = NewResolver(ResolverParams{Subscriptions: &stubSubscriptions{}})
	assert.Error(t, err)
}
