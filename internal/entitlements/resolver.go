package entitlements

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/helpdesk-billing/pkg/config"
	"github.com/angelmondragon/helpdesk-billing/pkg/db/models"
	pkgerrors "github.com/angelmondragon/helpdesk-billing/pkg/errors"
	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
)

// Resolver returns the effective entitlements of a tenant.
type Resolver interface {
	Resolve(ctx context.Context, tenantID uuid.UUID) (Entitlements, error)
}

// SubscriptionReader loads a tenant subscription with its plan preloaded.
type SubscriptionReader interface {
	FindSubscription(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error)
}

// OverrideReader loads a tenant override. Returns nil, nil when absent.
type OverrideReader interface {
	FindOverride(ctx context.Context, tenantID uuid.UUID) (*models.EntitlementOverride, error)
}

// ResolverParams wires the database-backed resolver.
type ResolverParams struct {
	Subscriptions SubscriptionReader
	Overrides     OverrideReader
	FreeDefaults  config.FreeDefaultsConfig
	Now           func() time.Time
}

// DBResolver reads subscription and override rows on every call.
type DBResolver struct {
	subscriptions SubscriptionReader
	overrides     OverrideReader
	free          config.FreeDefaultsConfig
	now           func() time.Time
}

// NewResolver builds the database-backed resolver.
func NewResolver(params ResolverParams) (*DBResolver, error) {
	if params.Subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "subscription reader required")
	}
	if params.Overrides == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "override reader required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &DBResolver{
		subscriptions: params.Subscriptions,
		overrides:     params.Overrides,
		free:          params.FreeDefaults,
		now:           now,
	}, nil
}

// Resolve loads the subscription and override concurrently and merges them.
func (r *DBResolver) Resolve(ctx context.Context, tenantID uuid.UUID) (Entitlements, error) {
	if tenantID == uuid.Nil {
		return Entitlements{}, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}

	var (
		sub      *models.Subscription
		override *models.EntitlementOverride
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found, err := r.subscriptions.FindSubscription(gctx, tenantID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
		}
		sub = found
		return nil
	})
	g.Go(func() error {
		found, err := r.overrides.FindOverride(gctx, tenantID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load entitlement override")
		}
		override = found
		return nil
	})
	if err := g.Wait(); err != nil {
		return Entitlements{}, err
	}

	if sub == nil || r.lapsed(sub) {
		return DefaultFree(tenantID, r.free), nil
	}
	if sub.Plan == nil {
		return Entitlements{}, pkgerrors.New(pkgerrors.CodeInternal, "subscription references a missing plan").
			WithDetails(map[string]any{"planId": sub.PlanID})
	}
	return Merge(tenantID, *sub.Plan, override), nil
}

// lapsed reports a canceled subscription whose paid period is over.
func (r *DBResolver) lapsed(sub *models.Subscription) bool {
	return sub.Status == enums.SubscriptionStatusCanceled && !r.now().UTC().Before(sub.CurrentPeriodEnd)
}
