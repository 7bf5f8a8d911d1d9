package guard

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/helpdesk-billing/internal/entitlements"
	"github.com/angelmondragon/helpdesk-billing/internal/quota"
	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/helpdesk-billing/pkg/errors"
)

type enforcer interface {
	Enforce(ctx context.Context, tenantID uuid.UUID, quotaKey enums.QuotaKey, amount int64) (quota.Result, error)
	EnsureCapacity(ctx context.Context, tenantID uuid.UUID, resource enums.CapacityResource) (quota.MetricUsage, error)
}

// Guard checks requirements in order and stops at the first failure.
type Guard struct {
	resolver entitlements.Resolver
	enforcer enforcer
}

// Decision is the outcome of a successful Authorize.
type Decision struct {
	Entitlements entitlements.Entitlements `json:"entitlements"`
	Quotas       []quota.Result            `json:"quotas,omitempty"`
	Capacity     []quota.MetricUsage       `json:"capacity,omitempty"`
}

// New builds a Guard.
func New(resolver entitlements.Resolver, enforcer enforcer) (*Guard, error) {
	if resolver == nil {
		return nil, fmt.Errorf("entitlements resolver required")
	}
	if enforcer == nil {
		return nil, fmt.Errorf("quota enforcer required")
	}
	return &Guard{resolver: resolver, enforcer: enforcer}, nil
}

// Authorize evaluates reqs for tenantID. Features fail with
// FEATURE_NOT_AVAILABLE; quotas and capacity with QUOTA_EXCEEDED.
// Quota requirements record usage as they pass.
func (g *Guard) Authorize(ctx context.Context, tenantID uuid.UUID, reqs ...Requirement) (Decision, error) {
	if tenantID == uuid.Nil {
		return Decision{}, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	ent, err := g.resolver.Resolve(ctx, tenantID)
	if err != nil {
		return Decision{}, err
	}
	decision := Decision{Entitlements: ent}

	for _, req := range reqs {
		switch req.Kind {
		case KindFeature:
			if !req.Feature.IsValid() {
				return decision, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown feature %q", req.Feature)
			}
			if !ent.Enabled(req.Feature) {
				return decision, pkgerrors.Newf(pkgerrors.CodeFeatureNotAvailable, "%s is not included in the %s plan", req.Feature, ent.Tier).
					WithDetails(map[string]any{"feature": req.Feature, "tier": ent.Tier})
			}
		case KindQuota:
			res, err := g.enforcer.Enforce(ctx, tenantID, req.QuotaKey, req.Amount)
			if err != nil {
				return decision, err
			}
			decision.Quotas = append(decision.Quotas, res)
		case KindCapacity:
			m, err := g.enforcer.EnsureCapacity(ctx, tenantID, req.Resource)
			if err != nil {
				return decision, err
			}
			decision.Capacity = append(decision.Capacity, m)
		default:
			return decision, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown requirement kind %q", req.Kind)
		}
	}
	return decision, nil
}
