package billing

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/helpdesk-billing/api/middleware"
	"github.com/angelmondragon/helpdesk-billing/api/responses"
	"github.com/angelmondragon/helpdesk-billing/api/validators"
	"github.com/angelmondragon/helpdesk-billing/internal/entitlements"
	"github.com/angelmondragon/helpdesk-billing/internal/guard"
	"github.com/angelmondragon/helpdesk-billing/internal/quota"
	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/helpdesk-billing/pkg/errors"
	"github.com/angelmondragon/helpdesk-billing/pkg/logger"
)

// UsageReader returns the usage view of a tenant without recording anything.
type UsageReader interface {
	Snapshot(ctx context.Context, tenantID uuid.UUID) (quota.UsageSnapshot, error)
}

// Authorizer evaluates guard requirements.
type Authorizer interface {
	Authorize(ctx context.Context, tenantID uuid.UUID, reqs ...guard.Requirement) (guard.Decision, error)
}

type authorizeRequest struct {
	Feature  string `json:"feature"`
	QuotaKey string `json:"quotaKey"`
	Amount   *int64 `json:"amount" validate:"omitempty,min=1"`
	Capacity string `json:"capacity"`
}

type authorizeResponse struct {
	Allowed  bool           `json:"allowed"`
	Decision guard.Decision `json:"decision"`
}

func EntitlementsFetch(resolver entitlements.Resolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resolver == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entitlements resolver unavailable"))
			return
		}
		tenantID, err := middleware.ResolveTenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ent, err := resolver.Resolve(r.Context(), tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ent)
	}
}

func UsageFetch(usage UsageReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if usage == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "usage reader unavailable"))
			return
		}
		tenantID, err := middleware.ResolveTenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := usage.Snapshot(r.Context(), tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// EntitlementsAuthorize lets other services run the guard remotely. The
// requirements run feature, then quota, then capacity; a quota requirement
// records usage when it passes.
func EntitlementsAuthorize(g Authorizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "guard unavailable"))
			return
		}
		tenantID, err := middleware.ResolveTenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload authorizeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reqs, err := requirementsFromRequest(payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		decision, err := g.Authorize(r.Context(), tenantID, reqs...)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, authorizeResponse{Allowed: true, Decision: decision})
	}
}

func requirementsFromRequest(payload authorizeRequest) ([]guard.Requirement, error) {
	var reqs []guard.Requirement
	if raw := strings.TrimSpace(payload.Feature); raw != "" {
		key, err := enums.ParseFeatureKey(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid feature")
		}
		reqs = append(reqs, guard.Feature(key))
	}
	if raw := strings.TrimSpace(payload.QuotaKey); raw != "" {
		key, err := enums.ParseQuotaKey(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid quotaKey")
		}
		amount := int64(1)
		if payload.Amount != nil {
			amount = *payload.Amount
		}
		reqs = append(reqs, guard.Quota(key, amount))
	}
	if raw := strings.TrimSpace(payload.Capacity); raw != "" {
		resource, err := enums.ParseCapacityResource(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid capacity")
		}
		reqs = append(reqs, guard.Capacity(resource))
	}
	if len(reqs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one of feature, quotaKey or capacity is required")
	}
	return reqs, nil
}
