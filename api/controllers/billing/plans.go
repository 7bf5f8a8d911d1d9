package billing

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/helpdesk-billing/api/middleware"
	"github.com/angelmondragon/helpdesk-billing/api/responses"
	"github.com/angelmondragon/helpdesk-billing/api/validators"
	"github.com/angelmondragon/helpdesk-billing/internal/plans"
	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/helpdesk-billing/pkg/errors"
	"github.com/angelmondragon/helpdesk-billing/pkg/logger"
	"github.com/angelmondragon/helpdesk-billing/pkg/types"
)

type planUpsertRequest struct {
	Tier               string           `json:"tier" validate:"omitempty,plan_tier"`
	Name               string           `json:"name" validate:"required,max=120"`
	Status             string           `json:"status"`
	MaxUsers           *int64           `json:"maxUsers" validate:"required,min=-1"`
	MaxChannels        *int64           `json:"maxChannels" validate:"required,min=-1"`
	MaxMessagesMonthly *int64           `json:"maxMessagesMonthly" validate:"required,min=-1"`
	MaxCampaignsDaily  *int64           `json:"maxCampaignsDaily" validate:"required,min=-1"`
	RetentionDays      *int64           `json:"retentionDays" validate:"required,min=-1"`
	Features           types.FeatureSet `json:"features"`
	StripePriceID      *string          `json:"stripePriceId"`
}

// TenantPlansList returns the active catalog.
func TenantPlansList(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}
		if _, err := middleware.ResolveTenantID(r); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		catalog, err := svc.List(ctx, true)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, planListResponse{Plans: plansToResponse(catalog)})
	}
}

// AdminPlansList returns every plan, hidden ones included unless activeOnly=true.
func AdminPlansList(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		activeOnly, err := validators.ParseQueryBool(r, "activeOnly", false)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		catalog, err := svc.List(ctx, activeOnly)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, planListResponse{Plans: plansToResponse(catalog)})
	}
}

func AdminPlanCreate(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		var payload planUpsertRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if strings.TrimSpace(payload.Tier) == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "tier is required"))
			return
		}
		input, err := planInputFromRequest(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		plan, err := svc.Create(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, planToResponse(*plan))
	}
}

// AdminPlanUpdate replaces a plan's limits and features; the tier is immutable.
func AdminPlanUpdate(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		planID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "planId")))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan id"))
			return
		}

		var payload planUpsertRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		input, err := planInputFromRequest(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		plan, err := svc.Update(ctx, planID, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, planToResponse(*plan))
	}
}

func planInputFromRequest(payload planUpsertRequest) (plans.Input, error) {
	input := plans.Input{
		Name:               strings.TrimSpace(payload.Name),
		MaxUsers:           *payload.MaxUsers,
		MaxChannels:        *payload.MaxChannels,
		MaxMessagesMonthly: *payload.MaxMessagesMonthly,
		MaxCampaignsDaily:  *payload.MaxCampaignsDaily,
		RetentionDays:      *payload.RetentionDays,
		Features:           payload.Features,
		StripePriceID:      payload.StripePriceID,
	}
	if raw := strings.TrimSpace(payload.Tier); raw != "" {
		tier, err := enums.ParsePlanTier(raw)
		if err != nil {
			return plans.Input{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tier")
		}
		input.Tier = tier
	}
	if raw := strings.TrimSpace(payload.Status); raw != "" {
		status, err := enums.ParsePlanStatus(raw)
		if err != nil {
			return plans.Input{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		input.Status = status
	}
	return input, nil
}
