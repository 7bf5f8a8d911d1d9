package billing

import (
	"net/http"

	"github.com/angelmondragon/helpdesk-billing/api/middleware"
	"github.com/angelmondragon/helpdesk-billing/api/responses"
	"github.com/angelmondragon/helpdesk-billing/api/validators"
	"github.com/angelmondragon/helpdesk-billing/internal/entitlements"
	pkgerrors "github.com/angelmondragon/helpdesk-billing/pkg/errors"
	"github.com/angelmondragon/helpdesk-billing/pkg/logger"
	"github.com/angelmondragon/helpdesk-billing/pkg/types"
)

const maxReasonLength = 500

type overrideRequest struct {
	MaxUsers           *int64           `json:"maxUsers" validate:"omitempty,min=-1"`
	MaxChannels        *int64           `json:"maxChannels" validate:"omitempty,min=-1"`
	MaxMessagesMonthly *int64           `json:"maxMessagesMonthly" validate:"omitempty,min=-1"`
	MaxCampaignsDaily  *int64           `json:"maxCampaignsDaily" validate:"omitempty,min=-1"`
	RetentionDays      *int64           `json:"retentionDays" validate:"omitempty,min=-1"`
	Features           types.FeatureSet `json:"features"`
	Reason             string           `json:"reason" validate:"required"`
}

func AdminOverrideFetch(svc entitlements.OverrideService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "override service unavailable"))
			return
		}
		tenantID, err := tenantParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		override, err := svc.Get(r.Context(), tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if override == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "override not found"))
			return
		}
		responses.WriteSuccess(w, overrideToResponse(override))
	}
}

// AdminOverrideUpsert replaces the tenant's override; omitted limits fall back to the plan.
func AdminOverrideUpsert(svc entitlements.OverrideService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "override service unavailable"))
			return
		}
		tenantID, err := tenantParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload overrideRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := entitlements.OverrideInput{
			MaxUsers:           payload.MaxUsers,
			MaxChannels:        payload.MaxChannels,
			MaxMessagesMonthly: payload.MaxMessagesMonthly,
			MaxCampaignsDaily:  payload.MaxCampaignsDaily,
			RetentionDays:      payload.RetentionDays,
			Features:           payload.Features,
			Reason:             validators.SanitizeString(payload.Reason, maxReasonLength),
			UpdatedBy:          middleware.ActorID(r.Context()),
		}

		override, err := svc.Upsert(r.Context(), tenantID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, overrideToResponse(override))
	}
}

func AdminOverrideDelete(svc entitlements.OverrideService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "override service unavailable"))
			return
		}
		tenantID, err := tenantParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), tenantID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}
