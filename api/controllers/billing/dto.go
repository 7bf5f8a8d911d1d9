package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/angelmondragon/helpdesk-billing/pkg/db/models"
	"github.com/angelmondragon/helpdesk-billing/pkg/types"
)

type planResponse struct {
	ID                 uuid.UUID        `json:"id"`
	Tier               string           `json:"tier"`
	Name               string           `json:"name"`
	Status             string           `json:"status"`
	MaxUsers           int64            `json:"maxUsers"`
	MaxChannels        int64            `json:"maxChannels"`
	MaxMessagesMonthly int64            `json:"maxMessagesMonthly"`
	MaxCampaignsDaily  int64            `json:"maxCampaignsDaily"`
	RetentionDays      int64            `json:"retentionDays"`
	Features           types.FeatureSet `json:"features"`
	StripePriceID      *string          `json:"stripePriceId,omitempty"`
	CreatedAt          string           `json:"createdAt"`
	UpdatedAt          string           `json:"updatedAt"`
}

type planListResponse struct {
	Plans []planResponse `json:"plans"`
}

type subscriptionResponse struct {
	ID                 uuid.UUID     `json:"id"`
	TenantID           uuid.UUID     `json:"tenantId"`
	Status             string        `json:"status"`
	Provider           string        `json:"provider"`
	CurrentPeriodStart time.Time     `json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time     `json:"currentPeriodEnd"`
	AnchorDay          int           `json:"anchorDay"`
	CanceledAt         *time.Time    `json:"canceledAt,omitempty"`
	Plan               *planResponse `json:"plan,omitempty"`
}

type overrideResponse struct {
	TenantID           uuid.UUID        `json:"tenantId"`
	MaxUsers           *int64           `json:"maxUsers,omitempty"`
	MaxChannels        *int64           `json:"maxChannels,omitempty"`
	MaxMessagesMonthly *int64           `json:"maxMessagesMonthly,omitempty"`
	MaxCampaignsDaily  *int64           `json:"maxCampaignsDaily,omitempty"`
	RetentionDays      *int64           `json:"retentionDays,omitempty"`
	Features           types.FeatureSet `json:"features"`
	Reason             string           `json:"reason"`
	UpdatedBy          *uuid.UUID       `json:"updatedBy,omitempty"`
	UpdatedAt          string           `json:"updatedAt"`
}

func plansToResponse(plans []models.Plan) []planResponse {
	return lo.Map(plans, func(plan models.Plan, _ int) planResponse {
		return planToResponse(plan)
	})
}

func planToResponse(plan models.Plan) planResponse {
	return planResponse{
		ID:                 plan.ID,
		Tier:               string(plan.Tier),
		Name:               plan.Name,
		Status:             string(plan.Status),
		MaxUsers:           plan.MaxUsers,
		MaxChannels:        plan.MaxChannels,
		MaxMessagesMonthly: plan.MaxMessagesMonthly,
		MaxCampaignsDaily:  plan.MaxCampaignsDaily,
		RetentionDays:      plan.RetentionDays,
		Features:           plan.Features,
		StripePriceID:      plan.StripePriceID,
		CreatedAt:          plan.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          plan.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func subscriptionToResponse(sub *models.Subscription) subscriptionResponse {
	resp := subscriptionResponse{
		ID:                 sub.ID,
		TenantID:           sub.TenantID,
		Status:             string(sub.Status),
		Provider:           string(sub.Provider),
		CurrentPeriodStart: sub.CurrentPeriodStart.UTC(),
		CurrentPeriodEnd:   sub.CurrentPeriodEnd.UTC(),
		AnchorDay:          sub.AnchorDay,
		CanceledAt:         sub.CanceledAt,
	}
	if sub.Plan != nil {
		resp.Plan = lo.ToPtr(planToResponse(*sub.Plan))
	}
	return resp
}

func overrideToResponse(o *models.EntitlementOverride) overrideResponse {
	return overrideResponse{
		TenantID:           o.TenantID,
		MaxUsers:           o.MaxUsers,
		MaxChannels:        o.MaxChannels,
		MaxMessagesMonthly: o.MaxMessagesMonthly,
		MaxCampaignsDaily:  o.MaxCampaignsDaily,
		RetentionDays:      o.RetentionDays,
		Features:           o.Features,
		Reason:             o.Reason,
		UpdatedBy:          o.UpdatedBy,
		UpdatedAt:          o.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
