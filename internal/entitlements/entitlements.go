// Package entitlements resolves the effective limits and feature flags of a
// tenant from its subscription plan and optional administrative override.
package entitlements

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
)

// Source tells where the limits came from.
type Source string

const (
	SourceDefault Source = "default"
	SourcePlan    Source = "plan"
)

// Unlimited is the sentinel stored for limits without a ceiling.
const Unlimited int64 = -1

// Features are the resolved boolean entitlements.
type Features struct {
	Campaigns       bool `json:"campaigns"`
	Automations     bool `json:"automations"`
	AdvancedReports bool `json:"advancedReports"`
}

// Entitlements is the derived, never persisted, view of what a tenant may use.
type Entitlements struct {
	TenantID           uuid.UUID          `json:"tenantId"`
	Source             Source             `json:"source"`
	Tier               enums.PlanTier     `json:"tier"`
	PlanID             *uuid.UUID         `json:"planId,omitempty"`
	HasOverride        bool               `json:"hasOverride"`
	MaxUsers           int64              `json:"maxUsers"`
	MaxChannels        int64              `json:"maxChannels"`
	MaxMessagesMonthly int64              `json:"maxMessagesMonthly"`
	MaxCampaignsDaily  int64              `json:"maxCampaignsDaily"`
	RetentionDays      int64              `json:"retentionDays"`
	ReportsLevel       enums.ReportsLevel `json:"reportsLevel"`
	Features           Features           `json:"features"`
}

// Max returns the limit for a metered quota.
func (e Entitlements) Max(key enums.QuotaKey) (int64, bool) {
	switch key {
	case enums.QuotaMessagesMonthly:
		return e.MaxMessagesMonthly, true
	case enums.QuotaCampaignsDaily:
		return e.MaxCampaignsDaily, true
	}
	return 0, false
}

// Limit returns the ceiling for a count-based resource.
func (e Entitlements) Limit(resource enums.CapacityResource) (int64, bool) {
	switch resource {
	case enums.CapacityUsers:
		return e.MaxUsers, true
	case enums.CapacityChannels:
		return e.MaxChannels, true
	}
	return 0, false
}

// Enabled reports whether a feature flag is granted.
func (e Entitlements) Enabled(feature enums.FeatureKey) bool {
	switch feature {
	case enums.FeatureCampaigns:
		return e.Features.Campaigns
	case enums.FeatureAutomations:
		return e.Features.Automations
	case enums.FeatureAdvancedReports:
		return e.Features.AdvancedReports
	}
	return false
}

// IsUnlimited reports whether a limit value has no ceiling.
func IsUnlimited(limit int64) bool {
	return limit < 0
}
