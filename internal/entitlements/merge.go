package entitlements

import (
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/angelmondragon/helpdesk-billing/pkg/db/models"
	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
	"github.com/angelmondragon/helpdesk-billing/pkg/types"
)

// Merge applies override on top of plan field by field. Numeric fields take
// the override value when set; feature keys are patched one at a time so an
// override never resets keys it does not mention.
func Merge(tenantID uuid.UUID, plan models.Plan, override *models.EntitlementOverride) Entitlements {
	ent := Entitlements{
		TenantID:           tenantID,
		Source:             SourcePlan,
		Tier:               plan.Tier,
		PlanID:             lo.ToPtr(plan.ID),
		MaxUsers:           plan.MaxUsers,
		MaxChannels:        plan.MaxChannels,
		MaxMessagesMonthly: plan.MaxMessagesMonthly,
		MaxCampaignsDaily:  plan.MaxCampaignsDaily,
		RetentionDays:      plan.RetentionDays,
	}
	features := plan.Features

	if override != nil {
		ent.HasOverride = true
		ent.MaxUsers = lo.FromPtrOr(override.MaxUsers, ent.MaxUsers)
		ent.MaxChannels = lo.FromPtrOr(override.MaxChannels, ent.MaxChannels)
		ent.MaxMessagesMonthly = lo.FromPtrOr(override.MaxMessagesMonthly, ent.MaxMessagesMonthly)
		ent.MaxCampaignsDaily = lo.FromPtrOr(override.MaxCampaignsDaily, ent.MaxCampaignsDaily)
		ent.RetentionDays = lo.FromPtrOr(override.RetentionDays, ent.RetentionDays)
		features = patchFeatures(features, override.Features)
	}

	ent.ReportsLevel = reportsLevel(features.Reports)
	ent.Features = Features{
		Campaigns:       lo.FromPtr(features.Campaigns),
		Automations:     lo.FromPtr(features.Automations),
		AdvancedReports: ent.ReportsLevel == enums.ReportsAdvanced,
	}
	return ent
}

func patchFeatures(base, patch types.FeatureSet) types.FeatureSet {
	if patch.Campaigns != nil {
		base.Campaigns = patch.Campaigns
	}
	if patch.Automations != nil {
		base.Automations = patch.Automations
	}
	if patch.Reports != nil {
		base.Reports = patch.Reports
	}
	return base
}

func reportsLevel(raw *string) enums.ReportsLevel {
	if raw != nil && enums.ReportsLevel(*raw) == enums.ReportsAdvanced {
		return enums.ReportsAdvanced
	}
	return enums.ReportsBasic
}
