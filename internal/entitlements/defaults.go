package entitlements

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/helpdesk-billing/pkg/config"
	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
)

// DefaultFree builds the entitlements of a tenant that has no subscription.
// Tenants without billing setup still get a usable FREE allowance, taken from
// configuration rather than the plans table.
func DefaultFree(tenantID uuid.UUID, cfg config.FreeDefaultsConfig) Entitlements {
	reports, err := enums.ParseReportsLevel(cfg.FeatureReportsLevel)
	if err != nil {
		reports = enums.ReportsBasic
	}
	return Entitlements{
		TenantID:           tenantID,
		Source:             SourceDefault,
		Tier:               enums.PlanTierFree,
		MaxUsers:           cfg.MaxUsers,
		MaxChannels:        cfg.MaxChannels,
		MaxMessagesMonthly: cfg.MaxMessagesMonthly,
		MaxCampaignsDaily:  cfg.MaxCampaignsDaily,
		RetentionDays:      cfg.RetentionDays,
		ReportsLevel:       reports,
		Features: Features{
			Campaigns:       cfg.FeatureCampaigns,
			Automations:     cfg.FeatureAutomations,
			AdvancedReports: reports == enums.ReportsAdvanced,
		},
	}
}
