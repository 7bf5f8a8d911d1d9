package enums

// FeatureKey names a boolean entitlement a route can require.
type FeatureKey string

const (
	FeatureCampaigns       FeatureKey = "campaigns"
	FeatureAutomations     FeatureKey = "automations"
	FeatureAdvancedReports FeatureKey = "advanced_reports"
)

var featureKeys = []FeatureKey{FeatureCampaigns, FeatureAutomations, FeatureAdvancedReports}

func (f FeatureKey) String() string { return string(f) }

func (f FeatureKey) IsValid() bool { return oneOf(f, featureKeys) }

func ParseFeatureKey(value string) (FeatureKey, error) {
	return parse("feature key", value, featureKeys)
}

// ReportsLevel is the reporting tier stored in a plan's feature map.
type ReportsLevel string

const (
	ReportsBasic    ReportsLevel = "basic"
	ReportsAdvanced ReportsLevel = "advanced"
)

var reportsLevels = []ReportsLevel{ReportsBasic, ReportsAdvanced}

func (r ReportsLevel) IsValid() bool { return oneOf(r, reportsLevels) }

func ParseReportsLevel(value string) (ReportsLevel, error) {
	return parse("reports level", value, reportsLevels)
}
