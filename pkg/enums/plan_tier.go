package enums

import "strings"

// PlanTier identifies a catalog plan; each tier maps to exactly one plan row.
type PlanTier string

const (
	PlanTierFree     PlanTier = "FREE"
	PlanTierPro      PlanTier = "PRO"
	PlanTierBusiness PlanTier = "BUSINESS"
	PlanTierCustom   PlanTier = "CUSTOM"
)

var validPlanTiers = []PlanTier{
	PlanTierFree,
	PlanTierPro,
	PlanTierBusiness,
	PlanTierCustom,
}

func (p PlanTier) String() string { return string(p) }

func (p PlanTier) IsValid() bool { return oneOf(p, validPlanTiers) }

// ParsePlanTier converts raw input into a PlanTier. Matching is case-insensitive.
func ParsePlanTier(value string) (PlanTier, error) {
	return parse("plan tier", strings.ToUpper(strings.TrimSpace(value)), validPlanTiers)
}

// Rank orders tiers from FREE upward; unknown tiers sort last.
func (p PlanTier) Rank() int {
	for i, candidate := range validPlanTiers {
		if candidate == p {
			return i
		}
	}
	return len(validPlanTiers)
}
