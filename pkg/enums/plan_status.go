package enums

// PlanStatus controls catalog visibility. Deprecated plans keep their
// subscribers but take no new ones; hidden plans are assigned by admins only.
type PlanStatus string

const (
	PlanStatusActive     PlanStatus = "active"
	PlanStatusDeprecated PlanStatus = "deprecated"
	PlanStatusHidden     PlanStatus = "hidden"
)

var planStatuses = []PlanStatus{PlanStatusActive, PlanStatusDeprecated, PlanStatusHidden}

func (p PlanStatus) String() string { return string(p) }

func (p PlanStatus) IsValid() bool { return oneOf(p, planStatuses) }

// AcceptsSubscriptions reports whether tenants may move onto the plan.
func (p PlanStatus) AcceptsSubscriptions() bool { return p == PlanStatusActive }

func ParsePlanStatus(value string) (PlanStatus, error) {
	return parse("plan status", value, planStatuses)
}
