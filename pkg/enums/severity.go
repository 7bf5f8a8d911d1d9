package enums

// AlertSeverity grades how close a tenant is to a limit.
type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

var alertSeverities = []AlertSeverity{AlertSeverityInfo, AlertSeverityWarning, AlertSeverityCritical}

func (a AlertSeverity) String() string { return string(a) }

func (a AlertSeverity) IsValid() bool { return oneOf(a, alertSeverities) }
