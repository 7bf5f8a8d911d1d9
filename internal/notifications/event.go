// Package notifications classifies quota usage into threshold alerts and
// delivers them to realtime, queue and in-app sinks.
package notifications

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
	"github.com/angelmondragon/helpdesk-billing/pkg/redis"
)

// Alert thresholds in percent of the limit.
const (
	thresholdInfo     = 80
	thresholdWarning  = 90
	thresholdCritical = 100
)

// Event is one quota threshold alert for a tenant metric.
type Event struct {
	TenantID    uuid.UUID           `json:"tenantId"`
	MetricKey   string              `json:"metricKey"`
	Used        int64               `json:"used"`
	Max         int64               `json:"max"`
	Percentage  float64             `json:"percentage"`
	Severity    enums.AlertSeverity `json:"severity"`
	PeriodStart time.Time           `json:"periodStart"`
	PeriodEnd   time.Time           `json:"periodEnd"`
}

// Channel is the per-tenant topic the event belongs to.
func (e Event) Channel() string {
	return redis.QuotaTopic(e.TenantID.String())
}

// Title is the short in-app heading.
func (e Event) Title() string {
	switch e.Severity {
	case enums.AlertSeverityCritical:
		return fmt.Sprintf("%s limit reached", e.MetricKey)
	case enums.AlertSeverityWarning:
		return fmt.Sprintf("%s almost at limit", e.MetricKey)
	}
	return fmt.Sprintf("%s usage is high", e.MetricKey)
}

// Message is the in-app body.
func (e Event) Message() string {
	return fmt.Sprintf("%d of %d used (%.0f%%) in the period ending %s.",
		e.Used, e.Max, e.Percentage, e.PeriodEnd.UTC().Format(time.DateOnly))
}

// Classify maps a usage percentage to an alert severity. Usage below 80% is
// not alertable.
func Classify(percentage float64) (enums.AlertSeverity, bool) {
	switch {
	case percentage >= thresholdCritical:
		return enums.AlertSeverityCritical, true
	case percentage >= thresholdWarning:
		return enums.AlertSeverityWarning, true
	case percentage >= thresholdInfo:
		return enums.AlertSeverityInfo, true
	}
	return "", false
}
