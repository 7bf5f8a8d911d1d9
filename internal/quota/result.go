package quota

import (
	"time"

	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
)

// Result describes one quota decision. Remaining is -1 for unlimited quotas.
type Result struct {
	OK          bool           `json:"ok"`
	QuotaKey    enums.QuotaKey `json:"quotaKey"`
	Used        int64          `json:"used"`
	Max         int64          `json:"max"`
	Remaining   int64          `json:"remaining"`
	Percentage  float64        `json:"percentage"`
	PeriodStart time.Time      `json:"periodStart"`
	PeriodEnd   time.Time      `json:"periodEnd"`
}

// RetryAfter is how long a denied caller should wait for the window to
// reset. Allowed results and results without a window report zero.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if r.OK || r.PeriodEnd.IsZero() || !r.PeriodEnd.After(now) {
		return 0
	}
	return r.PeriodEnd.Sub(now)
}

// MetricUsage is one row of a usage snapshot.
type MetricUsage struct {
	MetricKey  string  `json:"metricKey"`
	Used       int64   `json:"used"`
	Max        int64   `json:"max"`
	Remaining  int64   `json:"remaining"`
	Percentage float64 `json:"percentage"`
}

// UsageSnapshot is the read-only usage view of a tenant for its current period.
type UsageSnapshot struct {
	Tier        enums.PlanTier `json:"tier"`
	PeriodStart time.Time      `json:"periodStart"`
	PeriodEnd   time.Time      `json:"periodEnd"`
	Metrics     []MetricUsage  `json:"metrics"`
}

// Metric returns the snapshot row for key.
func (s UsageSnapshot) Metric(key string) (MetricUsage, bool) {
	for _, m := range s.Metrics {
		if m.MetricKey == key {
			return m, true
		}
	}
	return MetricUsage{}, false
}

func measure(key string, used, max int64) MetricUsage {
	return MetricUsage{
		MetricKey:  key,
		Used:       used,
		Max:        max,
		Remaining:  remaining(used, max),
		Percentage: Percentage(used, max),
	}
}

// Percentage is used/max*100. Unlimited quotas report 0; a zero limit with
// any usage reports 100.
func Percentage(used, max int64) float64 {
	switch {
	case max < 0:
		return 0
	case max == 0:
		if used > 0 {
			return 100
		}
		return 0
	}
	return float64(used) / float64(max) * 100
}

func remaining(used, max int64) int64 {
	if max < 0 {
		return -1
	}
	if used >= max {
		return 0
	}
	return max - used
}

func within(used, max int64) bool {
	return max < 0 || used <= max
}
