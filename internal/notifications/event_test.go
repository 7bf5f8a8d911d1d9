package notifications

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		percentage float64
		severity   enums.AlertSeverity
		alert      bool
	}{
		{79, "", false},
		{79.99, "", false},
		{80, enums.AlertSeverityInfo, true},
		{89, enums.AlertSeverityInfo, true},
		{90, enums.AlertSeverityWarning, true},
		{99, enums.AlertSeverityWarning, true},
		{100, enums.AlertSeverityCritical, true},
		{150, enums.AlertSeverityCritical, true},
	}
	for _, tc := range cases {
		severity, alert := Classify(tc.percentage)
		assert.Equal(t, tc.alert, alert, "percentage %v", tc.percentage)
		assert.Equal(t, tc.severity, severity, "percentage %v", tc.percentage)
	}
}

func TestEventChannelAndCopy(t *testing.T) {
	tenant := uuid.MustParse("6f1c1f3a-8d7e-4c55-9f0b-2b1f9f3c1a11")
	event := Event{
		TenantID:   tenant,
		MetricKey:  "messages.monthly",
		Used:       4600,
		Max:        5000,
		Percentage: 92,
		Severity:   enums.AlertSeverityWarning,
		PeriodEnd:  time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, "tenant:6f1c1f3a-8d7e-4c55-9f0b-2b1f9f3c1a11:quota", event.Channel())
	assert.Equal(t, "messages.monthly almost at limit", event.Title())
	assert.Equal(t, "4600 of 5000 used (92%) in the period ending 2025-02-01.", event.Message())
}
