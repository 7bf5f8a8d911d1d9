package billing

import "time"

const (
	minAnchorDay = 1
	maxAnchorDay = 28
)

// Period is a half-open billing window [Start, End).
type Period struct {
	Start time.Time `json:"periodStart"`
	End   time.Time `json:"periodEnd"`
}

// Contains reports whether t falls inside the window.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// ClampAnchorDay forces a day-of-month into the 1..28 range every month has.
func ClampAnchorDay(day int) int {
	if day < minAnchorDay {
		return minAnchorDay
	}
	if day > maxAnchorDay {
		return maxAnchorDay
	}
	return day
}

// PeriodForAnchor returns the window containing now for a tenant renewing on
// anchorDay. The period starts at 00:00 UTC of the most recent anchor day not
// after now and lasts one calendar month.
func PeriodForAnchor(now time.Time, anchorDay int) Period {
	now = now.UTC()
	anchor := ClampAnchorDay(anchorDay)
	start := time.Date(now.Year(), now.Month(), anchor, 0, 0, 0, 0, time.UTC)
	if now.Day() < anchor {
		start = start.AddDate(0, -1, 0)
	}
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

// NextPeriod returns the window following p. The new end is 00:00 UTC of the
// anchor day in the month after the new start, and is always later than it.
func NextPeriod(p Period, anchorDay int) Period {
	anchor := ClampAnchorDay(anchorDay)
	start := p.End.UTC()
	end := time.Date(start.Year(), start.Month()+1, anchor, 0, 0, 0, 0, time.UTC)
	if !end.After(start) {
		end = end.AddDate(0, 1, 0)
	}
	return Period{Start: start, End: end}
}
