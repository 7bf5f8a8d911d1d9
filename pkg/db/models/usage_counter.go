package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageCounter accumulates a metric for one tenant over one period. Rows are
// only incremented and are removed whole when their period rolls over.
type UsageCounter struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID    uuid.UUID `gorm:"column:tenant_id;type:uuid;not null"`
	MetricKey   string    `gorm:"column:metric_key;not null"`
	PeriodStart time.Time `gorm:"column:period_start;not null"`
	PeriodEnd   time.Time `gorm:"column:period_end;not null"`
	Value       int64     `gorm:"column:value;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
