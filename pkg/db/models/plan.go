package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
	"github.com/angelmondragon/helpdesk-billing/pkg/types"
)

// Plan is a catalog tier with its base limits. Negative limits mean unlimited.
type Plan struct {
	ID                 uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Tier               enums.PlanTier   `gorm:"column:tier;type:plan_tier;not null;uniqueIndex"`
	Name               string           `gorm:"column:name;not null"`
	Status             enums.PlanStatus `gorm:"column:status;type:plan_status;not null;default:'active'"`
	MaxUsers           int64            `gorm:"column:max_users;not null"`
	MaxChannels        int64            `gorm:"column:max_channels;not null"`
	MaxMessagesMonthly int64            `gorm:"column:max_messages_monthly;not null"`
	MaxCampaignsDaily  int64            `gorm:"column:max_campaigns_daily;not null"`
	RetentionDays      int64            `gorm:"column:retention_days;not null"`
	Features           types.FeatureSet `gorm:"column:features;type:jsonb;not null;default:'{}'"`
	StripePriceID      *string          `gorm:"column:stripe_price_id"`
	CreatedAt          time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
