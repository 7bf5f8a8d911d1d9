package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/helpdesk-billing/pkg/types"
)

// EntitlementOverride replaces individual plan limits for one tenant. Nil fields fall back to the plan.
type EntitlementOverride struct {
	ID                 uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID           uuid.UUID        `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex"`
	MaxUsers           *int64           `gorm:"column:max_users"`
	MaxChannels        *int64           `gorm:"column:max_channels"`
	MaxMessagesMonthly *int64           `gorm:"column:max_messages_monthly"`
	MaxCampaignsDaily  *int64           `gorm:"column:max_campaigns_daily"`
	RetentionDays      *int64           `gorm:"column:retention_days"`
	Features           types.FeatureSet `gorm:"column:features;type:jsonb;not null;default:'{}'"`
	Reason             string           `gorm:"column:reason;not null;default:''"`
	UpdatedBy          *uuid.UUID       `gorm:"column:updated_by;type:uuid"`
	CreatedAt          time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
