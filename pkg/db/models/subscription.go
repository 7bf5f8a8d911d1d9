package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
)

// Subscription binds a tenant to a plan and carries its current billing period.
type Subscription struct {
	ID                     uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID               uuid.UUID                `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex"`
	PlanID                 uuid.UUID                `gorm:"column:plan_id;type:uuid;not null"`
	Plan                   *Plan                    `gorm:"foreignKey:PlanID"`
	Provider               enums.BillingProvider    `gorm:"column:provider;type:billing_provider;not null;default:'mock'"`
	ProviderSubscriptionID *string                  `gorm:"column:provider_subscription_id"`
	Status                 enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'active'"`
	CurrentPeriodStart     time.Time                `gorm:"column:current_period_start;not null"`
	CurrentPeriodEnd       time.Time                `gorm:"column:current_period_end;not null"`
	AnchorDay              int                      `gorm:"column:anchor_day;not null;default:1"`
	CanceledAt             *time.Time               `gorm:"column:canceled_at"`
	CreatedAt              time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
