// Package tenants reads the helpdesk seat and channel tables to count
// capacity-limited resources. It never writes them.
package tenants

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/helpdesk-billing/pkg/db/models"
	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
)

// Repository counts live members and channels of a tenant.
type Repository interface {
	CountMembers(ctx context.Context, tenantID uuid.UUID) (int64, error)
	CountChannels(ctx context.Context, tenantID uuid.UUID) (int64, error)
	Count(ctx context.Context, tenantID uuid.UUID, resource enums.CapacityResource) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a tenant read-model repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CountMembers(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return r.countLive(ctx, &models.TenantMember{}, tenantID)
}

func (r *repository) CountChannels(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return r.countLive(ctx, &models.Channel{}, tenantID)
}

// Count dispatches on the capacity resource.
func (r *repository) Count(ctx context.Context, tenantID uuid.UUID, resource enums.CapacityResource) (int64, error) {
	switch resource {
	case enums.CapacityUsers:
		return r.CountMembers(ctx, tenantID)
	case enums.CapacityChannels:
		return r.CountChannels(ctx, tenantID)
	}
	return 0, fmt.Errorf("unknown capacity resource %q", resource)
}

func (r *repository) countLive(ctx context.Context, model any, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(model).
		Where("tenant_id = ? AND deleted_at IS NULL", tenantID).
		Count(&count).Error
	return count, err
}
