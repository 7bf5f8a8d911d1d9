package entitlements

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/helpdesk-billing/pkg/db/models"
)

// OverrideRepository persists per-tenant entitlement overrides.
type OverrideRepository interface {
	OverrideReader
	WithTx(tx *gorm.DB) OverrideRepository
	UpsertOverride(ctx context.Context, override *models.EntitlementOverride) error
	DeleteOverride(ctx context.Context, tenantID uuid.UUID) (bool, error)
}

type overrideRepository struct {
	db *gorm.DB
}

// NewOverrideRepository returns an override repository bound to db.
func NewOverrideRepository(db *gorm.DB) OverrideRepository {
	return &overrideRepository{db: db}
}

func (r *overrideRepository) WithTx(tx *gorm.DB) OverrideRepository {
	if tx == nil {
		return r
	}
	return &overrideRepository{db: tx}
}

func (r *overrideRepository) FindOverride(ctx context.Context, tenantID uuid.UUID) (*models.EntitlementOverride, error) {
	var row models.EntitlementOverride
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// UpsertOverride replaces every override column for the tenant in one statement.
func (r *overrideRepository) UpsertOverride(ctx context.Context, override *models.EntitlementOverride) error {
	if override.ID == uuid.Nil {
		override.ID = uuid.New()
	}
	now := time.Now().UTC()
	override.CreatedAt = now
	override.UpdatedAt = now
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"max_users",
				"max_channels",
				"max_messages_monthly",
				"max_campaigns_daily",
				"retention_days",
				"features",
				"reason",
				"updated_by",
				"updated_at",
			}),
		}).
		Create(override).Error
}

func (r *overrideRepository) DeleteOverride(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Delete(&models.EntitlementOverride{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
