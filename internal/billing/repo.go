package billing

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/helpdesk-billing/pkg/db/models"
	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository handles subscription persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateSubscription(ctx context.Context, subscription *models.Subscription) error
	ChangePlan(ctx context.Context, id, planID uuid.UUID, provider enums.BillingProvider) error
	MarkCanceled(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	FindSubscription(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error)
	ListDueSubscriptions(ctx context.Context, now time.Time, afterID uuid.UUID, limit int) ([]models.Subscription, error)
	AdvancePeriod(ctx context.Context, id uuid.UUID, expectedEnd time.Time, next Period) (bool, error)
	ListRenewableTenantIDs(ctx context.Context, afterTenantID uuid.UUID, limit int) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateSubscription(ctx context.Context, subscription *models.Subscription) error {
	if subscription.ID == uuid.Nil {
		subscription.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Omit("Plan").Create(subscription).Error
}

// ChangePlan moves the subscription onto planID and reactivates it. The
// billing period columns are left to AdvancePeriod.
func (r *repository) ChangePlan(ctx context.Context, id, planID uuid.UUID, provider enums.BillingProvider) error {
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"plan_id":     planID,
			"provider":    provider,
			"status":      enums.SubscriptionStatusActive,
			"canceled_at": nil,
			"updated_at":  time.Now().UTC(),
		}).Error
}

// MarkCanceled stops renewal. It reports false when the subscription is
// already canceled.
func (r *repository) MarkCanceled(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND status <> ?", id, enums.SubscriptionStatusCanceled).
		Updates(map[string]any{
			"status":      enums.SubscriptionStatusCanceled,
			"canceled_at": at.UTC(),
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FindSubscription loads the tenant's subscription with its plan. Returns nil, nil when absent.
func (r *repository) FindSubscription(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("tenant_id = ?", tenantID).
		First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// ListDueSubscriptions pages renewable subscriptions whose period ended at or before now, ordered by id.
func (r *repository) ListDueSubscriptions(ctx context.Context, now time.Time, afterID uuid.UUID, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("status IN ?", enums.RenewableSubscriptionStatuses).
		Where("current_period_end <= ?", now.UTC()).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// AdvancePeriod moves the subscription to next only if its stored end still
// equals expectedEnd. It reports false when another writer got there first.
func (r *repository) AdvancePeriod(ctx context.Context, id uuid.UUID, expectedEnd time.Time, next Period) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND current_period_end = ?", id, expectedEnd.UTC()).
		Updates(map[string]any{
			"current_period_start": next.Start.UTC(),
			"current_period_end":   next.End.UTC(),
			"updated_at":           time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListRenewableTenantIDs pages the tenants with an active or trialing subscription.
func (r *repository) ListRenewableTenantIDs(ctx context.Context, afterTenantID uuid.UUID, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("status IN ?", enums.RenewableSubscriptionStatuses).
		Where("tenant_id > ?", afterTenantID).
		Order("tenant_id ASC").
		Limit(limit).
		Pluck("tenant_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
