package usage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/helpdesk-billing/pkg/db/models"
	pkgerrors "github.com/angelmondragon/helpdesk-billing/pkg/errors"
)

// ON CONFLICT ... RETURNING runs as one statement on Postgres and SQLite >= 3.35.
const incrementSQL = `
INSERT INTO usage_counters (id, tenant_id, metric_key, period_start, period_end, value, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (tenant_id, metric_key, period_start, period_end)
DO UPDATE SET value = usage_counters.value + excluded.value, updated_at = excluded.updated_at
RETURNING value`

// GormStore keeps counters in the usage_counters table.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore returns a store bound to the provided connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

// WithTx binds the store to an open transaction.
func (s *GormStore) WithTx(tx *gorm.DB) Store {
	if tx == nil {
		return s
	}
	return &GormStore{db: tx, now: s.now}
}

func (s *GormStore) Increment(ctx context.Context, tenantID uuid.UUID, key string, periodStart, periodEnd time.Time, amount int64) (int64, error) {
	if err := validateAmount(amount); err != nil {
		return 0, err
	}
	if err := validatePeriod(periodStart, periodEnd); err != nil {
		return 0, err
	}
	now := s.now().UTC()
	var value int64
	err := s.db.WithContext(ctx).
		Raw(incrementSQL, uuid.New(), tenantID, key, periodStart.UTC(), periodEnd.UTC(), amount, now, now).
		Scan(&value).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment usage counter")
	}
	return value, nil
}

func (s *GormStore) Read(ctx context.Context, tenantID uuid.UUID, key string, periodStart, periodEnd time.Time) (int64, error) {
	var counter models.UsageCounter
	err := s.db.WithContext(ctx).
		Select("value").
		Where("tenant_id = ? AND metric_key = ? AND period_start = ? AND period_end = ?",
			tenantID, key, periodStart.UTC(), periodEnd.UTC()).
		Take(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read usage counter")
	}
	return counter.Value, nil
}

func (s *GormStore) DeleteRange(ctx context.Context, tenantID uuid.UUID, periodStart, periodEnd time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("tenant_id = ? AND period_start = ? AND period_end = ?", tenantID, periodStart.UTC(), periodEnd.UTC()).
		Delete(&models.UsageCounter{})
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "delete usage counters")
	}
	return res.RowsAffected, nil
}

func (s *GormStore) DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("period_end < ?", cutoff.UTC()).
		Delete(&models.UsageCounter{})
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "delete expired usage counters")
	}
	return res.RowsAffected, nil
}
