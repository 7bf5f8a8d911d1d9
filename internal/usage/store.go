// Package usage persists period-scoped usage counters. Every increment is a
// single atomic upsert so concurrent callers never lose updates.
package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/helpdesk-billing/pkg/errors"
)

const dayLayout = "2006-01-02"

// Store is the counter contract shared by the SQL and in-memory backends.
type Store interface {
	// Increment adds amount to the counter and returns the new value. Absent
	// counters are created with value = amount.
	Increment(ctx context.Context, tenantID uuid.UUID, key string, periodStart, periodEnd time.Time, amount int64) (int64, error)
	// Read returns the counter value, or 0 when no row exists.
	Read(ctx context.Context, tenantID uuid.UUID, key string, periodStart, periodEnd time.Time) (int64, error)
	// DeleteRange removes every counter of the tenant whose period matches exactly.
	DeleteRange(ctx context.Context, tenantID uuid.UUID, periodStart, periodEnd time.Time) (int64, error)
	// DeleteEndedBefore removes counters whose period ended before cutoff.
	DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// TxStore is a Store that can join a caller's transaction, so rollover can
// delete counters atomically with the period update.
type TxStore interface {
	Store
	WithTx(tx *gorm.DB) Store
}

// MetricKey composes the stored counter key. Daily quotas embed the UTC
// calendar day so each day of a billing period is counted independently.
func MetricKey(key enums.QuotaKey, at time.Time) string {
	if key.Daily() {
		return string(key) + ":" + at.UTC().Format(dayLayout)
	}
	return string(key)
}

func validateAmount(amount int64) error {
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "usage amount must be positive")
	}
	return nil
}

func validatePeriod(periodStart, periodEnd time.Time) error {
	if !periodStart.Before(periodEnd) {
		return pkgerrors.New(pkgerrors.CodeValidation, "period start must be before period end")
	}
	return nil
}
