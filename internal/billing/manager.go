package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/helpdesk-billing/internal/usage"
	"github.com/angelmondragon/helpdesk-billing/pkg/db/models"
	pkgerrors "github.com/angelmondragon/helpdesk-billing/pkg/errors"
	"github.com/angelmondragon/helpdesk-billing/pkg/logger"
)

const defaultRolloverBatch = 500

// errPeriodMoved signals the compare-and-set lost to a concurrent rollover.
var errPeriodMoved = errors.New("subscription period already advanced")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ManagerParams configures the billing period manager.
type ManagerParams struct {
	Repo             Repository
	Counters         usage.TxStore
	DB               txRunner
	Logger           *logger.Logger
	DefaultAnchorDay int
	BatchSize        int
	Now              func() time.Time
}

// Manager computes tenant billing windows and advances expired ones.
type Manager struct {
	repo      Repository
	counters  usage.TxStore
	db        txRunner
	logg      *logger.Logger
	anchorDay int
	batchSize int
	now       func() time.Time
}

// RolloverSummary reports one rollover pass.
type RolloverSummary struct {
	Scanned         int
	Rolled          int
	Skipped         int
	Failed          int
	CountersDeleted int64
}

// NewManager validates dependencies and builds a Manager.
func NewManager(params ManagerParams) (*Manager, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("billing repository required")
	}
	if params.Counters == nil {
		return nil, fmt.Errorf("usage store required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultRolloverBatch
	}
	return &Manager{
		repo:      params.Repo,
		counters:  params.Counters,
		db:        params.DB,
		logg:      params.Logger,
		anchorDay: ClampAnchorDay(params.DefaultAnchorDay),
		batchSize: batch,
		now:       now,
	}, nil
}

// DefaultAnchorDay is the renewal day used for tenants without a subscription.
func (m *Manager) DefaultAnchorDay() int {
	return m.anchorDay
}

// CurrentPeriod returns the stored window of a live subscription, or the
// anchor-day window when the tenant has none (or a canceled one that ended).
func (m *Manager) CurrentPeriod(ctx context.Context, tenantID uuid.UUID) (Period, error) {
	now := m.now().UTC()
	sub, err := m.repo.FindSubscription(ctx, tenantID)
	if err != nil {
		return Period{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	if sub == nil {
		return PeriodForAnchor(now, m.anchorDay), nil
	}
	if sub.Status.Renews() || now.Before(sub.CurrentPeriodEnd) {
		return Period{Start: sub.CurrentPeriodStart.UTC(), End: sub.CurrentPeriodEnd.UTC()}, nil
	}
	return PeriodForAnchor(now, sub.AnchorDay), nil
}

// Rollover advances every due active/trialing subscription. Each tenant runs in
// its own transaction; failures are logged, counted, and returned combined
// after the loop finishes.
func (m *Manager) Rollover(ctx context.Context) (RolloverSummary, error) {
	now := m.now().UTC()
	summary := RolloverSummary{}
	var errs error
	after := uuid.Nil

	for {
		batch, err := m.repo.ListDueSubscriptions(ctx, now, after, m.batchSize)
		if err != nil {
			return summary, multierr.Append(errs, fmt.Errorf("list due subscriptions: %w", err))
		}
		for i := range batch {
			sub := batch[i]
			after = sub.ID
			summary.Scanned++

			deleted, err := m.rolloverSubscription(ctx, sub, now)
			switch {
			case errors.Is(err, errPeriodMoved):
				summary.Skipped++
			case err != nil:
				summary.Failed++
				logCtx := m.logg.WithFields(ctx, map[string]any{
					"tenant_id":       sub.TenantID.String(),
					"subscription_id": sub.ID.String(),
				})
				m.logg.Error(logCtx, "period rollover failed", err)
				errs = multierr.Append(errs, fmt.Errorf("tenant %s: %w", sub.TenantID, err))
			default:
				summary.Rolled++
				summary.CountersDeleted += deleted
			}
		}
		if len(batch) < m.batchSize {
			break
		}
	}
	return summary, errs
}

func (m *Manager) rolloverSubscription(ctx context.Context, sub models.Subscription, now time.Time) (int64, error) {
	current := Period{Start: sub.CurrentPeriodStart.UTC(), End: sub.CurrentPeriodEnd.UTC()}
	expired := []Period{}
	for !now.Before(current.End) {
		expired = append(expired, current)
		current = NextPeriod(current, sub.AnchorDay)
	}
	if len(expired) == 0 {
		return 0, errPeriodMoved
	}

	var deleted int64
	err := m.db.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := m.repo.WithTx(tx).AdvancePeriod(ctx, sub.ID, sub.CurrentPeriodEnd, current)
		if err != nil {
			return fmt.Errorf("advance period: %w", err)
		}
		if !moved {
			return errPeriodMoved
		}
		counters := m.counters.WithTx(tx)
		for _, old := range expired {
			rows, err := counters.DeleteRange(ctx, sub.TenantID, old.Start, old.End)
			if err != nil {
				return fmt.Errorf("delete counters for %s: %w", old.Start.Format(time.DateOnly), err)
			}
			deleted += rows
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logCtx := m.logg.WithFields(ctx, map[string]any{
		"tenant_id":        sub.TenantID.String(),
		"period_start":     current.Start,
		"period_end":       current.End,
		"periods_advanced": len(expired),
		"counters_deleted": deleted,
	})
	m.logg.Info(logCtx, "billing period rolled over")
	return deleted, nil
}
