// Package subscriptions owns the tenant subscription lifecycle: signup
// provisioning, plan changes, cancellation and checkout.
package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/helpdesk-billing/internal/billing"
	"github.com/angelmondragon/helpdesk-billing/internal/entitlements"
	"github.com/angelmondragon/helpdesk-billing/internal/usage"
	"github.com/angelmondragon/helpdesk-billing/pkg/db"
	"github.com/angelmondragon/helpdesk-billing/pkg/db/models"
	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/helpdesk-billing/pkg/errors"
	"github.com/angelmondragon/helpdesk-billing/pkg/logger"
)

var errMissingPrice = errors.New("plan has no provider price configured")

type planReader interface {
	GetByTier(ctx context.Context, tier enums.PlanTier) (*models.Plan, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the subscription lifecycle surface.
type Service interface {
	Get(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error)
	Provision(ctx context.Context, tenantID uuid.UUID, tier enums.PlanTier) (*models.Subscription, error)
	Upgrade(ctx context.Context, tenantID uuid.UUID, tier enums.PlanTier) (*models.Subscription, error)
	Cancel(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error)
	Checkout(ctx context.Context, input CheckoutInput) (*CheckoutSession, error)
}

// CheckoutInput is the tenant's checkout request.
type CheckoutInput struct {
	TenantID   uuid.UUID
	Tier       enums.PlanTier
	SuccessURL string
	CancelURL  string
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	BillingRepo       billing.Repository
	Counters          usage.TxStore
	Plans             planReader
	Checkout          CheckoutProvider
	Invalidator       entitlements.Invalidator
	TransactionRunner txRunner
	Logger            *logger.Logger
	DefaultAnchorDay  int
	DefaultSuccessURL string
	DefaultCancelURL  string
	Now               func() time.Time
}

type service struct {
	billingRepo billing.Repository
	counters    usage.TxStore
	plans       planReader
	checkout    CheckoutProvider
	invalidator entitlements.Invalidator
	txRunner    txRunner
	logg        *logger.Logger
	anchorDay   int
	successURL  string
	cancelURL   string
	now         func() time.Time
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.BillingRepo == nil {
		return nil, fmt.Errorf("billing repo required")
	}
	if params.Counters == nil {
		return nil, fmt.Errorf("usage store required")
	}
	if params.Plans == nil {
		return nil, fmt.Errorf("plans reader required")
	}
	if params.Checkout == nil {
		return nil, fmt.Errorf("checkout provider required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	invalidator := params.Invalidator
	if invalidator == nil {
		invalidator = entitlements.NoopInvalidator{}
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		billingRepo: params.BillingRepo,
		counters:    params.Counters,
		plans:       params.Plans,
		checkout:    params.Checkout,
		invalidator: invalidator,
		txRunner:    params.TransactionRunner,
		logg:        params.Logger,
		anchorDay:   billing.ClampAnchorDay(params.DefaultAnchorDay),
		successURL:  params.DefaultSuccessURL,
		cancelURL:   params.DefaultCancelURL,
		now:         now,
	}, nil
}

func (s *service) Get(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	sub, err := s.billingRepo.FindSubscription(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	return sub, nil
}

// Provision creates the signup subscription. An empty tier means FREE.
func (s *service) Provision(ctx context.Context, tenantID uuid.UUID, tier enums.PlanTier) (*models.Subscription, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	if tier == "" {
		tier = enums.PlanTierFree
	}
	plan, err := s.subscribablePlan(ctx, tier)
	if err != nil {
		return nil, err
	}

	sub, err := s.create(ctx, tenantID, plan)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "tenant already has a subscription")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
	}
	if err := s.invalidate(ctx, tenantID); err != nil {
		return nil, err
	}
	s.logg.Info(s.logCtx(ctx, tenantID, plan.Tier), "subscription provisioned")
	return sub, nil
}

// Upgrade switches the tenant to tier immediately. Without a subscription the
// tenant is provisioned on that tier; the billing period is kept otherwise.
func (s *service) Upgrade(ctx context.Context, tenantID uuid.UUID, tier enums.PlanTier) (*models.Subscription, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	plan, err := s.subscribablePlan(ctx, tier)
	if err != nil {
		return nil, err
	}

	var result *models.Subscription
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)
		sub, err := repo.FindSubscription(ctx, tenantID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
		}
		if sub == nil {
			created, err := s.createWith(ctx, repo, tenantID, plan)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
			}
			result = created
			return nil
		}

		if err := s.reprovisionEnded(ctx, tx, repo, sub); err != nil {
			return err
		}
		if err := repo.ChangePlan(ctx, sub.ID, plan.ID, enums.BillingProviderMock); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
		}
		result, err = repo.FindSubscription(ctx, tenantID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload subscription")
		}
		if result == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "subscription vanished during plan change")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.invalidate(ctx, tenantID); err != nil {
		return nil, err
	}
	s.logg.Info(s.logCtx(ctx, tenantID, plan.Tier), "subscription plan changed")
	return result, nil
}

// Cancel ends renewal; the plan stays effective until the period end.
func (s *service) Cancel(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if sub.Status == enums.SubscriptionStatusCanceled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription already canceled")
	}
	canceled, err := s.billingRepo.MarkCanceled(ctx, sub.ID, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel subscription")
	}
	if !canceled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription already canceled")
	}
	if err := s.invalidate(ctx, tenantID); err != nil {
		return nil, err
	}
	if sub, err = s.Get(ctx, tenantID); err != nil {
		return nil, err
	}
	tier := enums.PlanTier("")
	if sub.Plan != nil {
		tier = sub.Plan.Tier
	}
	s.logg.Info(s.logCtx(ctx, tenantID, tier), "subscription canceled")
	return sub, nil
}

// Checkout opens a provider session for a paid tier.
func (s *service) Checkout(ctx context.Context, input CheckoutInput) (*CheckoutSession, error) {
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	if input.Tier == enums.PlanTierFree {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "free tier does not require checkout")
	}
	plan, err := s.subscribablePlan(ctx, input.Tier)
	if err != nil {
		return nil, err
	}
	session, err := s.checkout.CreateSession(ctx, CheckoutRequest{
		TenantID:   input.TenantID,
		Plan:       *plan,
		SuccessURL: firstNonEmpty(input.SuccessURL, s.successURL),
		CancelURL:  firstNonEmpty(input.CancelURL, s.cancelURL),
	})
	if err != nil {
		if errors.Is(err, errMissingPrice) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "plan is not purchasable")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	return session, nil
}

// reprovisionEnded starts a fresh anchor window when the stored one has
// already ended. The move is a compare-and-set on the stored end, and the
// old window's counters are deleted in the same transaction.
func (s *service) reprovisionEnded(ctx context.Context, tx *gorm.DB, repo billing.Repository, sub *models.Subscription) error {
	now := s.now().UTC()
	if now.Before(sub.CurrentPeriodEnd) {
		return nil
	}
	old := billing.Period{Start: sub.CurrentPeriodStart, End: sub.CurrentPeriodEnd}
	moved, err := repo.AdvancePeriod(ctx, sub.ID, old.End, billing.PeriodForAnchor(now, sub.AnchorDay))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reprovision billing period")
	}
	if !moved {
		return pkgerrors.New(pkgerrors.CodeConflict, "billing period changed concurrently; retry")
	}
	if _, err := s.counters.WithTx(tx).DeleteRange(ctx, sub.TenantID, old.Start, old.End); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete ended period counters")
	}
	return nil
}

func (s *service) subscribablePlan(ctx context.Context, tier enums.PlanTier) (*models.Plan, error) {
	if !tier.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid plan tier")
	}
	plan, err := s.plans.GetByTier(ctx, tier)
	if err != nil {
		return nil, err
	}
	if !plan.Status.AcceptsSubscriptions() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan is not available").
			WithDetails(map[string]any{"tier": tier, "status": plan.Status})
	}
	return plan, nil
}

func (s *service) create(ctx context.Context, tenantID uuid.UUID, plan *models.Plan) (*models.Subscription, error) {
	return s.createWith(ctx, s.billingRepo, tenantID, plan)
}

func (s *service) createWith(ctx context.Context, repo billing.Repository, tenantID uuid.UUID, plan *models.Plan) (*models.Subscription, error) {
	period := billing.PeriodForAnchor(s.now(), s.anchorDay)
	sub := &models.Subscription{
		TenantID:           tenantID,
		PlanID:             plan.ID,
		Provider:           enums.BillingProviderMock,
		Status:             enums.SubscriptionStatusActive,
		CurrentPeriodStart: period.Start,
		CurrentPeriodEnd:   period.End,
		AnchorDay:          s.anchorDay,
	}
	if err := repo.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	sub.Plan = plan
	return sub, nil
}

func (s *service) invalidate(ctx context.Context, tenantID uuid.UUID) error {
	if err := s.invalidator.InvalidateTenant(ctx, tenantID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "invalidate entitlements cache")
	}
	return nil
}

func (s *service) logCtx(ctx context.Context, tenantID uuid.UUID, tier enums.PlanTier) context.Context {
	return s.logg.WithFields(ctx, map[string]any{
		"tenant_id": tenantID.String(),
		"tier":      string(tier),
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
