// Package plans manages the catalog of subscription tiers and their base limits.
package plans

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/angelmondragon/helpdesk-billing/pkg/db"
	"github.com/angelmondragon/helpdesk-billing/pkg/db/models"
	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/helpdesk-billing/pkg/errors"
	"github.com/angelmondragon/helpdesk-billing/pkg/types"
)

const unlimited int64 = -1

// CatalogInvalidator drops every cached entitlement after a plan write.
type CatalogInvalidator interface {
	InvalidateAll(ctx context.Context) error
}

// Input carries the mutable plan fields.
type Input struct {
	Tier               enums.PlanTier
	Name               string
	Status             enums.PlanStatus
	MaxUsers           int64
	MaxChannels        int64
	MaxMessagesMonthly int64
	MaxCampaignsDaily  int64
	RetentionDays      int64
	Features           types.FeatureSet
	StripePriceID      *string
}

// Service exposes catalog reads and administrative writes.
type Service interface {
	List(ctx context.Context, activeOnly bool) ([]models.Plan, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	GetByTier(ctx context.Context, tier enums.PlanTier) (*models.Plan, error)
	Create(ctx context.Context, input Input) (*models.Plan, error)
	Update(ctx context.Context, id uuid.UUID, input Input) (*models.Plan, error)
}

type service struct {
	repo        Repository
	invalidator CatalogInvalidator
}

// NewService wires the plans service. A nil invalidator disables cache busting.
func NewService(repo Repository, invalidator CatalogInvalidator) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "plans repository required")
	}
	return &service{repo: repo, invalidator: invalidator}, nil
}

func (s *service) List(ctx context.Context, activeOnly bool) ([]models.Plan, error) {
	query := ListQuery{}
	if activeOnly {
		query.Status = lo.ToPtr(enums.PlanStatusActive)
	}
	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list plans")
	}
	return rows, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id required")
	}
	plan, err := s.repo.FindByID(ctx, id)
	return found(plan, err)
}

func (s *service) GetByTier(ctx context.Context, tier enums.PlanTier) (*models.Plan, error) {
	if !tier.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid plan tier")
	}
	plan, err := s.repo.FindByTier(ctx, tier)
	return found(plan, err)
}

func (s *service) Create(ctx context.Context, input Input) (*models.Plan, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	plan := &models.Plan{}
	apply(plan, input)
	if err := s.repo.Create(ctx, plan); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "plan tier already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create plan")
	}
	if err := s.invalidate(ctx); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input Input) (*models.Plan, error) {
	plan, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Tier == "" {
		input.Tier = plan.Tier
	}
	if input.Tier != plan.Tier {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan tier cannot change")
	}
	if err := validate(input); err != nil {
		return nil, err
	}
	apply(plan, input)
	if err := s.repo.Update(ctx, plan); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update plan")
	}
	if err := s.invalidate(ctx); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *service) invalidate(ctx context.Context) error {
	if s.invalidator == nil {
		return nil
	}
	if err := s.invalidator.InvalidateAll(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "invalidate entitlements cache")
	}
	return nil
}

func found(plan *models.Plan, err error) (*models.Plan, error) {
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	return plan, nil
}

func apply(plan *models.Plan, input Input) {
	plan.Tier = input.Tier
	plan.Name = strings.TrimSpace(input.Name)
	plan.Status = lo.Ternary(input.Status == "", enums.PlanStatusActive, input.Status)
	plan.MaxUsers = input.MaxUsers
	plan.MaxChannels = input.MaxChannels
	plan.MaxMessagesMonthly = input.MaxMessagesMonthly
	plan.MaxCampaignsDaily = input.MaxCampaignsDaily
	plan.RetentionDays = input.RetentionDays
	plan.Features = input.Features
	plan.StripePriceID = lo.EmptyableToPtr(strings.TrimSpace(lo.FromPtr(input.StripePriceID)))
}

func validate(input Input) error {
	if !input.Tier.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid plan tier")
	}
	if strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "plan name required")
	}
	if input.Status != "" && !input.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid plan status")
	}
	for _, limit := range []int64{input.MaxUsers, input.MaxChannels, input.MaxMessagesMonthly, input.MaxCampaignsDaily, input.RetentionDays} {
		if limit < unlimited {
			return pkgerrors.New(pkgerrors.CodeValidation, "limits must be -1 (unlimited) or non-negative")
		}
	}
	if input.Features.Reports != nil {
		if _, err := enums.ParseReportsLevel(*input.Features.Reports); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reports level")
		}
	}
	return nil
}
