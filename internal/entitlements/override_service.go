package entitlements

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/angelmondragon/helpdesk-billing/pkg/db/models"
	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/helpdesk-billing/pkg/errors"
	"github.com/angelmondragon/helpdesk-billing/pkg/types"
)

// OverrideInput is the full replacement set of override values. Nil fields
// are stored as unset and fall back to the plan.
type OverrideInput struct {
	MaxUsers           *int64
	MaxChannels        *int64
	MaxMessagesMonthly *int64
	MaxCampaignsDaily  *int64
	RetentionDays      *int64
	Features           types.FeatureSet
	Reason             string
	UpdatedBy          *uuid.UUID
}

// OverrideService is the privileged administration surface for overrides.
type OverrideService interface {
	Get(ctx context.Context, tenantID uuid.UUID) (*models.EntitlementOverride, error)
	Upsert(ctx context.Context, tenantID uuid.UUID, input OverrideInput) (*models.EntitlementOverride, error)
	Delete(ctx context.Context, tenantID uuid.UUID) error
}

type overrideService struct {
	repo        OverrideRepository
	invalidator Invalidator
}

// NewOverrideService wires the override service.
func NewOverrideService(repo OverrideRepository, invalidator Invalidator) (OverrideService, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "override repository required")
	}
	if invalidator == nil {
		invalidator = NoopInvalidator{}
	}
	return &overrideService{repo: repo, invalidator: invalidator}, nil
}

func (s *overrideService) Get(ctx context.Context, tenantID uuid.UUID) (*models.EntitlementOverride, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	row, err := s.repo.FindOverride(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load entitlement override")
	}
	if row == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "entitlement override not found")
	}
	return row, nil
}

func (s *overrideService) Upsert(ctx context.Context, tenantID uuid.UUID, input OverrideInput) (*models.EntitlementOverride, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	if err := validateOverride(input); err != nil {
		return nil, err
	}

	row := &models.EntitlementOverride{
		TenantID:           tenantID,
		MaxUsers:           input.MaxUsers,
		MaxChannels:        input.MaxChannels,
		MaxMessagesMonthly: input.MaxMessagesMonthly,
		MaxCampaignsDaily:  input.MaxCampaignsDaily,
		RetentionDays:      input.RetentionDays,
		Features:           input.Features,
		Reason:             input.Reason,
		UpdatedBy:          input.UpdatedBy,
	}
	if err := s.repo.UpsertOverride(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save entitlement override")
	}
	if err := s.invalidator.InvalidateTenant(ctx, tenantID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "invalidate entitlements cache")
	}

	saved, err := s.repo.FindOverride(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload entitlement override")
	}
	return saved, nil
}

func (s *overrideService) Delete(ctx context.Context, tenantID uuid.UUID) error {
	if tenantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	deleted, err := s.repo.DeleteOverride(ctx, tenantID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete entitlement override")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "entitlement override not found")
	}
	if err := s.invalidator.InvalidateTenant(ctx, tenantID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "invalidate entitlements cache")
	}
	return nil
}

func validateOverride(input OverrideInput) error {
	limits := map[string]*int64{
		"maxUsers":           input.MaxUsers,
		"maxChannels":        input.MaxChannels,
		"maxMessagesMonthly": input.MaxMessagesMonthly,
		"maxCampaignsDaily":  input.MaxCampaignsDaily,
		"retentionDays":      input.RetentionDays,
	}
	invalid := lo.PickBy(limits, func(_ string, v *int64) bool {
		return v != nil && *v < Unlimited
	})
	if len(invalid) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "limits must be -1 (unlimited) or non-negative").
			WithDetails(map[string]any{"fields": lo.Keys(invalid)})
	}
	if input.Features.Reports != nil {
		if _, err := enums.ParseReportsLevel(*input.Features.Reports); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reports level")
		}
	}
	return nil
}
