package plans

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/helpdesk-billing/pkg/db"
	"github.com/angelmondragon/helpdesk-billing/pkg/db/models"
	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/helpdesk-billing/pkg/errors"
	"github.com/angelmondragon/helpdesk-billing/pkg/types"
)

type countingInvalidator struct {
	calls int
	err   error
}

func (c *countingInvalidator) InvalidateAll(context.Context) error {
	c.calls++
	return c.err
}

func newPlansService(t *testing.T, inv CatalogInvalidator) Service {
	t.Helper()
	dsn := "file:plans_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.ApplySQLiteSchema(context.Background(), conn))

	svc, err := NewService(NewRepository(conn), inv)
	require.NoError(t, err)
	return svc
}

func input(tier enums.PlanTier, status enums.PlanStatus) Input {
	return Input{
		Tier:               tier,
		Name:               string(tier),
		Status:             status,
		MaxUsers:           10,
		MaxChannels:        5,
		MaxMessagesMonthly: 50000,
		MaxCampaignsDaily:  10,
		RetentionDays:      180,
		Features:           types.FeatureSet{Campaigns: lo.ToPtr(true), Reports: lo.ToPtr("basic")},
	}
}

func TestCreateListAndOrder(t *testing.T) {
	ctx := context.Background()
	inv := &countingInvalidator{}
	svc := newPlansService(t, inv)

	for _, in := range []Input{
		input(enums.PlanTierCustom, enums.PlanStatusHidden),
		input(enums.PlanTierBusiness, enums.PlanStatusActive),
		input(enums.PlanTierFree, ""),
		input(enums.PlanTierPro, enums.PlanStatusActive),
	} {
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, inv.calls)

	all, err := svc.List(ctx, false)
	require.NoError(t, err)
	tiers := lo.Map(all, func(p models.Plan, _ int) enums.PlanTier { return p.Tier })
	assert.Equal(t, []enums.PlanTier{enums.PlanTierFree, enums.PlanTierPro, enums.PlanTierBusiness, enums.PlanTierCustom}, tiers)

	active, err := svc.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 3)

	free, err := svc.GetByTier(ctx, enums.PlanTierFree)
	require.NoError(t, err)
	assert.Equal(t, enums.PlanStatusActive, free.Status)
	assert.True(t, *free.Features.Campaigns)
}

func TestCreateDuplicateTierConflicts(t *testing.T) {
	ctx := context.Background()
	svc := newPlansService(t, nil)
	_, err := svc.Create(ctx, input(enums.PlanTierPro, enums.PlanStatusActive))
	require.NoError(t, err)

	_, err = svc.Create(ctx, input(enums.PlanTierPro, enums.PlanStatusActive))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestCreateValidation(t *testing.T) {
	svc := newPlansService(t, nil)
	cases := map[string]func(*Input){
		"tier":    func(in *Input) { in.Tier = "GOLD" },
		"name":    func(in *Input) { in.Name = "  " },
		"status":  func(in *Input) { in.Status = "retired" },
		"limit":   func(in *Input) { in.MaxUsers = -2 },
		"reports": func(in *Input) { in.Features.Reports = lo.ToPtr("premium") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := input(enums.PlanTierPro, enums.PlanStatusActive)
			mutate(&in)
			_, err := svc.Create(context.Background(), in)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		})
	}
}

func TestUpdateKeepsTierAndInvalidates(t *testing.T) {
	ctx := context.Background()
	inv := &countingInvalidator{}
	svc := newPlansService(t, inv)
	created, err := svc.Create(ctx, input(enums.PlanTierPro, enums.PlanStatusActive))
	require.NoError(t, err)

	in := input("", enums.PlanStatusDeprecated)
	in.Name = "Pro"
	in.MaxMessagesMonthly = 60000
	in.StripePriceID = lo.ToPtr(" price_123 ")
	updated, err := svc.Update(ctx, created.ID, in)
	require.NoError(t, err)
	assert.Equal(t, enums.PlanTierPro, updated.Tier)
	assert.Equal(t, int64(60000), updated.MaxMessagesMonthly)
	assert.Equal(t, "price_123", *updated.StripePriceID)
	assert.Equal(t, 2, inv.calls)

	_, err = svc.Update(ctx, created.ID, input(enums.PlanTierBusiness, enums.PlanStatusActive))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Update(ctx, uuid.New(), input(enums.PlanTierPro, enums.PlanStatusActive))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestInvalidatorFailureIsDependencyError(t *testing.T) {
	svc := newPlansService(t, &countingInvalidator{err: errors.New("redis down")})
	_, err := svc.Create(context.Background(), input(enums.PlanTierFree, enums.PlanStatusActive))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestGetValidation(t *testing.T) {
	svc := newPlansService(t, nil)
	_, err := svc.Get(context.Background(), uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = svc.GetByTier(context.Background(), "GOLD")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
