package entitlements

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
	pkgerrors "github.com/angelmondragon/helpdesk-billing/pkg/errors"
	"github.com/angelmondragon/helpdesk-billing/pkg/types"
)

type recordingInvalidator struct {
	tenants []uuid.UUID
	err     error
}

func (r *recordingInvalidator) InvalidateTenant(_ context.Context, tenantID uuid.UUID) error {
	r.tenants = append(r.tenants, tenantID)
	return r.err
}

func (r *recordingInvalidator) InvalidateAll(context.Context) error { return r.err }

func newOverrideRepo(t *testing.T) OverrideRepository {
	t.Helper()
	dsn := "file:overrides_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.ApplySQLiteSchema(context.Background(), conn))
	return NewOverrideRepository(conn)
}

func TestOverrideUpsertReplacesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	inv := &recordingInvalidator{}
	svc, err := NewOverrideService(newOverrideRepo(t), inv)
	require.NoError(t, err)
	tenant := uuid.New()
	admin := uuid.New()

	saved, err := svc.Upsert(ctx, tenant, OverrideInput{
		MaxUsers: lo.ToPtr[int64](40),
		Features: types.FeatureSet{Campaigns: lo.ToPtr(true)},
		Reason:   "enterprise pilot",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(40), *saved.MaxUsers)
	assert.True(t, *saved.Features.Campaigns)

	saved, err = svc.Upsert(ctx, tenant, OverrideInput{
		MaxChannels: lo.ToPtr[int64](-1),
		Reason:      "unlimited channels",
		UpdatedBy:   &admin,
	})
	require.NoError(t, err)
	assert.Nil(t, saved.MaxUsers)
	assert.Equal(t, int64(-1), *saved.MaxChannels)
	assert.Nil(t, saved.Features.Campaigns)
	assert.Equal(t, "unlimited channels", saved.Reason)
	assert.Equal(t, admin, *saved.UpdatedBy)

	assert.Equal(t, []uuid.UUID{tenant, tenant}, inv.tenants)
}

func TestOverrideValidation(t *testing.T) {
	svc, err := NewOverrideService(newOverrideRepo(t), nil)
	require.NoError(t, err)

	_, err = svc.Upsert(context.Background(), uuid.New(), OverrideInput{MaxUsers: lo.ToPtr[int64](-5)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Upsert(context.Background(), uuid.New(), OverrideInput{Features: types.FeatureSet{Reports: lo.ToPtr("premium")}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Upsert(context.Background(), uuid.Nil, OverrideInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestOverrideGetAndDelete(t *testing.T) {
	ctx := context.Background()
	inv := &recordingInvalidator{}
	svc, err := NewOverrideService(newOverrideRepo(t), inv)
	require.NoError(t, err)
	tenant := uuid.New()

	_, err = svc.Get(ctx, tenant)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.True(t, pkgerrors.IsCode(svc.Delete(ctx, tenant), pkgerrors.CodeNotFound))

	_, err = svc.Upsert(ctx, tenant, OverrideInput{RetentionDays: lo.ToPtr[int64](400)})
	require.NoError(t, err)
	got, err := svc.Get(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, int64(400), *got.RetentionDays)

	require.NoError(t, svc.Delete(ctx, tenant))
	_, err = svc.Get(ctx, tenant)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestOverrideInvalidationFailureSurfaces(t *testing.T) {
	svc, err := NewOverrideService(newOverrideRepo(t), &recordingInvalidator{err: errors.New("redis down")})
	require.NoError(t, err)
	_, err = svc.Upsert(context.Background(), uuid.New(), OverrideInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
