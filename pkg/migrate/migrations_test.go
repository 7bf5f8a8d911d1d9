package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/helpdesk-billing/pkg/migrate"
)

func TestMigrationDirectoryIsValid(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations"))
}

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	require.NoError(t, err)
	require.NotEmpty(t, matches, "no %s migration found", suffix)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestUsageCounterMigrationDeclaresCompositeKey(t *testing.T) {
	content := readMigration(t, "create_usage_counters")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS usage_counters",
		"UNIQUE (tenant_id, metric_key, period_start, period_end)",
		"CHECK (value >= 0)",
		"DROP TABLE IF EXISTS usage_counters",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestSubscriptionMigrationGuardsPeriodAndPlan(t *testing.T) {
	content := readMigration(t, "create_subscriptions")
	for _, sub := range []string{
		"CONSTRAINT subscriptions_tenant_id_key UNIQUE (tenant_id)",
		"FOREIGN KEY (plan_id) REFERENCES plans(id) ON DELETE RESTRICT",
		"CHECK (current_period_start < current_period_end)",
		"CHECK (anchor_day BETWEEN 1 AND 28)",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestSeedCoversEveryTier(t *testing.T) {
	content := readMigration(t, "seed_plans")
	for _, tier := range []string{"'FREE'", "'PRO'", "'BUSINESS'", "'CUSTOM'"} {
		assert.True(t, strings.Contains(content, tier), tier)
	}
	assert.Contains(t, content, "ON CONFLICT (tier) DO NOTHING")
}

func TestEmbeddedMigrationsMatchDirectory(t *testing.T) {
	require.NoError(t, migrate.ValidateFS(migrate.Embedded()))

	embedded, err := fs.Glob(migrate.Embedded(), "*.sql")
	require.NoError(t, err)
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)
	assert.Len(t, embedded, len(onDisk))
}

func TestMigrationFilename(t *testing.T) {
	now := time.Date(2026, 2, 3, 4, 5, 6, 0, time.FixedZone("EST", -5*3600))
	name, err := migrate.MigrationFilename("Add Quota Index!", now)
	require.NoError(t, err)
	assert.Equal(t, "20260203090506_add_quota_index.sql", name)

	_, err = migrate.MigrationFilename("!!!", now)
	assert.Error(t, err)
}

func TestCreateSQLMigrationRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	path, err := migrate.CreateSQLMigration(dir, "add usage index", now)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "20260101000000_add_usage_index.sql"))
	require.NoError(t, migrate.ValidateDir(dir))

	_, err = migrate.CreateSQLMigration(dir, "add usage index", now)
	assert.Error(t, err)
}

func TestValidateFSRejectsBadMigrations(t *testing.T) {
	sections := "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n"
	cases := map[string]fstest.MapFS{
		"bad name": {"001_bad.sql": {Data: []byte(sections)}},
		"duplicate version": {
			"20250101000000_a.sql": {Data: []byte(sections)},
			"20250101000000_b.sql": {Data: []byte(sections)},
		},
		"missing down":   {"20250101000000_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")}},
		"down before up": {"20250101000000_a.sql": {Data: []byte("-- +goose Down\n-- +goose Up\n")}},
	}
	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, migrate.ValidateFS(fsys))
		})
	}

	ok := fstest.MapFS{
		"20250101000000_a.sql": {Data: []byte(sections)},
		"README.md":            {Data: []byte("notes")},
	}
	assert.NoError(t, migrate.ValidateFS(ok))
}
