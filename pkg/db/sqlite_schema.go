package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// sqliteSchema mirrors the goose migrations for the embedded SQLite driver
// used by local development and tests. Postgres enums become text columns.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		tier TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		max_users INTEGER NOT NULL,
		max_channels INTEGER NOT NULL,
		max_messages_monthly INTEGER NOT NULL,
		max_campaigns_daily INTEGER NOT NULL,
		retention_days INTEGER NOT NULL,
		features TEXT NOT NULL DEFAULT '{}',
		stripe_price_id TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL UNIQUE,
		plan_id TEXT NOT NULL REFERENCES plans(id) ON DELETE RESTRICT,
		provider TEXT NOT NULL DEFAULT 'mock',
		provider_subscription_id TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		current_period_start DATETIME NOT NULL,
		current_period_end DATETIME NOT NULL,
		anchor_day INTEGER NOT NULL DEFAULT 1,
		canceled_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME,
		CHECK (current_period_start < current_period_end)
	)`,
	`CREATE TABLE IF NOT EXISTS entitlement_overrides (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL UNIQUE,
		max_users INTEGER,
		max_channels INTEGER,
		max_messages_monthly INTEGER,
		max_campaigns_daily INTEGER,
		retention_days INTEGER,
		features TEXT NOT NULL DEFAULT '{}',
		reason TEXT NOT NULL DEFAULT '',
		updated_by TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS usage_counters (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		metric_key TEXT NOT NULL,
		period_start DATETIME NOT NULL,
		period_end DATETIME NOT NULL,
		value INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (tenant_id, metric_key, period_start, period_end)
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		type TEXT NOT NULL,
		severity TEXT NOT NULL,
		metric_key TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		payload TEXT,
		read_at DATETIME,
		created_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS tenant_members (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		deleted_at DATETIME,
		created_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS channels (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		deleted_at DATETIME,
		created_at DATETIME
	)`,
}

// ApplySQLiteSchema creates every billing table on an SQLite connection.
func ApplySQLiteSchema(ctx context.Context, conn *gorm.DB) error {
	for _, stmt := range sqliteSchema {
		if err := conn.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
