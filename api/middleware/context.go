package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
)

type contextKey string

const (
	ctxUserID   contextKey = "user_id"
	ctxRole     contextKey = "actor_role"
	ctxTenantID contextKey = "tenant_id"
)

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

func UserIDFromContext(ctx context.Context) string { return stringValue(ctx, ctxUserID) }

func TenantIDFromContext(ctx context.Context) string { return stringValue(ctx, ctxTenantID) }

// RoleFromContext returns the actor role seeded by Auth, or "" when absent.
func RoleFromContext(ctx context.Context) enums.MemberRole {
	return enums.MemberRole(stringValue(ctx, ctxRole))
}

// ActorID parses the authenticated user id; nil when missing or malformed.
func ActorID(ctx context.Context) *uuid.UUID {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return nil
	}
	return &id
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return withString(ctx, ctxUserID, userID)
}

func WithRole(ctx context.Context, role string) context.Context {
	return withString(ctx, ctxRole, role)
}

// WithTenantID seeds the tenant for downstream handlers.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return withString(ctx, ctxTenantID, tenantID)
}
