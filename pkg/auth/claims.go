package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	TenantID *uuid.UUID
	Role     enums.MemberRole
	JTI      string
}

// AccessTokenClaims represents the typed JWT issued by the identity service.
// Platform admins carry no tenant; every other role must.
type AccessTokenClaims struct {
	UserID   uuid.UUID        `json:"user_id"`
	TenantID *uuid.UUID       `json:"tenant_id,omitempty"`
	Role     enums.MemberRole `json:"role"`
	jwt.RegisteredClaims
}

// Validate runs after the registered-claim checks during parsing.
func (c AccessTokenClaims) Validate() error {
	if c.UserID == uuid.Nil {
		return fmt.Errorf("token has no user")
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("invalid member role %q", c.Role)
	}
	if c.Role != enums.MemberRolePlatformAdmin && c.TenantID == nil {
		return fmt.Errorf("tenant id is required for role %q", c.Role)
	}
	return nil
}

// IsPlatformAdmin reports whether the caller is platform staff.
func (c AccessTokenClaims) IsPlatformAdmin() bool {
	return c.Role == enums.MemberRolePlatformAdmin
}
