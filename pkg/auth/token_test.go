package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/helpdesk-billing/pkg/config"
	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "helpdesk",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()
	tenantID := uuid.New()

	token, err := MintAccessToken(cfg, time.Now().UTC(), AccessTokenPayload{
		UserID:   userID,
		TenantID: &tenantID,
		Role:     enums.MemberRoleOwner,
	})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	require.NotNil(t, claims.TenantID)
	assert.Equal(t, tenantID, *claims.TenantID)
	assert.Equal(t, enums.MemberRoleOwner, claims.Role)
	assert.Equal(t, "helpdesk", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestMintRequiresTenantForTenantRoles(t *testing.T) {
	_, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.MemberRoleAgent,
	})
	require.Error(t, err)

	token, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.MemberRolePlatformAdmin,
	})
	require.NoError(t, err)
	claims, err := ParseAccessToken(testJWTConfig(), token)
	require.NoError(t, err)
	assert.Nil(t, claims.TenantID)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	tenantID := uuid.New()
	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{
		UserID:   uuid.New(),
		TenantID: &tenantID,
		Role:     enums.MemberRoleAdmin,
	})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "expired"))
}

func TestParseAccessTokenRejectsWrongIssuer(t *testing.T) {
	cfg := testJWTConfig()
	tenantID := uuid.New()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		UserID:   uuid.New(),
		TenantID: &tenantID,
		Role:     enums.MemberRoleAgent,
	})
	require.NoError(t, err)

	cfg.Issuer = "other"
	_, err = ParseAccessToken(cfg, token)
	require.Error(t, err)
}

func TestMintValidatesConfig(t *testing.T) {
	_, err := MintAccessToken(config.JWTConfig{}, time.Now(), AccessTokenPayload{Role: enums.MemberRolePlatformAdmin})
	assert.Error(t, err)

	_, err = MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{Role: "ghost"})
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("  Bearer abc.def.ghi ")
	assert.True(t, ok)
	assert.Equal(t, "abc.def.ghi", token)

	token, ok = BearerToken("bearer xyz")
	assert.True(t, ok)
	assert.Equal(t, "xyz", token)

	for _, header := range []string{"", "Bearer", "Bearer   ", "Basic dXNlcg==", "abc.def.ghi"} {
		_, ok := BearerToken(header)
		assert.False(t, ok, header)
	}
}

func TestParseToleratesClockSkew(t *testing.T) {
	tokens, err := NewTokens(testJWTConfig())
	require.NoError(t, err)
	tenantID := uuid.New()

	// expired 10s ago, inside the skew window
	token, err := tokens.Mint(time.Now().Add(-30*time.Minute-10*time.Second), AccessTokenPayload{
		UserID:   uuid.New(),
		TenantID: &tenantID,
		Role:     enums.MemberRoleAgent,
	})
	require.NoError(t, err)
	_, err = tokens.Parse(token)
	assert.NoError(t, err)
}

func TestParseRejectsForeignSignature(t *testing.T) {
	tenantID := uuid.New()
	other := testJWTConfig()
	other.Secret = "another-secret"
	token, err := MintAccessToken(other, time.Now(), AccessTokenPayload{
		UserID:   uuid.New(),
		TenantID: &tenantID,
		Role:     enums.MemberRoleOwner,
	})
	require.NoError(t, err)

	_, err = ParseAccessToken(testJWTConfig(), token)
	assert.Error(t, err)
}
