package billing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/helpdesk-billing/api/middleware"
	"github.com/angelmondragon/helpdesk-billing/internal/entitlements"
	"github.com/angelmondragon/helpdesk-billing/pkg/db/models"
	pkgerrors "github.com/angelmondragon/helpdesk-billing/pkg/errors"
)

type stubOverrideService struct {
	override *models.EntitlementOverride
	input    entitlements.OverrideInput
	deleted  uuid.UUID
}

func (s *stubOverrideService) Get(context.Context, uuid.UUID) (*models.EntitlementOverride, error) {
	return s.override, nil
}

func (s *stubOverrideService) Upsert(_ context.Context, tenantID uuid.UUID, input entitlements.OverrideInput) (*models.EntitlementOverride, error) {
	s.input = input
	return &models.EntitlementOverride{
		TenantID:          tenantID,
		MaxCampaignsDaily: input.MaxCampaignsDaily,
		Reason:            input.Reason,
		UpdatedBy:         input.UpdatedBy,
	}, nil
}

func (s *stubOverrideService) Delete(_ context.Context, tenantID uuid.UUID) error {
	if s.override == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "override not found")
	}
	s.deleted = tenantID
	return nil
}

func adminRequest(method, body string, tenantID uuid.UUID) *http.Request {
	target := "/api/admin/v1/tenants/" + tenantID.String() + "/override"
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return withURLParam(req, "tenantId", tenantID.String())
}

func TestAdminOverrideFetchNotFound(t *testing.T) {
	resp := httptest.NewRecorder()
	AdminOverrideFetch(&stubOverrideService{}, nil)(resp, adminRequest(http.MethodGet, "", uuid.New()))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAdminOverrideUpsertRecordsActor(t *testing.T) {
	svc := &stubOverrideService{}
	actor := uuid.New()
	tenantID := uuid.New()
	req := adminRequest(http.MethodPut, `{"maxCampaignsDaily":50,"reason":"  launch week  "}`, tenantID)
	req = req.WithContext(middleware.WithUserID(req.Context(), actor.String()))

	resp := httptest.NewRecorder()
	AdminOverrideUpsert(svc, nil)(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, svc.input.UpdatedBy)
	assert.Equal(t, actor, *svc.input.UpdatedBy)
	assert.Equal(t, int64(50), *svc.input.MaxCampaignsDaily)
	assert.Nil(t, svc.input.MaxUsers)
	assert.Equal(t, "launch week", svc.input.Reason)
}

func TestAdminOverrideUpsertRequiresReason(t *testing.T) {
	resp := httptest.NewRecorder()
	AdminOverrideUpsert(&stubOverrideService{}, nil)(resp, adminRequest(http.MethodPut, `{"maxUsers":3}`, uuid.New()))
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = httptest.NewRecorder()
	AdminOverrideUpsert(&stubOverrideService{}, nil)(resp, adminRequest(http.MethodPut, `{"maxUsers":-5,"reason":"x"}`, uuid.New()))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAdminOverrideDelete(t *testing.T) {
	tenantID := uuid.New()
	svc := &stubOverrideService{override: &models.EntitlementOverride{TenantID: tenantID}}
	resp := httptest.NewRecorder()
	AdminOverrideDelete(svc, nil)(resp, adminRequest(http.MethodDelete, "", tenantID))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, tenantID, svc.deleted)

	resp = httptest.NewRecorder()
	AdminOverrideDelete(&stubOverrideService{}, nil)(resp, adminRequest(http.MethodDelete, "", tenantID))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAdminOverrideRejectsBadTenant(t *testing.T) {
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/admin/v1/tenants/nope/override", nil), "tenantId", "nope")
	resp := httptest.NewRecorder()
	AdminOverrideFetch(&stubOverrideService{}, nil)(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
