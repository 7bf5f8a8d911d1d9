package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/helpdesk-billing/pkg/errors"
)

type fakeStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "test:idempotency:" + scope + ":" + id
}

func (f *fakeStore) only(t *testing.T) (string, idempotencyRecord, time.Duration) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.data, 1)
	for key, raw := range f.data {
		var record idempotencyRecord
		require.NoError(t, json.Unmarshal([]byte(raw), &record))
		return key, record, f.ttls[key]
	}
	return "", idempotencyRecord{}, 0
}

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func upgradeRequest(key, body string) *http.Request {
	req := requestWithPattern(http.MethodPost, "/api/v1/billing/upgrade", "/api/v1/billing/upgrade", strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req
}

func decodeErrorCode(t *testing.T, body []byte) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	return payload.Error.Code
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{"upgrade", http.MethodPost, "/api/v1/billing/upgrade", planChangeTTL, true},
		{"checkout", http.MethodPost, "/api/v1/billing/checkout", planChangeTTL, true},
		{"cancel", http.MethodPost, "/api/v1/billing/cancel", planChangeTTL, true},
		{"authorize", http.MethodPost, "/api/v1/entitlements/authorize", defaultIdempotencyTTL, true},
		{"mark read", http.MethodPost, "/api/v1/notifications/{notificationId}/read", defaultIdempotencyTTL, true},
		{"provision", http.MethodPost, "/api/admin/v1/tenants/{tenantId}/subscription", defaultIdempotencyTTL, true},
		{"override put", http.MethodPut, "/api/admin/v1/tenants/{tenantId}/override", 0, false},
		{"usage read", http.MethodGet, "/api/v1/billing/usage", 0, false},
		{"empty", http.MethodPost, "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ttl, ok := routeTTL(tt.method, tt.pattern)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, ttl)
		})
	}
}

func TestRoutePatternFallsBackOnWildcard(t *testing.T) {
	req := requestWithPattern(http.MethodPost, "/api/v1/billing/cancel", "/api/v1/*", nil)
	assert.Equal(t, "/api/v1/billing/cancel", routePattern(req))

	req = requestWithPattern(http.MethodPost, "/api/v1/notifications/42/read", "/api/v1/notifications/{notificationId}/read", nil)
	assert.Equal(t, "/api/v1/notifications/{notificationId}/read", routePattern(req))
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	called := false
	handler := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, upgradeRequest("", `{"tier":"PRO"}`))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.False(t, called)
}

func TestIdempotencyPassesThroughUnlistedRoutes(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := requestWithPattern(http.MethodGet, "/api/v1/billing/usage", "/api/v1/billing/usage", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Empty(t, store.data)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	var calls int
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"tier":"PRO"}`, string(body))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, upgradeRequest("abc", `{"tier":"PRO"}`))
	require.Equal(t, http.StatusAccepted, first.Code)
	assert.Empty(t, first.Header().Get(replayedHeader))

	_, record, ttl := store.only(t)
	assert.Equal(t, recordComplete, record.State)
	assert.Equal(t, planChangeTTL, ttl)

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, upgradeRequest("abc", `{"tier":"PRO"}`))
	assert.Equal(t, http.StatusAccepted, replay.Code)
	assert.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	assert.Equal(t, "true", replay.Header().Get(replayedHeader))
	assert.Equal(t, `{"ok":true}`, strings.TrimSpace(replay.Body.String()))
	assert.Equal(t, 1, calls)
}

func TestIdempotencyRejectsBodyChange(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), upgradeRequest("xyz", `{"tier":"PRO"}`))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, upgradeRequest("xyz", `{"tier":"BUSINESS"}`))
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), decodeErrorCode(t, resp.Body.Bytes()))
}

func TestIdempotencyRejectsReplayWhileInFlight(t *testing.T) {
	store := newFakeStore()
	inner := Idempotency(store, nil)
	var calls int
	var replay *httptest.ResponseRecorder
	var handler http.Handler
	handler = inner(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			_, record, ttl := store.only(t)
			assert.Equal(t, recordPending, record.State)
			assert.Equal(t, claimTTL, ttl)

			replay = httptest.NewRecorder()
			handler.ServeHTTP(replay, upgradeRequest("dup", `{"tier":"PRO"}`))
		}
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, upgradeRequest("dup", `{"tier":"PRO"}`))

	assert.Equal(t, http.StatusOK, first.Code)
	require.NotNil(t, replay)
	assert.Equal(t, http.StatusConflict, replay.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	var calls int
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, upgradeRequest("retry", `{"tier":"PRO"}`))
	assert.Equal(t, http.StatusServiceUnavailable, first.Code)
	assert.Empty(t, store.data)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, upgradeRequest("retry", `{"tier":"PRO"}`))
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotencyScopesKeysByTenant(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, tenant := range []string{"tenant-a", "tenant-b"} {
		req := upgradeRequest("shared", `{"tier":"PRO"}`)
		req = req.WithContext(WithTenantID(req.Context(), tenant))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		assert.Equal(t, http.StatusOK, resp.Code)
	}
	assert.Len(t, store.data, 2)
}
