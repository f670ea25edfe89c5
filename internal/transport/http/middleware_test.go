// Copyright 2026 The OpenPoll Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openpoll/openpoll/internal/audit"
	"github.com/openpoll/openpoll/internal/auth"
	"github.com/openpoll/openpoll/internal/config"
	"github.com/openpoll/openpoll/internal/tenancy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "middleware-test-secret"
	testIssuer = "openpoll-test"
)

func newTestHandler(t *testing.T, mode string) *Handler {
	t.Helper()
	var verifier *auth.Verifier
	if mode == config.AuthModeEnforced {
		v, err := auth.NewVerifier(testSecret, testIssuer)
		require.NoError(t, err)
		verifier = v
	}
	return NewHandler(nil, nil, verifier, audit.NopLogger{}, nil, mode)
}

func mintToken(t *testing.T, tenantID string, roles ...string) string {
	t.Helper()
	token, err := auth.Mint(testSecret, testIssuer, "user-1", tenantID, roles, time.Hour)
	require.NoError(t, err)
	return token
}

// probe records the tenant observed inside the protected handler.
type probe struct {
	called   bool
	tenantID string
	subject  string
	roles    []string
}

func (p *probe) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.called = true
		p.tenantID, _ = tenancy.FromContext(r.Context())
		p.subject = GetSubject(r.Context())
		p.roles = GetRoles(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

// TestPurpose: Validates rejection of requests without a credential before any handler runs.
// Scope: Unit Test
// Security: Fail-closed authentication
// Expected: 401 with the error envelope; the protected handler is never invoked.
// Test Case ID: MID-01
func TestTenantBinder_MissingToken(t *testing.T) {
	h := newTestHandler(t, config.AuthModeEnforced)
	p := &probe{}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/surveys", nil)
	rec := httptest.NewRecorder()
	h.TenantBinder(p.handler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, p.called)

	body := decodeError(t, rec)
	assert.Equal(t, "authentication required", body.Message)
	assert.Equal(t, "/api/v1/surveys", body.Path)
	assert.False(t, body.Timestamp.IsZero())
}

func TestTenantBinder_InvalidToken(t *testing.T) {
	h := newTestHandler(t, config.AuthModeEnforced)
	p := &probe{}

	expired, err := auth.Mint(testSecret, testIssuer, "user-1", "tenant-a", nil, -time.Minute)
	require.NoError(t, err)

	for _, token := range []string{"garbage", expired} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/surveys", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.TenantBinder(p.handler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, p.called)
	}
}

// TestPurpose: Validates that the tenant bound to the request context is the credential's tenant.
// Scope: Unit Test
// Security: Multi-tenant boundary enforcement
// Expected: The handler observes exactly the tenant, subject and roles from the verified token.
// Test Case ID: MID-02
func TestTenantBinder_BindsVerifiedTenant(t *testing.T) {
	h := newTestHandler(t, config.AuthModeEnforced)
	p := &probe{}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/surveys", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, "tenant-a", "admin"))
	rec := httptest.NewRecorder()
	h.TenantBinder(p.handler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, p.called)
	assert.Equal(t, "tenant-a", p.tenantID)
	assert.Equal(t, "user-1", p.subject)
	assert.Equal(t, []string{"admin"}, p.roles)
}

// TestPurpose: Validates the header-versus-credential tenant cross-check.
// Scope: Unit Test
// Security: Tenant spoofing prevention (header cannot override the credential)
// Expected: 403 on mismatch with no handler invocation; a matching header passes.
// Test Case ID: MID-03
func TestTenantBinder_HeaderCrossCheck(t *testing.T) {
	h := newTestHandler(t, config.AuthModeEnforced)

	t.Run("mismatch rejected", func(t *testing.T) {
		p := &probe{}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/surveys", nil)
		req.Header.Set("Authorization", "Bearer "+mintToken(t, "tenant-a"))
		req.Header.Set("X-Tenant-Id", "tenant-b")
		rec := httptest.NewRecorder()
		h.TenantBinder(p.handler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.False(t, p.called)
		assert.Equal(t, "tenant mismatch", decodeError(t, rec).Message)
	})

	t.Run("match passes", func(t *testing.T) {
		p := &probe{}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/surveys", nil)
		req.Header.Set("Authorization", "Bearer "+mintToken(t, "tenant-a"))
		req.Header.Set("X-Tenant-Id", "tenant-a")
		rec := httptest.NewRecorder()
		h.TenantBinder(p.handler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, p.called)
		assert.Equal(t, "tenant-a", p.tenantID)
	})
}

// TestPurpose: Validates that sequential requests from different tenants never leak context.
// Scope: Unit Test
// Security: Per-request tenant lifetime
// Expected: Each request observes only its own tenant.
// Test Case ID: MID-04
func TestTenantBinder_NoBleedBetweenRequests(t *testing.T) {
	h := newTestHandler(t, config.AuthModeEnforced)

	for _, tenant := range []string{"tenant-a", "tenant-b", "tenant-a"} {
		p := &probe{}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/surveys", nil)
		req.Header.Set("Authorization", "Bearer "+mintToken(t, tenant))
		rec := httptest.NewRecorder()
		h.TenantBinder(p.handler()).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, tenant, p.tenantID)
	}
}

func TestTenantBinder_OpenModeBindsDevTenant(t *testing.T) {
	h := newTestHandler(t, config.AuthModeOpen)

	t.Run("no header falls back to dev tenant", func(t *testing.T) {
		p := &probe{}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/surveys", nil)
		rec := httptest.NewRecorder()
		h.TenantBinder(p.handler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, config.DevTenantID, p.tenantID)
	})

	t.Run("header tenant is honored", func(t *testing.T) {
		p := &probe{}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/surveys", nil)
		req.Header.Set("X-Tenant-Id", "tenant-dev")
		rec := httptest.NewRecorder()
		h.TenantBinder(p.handler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "tenant-dev", p.tenantID)
	})
}

func TestRequireRole(t *testing.T) {
	h := newTestHandler(t, config.AuthModeEnforced)

	run := func(roles ...string) *httptest.ResponseRecorder {
		p := &probe{}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/surveys", nil)
		req.Header.Set("Authorization", "Bearer "+mintToken(t, "tenant-a", roles...))
		rec := httptest.NewRecorder()
		h.TenantBinder(h.RequireRole("admin")(p.handler())).ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusForbidden, run().Code)
	assert.Equal(t, http.StatusForbidden, run("viewer").Code)
	assert.Equal(t, http.StatusOK, run("admin").Code)
	assert.Equal(t, http.StatusOK, run("viewer", "admin").Code)
}

func TestRouter_HealthIsPublic(t *testing.T) {
	h := newTestHandler(t, config.AuthModeEnforced)
	router := NewRouter(h, NewRateLimiter(100, 100))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_APIRequiresAuth(t *testing.T) {
	h := newTestHandler(t, config.AuthModeEnforced)
	router := NewRouter(h, NewRateLimiter(100, 100))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/surveys", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, bearerToken(req))

	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Empty(t, bearerToken(req))

	req.Header.Set("Authorization", "Bearer abc.def.ghi")
	assert.Equal(t, "abc.def.ghi", bearerToken(req))

	req.Header.Set("Authorization", "bearer lower.case.ok")
	assert.Equal(t, "lower.case.ok", bearerToken(req))
}
