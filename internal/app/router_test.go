package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ausbildung/nachweis/internal/auth"
	"github.com/ausbildung/nachweis/internal/observability"
	"github.com/ausbildung/nachweis/internal/shared"
	_ "github.com/ausbildung/nachweis/internal/testing/guard"
	"github.com/ausbildung/nachweis/jobs"
)

func newTestRouter(t *testing.T) (http.Handler, *auth.JWTManager) {
	t.Helper()
	manager := auth.NewJWTManager(strings.Repeat("x", 32), "nachweis", time.Hour)
	router := NewRouter(RouterParams{
		Logger:     newLogger(nil, &strings.Builder{}),
		Config:     &Config{RateLimit: 1000, AppRequestTimeout: 5 * time.Second},
		Verifier:   manager,
		Metrics:    observability.NewMetrics(),
		JobHandler: jobs.NewHandler(nil, nil),
	})
	return router, manager
}

func tokenFor(t *testing.T, m *auth.JWTManager, role shared.Role) string {
	t.Helper()
	token, err := m.Issue(shared.Principal{UserID: uuid.New(), Username: "test", Role: role})
	require.NoError(t, err)
	return token
}

func TestRouterPublicEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "nachweis_http_requests_total")
}

func TestRouterAuthorization(t *testing.T) {
	router, manager := newTestRouter(t)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"azubi is forbidden", "Bearer " + tokenFor(t, manager, shared.RoleAzubi), http.StatusForbidden},
		{"ausbilder is forbidden", "Bearer " + tokenFor(t, manager, shared.RoleAusbilder), http.StatusForbidden},
		{"admin", "Bearer " + tokenFor(t, manager, shared.RoleAdmin), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/jobs/health", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}

func TestInTestModeFromGuard(t *testing.T) {
	RefreshTestMode()
	assert.True(t, InTestMode())
}
