package app

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-bff/internal/config"
	"clinic-bff/internal/fetcher"
)

type stubBackend struct {
	mu         sync.Mutex
	requestIDs []string
	status     int
}

func (s *stubBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requestIDs = append(s.requestIDs, r.Header.Get("X-Request-Id"))
	status := s.status
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"data":[{"id":"a1"}],"stats":{}}`))
}

func testConfig(backendURL string) *config.Config {
	return &config.Config{
		BackendBaseURL:         backendURL,
		ServerPort:             8080,
		ShutdownDrainSeconds:   0,
		ShutdownTimeoutSeconds: 1,
		AllowedOrigins:         []string{"https://clinic.example"},
		MaxRequestSizeMB:       1,
		FetchMaxRetries:        2,
		FetchInitialDelayMs:    0,
		FetchTimeoutSeconds:    5,
		AdminPasskey:           "111111",
		LockoutMaxAttempts:     5,
		LockoutWindowSeconds:   60,
		UploadMaxSizeMB:        1,
		LogFormat:              "console",
	}
}

// newTestApp builds a fully wired App against a stub backend, ready to serve.
func newTestApp(t *testing.T, status int) (*App, *stubBackend) {
	t.Helper()
	stub := &stubBackend{status: status}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	a := NewApp(testConfig(srv.URL))
	require.NoError(t, a.preProcess())
	a.readiness.Store(true)
	return a, stub
}

func (a *App) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.echo.ServeHTTP(rec, req)
	return rec
}

// TestApp_ReadinessFlag_StartsAsFalse verifies readiness flag initialization
func TestApp_ReadinessFlag_StartsAsFalse(t *testing.T) {
	app := NewApp(testConfig("http://localhost:3000"))

	if app.readiness.Load() {
		t.Error("expected readiness to start as false, got true")
	}
}

// TestApp_InjectDependency_CreatesHandlers verifies handler initialization
func TestApp_InjectDependency_CreatesHandlers(t *testing.T) {
	app := NewApp(testConfig("http://localhost:3000"))
	require.NoError(t, app.injectDependency())

	// Expected handlers: health, patient, admin, upload
	assert.Len(t, app.httpHandlers, 4)
	assert.NotNil(t, app.lockoutStore)
}

// TestApp_InjectDependency_BadBackendURL verifies startup fails on an unusable backend URL
func TestApp_InjectDependency_BadBackendURL(t *testing.T) {
	app := NewApp(testConfig("backend:3000"))
	assert.Error(t, app.injectDependency())
}

// TestApp_InjectDependency_UnreachableRedis verifies a configured but unreachable Redis fails startup
func TestApp_InjectDependency_UnreachableRedis(t *testing.T) {
	cfg := testConfig("http://localhost:3000")
	cfg.RedisAddr = "127.0.0.1:1"
	app := NewApp(cfg)
	assert.Error(t, app.injectDependency())
}

// TestApp_ReadinessGate verifies only health and metrics are served while not ready
func TestApp_ReadinessGate(t *testing.T) {
	app, stub := newTestApp(t, http.StatusOK)
	app.readiness.Store(false)

	for _, p := range []string{"/healthz", "/metrics"} {
		rec := app.serve(httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, http.StatusOK, rec.Code, p)
	}
	rec := app.serve(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = app.serve(httptest.NewRequest(http.MethodGet, "/api/appointments/a1/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, stub.requestIDs, "backend not called while draining")
}

// TestApp_ForwardsRequestID verifies the generated request ID reaches the backend
func TestApp_ForwardsRequestID(t *testing.T) {
	app, stub := newTestApp(t, http.StatusOK)

	rec := app.serve(httptest.NewRequest(http.MethodGet, "/api/appointments/a1/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	id := rec.Header().Get("X-Request-Id")
	require.NotEmpty(t, id)
	stub.mu.Lock()
	defer stub.mu.Unlock()
	require.Len(t, stub.requestIDs, 1)
	assert.Equal(t, id, stub.requestIDs[0])
}

// TestApp_RateLimitedBackend_ReturnsFallback verifies exhaustion is masked end to end
func TestApp_RateLimitedBackend_ReturnsFallback(t *testing.T) {
	app, stub := newTestApp(t, http.StatusTooManyRequests)

	rec := app.serve(httptest.NewRequest(http.MethodGet, "/api/appointments/a1/status", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[],"stats":{}}`, rec.Body.String())
	assert.Equal(t, "exhausted", rec.Header().Get(fetcher.FallbackHeader))
	stub.mu.Lock()
	defer stub.mu.Unlock()
	assert.Len(t, stub.requestIDs, 2)
}

// TestApp_Metrics_ExposesHTTPAndFetchSeries verifies both registries are served
func TestApp_Metrics_ExposesHTTPAndFetchSeries(t *testing.T) {
	app, _ := newTestApp(t, http.StatusOK)
	app.serve(httptest.NewRequest(http.MethodGet, "/api/appointments/a1/status", nil))

	rec := app.serve(httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "clinic_bff_fetch_attempts_total"), "fetch metrics missing")
	assert.True(t, strings.Contains(body, "clinic_bff_requests_total"), "http metrics missing")
}

// TestApp_Shutdown_ClosesResources verifies the shutdown sequence flips readiness
func TestApp_Shutdown_ClosesResources(t *testing.T) {
	app, _ := newTestApp(t, http.StatusOK)

	err := app.shutdown()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		t.Fatalf("shutdown returned error: %v", err)
	}
	assert.False(t, app.readiness.Load())
}

// TestApp_DrainPeriod_Duration verifies drain period calculation
func TestApp_DrainPeriod_Duration(t *testing.T) {
	testCases := []struct {
		drainSeconds     int
		expectedDuration time.Duration
	}{
		{drainSeconds: 2, expectedDuration: 2 * time.Second},
		{drainSeconds: 5, expectedDuration: 5 * time.Second},
	}

	for _, tc := range testCases {
		cfg := testConfig("http://localhost:3000")
		cfg.ShutdownDrainSeconds = tc.drainSeconds
		app := NewApp(cfg)

		drainDuration := time.Duration(app.config.ShutdownDrainSeconds) * time.Second
		if drainDuration != tc.expectedDuration {
			t.Errorf("expected drain duration %v, got %v", tc.expectedDuration, drainDuration)
		}
	}
}
