package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"

	"clinic-bff/internal/backend"
	"clinic-bff/internal/config"
	"clinic-bff/internal/fetcher"
	"clinic-bff/internal/handler/http/admin"
	"clinic-bff/internal/handler/http/health"
	httpiface "clinic-bff/internal/handler/http/interface"
	"clinic-bff/internal/handler/http/patient"
	"clinic-bff/internal/handler/http/upload"
	"clinic-bff/internal/lockout"
	"clinic-bff/internal/metrics"
	"clinic-bff/internal/validation"
	"clinic-bff/pkg/logger"
)

// App represents the application with its lifecycle management
type App struct {
	config       *config.Config
	echo         *echo.Echo
	readiness    *atomic.Bool
	registry     *prometheus.Registry
	httpHandlers []httpiface.HttpRouter
	lockoutStore lockout.Store
	cancel       context.CancelFunc
}

// NewApp creates a new App instance with the given configuration
// Follows constructor injection pattern - all dependencies passed via parameters
func NewApp(cfg *config.Config) *App {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	app := &App{
		config:    cfg,
		echo:      e,
		readiness: atomic.NewBool(false),
		registry:  prometheus.NewRegistry(),
	}

	return app
}

// injectDependency builds the fetcher, backend client, lockout store and all HTTP handlers
// This centralizes handler initialization and makes it easy to add new handlers
func (a *App) injectDependency() error {
	f := fetcher.New(
		fetcher.WithPolicy(fetcher.Policy{
			MaxRetries:   a.config.FetchMaxRetries,
			InitialDelay: a.config.FetchInitialDelay(),
		}),
		fetcher.WithHTTPClient(fetcher.NewHTTPClient(a.config.FetchTimeout(), a.config.UpstreamCacheEnabled)),
	)
	p := f.Policy()
	logger.Info("Fetcher policy: max_retries=%d initial_delay=%v", p.MaxRetries, p.InitialDelay)

	client, err := backend.New(a.config.BackendBaseURL, a.config.BackendServiceToken, f)
	if err != nil {
		return fmt.Errorf("backend client: %w", err)
	}

	store, err := a.newLockoutStore()
	if err != nil {
		return fmt.Errorf("lockout store: %w", err)
	}
	a.lockoutStore = store
	guard := lockout.NewGuard(store, a.config.LockoutMaxAttempts, a.config.LockoutWindow())

	a.httpHandlers = []httpiface.HttpRouter{
		health.NewHealthHandler(a.readiness, map[string]health.Probe{
			"lockout_store": store.Ping,
		}),
		patient.NewPatientHandler(client),
		admin.NewAdminHandler(client, guard, a.config.AdminPasskey),
		upload.NewUploadHandler(client, a.config.UploadMaxBytes(), a.config.UploadAllowedTypes),
	}
	return nil
}

// newLockoutStore picks Redis when configured so replicas share passkey counters.
func (a *App) newLockoutStore() (lockout.Store, error) {
	if a.config.RedisAddr == "" {
		logger.Info("Using in-memory lockout store")
		return lockout.NewMemoryStore(), nil
	}
	store, err := lockout.NewRedisStore(lockout.RedisConfig{
		Addr:     a.config.RedisAddr,
		Password: a.config.RedisPassword,
		DB:       a.config.RedisDB,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Using Redis lockout store at %s (db=%d)", a.config.RedisAddr, a.config.RedisDB)
	return store, nil
}

// setupMiddleware installs the middleware chain in order
// CORS must be FIRST so preflight and error responses carry CORS headers
func (a *App) setupMiddleware() {
	e := a.echo
	e.Validator = validation.New()
	e.IPExtractor = echo.ExtractIPFromRealIPHeader()

	// 1. CORS middleware
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     a.config.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Accept", "Accept-Language", "Origin", "X-Requested-With", echo.HeaderXRequestID},
		ExposeHeaders:    []string{"Retry-After", fetcher.FallbackHeader, echo.HeaderXRequestID},
		AllowCredentials: true,
	}))

	// 2. Body size limit middleware
	// Protects against memory exhaustion from large payloads
	limit := fmt.Sprintf("%dM", a.config.MaxRequestSizeMB)
	e.Use(middleware.BodyLimit(limit))

	// 3. Request ID, forwarded to the backend as X-Request-Id
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	// 4. Logging
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				logger.Warn("%s %s %d %v id=%s err=%v", v.Method, v.URI, v.Status, v.Latency, v.RequestID, v.Error)
				return nil
			}
			logger.Info("%s %s %d %v id=%s", v.Method, v.URI, v.Status, v.Latency, v.RequestID)
			return nil
		},
	}))

	// 5. Panic recovery
	e.Use(middleware.Recover())

	// 6. Readiness check middleware
	// Rejects requests when readiness=false, except for health endpoints
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !a.readiness.Load() {
				p := c.Request().URL.Path
				// Allow health check endpoints and metrics even during shutdown
				if p != "/healthz" && p != "/readyz" && p != "/metrics" {
					logger.Info("readiness=false: reject new request path=%s", p)
					return c.NoContent(http.StatusServiceUnavailable)
				}
			}
			return next(c)
		}
	})

	// 7. Prometheus metrics middleware
	// HTTP metrics go to the app registry; /metrics also serves the process-wide fetch metrics
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  metrics.Namespace,
		Registerer: a.registry,
	}))
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: prometheus.Gatherers{prometheus.DefaultGatherer, a.registry},
	}))
}

// registerRoutes sets up all handler routes
func (a *App) registerRoutes() {
	for _, handler := range a.httpHandlers {
		handler.SetupRoutes(a.echo)
	}
}

// preProcess is called before server starts
// Use this hook for initialization tasks that need to happen before accepting traffic
func (a *App) preProcess() error {
	logger.Info("Preparing to start server...")

	if err := a.injectDependency(); err != nil {
		return err
	}
	a.setupMiddleware()
	a.registerRoutes()
	return nil
}

// postProcess is called after shutdown signal is received
// Use this hook for cleanup tasks before graceful shutdown begins
func (a *App) postProcess() {
	logger.Info("Shutting down gracefully...")
}

// Run starts the Echo server and handles graceful shutdown
// This implements the full lifecycle: startup -> run -> graceful shutdown
func (a *App) Run() error {
	// Create context for application lifecycle management
	_, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if err := a.preProcess(); err != nil {
		a.cancel()
		return err
	}

	// Start Echo server in goroutine
	go func() {
		addr := fmt.Sprintf(":%d", a.config.ServerPort)
		logger.Info("Starting clinic BFF on %s (backend %s)", addr, a.config.BackendBaseURL)

		// Mark readiness true just before starting to accept connections
		a.readiness.Store(true)

		// http.ErrServerClosed is expected during graceful shutdown, not an actual error
		if err := a.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	logger.Info("Server ready. Waiting for interrupt signal...")
	<-quit

	a.postProcess()
	return a.shutdown()
}

// shutdown runs the graceful shutdown sequence
func (a *App) shutdown() error {
	// Step 1: Mark as not ready (load balancers will stop routing traffic)
	a.readiness.Store(false)
	drainDuration := time.Duration(a.config.ShutdownDrainSeconds) * time.Second
	logger.Info("readiness=false: start drain window duration=%v", drainDuration)

	// Step 2: Drain period - allow load balancers to detect unhealthy state
	time.Sleep(drainDuration)

	// Step 3: Shutdown Echo server with timeout (in-flight fetches finish or fall back)
	shutdownTimeout := time.Duration(a.config.ShutdownTimeoutSeconds) * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	logger.Info("Shutting down Echo server...")
	err := a.echo.Shutdown(shutdownCtx)
	if err != nil {
		logger.Error("Shutdown error: %v", err)
	}

	// Step 4: Release the lockout store
	if a.lockoutStore != nil {
		if cerr := a.lockoutStore.Close(); cerr != nil {
			logger.Warn("Closing lockout store: %v", cerr)
		}
	}

	// Step 5: Cancel application context (signals cleanup to other goroutines)
	if a.cancel != nil {
		a.cancel()
	}

	if err != nil {
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
