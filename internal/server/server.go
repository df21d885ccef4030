// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ashokbharathi-s/gkehackathon/internal/alert"
	"github.com/ashokbharathi-s/gkehackathon/internal/bank"
	"github.com/ashokbharathi-s/gkehackathon/internal/config"
	"github.com/ashokbharathi-s/gkehackathon/internal/health"
	"github.com/ashokbharathi-s/gkehackathon/internal/logging"
	"github.com/ashokbharathi-s/gkehackathon/internal/metrics"
	"github.com/ashokbharathi-s/gkehackathon/internal/monitor"
	"github.com/ashokbharathi-s/gkehackathon/internal/realtime"
	"github.com/ashokbharathi-s/gkehackathon/internal/risk"
	"github.com/ashokbharathi-s/gkehackathon/internal/roster"
	"github.com/ashokbharathi-s/gkehackathon/internal/token"
	"github.com/ashokbharathi-s/gkehackathon/internal/traces"
)

// Version is stamped at build time via -ldflags.
var Version = "0.1.0"

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg          *config.Config
	sampler      monitor.Sampler
	snapshots    monitor.Snapshotter
	evaluator    *risk.Evaluator
	notifier     *alert.Notifier
	monitor      *monitor.Monitor
	realtimeHub  *realtime.Hub
	checks       *health.Registry
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	startedAt    time.Time
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithSampler sets a custom account sampler (for testing)
func WithSampler(sampler monitor.Sampler) Option {
	return func(s *Server) {
		s.sampler = sampler
	}
}

// WithSnapshotter sets a custom bank data source (for testing)
func WithSnapshotter(snapshots monitor.Snapshotter) Option {
	return func(s *Server) {
		s.snapshots = snapshots
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		logger:    logging.New(cfg.LogLevel, "json"),
		startedAt: time.Now().UTC(),
	}

	// Apply options first (may set sampler/snapshots/logger)
	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	// JWT issuer for the bank APIs. A missing key is not fatal: the demo
	// deployment runs the monitor without a mounted key and the bank
	// services reject the calls, which the rule engine treats as missing
	// data rather than an outage.
	var issuer *token.Issuer
	if cfg.JWTKeyPath != "" {
		iss, err := token.NewIssuerFromFile(cfg.JWTKeyPath)
		if err != nil {
			if errors.Is(err, token.ErrNoKey) {
				s.logger.Warn("JWT key unavailable, calling bank APIs unauthenticated",
					"path", cfg.JWTKeyPath,
				)
			} else {
				return nil, fmt.Errorf("failed to load JWT key: %w", err)
			}
		} else {
			issuer = iss
			s.logger.Info("JWT issuer loaded", "path", cfg.JWTKeyPath)
		}
	}

	if s.sampler == nil {
		s.sampler = roster.NewSampler(cfg.UserserviceAPIAddr, cfg.LocalRoutingNum, cfg.HTTPTimeout, s.logger)
	}
	if s.snapshots == nil {
		s.snapshots = bank.NewClient(cfg.BalanceAPIAddr, cfg.HistoryAPIAddr, issuer, cfg.HTTPTimeout, s.logger)
	}

	// Risk evaluation: Gemini when credentials are present, rules otherwise
	var analyzer risk.Analyzer
	if cfg.AIEnabled() {
		ga, err := risk.NewGeminiAnalyzer(ctx, cfg.GeminiModel)
		if err != nil {
			s.logger.Warn("failed to initialize Gemini, using rule-based analysis", "error", err)
		} else {
			analyzer = ga
			s.logger.Info("AI analysis enabled", "model", cfg.GeminiModel)
		}
	} else {
		s.logger.Info("no Gemini credentials, using rule-based analysis")
	}

	rules := risk.NewRules(risk.Thresholds{
		LargeTx:     cfg.LargeTxThreshold,
		Velocity:    cfg.VelocityThreshold,
		Frequency:   cfg.FrequencyThreshold,
		HighBalance: cfg.HighBalanceThreshold,
	})
	s.evaluator = risk.NewEvaluator(analyzer, rules, cfg.AITimeout, s.logger)

	cutoff, err := risk.ParseLevel(cfg.AlertLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid ALERT_LEVEL: %w", err)
	}
	s.notifier = alert.NewNotifier(cutoff, os.Stdout, s.logger)

	s.monitor = monitor.New(s.sampler, s.snapshots, s.evaluator, s.notifier, monitor.Config{
		Interval:     cfg.MonitoringInterval,
		AccountDelay: cfg.AccountDelay,
		CycleBackoff: cfg.CycleBackoff,
	}, s.logger)

	// Create realtime hub for WebSocket streaming and fan alerts and cycle
	// summaries into it
	s.realtimeHub = realtime.NewHub(s.logger)
	s.notifier.OnAlert(func(a *alert.Alert) {
		s.realtimeHub.BroadcastAlert(a.AccountID, a.Verdict.Level.String(), a)
	})
	s.monitor.OnCycle(func(summary monitor.CycleSummary) {
		s.realtimeHub.BroadcastCycle(summary)
	})

	// Downstream reachability checks for /health
	s.checks = health.NewRegistry()
	s.checks.Register("balancereader", health.HTTPChecker("balancereader", cfg.BalanceAPIAddr, cfg.HTTPTimeout))
	s.checks.Register("transactionhistory", health.HTTPChecker("transactionhistory", cfg.HistoryAPIAddr, cfg.HTTPTimeout))
	s.checks.Register("userservice", health.HTTPChecker("userservice", cfg.UserserviceAPIAddr, cfg.HTTPTimeout))

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Logger into request context
	s.router.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(logging.WithLogger(c.Request.Context(), s.logger))
		c.Next()
	})

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// WebSocket for real-time alert streaming
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	// API endpoints
	s.router.GET("/api", s.infoHandler)
	s.router.GET("/api/status", s.statusHandler)
	s.router.GET("/api/alerts", s.alertsHandler)
	s.router.GET("/api/accounts/:accountId/analysis", s.analysisHandler)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.checks.CheckAll(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		// The monitor keeps running with degraded data, so downstream
		// outages report as degraded rather than failing the pod
		status = "degraded"
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   Version,
		Checks:    statuses,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "fraud-monitor",
		"description": "Periodic fraud monitoring for Bank of Anthos accounts",
		"version":     Version,
		"mode":        s.evaluator.Mode(),
	})
}

// statusHandler reports loop state, alert totals, and stream stats
func (s *Server) statusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "running",
		"uptime":     time.Since(s.startedAt).Round(time.Second).String(),
		"alertsSent": s.notifier.Sent(),
		"alertLevel": s.cfg.AlertLevel,
		"monitoring": s.monitor.Stats(),
		"stream":     s.realtimeHub.Stats(),
	})
}

// alertsHandler returns recent alerts, newest first
func (s *Server) alertsHandler(c *gin.Context) {
	limit := 50
	if q := c.Query("limit"); q != "" {
		if _, err := fmt.Sscanf(q, "%d", &limit); err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_limit",
				"message": "limit must be a positive integer",
			})
			return
		}
	}

	alerts := s.notifier.Recent(limit)
	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"count":  len(alerts),
		"total":  s.notifier.Sent(),
	})
}

// analysisHandler runs an on-demand risk evaluation for one account.
// The account must be on the current roster; arbitrary IDs are rejected so
// the endpoint cannot be used to probe the bank APIs.
func (s *Server) analysisHandler(c *gin.Context) {
	accountID := c.Param("accountId")
	ctx := c.Request.Context()

	var account *roster.Account
	for _, a := range s.sampler.Sample(ctx) {
		if a.ID == accountID {
			account = &a
			break
		}
	}
	if account == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "unknown_account",
			"message": "Account is not on the monitored roster",
		})
		return
	}

	ctx, span := traces.StartSpan(ctx, "server.analysis", traces.AccountID(account.ID))
	defer span.End()

	snap := s.snapshots.Snapshot(ctx, *account)
	verdict := s.evaluator.Evaluate(ctx, *account, snap)

	c.JSON(http.StatusOK, gin.H{
		"account":      account,
		"verdict":      verdict,
		"transactions": len(snap.Transactions),
		"hasBalance":   snap.HasBalance(),
		"evaluatedAt":  time.Now().UTC().Format(time.RFC3339),
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server and the monitoring loop with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	// Tracing (no-op when no OTLP endpoint is configured)
	shutdownTraces, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
		shutdownTraces = func(context.Context) error { return nil }
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"version", Version,
			"mode", s.evaluator.Mode(),
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Start the monitoring loop
	go s.monitor.Start(runCtx)

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	shutdownErr := s.Shutdown()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := shutdownTraces(shutdownCtx); err != nil {
		s.logger.Warn("trace exporter shutdown error", "error", err)
	}

	return shutdownErr
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, monitor loop)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	s.logger.Info("server stopped", "alertsSent", s.notifier.Sent())
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}
