// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/TADebugs/ALGOLEND-AI/internal/advisor"
	"github.com/TADebugs/ALGOLEND-AI/internal/algorand"
	"github.com/TADebugs/ALGOLEND-AI/internal/catalog"
	"github.com/TADebugs/ALGOLEND-AI/internal/circuitbreaker"
	"github.com/TADebugs/ALGOLEND-AI/internal/config"
	"github.com/TADebugs/ALGOLEND-AI/internal/health"
	"github.com/TADebugs/ALGOLEND-AI/internal/logging"
	"github.com/TADebugs/ALGOLEND-AI/internal/metrics"
	"github.com/TADebugs/ALGOLEND-AI/internal/portfolio"
	"github.com/TADebugs/ALGOLEND-AI/internal/ratelimit"
	"github.com/TADebugs/ALGOLEND-AI/internal/realtime"
	"github.com/TADebugs/ALGOLEND-AI/internal/security"
	"github.com/TADebugs/ALGOLEND-AI/internal/traces"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg          *config.Config
	chain        *algorand.Client
	catalog      *catalog.Catalog
	source       catalog.Source
	advisor      *advisor.Service
	realtimeHub  *realtime.Hub
	rateLimiter  *ratelimit.Limiter
	health       *health.Registry
	db           *sql.DB // nil when using the built-in catalog
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run
	shutdownWait time.Duration

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

// WithCatalogSource overrides where lending pools come from (for testing)
func WithCatalogSource(src catalog.Source) Option {
	return func(s *Server) {
		s.source = src
	}
}

// WithShutdownDelay sets how long Shutdown waits for load balancers to
// stop routing traffic before closing listeners.
func WithShutdownDelay(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownWait = d
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:          cfg,
		logger:       logging.New(cfg.LogLevel, cfg.ResolvedLogFormat()),
		shutdownWait: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	// Pool catalog: Postgres if DATABASE_URL set, otherwise the built-in pools
	if s.source == nil {
		if cfg.DatabaseURL != "" {
			db, err := sql.Open("postgres", cfg.DatabaseURL)
			if err != nil {
				return nil, fmt.Errorf("failed to open database: %w", err)
			}

			db.SetMaxOpenConns(10)
			db.SetMaxIdleConns(2)
			db.SetConnMaxLifetime(5 * time.Minute)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err = db.PingContext(ctx)
			cancel()
			if err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("failed to connect to database: %w", err)
			}

			s.db = db
			s.source = catalog.NewPostgresSource(db)
			s.logger.Info("using postgres pool catalog", "dsn", maskDSN(cfg.DatabaseURL))
		} else {
			s.source = catalog.NewStaticSource()
			s.logger.Info("using built-in pool catalog")
		}
	}

	// Algorand node and indexer
	s.chain = algorand.New(algorand.Options{
		AlgodURL:   cfg.AlgodURL,
		IndexerURL: cfg.IndexerURL,
		AlgodToken: cfg.AlgodToken,
		RPS:        cfg.UpstreamRPS,
	})
	s.chain.Breaker().OnTransition(func(upstream string, from, to circuitbreaker.State) {
		s.logger.Warn("upstream circuit changed state",
			"upstream", upstream,
			"from", from.String(),
			"to", to.String(),
		)
	})

	s.realtimeHub = realtime.NewHub(s.logger).WithAllowedOrigins(cfg.CORSOrigins)

	s.catalog = catalog.New(s.source, s.logger).OnRefresh(func(pools []portfolio.Pool) {
		s.realtimeHub.Publish(realtime.EventCatalogRefreshed, "", map[string]interface{}{
			"source": s.source.Name(),
			"pools":  len(pools),
		})
	})

	s.advisor = advisor.NewService(s.chain, s.catalog).
		WithPublisher(s.realtimeHub).
		WithHistoryLimit(cfg.HistoryLimit)

	s.health = health.NewRegistry()
	s.health.Register("algod", health.Ping("algod", s.chain.Ping))
	s.health.RegisterOptional("indexer", health.Ping("indexer", s.chain.PingIndexer))
	if s.db != nil {
		s.health.RegisterOptional("database", health.Ping("database", s.db.PingContext))
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
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

	s.router.Use(security.HeadersMiddleware())
	s.router.Use(security.CORSMiddleware(s.cfg.CORSOrigins))
	s.router.Use(security.BodyLimitMiddleware(security.DefaultMaxBodyBytes))

	rl := ratelimit.DefaultConfig()
	rl.RequestsPerMinute = s.cfg.RateLimitRPM
	s.rateLimiter = ratelimit.New(rl)
	s.router.Use(s.rateLimiter.Middleware())

	s.router.Use(metrics.Middleware())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Keep an ID assigned upstream (load balancer, gateway)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
		}

		logger := logging.L(c.Request.Context())
		switch {
		case status >= 500:
			logger.Error("request completed", append(attrs, "client_ip", c.ClientIP())...)
		case status >= 400:
			logger.Warn("request completed", attrs...)
		case path == "/health/live" || path == "/health/ready" || path == "/metrics":
			logger.Debug("request completed", attrs...)
		default:
			logger.Info("request completed", attrs...)
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

	// WebSocket for real-time analysis events
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	api := s.router.Group("/api")
	api.GET("", s.infoHandler)
	api.GET("/realtime/stats", s.realtimeStatsHandler)
	advisor.NewHandler(s.advisor).RegisterRoutes(api)
}

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Network   string          `json:"network"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	healthy, checks := s.health.CheckAll(c.Request.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		for _, chk := range checks {
			if !chk.Healthy {
				status = "degraded"
				break
			}
		}
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   traces.Version,
		Network:   s.cfg.Network,
		Checks:    checks,
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
		"name":    "AlgoLend",
		"version": traces.Version,
		"network": s.cfg.Network,
		"catalog": gin.H{
			"source":    s.source.Name(),
			"updatedAt": s.catalog.UpdatedAt(),
		},
		"endpoints": []string{
			"POST /api/analyze-account",
			"GET /api/accounts/:address/credit",
			"POST /api/optimize-portfolio",
			"GET /api/pools",
			"GET /api/network-stats",
			"GET /ws",
		},
	})
}

func (s *Server) realtimeStatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.realtimeHub.Stats())
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"network", s.cfg.Network,
			"algod", s.cfg.AlgodURL,
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go s.realtimeHub.Run(runCtx)

	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Warm the catalog, then keep it fresh
	if err := s.catalog.Refresh(runCtx); err != nil {
		s.logger.Warn("initial catalog load failed", "error", err)
	}
	if err := s.catalog.Start(runCtx, s.cfg.CatalogSchedule); err != nil {
		s.logger.Error("failed to start catalog refresher", "error", err)
	}

	s.ready.Store(true)
	s.logger.Info("server ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Stops the hub, catalog refresher and DB stats collector
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	time.Sleep(s.shutdownWait)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}
