// Package metrics provides Prometheus instrumentation for the AlgoLend service.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "algolend"

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// --- Credit analysis ---

	// AnalysesTotal counts account analyses by outcome and tier.
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_analyses_total",
			Help:      "Total account analyses by outcome (computed, unknown, not_found, error) and tier.",
		},
		[]string{"outcome", "tier"},
	)

	// CreditScore observes computed credit scores.
	CreditScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "credit_score",
		Help:      "Distribution of computed credit scores.",
		Buckets:   []float64{35, 45, 55, 65, 75, 85, 100},
	})

	// --- Portfolio optimization ---

	// OptimizationsTotal counts optimizations by risk tolerance.
	OptimizationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "portfolio_optimizations_total",
			Help:      "Total portfolio optimizations by risk tolerance.",
		},
		[]string{"tolerance"},
	)

	// AllocationPools observes how many pools an allocation spans.
	AllocationPools = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "portfolio_allocation_pools",
		Help:      "Number of pools per optimized allocation.",
		Buckets:   []float64{0, 1, 2, 3, 4, 5, 8},
	})

	// --- Upstream (algod / indexer) ---

	// UpstreamRequestsTotal counts algod and indexer calls by endpoint and result.
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Total Algorand API requests by upstream, endpoint, and status bucket.",
		},
		[]string{"upstream", "endpoint", "status"},
	)

	// UpstreamDuration observes upstream call latency.
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Algorand API request duration in seconds.",
			Buckets:   []float64{.025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"upstream", "endpoint"},
	)

	// --- Pool catalog ---

	// CatalogPools tracks the pools in the current catalog snapshot.
	CatalogPools = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "catalog_pools",
		Help:      "Number of pools in the current catalog snapshot.",
	})

	// CatalogRefreshesTotal counts catalog refreshes by result.
	CatalogRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_refreshes_total",
			Help:      "Total catalog refreshes by result.",
		},
		[]string{"result"},
	)

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// DBOpenConnections tracks open catalog database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBInUseConnections tracks in-use catalog database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		AnalysesTotal,
		CreditScore,
		OptimizationsTotal,
		AllocationPools,
		UpstreamRequestsTotal,
		UpstreamDuration,
		CatalogPools,
		CatalogRefreshesTotal,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// ObserveUpstream records one algod/indexer call. code 0 means the request
// never produced a response.
func ObserveUpstream(upstream, endpoint string, code int, elapsed time.Duration) {
	status := "error"
	if code > 0 {
		status = StatusBucket(code)
	}
	UpstreamRequestsTotal.WithLabelValues(upstream, endpoint, status).Inc()
	UpstreamDuration.WithLabelValues(upstream, endpoint).Observe(elapsed.Seconds())
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			StatusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// StatusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func StatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
