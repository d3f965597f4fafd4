package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TADebugs/ALGOLEND-AI/internal/catalog"
	"github.com/TADebugs/ALGOLEND-AI/internal/config"
	"github.com/TADebugs/ALGOLEND-AI/internal/portfolio"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testAddr = "Y76M3MSY6DKBRHBL7C3NNDXGS5IIMQVQVUAB6MP4XEMMGVF2QWNPL226CA"

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// fakeNode serves algod at / and the indexer under /idx.
func fakeNode(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"last-round": 41_000_000, "time-since-last-round": int64(2 * time.Second)})
	})
	mux.HandleFunc("GET /v2/transactions/params", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"min-fee": 1000, "fee": 0})
	})
	mux.HandleFunc("GET /v2/accounts/{addr}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("addr") != testAddr {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{"address": testAddr, "amount": 250_000_000})
	})
	mux.HandleFunc("GET /idx/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"round": 41_000_000})
	})
	mux.HandleFunc("GET /idx/v2/accounts/{addr}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"account": map[string]any{"created-at-round": 100}})
	})
	mux.HandleFunc("GET /idx/v2/blocks/{round}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"round": 100, "timestamp": time.Now().Add(-400 * 24 * time.Hour).Unix()})
	})
	mux.HandleFunc("GET /idx/v2/accounts/{addr}/transactions", func(w http.ResponseWriter, _ *http.Request) {
		now := time.Now().Unix()
		txns := make([]map[string]any, 0, 20)
		for i := 0; i < 20; i++ {
			txns = append(txns, map[string]any{
				"id":         "TX" + string(rune('A'+i)),
				"sender":     testAddr,
				"tx-type":    "pay",
				"round-time": now - int64(i)*86400,
				"payment-transaction": map[string]any{
					"receiver": "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAY5HFKQ",
					"amount":   5_000_000,
				},
			})
		}
		writeJSON(w, map[string]any{"transactions": txns})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// testConfig returns a minimal config for testing
func testConfig(nodeURL string) *config.Config {
	return &config.Config{
		Port:            "0",
		Env:             "development",
		LogLevel:        "error",
		Network:         config.NetworkTestnet,
		AlgodURL:        nodeURL,
		IndexerURL:      nodeURL + "/idx",
		HistoryLimit:    100,
		UpstreamRPS:     100,
		RateLimitRPM:    1000,
		CatalogSchedule: config.DefaultCatalogSchedule,
	}
}

// newTestServer creates a server backed by a fake node and the built-in catalog
func newTestServer(t *testing.T) *Server {
	t.Helper()
	node := fakeNode(t)
	s, err := New(testConfig(node.URL),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithCatalogSource(catalog.NewStaticSource()),
		WithShutdownDelay(0),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.rateLimiter.Stop() })
	return s
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, config.NetworkTestnet, resp.Network)
	require.Len(t, resp.Checks, 2)
	for _, chk := range resp.Checks {
		assert.True(t, chk.Healthy, chk.Name)
	}
}

func TestHealthEndpoint_AlgodDown(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer down.Close()

	s, err := New(testConfig(down.URL),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithCatalogSource(catalog.NewStaticSource()),
	)
	require.NoError(t, err)
	defer s.rateLimiter.Stop()

	w := doRequest(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"unhealthy"`)
}

func TestLivenessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alive")
}

func TestReadinessEndpoint(t *testing.T) {
	s := newTestServer(t)

	// Not ready before Run
	w := doRequest(s, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	s.ready.Store(true)
	w = doRequest(s, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func TestCoreRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	routes := map[string]bool{}
	for _, r := range s.Router().Routes() {
		routes[r.Method+" "+r.Path] = true
	}

	for _, want := range []string{
		"GET /health",
		"GET /metrics",
		"GET /ws",
		"GET /api",
		"POST /api/analyze-account",
		"GET /api/accounts/:address/credit",
		"POST /api/optimize-portfolio",
		"GET /api/pools",
		"GET /api/network-stats",
	} {
		assert.True(t, routes[want], "missing route %s", want)
	}
}

func TestInfoEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"AlgoLend"`)
	assert.Contains(t, w.Body.String(), `"static"`)
}

func TestRequestIDPropagated(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))

	w = doRequest(s, http.MethodGet, "/health/live", "")
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/health/live", "")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestNotFoundRoute(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/nonexistent", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ---------------------------------------------------------------------------
// End to end
// ---------------------------------------------------------------------------

func TestAnalyzeAccount_EndToEnd(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodPost, "/api/analyze-account", `{"address":"`+testAddr+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "computed", resp["outcome"])
	assert.Equal(t, float64(20), resp["totalTransactions"])
	assert.NotEmpty(t, resp["tier"])
	assert.Greater(t, resp["accountAgeDays"], float64(365))
}

func TestAnalyzeAccount_NotFound(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/accounts/AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAY5HFKQ/credit", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "account_not_found")
}

func TestOptimizePortfolio_EndToEnd(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodPost, "/api/optimize-portfolio", `{"riskTolerance":"moderate","investmentAmount":5000}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Allocation []portfolio.Allocation `json:"optimalAllocation"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Allocation)

	require.Len(t, resp.Allocation, 3)
	assert.Equal(t, "stable_pool", resp.Allocation[0].PoolID)
	assert.Equal(t, 23.3, resp.Allocation[0].AllocationPercent)
	assert.Equal(t, 51.2, resp.Allocation[1].AllocationPercent)
	assert.Equal(t, 25.6, resp.Allocation[2].AllocationPercent)
	assert.Equal(t, 1162.79, resp.Allocation[0].AllocationAmount)
}

func TestNetworkStats_EndToEnd(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/network-stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"networkHealth":"Excellent"`)
	assert.Contains(t, w.Body.String(), `"blockHeight":41000000`)
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestRunAndShutdown(t *testing.T) {
	s := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, s.ready.Load, 5*time.Second, 10*time.Millisecond)
	assert.False(t, s.catalog.UpdatedAt().IsZero(), "catalog warmed on start")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.False(t, s.ready.Load())
}

func TestMaskDSN(t *testing.T) {
	masked := maskDSN("postgres://algolend:hunter2@db:5432/algolend")
	assert.NotContains(t, masked, "hunter2")
	assert.Contains(t, masked, "algolend:")
	assert.Equal(t, "postgres://db/algolend", maskDSN("postgres://db/algolend"))
}
