package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TADebugs/ALGOLEND-AI/internal/algorand"
	"github.com/TADebugs/ALGOLEND-AI/internal/catalog"
	"github.com/TADebugs/ALGOLEND-AI/internal/credit"
	"github.com/TADebugs/ALGOLEND-AI/internal/pattern"
	"github.com/TADebugs/ALGOLEND-AI/internal/portfolio"
	"github.com/TADebugs/ALGOLEND-AI/internal/realtime"
)

const testAddr = "Y76M3MSY6DKBRHBL7C3NNDXGS5IIMQVQVUAB6MP4XEMMGVF2QWNPL226CA"

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeChain struct {
	account      *credit.AccountProfile
	accountErr   error
	history      []pattern.Transaction
	historyCalls atomic.Int32
	lastLimit    atomic.Int32
}

func (f *fakeChain) GetAccount(_ context.Context, address string) (*credit.AccountProfile, error) {
	if f.accountErr != nil || f.account == nil {
		return nil, f.accountErr
	}
	p := *f.account
	p.Address = address
	return &p, nil
}

func (f *fakeChain) GetTransactionHistory(_ context.Context, _ string, limit int) []pattern.Transaction {
	f.historyCalls.Add(1)
	f.lastLimit.Store(int32(limit))
	return f.history
}

func (f *fakeChain) GetNetworkStats(context.Context) (*algorand.NetworkStats, error) {
	return &algorand.NetworkStats{TPS: algorand.NominalTPS, BlockHeight: 42, NetworkHealth: algorand.HealthExcellent}, nil
}

type brokenCatalog struct{}

func (brokenCatalog) Pools(context.Context) ([]portfolio.Pool, error) {
	return nil, catalog.ErrEmptyCatalog
}

type recordedEvent struct {
	typ     realtime.EventType
	address string
	data    interface{}
}

type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) Publish(typ realtime.EventType, address string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{typ, address, data})
}

func newChain() *fakeChain {
	created := fixedNow.AddDate(-1, 0, 0)
	return &fakeChain{
		account: &credit.AccountProfile{BalanceMicroUnits: 2_000_000_000, CreatedAt: &created},
		history: []pattern.Transaction{
			{AmountMicroUnits: 100_000_000, Sender: testAddr, Receiver: "R1", ConfirmedSequence: fixedNow.Unix() - 86400*2},
			{AmountMicroUnits: 120_000_000, Sender: "R2", Receiver: testAddr, ConfirmedSequence: fixedNow.Unix() - 86400},
			{AmountMicroUnits: 90_000_000, Sender: testAddr, Receiver: "R3", ConfirmedSequence: fixedNow.Unix()},
		},
	}
}

func newService(chain Chain, cat Catalog) *Service {
	return NewService(chain, cat).
		WithScorer(credit.NewScorer().WithClock(func() time.Time { return fixedNow })).
		WithClock(func() time.Time { return fixedNow })
}

func newRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api"))
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

func TestAnalyzeAccount(t *testing.T) {
	chain := newChain()
	events := &recorder{}
	svc := newService(chain, catalog.New(catalog.NewStaticSource(), nil)).
		WithPublisher(events).
		WithHistoryLimit(25)

	got, err := svc.AnalyzeAccount(context.Background(), testAddr, true)
	require.NoError(t, err)

	assert.True(t, got.Known())
	assert.Equal(t, testAddr, got.Address)
	assert.Equal(t, 3, got.TransactionCount)
	assert.Equal(t, 365, got.AgeDays)
	assert.Equal(t, int(got.Score), got.CreditScore)
	assert.Equal(t, credit.TierFor(got.Score), got.Tier)
	assert.Equal(t, fixedNow, got.AnalyzedAt)
	assert.Len(t, got.ID, 36)
	assert.Equal(t, int32(25), chain.lastLimit.Load())

	require.Len(t, events.events, 1)
	assert.Equal(t, realtime.EventAccountAnalyzed, events.events[0].typ)
	assert.Equal(t, testAddr, events.events[0].address)
}

func TestAnalyzeAccount_WithoutHistory(t *testing.T) {
	chain := newChain()
	svc := newService(chain, nil)

	got, err := svc.AnalyzeAccount(context.Background(), testAddr, false)
	require.NoError(t, err)

	assert.Equal(t, int32(0), chain.historyCalls.Load())
	assert.Equal(t, 0, got.TransactionCount)
}

func TestAnalyzeAccount_Errors(t *testing.T) {
	svc := newService(&fakeChain{accountErr: algorand.ErrAccountNotFound}, nil)
	_, err := svc.AnalyzeAccount(context.Background(), testAddr, true)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	boom := errors.New("algod unreachable")
	svc = newService(&fakeChain{accountErr: boom}, nil)
	_, err = svc.AnalyzeAccount(context.Background(), testAddr, true)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrAccountNotFound)
}

func TestAnalyzeAccount_MissingProfile(t *testing.T) {
	svc := newService(&fakeChain{}, nil)

	got, err := svc.AnalyzeAccount(context.Background(), testAddr, true)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestOptimizePortfolio(t *testing.T) {
	events := &recorder{}
	svc := newService(newChain(), catalog.New(catalog.NewStaticSource(), nil)).WithPublisher(events)

	got, err := svc.OptimizePortfolio(context.Background(), OptimizeInput{
		Tolerance:        portfolio.Moderate,
		InvestmentAmount: 1000,
		TimeHorizonDays:  30,
		CurrentPortfolio: map[string]float64{"stable_pool": 60},
	})
	require.NoError(t, err)

	require.Len(t, got.Allocation, 3)
	assert.Equal(t, 0.12, got.TargetReturn)
	assert.Equal(t, "discard", got.DropPolicy)
	assert.Equal(t, 1000.0, got.ExpectedReturns.TotalInvestment)
	assert.Equal(t, portfolio.RiskLow, got.RiskAnalysis.OverallRisk)
	assert.Len(t, got.ActionPlan, 4)
	assert.Greater(t, got.Confidence, 0.0)

	require.Len(t, got.Rebalancing, 3)
	assert.Equal(t, portfolio.RebalanceDecrease, got.Rebalancing[0].Action)
	assert.Equal(t, portfolio.RebalanceAdd, got.Rebalancing[1].Action)

	require.Len(t, events.events, 1)
	assert.Equal(t, realtime.EventPortfolioOptimized, events.events[0].typ)
}

func TestOptimizePortfolio_CatalogUnavailable(t *testing.T) {
	svc := newService(newChain(), brokenCatalog{})
	_, err := svc.OptimizePortfolio(context.Background(), OptimizeInput{Tolerance: portfolio.Moderate, InvestmentAmount: 1})
	assert.ErrorIs(t, err, catalog.ErrEmptyCatalog)
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func TestHandler_AnalyzeAccount(t *testing.T) {
	r := newRouter(newService(newChain(), nil))

	w := doJSON(t, r, http.MethodPost, "/api/analyze-account", map[string]any{
		"address": "  " + strings.ToLower(testAddr) + " ",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, testAddr, body["address"])
	assert.Equal(t, "computed", body["outcome"])
	assert.Contains(t, body, "creditScore")
	assert.Contains(t, body, "breakdown")
	assert.Contains(t, body, "recommendations")
	assert.Equal(t, 3.0, body["totalTransactions"])
}

func TestHandler_AnalyzeAccount_HistoryOptOut(t *testing.T) {
	chain := newChain()
	r := newRouter(newService(chain, nil))

	w := doJSON(t, r, http.MethodPost, "/api/analyze-account", map[string]any{
		"address":                   testAddr,
		"includeTransactionHistory": false,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(0), chain.historyCalls.Load())
}

func TestHandler_AnalyzeAccount_Errors(t *testing.T) {
	tests := []struct {
		name  string
		chain *fakeChain
		body  any
		code  int
		error string
	}{
		{"missing address", newChain(), map[string]any{}, http.StatusBadRequest, "invalid_address"},
		{"bad checksum", newChain(), map[string]any{"address": strings.Repeat("A", 58)}, http.StatusBadRequest, "invalid_address"},
		{"not json", newChain(), "nope", http.StatusBadRequest, "invalid_request"},
		{"unknown account", &fakeChain{accountErr: algorand.ErrAccountNotFound}, map[string]any{"address": testAddr}, http.StatusNotFound, "account_not_found"},
		{"upstream down", &fakeChain{accountErr: errors.New("boom")}, map[string]any{"address": testAddr}, http.StatusBadGateway, "upstream_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(newService(tt.chain, nil))
			w := doJSON(t, r, http.MethodPost, "/api/analyze-account", tt.body)
			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, tt.error, decode(t, w)["error"])
		})
	}
}

func TestHandler_GetAccountCredit(t *testing.T) {
	chain := newChain()
	r := newRouter(newService(chain, nil))

	w := doJSON(t, r, http.MethodGet, "/api/accounts/"+testAddr+"/credit?history=false", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(0), chain.historyCalls.Load())

	w = doJSON(t, r, http.MethodGet, "/api/accounts/not-an-address/credit", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_address", decode(t, w)["error"])
}

func TestHandler_OptimizePortfolio_Defaults(t *testing.T) {
	r := newRouter(newService(newChain(), catalog.New(catalog.NewStaticSource(), nil)))

	w := doJSON(t, r, http.MethodPost, "/api/optimize-portfolio", map[string]any{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "moderate", body["riskTolerance"])
	alloc, ok := body["optimalAllocation"].([]any)
	require.True(t, ok)
	assert.Len(t, alloc, 3)

	returns := body["expectedReturns"].(map[string]any)
	assert.Equal(t, DefaultInvestmentAmount, returns["totalInvestment"])
	assert.Contains(t, body, "actionPlan")
	assert.Contains(t, body, "riskAnalysis")
	assert.Contains(t, body, "optimizationConfidence")
}

func TestHandler_OptimizePortfolio_Validation(t *testing.T) {
	r := newRouter(newService(newChain(), catalog.New(catalog.NewStaticSource(), nil)))

	tests := []struct {
		name  string
		body  map[string]any
		error string
	}{
		{"unknown tolerance", map[string]any{"riskTolerance": "reckless"}, "invalid_risk_tolerance"},
		{"zero amount", map[string]any{"investmentAmount": 0}, "validation_failed"},
		{"negative amount", map[string]any{"investmentAmount": -5}, "validation_failed"},
		{"zero horizon", map[string]any{"timeHorizon": 0}, "validation_failed"},
		{"horizon too long", map[string]any{"timeHorizon": MaxTimeHorizonDays + 1}, "validation_failed"},
		{"bad current percent", map[string]any{"currentPortfolio": map[string]any{"stable_pool": 150}}, "validation_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/api/optimize-portfolio", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.error, decode(t, w)["error"])
		})
	}
}

func TestHandler_CatalogUnavailable(t *testing.T) {
	r := newRouter(newService(newChain(), brokenCatalog{}))

	w := doJSON(t, r, http.MethodPost, "/api/optimize-portfolio", map[string]any{"riskTolerance": "aggressive"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/pools", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "catalog_unavailable", decode(t, w)["error"])
}

func TestHandler_ListPools(t *testing.T) {
	r := newRouter(newService(newChain(), catalog.New(catalog.NewStaticSource(), nil)))

	w := doJSON(t, r, http.MethodGet, "/api/pools", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, 5.0, body["count"])
}

func TestHandler_GetNetworkStats(t *testing.T) {
	r := newRouter(newService(newChain(), nil))

	w := doJSON(t, r, http.MethodGet, "/api/network-stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, 42.0, body["blockHeight"])
	assert.Equal(t, algorand.HealthExcellent, body["networkHealth"])
}
