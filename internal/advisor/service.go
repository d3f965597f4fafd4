// Package advisor serves credit analyses and portfolio optimizations. It
// gathers account data and the pool catalog, runs the scoring and allocation
// engines, and records the outcome in metrics, traces and the event stream.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/TADebugs/ALGOLEND-AI/internal/algorand"
	"github.com/TADebugs/ALGOLEND-AI/internal/credit"
	"github.com/TADebugs/ALGOLEND-AI/internal/logging"
	"github.com/TADebugs/ALGOLEND-AI/internal/metrics"
	"github.com/TADebugs/ALGOLEND-AI/internal/pattern"
	"github.com/TADebugs/ALGOLEND-AI/internal/portfolio"
	"github.com/TADebugs/ALGOLEND-AI/internal/realtime"
	"github.com/TADebugs/ALGOLEND-AI/internal/traces"
)

// Defaults applied to optimization requests that omit a field.
const (
	DefaultInvestmentAmount = 1000.0
	DefaultTimeHorizonDays  = 30
	DefaultHistoryLimit     = 100
)

// ErrAccountNotFound is returned when the chain has no record of an account.
var ErrAccountNotFound = algorand.ErrAccountNotFound

// Chain reads account data. *algorand.Client satisfies it.
type Chain interface {
	GetAccount(ctx context.Context, address string) (*credit.AccountProfile, error)
	GetTransactionHistory(ctx context.Context, address string, limit int) []pattern.Transaction
	GetNetworkStats(ctx context.Context) (*algorand.NetworkStats, error)
}

// Catalog supplies lending pools. *catalog.Catalog satisfies it.
type Catalog interface {
	Pools(ctx context.Context) ([]portfolio.Pool, error)
}

// Publisher receives analysis events. *realtime.Hub satisfies it.
type Publisher interface {
	Publish(typ realtime.EventType, address string, data interface{})
}

// Analysis is a credit result plus request metadata.
type Analysis struct {
	ID string `json:"id"`
	*credit.Result
	CreditScore int       `json:"creditScore"`
	AnalyzedAt  time.Time `json:"analyzedAt"`
}

// OptimizeInput is a validated optimization request.
type OptimizeInput struct {
	Tolerance        portfolio.RiskTolerance
	InvestmentAmount float64
	TimeHorizonDays  int
	CurrentPortfolio map[string]float64 // pool ID to percent
}

// Optimization is the full answer to an optimization request.
type Optimization struct {
	ID              string                      `json:"id"`
	RiskTolerance   portfolio.RiskTolerance     `json:"riskTolerance"`
	TargetReturn    float64                     `json:"targetReturn"`
	Allocation      []portfolio.Allocation      `json:"optimalAllocation"`
	ExpectedReturns portfolio.ExpectedReturns   `json:"expectedReturns"`
	Rebalancing     []portfolio.RebalanceAction `json:"rebalancingRecommendations"`
	RiskAnalysis    portfolio.RiskSummary       `json:"riskAnalysis"`
	ActionPlan      []portfolio.ActionStep      `json:"actionPlan"`
	Confidence      float64                     `json:"optimizationConfidence"`
	DropPolicy      string                      `json:"dropPolicy"`
	OptimizedAt     time.Time                   `json:"optimizedAt"`
}

// Service runs analyses and optimizations. Safe for concurrent use.
type Service struct {
	chain        Chain
	catalog      Catalog
	scorer       *credit.Scorer
	optimizer    *portfolio.Optimizer
	events       Publisher
	historyLimit int
	now          func() time.Time
}

// NewService creates a service with the default scorer and optimizer.
func NewService(chain Chain, catalog Catalog) *Service {
	return &Service{
		chain:        chain,
		catalog:      catalog,
		scorer:       credit.NewScorer(),
		optimizer:    portfolio.NewOptimizer(),
		historyLimit: DefaultHistoryLimit,
		now:          time.Now,
	}
}

// WithScorer replaces the credit scorer.
func (s *Service) WithScorer(sc *credit.Scorer) *Service {
	s.scorer = sc
	return s
}

// WithOptimizer replaces the allocation optimizer.
func (s *Service) WithOptimizer(o *portfolio.Optimizer) *Service {
	s.optimizer = o
	return s
}

// WithPublisher streams results to p.
func (s *Service) WithPublisher(p Publisher) *Service {
	s.events = p
	return s
}

// WithHistoryLimit sets how many transactions an analysis fetches.
func (s *Service) WithHistoryLimit(n int) *Service {
	if n > 0 {
		s.historyLimit = n
	}
	return s
}

// WithClock overrides the clock used to stamp results.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AnalyzeAccount scores address. The account and its history are fetched
// concurrently; history is skipped when includeHistory is false.
func (s *Service) AnalyzeAccount(ctx context.Context, address string, includeHistory bool) (*Analysis, error) {
	ctx, span := traces.StartSpan(ctx, "advisor.AnalyzeAccount", traces.Account(address))
	defer span.End()
	logger := logging.Account(ctx, address)

	var (
		profile *credit.AccountProfile
		history []pattern.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profile, err = s.chain.GetAccount(gctx, address)
		return err
	})
	if includeHistory {
		g.Go(func() error {
			history = s.chain.GetTransactionHistory(gctx, address, s.historyLimit)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		traces.Fail(span, err)
		if errors.Is(err, ErrAccountNotFound) {
			metrics.AnalysesTotal.WithLabelValues("not_found", "").Inc()
			return nil, err
		}
		metrics.AnalysesTotal.WithLabelValues("error", "").Inc()
		return nil, fmt.Errorf("analyze %s: %w", logging.ShortAddress(address), err)
	}
	if profile == nil {
		traces.Fail(span, ErrAccountNotFound)
		metrics.AnalysesTotal.WithLabelValues("not_found", "").Inc()
		return nil, ErrAccountNotFound
	}

	result := s.scorer.Score(*profile, pattern.Analyze(history))

	metrics.AnalysesTotal.WithLabelValues(string(result.Outcome), string(result.Tier)).Inc()
	if result.Known() {
		metrics.CreditScore.Observe(result.Score)
	}
	span.SetAttributes(traces.Score(result.Score), traces.Tier(string(result.Tier)))

	analysis := &Analysis{
		ID:          uuid.NewString(),
		Result:      result,
		CreditScore: result.DisplayScore(),
		AnalyzedAt:  s.now().UTC(),
	}

	logger.Info("account analyzed",
		"analysis_id", analysis.ID,
		"score", result.Score,
		"tier", result.Tier,
		"transactions", result.TransactionCount,
		"confidence", result.Confidence,
	)
	s.publish(realtime.EventAccountAnalyzed, address, analysisSummary(analysis))
	return analysis, nil
}

// OptimizePortfolio allocates in.InvestmentAmount across the current
// catalog and summarizes the result.
func (s *Service) OptimizePortfolio(ctx context.Context, in OptimizeInput) (*Optimization, error) {
	ctx, span := traces.StartSpan(ctx, "advisor.OptimizePortfolio",
		traces.Tolerance(string(in.Tolerance)),
		traces.Amount(in.InvestmentAmount),
	)
	defer span.End()

	pools, err := s.catalog.Pools(ctx)
	if err != nil {
		traces.Fail(span, err)
		return nil, fmt.Errorf("load pool catalog: %w", err)
	}

	allocation := s.optimizer.Optimize(pools, in.Tolerance, in.InvestmentAmount)

	opt := &Optimization{
		ID:              uuid.NewString(),
		RiskTolerance:   in.Tolerance,
		TargetReturn:    in.Tolerance.TargetReturn(),
		Allocation:      allocation,
		ExpectedReturns: portfolio.Returns(allocation, in.TimeHorizonDays),
		Rebalancing:     portfolio.Rebalance(in.CurrentPortfolio, allocation),
		RiskAnalysis:    portfolio.AssessRisk(allocation),
		ActionPlan:      portfolio.ActionPlan(allocation),
		Confidence:      portfolio.Confidence(allocation),
		DropPolicy:      s.optimizer.DropPolicy().String(),
		OptimizedAt:     s.now().UTC(),
	}

	metrics.OptimizationsTotal.WithLabelValues(string(in.Tolerance)).Inc()
	metrics.AllocationPools.Observe(float64(len(allocation)))
	span.SetAttributes(traces.PoolCount(len(allocation)))

	logging.L(ctx).Info("portfolio optimized",
		"optimization_id", opt.ID,
		"tolerance", in.Tolerance,
		"amount", in.InvestmentAmount,
		"pools", len(allocation),
		"weighted_apy", opt.ExpectedReturns.WeightedAPY,
	)
	s.publish(realtime.EventPortfolioOptimized, "", map[string]interface{}{
		"id":            opt.ID,
		"riskTolerance": opt.RiskTolerance,
		"pools":         len(allocation),
		"weightedApy":   opt.ExpectedReturns.WeightedAPY,
		"overallRisk":   opt.RiskAnalysis.OverallRisk,
	})
	return opt, nil
}

// Pools returns the current catalog.
func (s *Service) Pools(ctx context.Context) ([]portfolio.Pool, error) {
	return s.catalog.Pools(ctx)
}

// NetworkStats returns current network conditions.
func (s *Service) NetworkStats(ctx context.Context) (*algorand.NetworkStats, error) {
	return s.chain.GetNetworkStats(ctx)
}

func (s *Service) publish(typ realtime.EventType, address string, data interface{}) {
	if s.events != nil {
		s.events.Publish(typ, address, data)
	}
}

// analysisSummary is the event payload for a finished analysis. It omits
// the breakdown and advice lists.
func analysisSummary(a *Analysis) map[string]interface{} {
	return map[string]interface{}{
		"id":          a.ID,
		"outcome":     a.Outcome,
		"score":       a.CreditScore,
		"tier":        a.Tier,
		"confidence":  a.Confidence,
		"riskFactors": len(a.RiskFactors),
	}
}
