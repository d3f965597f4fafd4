package portfolio

import (
	"math"
	"sort"
	"strconv"

	"github.com/TADebugs/ALGOLEND-AI/internal/stats"
)

// ExpectedReturns projects an allocation's yield over a holding period.
type ExpectedReturns struct {
	TotalInvestment     float64 `json:"totalInvestment"`
	WeightedAPY         float64 `json:"weightedApy"`
	ExpectedProfit      float64 `json:"expectedProfit"`
	ExpectedTotal       float64 `json:"expectedTotal"`
	DailyReturn         float64 `json:"dailyReturn"`
	PeriodReturnPercent float64 `json:"periodReturnPercent"`
}

// Returns projects simple (non-compounding) returns for horizonDays.
func Returns(allocation []Allocation, horizonDays int) ExpectedReturns {
	var invested, apy float64
	for _, a := range allocation {
		invested += a.AllocationAmount
		apy += a.AllocationPercent / 100 * a.ExpectedAPY
	}

	daily := apy / 365
	period := daily * float64(horizonDays)
	profit := invested * period / 100

	return ExpectedReturns{
		TotalInvestment:     stats.Round(invested, 2),
		WeightedAPY:         stats.Round(apy, 2),
		ExpectedProfit:      stats.Round(profit, 2),
		ExpectedTotal:       stats.Round(invested+profit, 2),
		DailyReturn:         stats.Round(daily, 4),
		PeriodReturnPercent: stats.Round(period, 2),
	}
}

// RebalanceKind is the direction of a rebalancing action.
type RebalanceKind string

const (
	RebalanceIncrease RebalanceKind = "increase"
	RebalanceDecrease RebalanceKind = "decrease"
	RebalanceAdd      RebalanceKind = "add"
)

// RebalanceThreshold is the percentage-point gap below which an existing
// position is left alone.
const RebalanceThreshold = 5.0

// RebalanceAction moves a current position toward its target.
type RebalanceAction struct {
	Action           RebalanceKind `json:"action"`
	PoolID           string        `json:"poolId"`
	PoolName         string        `json:"poolName"`
	CurrentPercent   *float64      `json:"currentPercent,omitempty"`
	TargetPercent    float64       `json:"targetPercent"`
	Difference       float64       `json:"difference,omitempty"`
	AllocationAmount float64       `json:"allocationAmount,omitempty"`
}

// Rebalance diffs current holdings (pool ID to percent) against target. It
// emits one action per target entry that is new or off by more than
// RebalanceThreshold, in target order. Holdings absent from target are not
// reported.
func Rebalance(current map[string]float64, target []Allocation) []RebalanceAction {
	actions := []RebalanceAction{}
	for _, t := range target {
		cur, held := current[t.PoolID]
		if !held {
			actions = append(actions, RebalanceAction{
				Action:           RebalanceAdd,
				PoolID:           t.PoolID,
				PoolName:         t.PoolName,
				TargetPercent:    t.AllocationPercent,
				AllocationAmount: t.AllocationAmount,
			})
			continue
		}

		diff := t.AllocationPercent - cur
		if math.Abs(diff) <= RebalanceThreshold {
			continue
		}
		kind := RebalanceIncrease
		if diff < 0 {
			kind = RebalanceDecrease
		}
		c := cur
		actions = append(actions, RebalanceAction{
			Action:         kind,
			PoolID:         t.PoolID,
			PoolName:       t.PoolName,
			CurrentPercent: &c,
			TargetPercent:  t.AllocationPercent,
			Difference:     stats.Round(math.Abs(diff), 1),
		})
	}
	return actions
}

// Risk levels reported by AssessRisk.
const (
	RiskLow      = "Low"
	RiskMedium   = "Medium"
	RiskHigh     = "High"
	RiskVeryHigh = "Very High"
	RiskUnknown  = "Unknown"
)

// RiskSummary describes the aggregate risk of an allocation.
type RiskSummary struct {
	OverallRisk          string  `json:"overallRisk"`
	RiskScore            float64 `json:"riskScore"`
	DiversificationScore int     `json:"diversificationScore"`
	ConcentrationRisk    string  `json:"concentrationRisk"`
	NumberOfPools        int     `json:"numberOfPools"`
}

// AssessRisk weights each pool's risk by its share of the allocation.
func AssessRisk(allocation []Allocation) RiskSummary {
	if len(allocation) == 0 {
		return RiskSummary{OverallRisk: RiskUnknown, ConcentrationRisk: RiskUnknown}
	}

	var total, weighted float64
	for _, a := range allocation {
		total += a.AllocationPercent
		weighted += a.AllocationPercent * a.RiskScore
	}
	risk := 0.0
	if total > 0 {
		risk = weighted / total
	}

	var level string
	switch {
	case risk <= 20:
		level = RiskLow
	case risk <= 40:
		level = RiskMedium
	case risk <= 60:
		level = RiskHigh
	default:
		level = RiskVeryHigh
	}

	concentration := RiskHigh
	switch largest := maxPercent(allocation); {
	case largest <= 40:
		concentration = RiskLow
	case largest <= 70:
		concentration = RiskMedium
	}

	return RiskSummary{
		OverallRisk:          level,
		RiskScore:            stats.Round(risk, 1),
		DiversificationScore: min(100, len(allocation)*20),
		ConcentrationRisk:    concentration,
		NumberOfPools:        len(allocation),
	}
}

// Confidence rates an allocation in [0,1] as the mean of its
// diversification, balance and risk-spread factors.
func Confidence(allocation []Allocation) float64 {
	if len(allocation) == 0 {
		return 0
	}

	diversification := math.Min(1, float64(len(allocation))/5)

	balance := 1.0
	if largest := maxPercent(allocation); largest > 20 {
		balance = 1 - (largest-20)/80
	}

	risks := make([]float64, len(allocation))
	for i, a := range allocation {
		risks[i] = a.RiskScore
	}
	spread := 1 - math.Min(1, stats.Variance(risks)/1000)

	return stats.Round((diversification+balance+spread)/3, 2)
}

// Action plan priorities.
const (
	PriorityHigh   = "High"
	PriorityMedium = "Medium"
)

// ActionStep is one step of the plan for executing an allocation.
type ActionStep struct {
	Step        int     `json:"step"`
	Action      string  `json:"action"`
	Description string  `json:"description,omitempty"`
	PoolID      string  `json:"poolId,omitempty"`
	Amount      float64 `json:"amount,omitempty"`
	ExpectedAPY float64 `json:"expectedApy,omitempty"`
	TermDays    int     `json:"termDays,omitempty"`
	Priority    string  `json:"priority"`
}

// ActionPlan orders deposits by APY, highest first, and finishes with a
// monitoring step. The first two deposits are high priority.
func ActionPlan(allocation []Allocation) []ActionStep {
	sorted := make([]Allocation, len(allocation))
	copy(sorted, allocation)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ExpectedAPY > sorted[j].ExpectedAPY
	})

	steps := make([]ActionStep, 0, len(sorted)+1)
	for i, a := range sorted {
		priority := PriorityMedium
		if i < 2 {
			priority = PriorityHigh
		}
		steps = append(steps, ActionStep{
			Step:        i + 1,
			Action:      "Invest " + strconv.FormatFloat(a.AllocationAmount, 'f', -1, 64) + " ALGO in " + a.PoolName,
			PoolID:      a.PoolID,
			Amount:      a.AllocationAmount,
			ExpectedAPY: a.ExpectedAPY,
			TermDays:    a.TermDays,
			Priority:    priority,
		})
	}

	return append(steps, ActionStep{
		Step:        len(steps) + 1,
		Action:      "Set up automated monitoring and rebalancing",
		Description: "Monitor portfolio performance and rebalance monthly",
		Priority:    PriorityMedium,
	})
}

func maxPercent(allocation []Allocation) float64 {
	ps := make([]float64, len(allocation))
	for i, a := range allocation {
		ps[i] = a.AllocationPercent
	}
	return stats.Max(ps)
}
