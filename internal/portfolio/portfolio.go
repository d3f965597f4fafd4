// Package portfolio allocates capital across lending pools and summarizes
// the resulting portfolio: expected returns, rebalancing actions, risk and
// confidence.
//
// Every function here is a pure computation over its arguments. Callers
// fetch the pool catalog and pass it in.
package portfolio

import (
	"fmt"
	"strings"
)

// Pool is a lending pool offered by the catalog.
type Pool struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	APY               float64 `json:"apy"`       // percent
	RiskScore         float64 `json:"riskScore"` // 0-100
	TotalValueLocked  float64 `json:"tvl"`
	MinDeposit        float64 `json:"minDeposit"`
	MaxDeposit        float64 `json:"maxDeposit"`
	TermDays          int     `json:"termDays"`
	LiquidityFraction float64 `json:"liquidity"`
}

// RiskAdjustedReturn is the pool's APY fraction penalized by half its risk
// fraction.
func (p Pool) RiskAdjustedReturn() float64 {
	return p.APY/100 - (p.RiskScore/100)*0.5
}

// Allocation is one entry of an optimized portfolio.
type Allocation struct {
	PoolID            string  `json:"poolId"`
	PoolName          string  `json:"poolName"`
	AllocationPercent float64 `json:"allocationPercent"`
	AllocationAmount  float64 `json:"allocationAmount"`
	ExpectedAPY       float64 `json:"expectedApy"`
	RiskScore         float64 `json:"riskScore"`
	TermDays          int     `json:"termDays"`
}

// RiskTolerance selects the maximum pool risk an allocation accepts.
type RiskTolerance string

const (
	Conservative RiskTolerance = "conservative"
	Moderate     RiskTolerance = "moderate"
	Aggressive   RiskTolerance = "aggressive"
)

// ParseRiskTolerance parses a tolerance name. An empty string selects
// Moderate.
func ParseRiskTolerance(s string) (RiskTolerance, error) {
	switch t := RiskTolerance(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return Moderate, nil
	case Conservative, Moderate, Aggressive:
		return t, nil
	default:
		return "", fmt.Errorf("unknown risk tolerance %q", s)
	}
}

// MaxRisk returns the risk ceiling as a fraction. Unrecognized values are
// treated as Moderate.
func (t RiskTolerance) MaxRisk() float64 {
	switch t {
	case Conservative:
		return 0.1
	case Aggressive:
		return 0.4
	default:
		return 0.2
	}
}

// Ceiling returns the highest pool RiskScore eligible under t.
func (t RiskTolerance) Ceiling() float64 {
	return t.MaxRisk() * 100
}

// TargetReturn is the annual return a tolerance aims for. It is reported
// alongside results and does not influence allocation.
func (t RiskTolerance) TargetReturn() float64 {
	switch t {
	case Conservative:
		return 0.08
	case Aggressive:
		return 0.18
	default:
		return 0.12
	}
}
