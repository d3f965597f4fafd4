package credit

import (
	"math"
	"strings"
	"time"

	"github.com/TADebugs/ALGOLEND-AI/internal/pattern"
	"github.com/TADebugs/ALGOLEND-AI/internal/stats"
)

// Risk factor labels, in the order they are evaluated.
const (
	FactorLowBalance     = "very low balance"
	FactorNewAccount     = "new account"
	FactorLowActivity    = "very low activity"
	FactorHighVolatility = "high amount volatility"
	FactorThinNetwork    = "limited network connections"
	FactorLowCredit      = "low overall creditworthiness"
)

// neutralScore is used when a signal has too little data to judge.
const neutralScore = 50

// Scorer computes credit results. It holds only configuration and is safe
// for concurrent use.
type Scorer struct {
	weights Weights
	now     func() time.Time
}

// NewScorer creates a scorer with default weights and the wall clock.
func NewScorer() *Scorer {
	return &Scorer{weights: DefaultWeights, now: time.Now}
}

// WithWeights overrides the default weights.
func (s *Scorer) WithWeights(w Weights) *Scorer {
	s.weights = w
	return s
}

// WithClock overrides the clock used to compute account age.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	s.now = now
	return s
}

// Weights returns the weights in use.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score rates account given its transaction statistics. A missing address
// yields the Unknown result; every other input produces a computed result.
func (s *Scorer) Score(account AccountProfile, st pattern.Statistics) *Result {
	if strings.TrimSpace(account.Address) == "" {
		return Unknown(account.Address)
	}

	balance := float64(account.BalanceMicroUnits) / pattern.MicroUnitsPerUnit
	ageDays := s.ageDays(account.CreatedAt)
	counterparties := st.CounterpartyCount()

	b := Breakdown{
		Balance:     BalanceScore(balance),
		Age:         AgeScore(ageDays),
		Frequency:   FrequencyScore(st.FrequencyPerDay),
		Consistency: ConsistencyScore(st.Amounts),
		Amount:      AmountScore(st.Amounts),
		Network:     NetworkScore(counterparties),
		Reputation:  ReputationScore(),
	}

	score := math.Max(0, math.Min(100, s.weights.Apply(b)))
	factors := RiskFactors(balance, ageDays, st, score)

	return &Result{
		Outcome:          OutcomeComputed,
		Address:          account.Address,
		Score:            score,
		Tier:             TierFor(score),
		Breakdown:        b,
		RiskFactors:      factors,
		Recommendations:  Recommendations(score, factors, balance),
		Confidence:       Confidence(st.Count, ageDays, counterparties),
		AgeDays:          ageDays,
		TransactionCount: st.Count,
		BalanceMajor:     stats.Round(balance, 2),
		FrequencyPerDay:  st.FrequencyPerDay,
		Volatility:       st.Volatility,
	}
}

func (s *Scorer) ageDays(createdAt *time.Time) int {
	if createdAt == nil || createdAt.IsZero() {
		return 0
	}
	days := int(s.now().Sub(*createdAt).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// BalanceScore bands a balance in major units.
func BalanceScore(balance float64) float64 {
	switch {
	case balance >= 10000:
		return 100
	case balance >= 5000:
		return 90
	case balance >= 1000:
		return 80
	case balance >= 500:
		return 70
	case balance >= 100:
		return 60
	case balance >= 50:
		return 50
	case balance >= 10:
		return 40
	default:
		return 20
	}
}

// AgeScore bands account age in days.
func AgeScore(days int) float64 {
	switch {
	case days >= 365:
		return 100
	case days >= 180:
		return 90
	case days >= 90:
		return 80
	case days >= 30:
		return 70
	case days >= 7:
		return 60
	case days >= 1:
		return 40
	default:
		return 20
	}
}

// FrequencyScore bands transactions per day.
func FrequencyScore(perDay float64) float64 {
	switch {
	case perDay >= 10:
		return 100
	case perDay >= 5:
		return 90
	case perDay >= 2:
		return 80
	case perDay >= 1:
		return 70
	case perDay >= 0.5:
		return 60
	case perDay >= 0.1:
		return 50
	default:
		return 30
	}
}

// ConsistencyScore rewards a low coefficient of variation. Too few amounts,
// or a zero mean, is neutral rather than penalized.
func ConsistencyScore(amounts []float64) float64 {
	cv, ok := stats.CoefficientOfVariation(amounts)
	if !ok {
		return neutralScore
	}
	switch {
	case cv <= 0.1:
		return 100
	case cv <= 0.2:
		return 90
	case cv <= 0.5:
		return 80
	case cv <= 1.0:
		return 70
	case cv <= 2.0:
		return 60
	default:
		return 40
	}
}

// AmountScore bands the mean transfer size.
func AmountScore(amounts []float64) float64 {
	if len(amounts) == 0 {
		return neutralScore
	}
	mean := stats.Mean(amounts)
	switch {
	case mean >= 1000:
		return 100
	case mean >= 500:
		return 90
	case mean >= 100:
		return 80
	case mean >= 50:
		return 70
	case mean >= 10:
		return 60
	default:
		return 40
	}
}

// NetworkScore bands the number of distinct counterparties.
func NetworkScore(counterparties int) float64 {
	switch {
	case counterparties >= 50:
		return 100
	case counterparties >= 20:
		return 90
	case counterparties >= 10:
		return 80
	case counterparties >= 5:
		return 70
	case counterparties >= 2:
		return 60
	case counterparties >= 1:
		return 50
	default:
		return 30
	}
}

// ReputationScore is neutral until governance and DeFi participation data
// is available.
func ReputationScore() float64 {
	return neutralScore
}

// TierFor maps a credit score onto a tier.
func TierFor(score float64) Tier {
	switch {
	case score >= 85:
		return TierAPlus
	case score >= 75:
		return TierA
	case score >= 65:
		return TierBPlus
	case score >= 55:
		return TierB
	case score >= 45:
		return TierCPlus
	case score >= 35:
		return TierC
	default:
		return TierD
	}
}

// RiskFactors lists the independent warning flags raised for an account.
func RiskFactors(balance float64, ageDays int, st pattern.Statistics, score float64) []string {
	factors := []string{}
	if balance < 10 {
		factors = append(factors, FactorLowBalance)
	}
	if ageDays < 7 {
		factors = append(factors, FactorNewAccount)
	}
	if st.FrequencyPerDay < 0.1 {
		factors = append(factors, FactorLowActivity)
	}
	if st.Volatility > 2.0 {
		factors = append(factors, FactorHighVolatility)
	}
	if st.CounterpartyCount() < 2 {
		factors = append(factors, FactorThinNetwork)
	}
	if score < 50 {
		factors = append(factors, FactorLowCredit)
	}
	return factors
}

// Confidence estimates how much data backs a score, in [0,1].
func Confidence(txCount, ageDays, counterparties int) float64 {
	c := 0.5

	switch {
	case txCount >= 100:
		c += 0.3
	case txCount >= 50:
		c += 0.2
	case txCount >= 10:
		c += 0.1
	}

	switch {
	case ageDays >= 365:
		c += 0.2
	case ageDays >= 90:
		c += 0.1
	}

	if counterparties >= 10 {
		c += 0.1
	}

	return math.Min(1.0, c)
}
