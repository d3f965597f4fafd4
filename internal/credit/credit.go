// Package credit implements multi-factor creditworthiness scoring for
// Algorand accounts.
//
// A score is built from seven observable signals:
// - Balance held (major units)
// - Account age
// - Transaction frequency
// - Consistency of transfer sizes
// - Average transfer size
// - Breadth of the counterparty network
// - Reputation (neutral until governance/DeFi data exists)
//
// Each signal maps to a banded 0-100 sub-score; the weighted sum is the
// credit score, which maps onto a letter tier.
package credit

import "time"

// AccountProfile is an immutable snapshot of an account, as supplied by the
// chain client.
type AccountProfile struct {
	Address           string     `json:"address"`
	BalanceMicroUnits uint64     `json:"balanceMicroUnits"`
	CreatedAt         *time.Time `json:"createdAt,omitempty"`
}

// Tier is the letter rating derived from a credit score.
type Tier string

const (
	TierD     Tier = "D"  // < 35
	TierC     Tier = "C"  // 35-44
	TierCPlus Tier = "C+" // 45-54
	TierB     Tier = "B"  // 55-64
	TierBPlus Tier = "B+" // 65-74
	TierA     Tier = "A"  // 75-84
	TierAPlus Tier = "A+" // 85-100

	// TierUnknown is only carried by results that could not be computed.
	TierUnknown Tier = "Unknown"
)

// Outcome tags whether a Result was actually computed.
type Outcome string

const (
	OutcomeComputed Outcome = "computed"
	OutcomeUnknown  Outcome = "unknown"
)

// UnknownScore is the placeholder score carried by unknown results.
const UnknownScore = 50

// Breakdown holds the seven sub-scores, each in [0,100].
type Breakdown struct {
	Balance     float64 `json:"balanceScore"`
	Age         float64 `json:"ageScore"`
	Frequency   float64 `json:"frequencyScore"`
	Consistency float64 `json:"consistencyScore"`
	Amount      float64 `json:"amountScore"`
	Network     float64 `json:"networkScore"`
	Reputation  float64 `json:"reputationScore"`
}

// Weights for the sub-scores (must sum to 1.0)
type Weights struct {
	Balance     float64
	Age         float64
	Frequency   float64
	Consistency float64
	Amount      float64
	Network     float64
	Reputation  float64
}

// DefaultWeights favours holdings and tenure over activity.
var DefaultWeights = Weights{
	Balance:     0.25,
	Age:         0.20,
	Frequency:   0.15,
	Consistency: 0.15,
	Amount:      0.10,
	Network:     0.10,
	Reputation:  0.05,
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Balance + w.Age + w.Frequency + w.Consistency + w.Amount + w.Network + w.Reputation
}

// Apply returns the weighted sum of b.
func (w Weights) Apply(b Breakdown) float64 {
	return w.Balance*b.Balance +
		w.Age*b.Age +
		w.Frequency*b.Frequency +
		w.Consistency*b.Consistency +
		w.Amount*b.Amount +
		w.Network*b.Network +
		w.Reputation*b.Reputation
}

// Result is the outcome of scoring one account.
type Result struct {
	Outcome          Outcome   `json:"outcome"`
	Address          string    `json:"address"`
	Score            float64   `json:"score"`
	Tier             Tier      `json:"tier"`
	Breakdown        Breakdown `json:"breakdown"`
	RiskFactors      []string  `json:"riskFactors"`
	Recommendations  []string  `json:"recommendations"`
	Confidence       float64   `json:"confidence"`
	AgeDays          int       `json:"accountAgeDays"`
	TransactionCount int       `json:"totalTransactions"`
	BalanceMajor     float64   `json:"balance"`
	FrequencyPerDay  float64   `json:"transactionFrequency"`
	Volatility       float64   `json:"volatility"`
}

// Known reports whether the result was computed from account data.
func (r *Result) Known() bool {
	return r != nil && r.Outcome == OutcomeComputed
}

// DisplayScore returns the score truncated to an integer.
func (r *Result) DisplayScore() int {
	return int(r.Score)
}

// Unknown returns the result used when an account cannot be analyzed.
func Unknown(address string) *Result {
	return &Result{
		Outcome:         OutcomeUnknown,
		Address:         address,
		Score:           UnknownScore,
		Tier:            TierUnknown,
		RiskFactors:     []string{},
		Recommendations: []string{"Unable to analyze account"},
		Confidence:      0,
	}
}
