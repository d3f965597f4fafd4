// Package pattern reduces an account's transaction history into the summary
// statistics consumed by the credit scorer.
//
// The analyzer looks at four signals:
// - how often the account transacts (per day)
// - how large its transfers are (major currency units)
// - how many distinct counterparties it deals with
// - how much its transfer sizes vary (coefficient of variation)
package pattern

import (
	"github.com/TADebugs/ALGOLEND-AI/internal/stats"
)

// MicroUnitsPerUnit converts ledger micro-units into the major currency unit.
const MicroUnitsPerUnit = 1_000_000

// SecondsPerDay is the span of one day in ConfirmedSequence units.
// The Algorand client fills ConfirmedSequence with the block's round-time,
// which is Unix seconds.
const SecondsPerDay = 86400

// Transaction is a single ledger transfer as seen by the analyzer.
type Transaction struct {
	AmountMicroUnits  int64  `json:"amountMicroUnits"`
	Sender            string `json:"sender"`
	Receiver          string `json:"receiver"`
	ConfirmedSequence int64  `json:"confirmedSequence"` // Unix seconds
}

// Statistics summarizes a transaction history.
type Statistics struct {
	Count                int                 `json:"count"`
	FrequencyPerDay      float64             `json:"frequencyPerDay"`
	Amounts              []float64           `json:"amounts"`
	UniqueCounterparties map[string]struct{} `json:"-"`
	Volatility           float64             `json:"volatility"`
}

// CounterpartyCount returns the number of distinct counterparties.
func (s Statistics) CounterpartyCount() int {
	return len(s.UniqueCounterparties)
}

// MeanAmount returns the mean transfer size, or 0 with no transfers.
func (s Statistics) MeanAmount() float64 {
	return stats.Mean(s.Amounts)
}

// Analyze computes Statistics for txs. It never fails: an empty history
// yields zero-valued statistics and negative amounts count as zero.
func Analyze(txs []Transaction) Statistics {
	st := Statistics{
		Amounts:              []float64{},
		UniqueCounterparties: make(map[string]struct{}),
	}
	if len(txs) == 0 {
		return st
	}

	st.Count = len(txs)
	st.Amounts = make([]float64, 0, len(txs))

	distinct := make(map[int64]struct{})
	var minSeq, maxSeq int64
	for i, tx := range txs {
		amount := tx.AmountMicroUnits
		if amount < 0 {
			amount = 0
		}
		st.Amounts = append(st.Amounts, float64(amount)/MicroUnitsPerUnit)

		if tx.Sender != "" {
			st.UniqueCounterparties[tx.Sender] = struct{}{}
		}
		if tx.Receiver != "" {
			st.UniqueCounterparties[tx.Receiver] = struct{}{}
		}

		distinct[tx.ConfirmedSequence] = struct{}{}
		if i == 0 || tx.ConfirmedSequence < minSeq {
			minSeq = tx.ConfirmedSequence
		}
		if i == 0 || tx.ConfirmedSequence > maxSeq {
			maxSeq = tx.ConfirmedSequence
		}
	}

	st.FrequencyPerDay = frequency(st.Count, len(distinct), maxSeq-minSeq)

	if len(st.Amounts) > 1 {
		denom := stats.Mean(st.Amounts)
		if denom < 1 {
			denom = 1
		}
		st.Volatility = stats.StdDev(st.Amounts) / denom
	}

	return st
}

// frequency returns transactions per day. Histories without a usable time
// span count as having happened within a single day.
func frequency(count, distinctTimestamps int, spanSeconds int64) float64 {
	if distinctTimestamps < 2 || spanSeconds <= 0 {
		return float64(count)
	}
	days := float64(spanSeconds) / SecondsPerDay
	if days < 1 {
		days = 1
	}
	return float64(count) / days
}
