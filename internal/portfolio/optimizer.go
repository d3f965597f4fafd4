package portfolio

import (
	"math"
	"sort"

	"github.com/TADebugs/ALGOLEND-AI/internal/stats"
)

// FallbackPoolCount is how many of the lowest-risk pools are considered when
// no pool fits under the tolerance ceiling.
const FallbackPoolCount = 3

// DropPolicy decides what happens to the weight of pools whose share falls
// below their minimum deposit.
type DropPolicy int

const (
	// DropDiscard omits dropped pools and leaves their weight unallocated.
	// Surviving pools keep the share computed over every eligible pool.
	DropDiscard DropPolicy = iota
	// DropRedistribute spreads dropped weight proportionally over the
	// surviving pools and rounds so percentages total exactly 100.
	DropRedistribute
)

func (p DropPolicy) String() string {
	if p == DropRedistribute {
		return "redistribute"
	}
	return "discard"
}

// Optimizer computes risk-adjusted allocations. It holds only configuration
// and is safe for concurrent use.
type Optimizer struct {
	drop DropPolicy
}

// NewOptimizer creates an optimizer that discards dropped weight.
func NewOptimizer() *Optimizer {
	return &Optimizer{drop: DropDiscard}
}

// WithDropPolicy overrides the minimum-deposit drop policy.
func (o *Optimizer) WithDropPolicy(p DropPolicy) *Optimizer {
	o.drop = p
	return o
}

// DropPolicy returns the policy in use.
func (o *Optimizer) DropPolicy() DropPolicy {
	return o.drop
}

type candidate struct {
	pool   Pool
	weight float64
}

// Optimize splits amount across the eligible pools of catalog, weighting each
// pool by its risk-adjusted return. The result is empty only when catalog is
// empty; otherwise at least one entry is returned. Under DropDiscard each
// percent is the pool's weight rounded to one decimal, so the total can drift
// from 100 by rounding and falls short when a pool is dropped.
func (o *Optimizer) Optimize(catalog []Pool, tolerance RiskTolerance, amount float64) []Allocation {
	if len(catalog) == 0 {
		return []Allocation{}
	}

	eligible := Eligible(catalog, tolerance)
	candidates := weigh(eligible)

	survivors := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		if amount*c.weight >= c.pool.MinDeposit {
			survivors = append(survivors, c)
		}
	}

	if len(survivors) == 0 {
		best := smallestMinDeposit(eligible)
		return []Allocation{entry(best, 100, amount)}
	}

	if o.drop != DropRedistribute {
		out := make([]Allocation, len(survivors))
		for i, c := range survivors {
			out[i] = entry(c.pool, stats.Round(c.weight*100, 1), amount*c.weight)
		}
		return out
	}

	var kept float64
	for _, c := range survivors {
		kept += c.weight
	}
	weights := make([]float64, len(survivors))
	for i, c := range survivors {
		if kept > 0 {
			weights[i] = c.weight / kept
		} else {
			// only zero-weight pools with no minimum survived
			weights[i] = 1 / float64(len(survivors))
		}
	}
	percents := tenthsSummingTo100(weights)

	out := make([]Allocation, len(survivors))
	for i, c := range survivors {
		out[i] = entry(c.pool, percents[i], amount*weights[i])
	}
	return out
}

// Eligible returns the pools whose risk is within the tolerance ceiling. If
// none qualify it returns the FallbackPoolCount lowest-risk pools instead.
func Eligible(catalog []Pool, tolerance RiskTolerance) []Pool {
	ceiling := tolerance.Ceiling()
	var out []Pool
	for _, p := range catalog {
		if p.RiskScore <= ceiling {
			out = append(out, p)
		}
	}
	if len(out) > 0 {
		return out
	}

	sorted := make([]Pool, len(catalog))
	copy(sorted, catalog)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RiskScore < sorted[j].RiskScore
	})
	if len(sorted) > FallbackPoolCount {
		sorted = sorted[:FallbackPoolCount]
	}
	return sorted
}

// weigh normalizes non-negative risk-adjusted returns to sum to 1, falling
// back to equal weights when every return is non-positive.
func weigh(pools []Pool) []candidate {
	out := make([]candidate, len(pools))
	var total float64
	for i, p := range pools {
		w := math.Max(0, p.RiskAdjustedReturn())
		out[i] = candidate{pool: p, weight: w}
		total += w
	}
	for i := range out {
		if total > 0 {
			out[i].weight /= total
		} else {
			out[i].weight = 1 / float64(len(out))
		}
	}
	return out
}

func smallestMinDeposit(pools []Pool) Pool {
	best := pools[0]
	for _, p := range pools[1:] {
		if p.MinDeposit < best.MinDeposit {
			best = p
		}
	}
	return best
}

func entry(p Pool, percent, amount float64) Allocation {
	return Allocation{
		PoolID:            p.ID,
		PoolName:          p.Name,
		AllocationPercent: percent,
		AllocationAmount:  stats.Round(amount, 2),
		ExpectedAPY:       p.APY,
		RiskScore:         p.RiskScore,
		TermDays:          p.TermDays,
	}
}

// tenthsSummingTo100 converts weights that sum to 1 into percentages with
// one decimal place using the largest-remainder method. Ties go to the
// earlier entry.
func tenthsSummingTo100(weights []float64) []float64 {
	const total = 1000

	units := make([]int, len(weights))
	rem := make([]float64, len(weights))
	assigned := 0
	for i, w := range weights {
		exact := w * total
		units[i] = int(math.Floor(exact + 1e-9))
		rem[i] = exact - float64(units[i])
		assigned += units[i]
	}

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return rem[order[a]] > rem[order[b]]
	})
	for k := 0; assigned < total && k < len(order); k++ {
		units[order[k]]++
		assigned++
	}

	out := make([]float64, len(units))
	for i, u := range units {
		out[i] = float64(u) / 10
	}
	return out
}
