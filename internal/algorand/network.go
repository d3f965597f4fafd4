package algorand

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TADebugs/ALGOLEND-AI/internal/logging"
)

// Nominal network figures, reported when the node cannot be reached.
const (
	NominalTPS             = 1200
	NominalFinalitySeconds = 4.5
	NominalFeeMicroAlgos   = 1000
)

// Network health levels.
const (
	HealthExcellent = "Excellent"
	HealthGood      = "Good"
	HealthFair      = "Fair"
	HealthPoor      = "Poor"
	HealthUnknown   = "Unknown"
)

// NetworkStats is a snapshot of network conditions.
type NetworkStats struct {
	TPS             int       `json:"tps"`
	FinalitySeconds float64   `json:"finalitySeconds"`
	FeesMicroAlgos  uint64    `json:"feesMicroAlgos"`
	BlockHeight     uint64    `json:"blockHeight"`
	LastBlockTime   time.Time `json:"lastBlockTime"`
	NetworkHealth   string    `json:"networkHealth"`
	Fallback        bool      `json:"fallback"`
}

type nodeStatus struct {
	LastRound          uint64 `json:"last-round"`
	TimeSinceLastRound int64  `json:"time-since-last-round"` // nanoseconds
}

type txParams struct {
	MinFee uint64 `json:"min-fee"`
	Fee    uint64 `json:"fee"`
}

// GetNetworkStats reports current network conditions. When algod is
// unreachable it returns a fixed nominal snapshot with Fallback set, so the
// error is only non-nil when ctx is done.
func (c *Client) GetNetworkStats(ctx context.Context) (*NetworkStats, error) {
	var (
		status nodeStatus
		params txParams
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.get(gctx, UpstreamAlgod, "/v2/status", "/v2/status", nil, &status)
	})
	g.Go(func() error {
		return c.get(gctx, UpstreamAlgod, "/v2/transactions/params", "/v2/transactions/params", nil, &params)
	})

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logging.L(ctx).Warn("network stats unavailable, using nominal values", "error", err)
		return c.nominalStats(), nil
	}

	since := time.Duration(status.TimeSinceLastRound)
	fee := params.MinFee
	if fee == 0 {
		fee = NominalFeeMicroAlgos
	}
	return &NetworkStats{
		TPS:             NominalTPS,
		FinalitySeconds: NominalFinalitySeconds,
		FeesMicroAlgos:  fee,
		BlockHeight:     status.LastRound,
		LastBlockTime:   c.now().Add(-since).UTC(),
		NetworkHealth:   healthFor(status.LastRound, since),
	}, nil
}

func (c *Client) nominalStats() *NetworkStats {
	return &NetworkStats{
		TPS:             NominalTPS,
		FinalitySeconds: NominalFinalitySeconds,
		FeesMicroAlgos:  NominalFeeMicroAlgos,
		LastBlockTime:   c.now().UTC(),
		NetworkHealth:   HealthUnknown,
		Fallback:        true,
	}
}

// healthFor grades the network by how long ago the last block was produced.
func healthFor(lastRound uint64, since time.Duration) string {
	switch {
	case lastRound == 0:
		return HealthPoor
	case since < 10*time.Second:
		return HealthExcellent
	case since < 30*time.Second:
		return HealthGood
	case since < time.Minute:
		return HealthFair
	default:
		return HealthPoor
	}
}

// Ping checks that algod answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	var status nodeStatus
	return c.get(ctx, UpstreamAlgod, "/v2/status", "/v2/status", nil, &status)
}

// PingIndexer checks that the indexer answers its health endpoint.
func (c *Client) PingIndexer(ctx context.Context) error {
	var h struct {
		Round uint64 `json:"round"`
	}
	return c.get(ctx, UpstreamIndexer, "/health", "/health", nil, &h)
}
