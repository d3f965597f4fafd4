// Package catalog keeps a cached snapshot of the lending pool catalog and
// refreshes it from a Source on a cron schedule.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/TADebugs/ALGOLEND-AI/internal/metrics"
	"github.com/TADebugs/ALGOLEND-AI/internal/portfolio"
)

// ErrEmptyCatalog is returned when a source yields no pools.
var ErrEmptyCatalog = errors.New("catalog: no pools available")

// Catalog serves the last good snapshot of a Source. Safe for concurrent use.
type Catalog struct {
	source Source
	logger *slog.Logger

	mu        sync.RWMutex
	pools     []portfolio.Pool
	updatedAt time.Time

	onRefresh func(pools []portfolio.Pool)
	now       func() time.Time
}

// New creates a catalog over source. It holds no pools until the first
// Refresh.
func New(source Source, logger *slog.Logger) *Catalog {
	return &Catalog{
		source: source,
		logger: logger,
		now:    time.Now,
	}
}

// OnRefresh registers a callback run after each successful refresh.
func (c *Catalog) OnRefresh(fn func(pools []portfolio.Pool)) *Catalog {
	c.onRefresh = fn
	return c
}

// Source returns the underlying source.
func (c *Catalog) Source() Source {
	return c.source
}

// Refresh reloads the snapshot. On failure the previous snapshot is kept.
func (c *Catalog) Refresh(ctx context.Context) error {
	pools, err := c.source.Pools(ctx)
	if err == nil && len(pools) == 0 {
		err = ErrEmptyCatalog
	}
	if err != nil {
		metrics.CatalogRefreshesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("refresh from %s: %w", c.source.Name(), err)
	}

	c.mu.Lock()
	c.pools = pools
	c.updatedAt = c.now()
	c.mu.Unlock()

	metrics.CatalogRefreshesTotal.WithLabelValues("ok").Inc()
	metrics.CatalogPools.Set(float64(len(pools)))

	if c.onRefresh != nil {
		c.onRefresh(clonePools(pools))
	}
	return nil
}

// Pools returns a copy of the current snapshot, loading it on first use.
func (c *Catalog) Pools(ctx context.Context) ([]portfolio.Pool, error) {
	c.mu.RLock()
	pools := c.pools
	c.mu.RUnlock()

	if pools == nil {
		if err := c.Refresh(ctx); err != nil {
			return nil, err
		}
		c.mu.RLock()
		pools = c.pools
		c.mu.RUnlock()
	}
	return clonePools(pools), nil
}

// UpdatedAt returns when the snapshot was last replaced.
func (c *Catalog) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}

// Start refreshes the catalog on schedule (a cron spec with a seconds field)
// until ctx is done.
func (c *Catalog) Start(ctx context.Context, schedule string) error {
	cr := cron.New(cron.WithSeconds())
	_, err := cr.AddFunc(schedule, func() {
		refreshCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := c.Refresh(refreshCtx); err != nil {
			c.logger.Warn("catalog refresh failed, keeping previous snapshot", "error", err)
			return
		}
		c.logger.Debug("catalog refreshed", "source", c.source.Name())
	})
	if err != nil {
		return fmt.Errorf("schedule catalog refresh: %w", err)
	}

	cr.Start()
	c.logger.Info("catalog refresher started", "schedule", schedule, "source", c.source.Name())

	go func() {
		<-ctx.Done()
		<-cr.Stop().Done()
		c.logger.Info("catalog refresher stopped")
	}()
	return nil
}

func clonePools(pools []portfolio.Pool) []portfolio.Pool {
	out := make([]portfolio.Pool, len(pools))
	copy(out, pools)
	return out
}
