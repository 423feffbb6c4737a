package services

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Refreshable reloads one cached view from the database.
type Refreshable interface {
	RefreshCache(ctx context.Context) error
}

// CacheRefresher periodically rebuilds cached listings and stats so reads
// after the TTL rarely reach the database.
type CacheRefresher struct {
	targets  map[string]Refreshable
	interval time.Duration
	logger   log.Logger
}

func NewCacheRefresher(interval time.Duration, logger log.Logger) *CacheRefresher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CacheRefresher{
		targets:  make(map[string]Refreshable),
		interval: interval,
		logger:   logger,
	}
}

func (cr *CacheRefresher) Add(name string, target Refreshable) {
	cr.targets[name] = target
}

// Run refreshes on every tick until ctx is done.
func (cr *CacheRefresher) Run(ctx context.Context) {
	ticker := time.NewTicker(cr.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			level.Debug(cr.logger).Log("msg", "refreshing caches")
			cr.RefreshAll(ctx)
		case <-ctx.Done():
			level.Info(cr.logger).Log("msg", "stopping cache refresher")
			return
		}
	}
}

// RefreshAll refreshes every target once and reports how many failed.
func (cr *CacheRefresher) RefreshAll(ctx context.Context) int {
	failed := 0
	for name, target := range cr.targets {
		if err := target.RefreshCache(ctx); err != nil {
			failed++
			level.Warn(cr.logger).Log("msg", "cache refresh failed", "cache", name, "err", err)
		}
	}
	return failed
}
