package travel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"ambuplan/core/logger"
	"ambuplan/core/metrics"
	"ambuplan/core/model"
)

// CacheOptions tunes the retry and fallback behavior of a Cache.
type CacheOptions struct {
	// Retries is the number of additional provider attempts after the first
	// failure.
	Retries int
	// Backoff is the base delay between attempts; attempt n waits n*Backoff.
	Backoff time.Duration
	// Fallback, when non-nil, answers lookups the provider could not. Leaving
	// it nil makes provider failures fatal to the caller.
	Fallback Oracle
	Logger   logger.Logger
	Recorder metrics.OracleRecorder
}

// Cache memoizes oracle lookups for the lifetime of the run that owns it.
// Entries are keyed by the ordered (from,to) pair since routes are
// directional. Concurrent lookups of the same key collapse into a single
// provider call; the memoized value keeps repeated runs over the same cache
// deterministic.
type Cache struct {
	provider Oracle
	fallback Oracle
	retries  int
	backoff  time.Duration
	log      logger.Logger
	recorder metrics.OracleRecorder

	mu      sync.RWMutex
	entries map[Pair]Estimate
	group   singleflight.Group
}

// NewCache wraps provider with memoization and retry handling.
func NewCache(provider Oracle, opts CacheOptions) *Cache {
	log := opts.Logger
	if log == nil {
		log = logger.Nop{}
	}
	var rec metrics.OracleRecorder = metrics.NopSink{}
	if opts.Recorder != nil {
		rec = opts.Recorder
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	return &Cache{
		provider: provider,
		fallback: opts.Fallback,
		retries:  opts.Retries,
		backoff:  backoff,
		log:      log,
		recorder: rec,
		entries:  make(map[Pair]Estimate),
	}
}

// DistanceDuration implements Oracle.
func (c *Cache) DistanceDuration(ctx context.Context, from, to model.Location) (Estimate, error) {
	key := Pair{From: from, To: to}
	if from == to {
		return Estimate{}, nil
	}
	c.mu.RLock()
	est, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		_ = c.recorder.RecordOracleLookup(metrics.OracleLookup{CacheHit: true, Time: time.Now()})
		return est, nil
	}

	v, err, _ := c.group.Do(string(from)+"\x00"+string(to), func() (any, error) {
		c.mu.RLock()
		est, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return est, nil
		}
		est, err := c.resolve(ctx, from, to)
		if err != nil {
			return Estimate{}, err
		}
		c.mu.Lock()
		c.entries[key] = est
		c.mu.Unlock()
		return est, nil
	})
	if err != nil {
		return Estimate{}, err
	}
	return v.(Estimate), nil
}

func (c *Cache) resolve(ctx context.Context, from, to model.Location) (Estimate, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Estimate{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}
		est, err := c.provider.DistanceDuration(ctx, from, to)
		if err == nil {
			_ = c.recorder.RecordOracleLookup(metrics.OracleLookup{Time: time.Now()})
			return est, nil
		}
		lastErr = err
		c.log.Warnf("travel lookup %s -> %s attempt %d failed: %v", from, to, attempt+1, err)
	}
	if c.fallback != nil {
		est, err := c.fallback.DistanceDuration(ctx, from, to)
		if err == nil {
			c.log.Infof("travel lookup %s -> %s served by fallback estimator", from, to)
			_ = c.recorder.RecordOracleLookup(metrics.OracleLookup{Fallback: true, Time: time.Now()})
			return est, nil
		}
		lastErr = fmt.Errorf("fallback after %w: %v", lastErr, err)
	}
	_ = c.recorder.RecordOracleLookup(metrics.OracleLookup{Err: lastErr.Error(), Time: time.Now()})
	return Estimate{}, lastErr
}

// Warm resolves all pairs up front so schedulers never wait on network I/O
// while holding an in-progress trip.
func (c *Cache) Warm(ctx context.Context, pairs []Pair) error {
	for _, p := range pairs {
		if _, err := c.DistanceDuration(ctx, p.From, p.To); err != nil {
			return fmt.Errorf("warm %s -> %s: %w", p.From, p.To, err)
		}
	}
	return nil
}

// Preload inserts known estimates, overriding the provider for those pairs.
func (c *Cache) Preload(entries map[Pair]Estimate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range entries {
		c.entries[k] = v
	}
}

// Len returns the number of cached pairs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
