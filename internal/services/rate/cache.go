package rate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vadiminshakov/p2prate/internal/domain"
)

const (
	// DefaultTTL freshness window of a cached snapshot.
	DefaultTTL = 15 * time.Minute
	// StaleWarning annotates snapshots served after a failed refresh.
	StaleWarning = "serving cached data due to a temporary upstream error"

	refreshKey = "refresh"
)

type computer interface {
	Compute(ctx context.Context) (*domain.Breakdown, error)
}

// Observer receives cache events, e.g. for metrics.
type Observer interface {
	ObserveRequest(cached bool)
	ObserveRefresh(snap *domain.RateSnapshot, consecutiveFailures int, took time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveRequest(bool) {}
func (nopObserver) ObserveRefresh(*domain.RateSnapshot, int, time.Duration, error) {}

// UsageStats counts /rate reads since process start.
type UsageStats struct {
	TotalRequests uint64
	FromCache     uint64
}

// Efficiency is the share of reads answered from cache, in whole percent.
func (s UsageStats) Efficiency() uint64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return s.FromCache * 100 / s.TotalRequests
}

// Result of a cache read.
type Result struct {
	Snapshot domain.RateSnapshot
	// Cached is false only when this read triggered the refresh that produced Snapshot.
	Cached bool
	Age    time.Duration
	// Warning is set when Snapshot is stale because the refresh failed.
	Warning string
	Stats   UsageStats
}

// Cache holds the last good snapshot and refreshes it on demand.
// At most one refresh runs at a time; concurrent callers share its result.
type Cache struct {
	mu        sync.RWMutex
	snapshot  *domain.RateSnapshot
	updatedAt time.Time

	ttl      time.Duration
	computer computer
	tracker  *ErrorTracker
	flight   singleflight.Group
	observer Observer

	totalRequests atomic.Uint64
	fromCache     atomic.Uint64

	now    func() time.Time
	logger *zap.Logger
}

// CacheOption configures the Cache.
type CacheOption func(*Cache)

// WithObserver registers an event observer.
func WithObserver(o Observer) CacheOption {
	return func(c *Cache) {
		if o != nil {
			c.observer = o
		}
	}
}

// NewCache creates an empty cache. A non-positive ttl falls back to DefaultTTL.
func NewCache(computer computer, tracker *ErrorTracker, ttl time.Duration, logger *zap.Logger, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		ttl:      ttl,
		computer: computer,
		tracker:  tracker,
		observer: nopObserver{},
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get serves the snapshot if fresh, refreshes otherwise. When the refresh
// fails a previous snapshot is returned with a warning; the error is returned
// only if there is nothing cached.
func (c *Cache) Get(ctx context.Context) (*Result, error) {
	c.totalRequests.Add(1)

	if snap, age, ok := c.Peek(); ok && age < c.ttl {
		c.fromCache.Add(1)
		c.observer.ObserveRequest(true)
		c.logger.Debug("serving from cache", zap.Duration("age", age))
		return &Result{Snapshot: snap, Cached: true, Age: age, Stats: c.Stats()}, nil
	}
	c.observer.ObserveRequest(false)

	snap, err := c.Refresh(ctx)
	if err == nil {
		return &Result{Snapshot: *snap, Stats: c.Stats()}, nil
	}

	if prior, age, ok := c.Peek(); ok {
		c.logger.Warn("refresh failed, serving stale snapshot", zap.Duration("age", age), zap.Error(err))
		return &Result{Snapshot: prior, Cached: true, Age: age, Warning: StaleWarning, Stats: c.Stats()}, nil
	}

	return nil, err
}

// Refresh recomputes the snapshot. Callers arriving while a refresh is in
// flight wait for it instead of starting another. The refresh is detached
// from ctx cancellation; the outbound timeout bounds it.
func (c *Cache) Refresh(ctx context.Context) (*domain.RateSnapshot, error) {
	v, err, shared := c.flight.Do(refreshKey, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("joined in-flight refresh")
	}

	return v.(*domain.RateSnapshot), nil
}

func (c *Cache) refresh(ctx context.Context) (*domain.RateSnapshot, error) {
	logger := c.logger.With(zap.String("cycle", uuid.NewString()))
	started := time.Now()

	breakdown, err := c.computer.Compute(ctx)
	if err != nil {
		failures := c.tracker.RecordFailure()
		c.observer.ObserveRefresh(nil, failures, time.Since(started), err)
		logger.Error("refresh failed", zap.Int("consecutive_failures", failures), zap.Error(err))
		return nil, err
	}

	snap := breakdown.Snapshot
	c.put(&snap)
	c.tracker.RecordSuccess()
	c.observer.ObserveRefresh(&snap, 0, time.Since(started), nil)

	logger.Info("rate refreshed",
		zap.String("final_rate", snap.FinalRate.StringFixed(domain.RatePlaces)),
		zap.String("real_rate", snap.RealRate.StringFixed(domain.RatePlaces)),
		zap.Duration("took", time.Since(started)))

	return &snap, nil
}

func (c *Cache) put(snap *domain.RateSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snapshot = snap
	c.updatedAt = c.now()
}

// Peek returns the cached snapshot and its age without refreshing.
func (c *Cache) Peek() (domain.RateSnapshot, time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.snapshot == nil {
		return domain.RateSnapshot{}, 0, false
	}
	age := c.now().Sub(c.updatedAt)
	if age < 0 {
		age = 0
	}

	return *c.snapshot, age, true
}

// TTL returns the freshness window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Stats returns the usage counters.
func (c *Cache) Stats() UsageStats {
	// fromCache first: every hit was counted in totalRequests before.
	fromCache := c.fromCache.Load()
	return UsageStats{TotalRequests: c.totalRequests.Load(), FromCache: fromCache}
}

// ErrorState returns the failure tracker state.
func (c *Cache) ErrorState() ErrorState {
	return c.tracker.State()
}
