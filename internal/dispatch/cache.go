package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultSnapshotTTL is how long a snapshot stays fresh before a
// background refresh is triggered.
const DefaultSnapshotTTL = 60 * time.Second

// SnapshotCache TTL-caches the dispatch configuration with
// stale-while-revalidate semantics: a cold start blocks until the first
// load succeeds, after which callers always get an immediate snapshot and
// at most one background refresh runs once the TTL lapses. Refresh
// failures keep the previous snapshot authoritative.
type SnapshotCache struct {
	loader func(context.Context) (*Snapshot, error)
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	group singleflight.Group

	mu         sync.Mutex
	snapshot   *Snapshot
	loadedAt   time.Time
	refreshing bool
}

// NewSnapshotCache builds a cache around a loader.
func NewSnapshotCache(loader func(context.Context) (*Snapshot, error), logger *slog.Logger) *SnapshotCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotCache{
		loader: loader,
		ttl:    DefaultSnapshotTTL,
		logger: logger,
		now:    time.Now,
	}
}

// SetTTL overrides the refresh TTL. For tests.
func (c *SnapshotCache) SetTTL(ttl time.Duration) { c.ttl = ttl }

// SetClock overrides the cache clock. For tests.
func (c *SnapshotCache) SetClock(now func() time.Time) { c.now = now }

// Snapshot returns the current configuration snapshot, loading it first
// when none exists yet.
func (c *SnapshotCache) Snapshot(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	snap := c.snapshot
	age := c.now().Sub(c.loadedAt)
	stale := snap != nil && age > c.ttl && !c.refreshing
	if stale {
		// Claim the refresh slot before releasing the lock so
		// concurrent callers spawn at most one refresh.
		c.refreshing = true
	}
	c.mu.Unlock()

	if snap == nil {
		return c.coldLoad(ctx)
	}
	if stale {
		c.logger.Info("dispatch_config_refresh_started")
		go c.refresh()
	}
	return snap, nil
}

// coldLoad blocks the caller until a snapshot loads. Concurrent cold
// callers share a single load via singleflight.
func (c *SnapshotCache) coldLoad(ctx context.Context) (*Snapshot, error) {
	v, err, _ := c.group.Do("load", func() (any, error) {
		snap, err := c.loader(ctx)
		if err != nil {
			return nil, err
		}
		c.publish(snap)
		return snap, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load dispatch config snapshot: %w", err)
	}
	return v.(*Snapshot), nil
}

// refresh runs detached from any request: a slow reload must not stall
// the caller that happened to trigger it.
func (c *SnapshotCache) refresh() {
	defer func() {
		c.mu.Lock()
		c.refreshing = false
		c.mu.Unlock()
	}()
	snap, err := c.loader(context.Background())
	if err != nil {
		c.logger.Error("dispatch_config_refresh_failed", "error", err)
		return
	}
	c.publish(snap)
}

func (c *SnapshotCache) publish(snap *Snapshot) {
	c.mu.Lock()
	c.snapshot = snap
	c.loadedAt = c.now()
	c.mu.Unlock()
}
