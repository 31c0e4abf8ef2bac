package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSnapshotCacheColdLoadBlocks(t *testing.T) {
	var loads atomic.Int32
	cache := NewSnapshotCache(func(ctx context.Context) (*Snapshot, error) {
		loads.Add(1)
		return &Snapshot{Routes: []Route{{Name: "r", DatabaseID: "db"}}}, nil
	}, testLogger())

	snap, err := cache.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Routes) != 1 {
		t.Fatalf("routes = %d", len(snap.Routes))
	}
	if loads.Load() != 1 {
		t.Fatalf("loads = %d, want 1", loads.Load())
	}
}

func TestSnapshotCacheServesFreshWithoutReload(t *testing.T) {
	var loads atomic.Int32
	cache := NewSnapshotCache(func(ctx context.Context) (*Snapshot, error) {
		loads.Add(1)
		return &Snapshot{}, nil
	}, testLogger())

	for i := 0; i < 5; i++ {
		if _, err := cache.Snapshot(context.Background()); err != nil {
			t.Fatalf("snapshot: %v", err)
		}
	}
	if loads.Load() != 1 {
		t.Fatalf("loads = %d, want 1", loads.Load())
	}
}

func TestSnapshotCacheColdLoadErrorPropagates(t *testing.T) {
	cache := NewSnapshotCache(func(ctx context.Context) (*Snapshot, error) {
		return nil, fmt.Errorf("boom")
	}, testLogger())

	if _, err := cache.Snapshot(context.Background()); err == nil {
		t.Fatal("expected cold load error")
	}
}

func TestSnapshotCacheStaleServesOldAndRefreshesInBackground(t *testing.T) {
	var (
		mu    sync.Mutex
		loads int
	)
	cache := NewSnapshotCache(func(ctx context.Context) (*Snapshot, error) {
		mu.Lock()
		defer mu.Unlock()
		loads++
		return &Snapshot{Routes: make([]Route, loads)}, nil
	}, testLogger())

	now := time.Now()
	cache.SetClock(func() time.Time { return now })

	snap, err := cache.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("cold load: %v", err)
	}
	if len(snap.Routes) != 1 {
		t.Fatalf("first snapshot routes = %d", len(snap.Routes))
	}

	// Cross the TTL. The caller must get the stale snapshot immediately.
	now = now.Add(DefaultSnapshotTTL + time.Second)
	snap, err = cache.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("stale read: %v", err)
	}
	if len(snap.Routes) != 1 {
		t.Fatalf("stale read routes = %d, want previous snapshot", len(snap.Routes))
	}

	// The background refresh eventually publishes the new snapshot.
	deadline := time.Now().Add(5 * time.Second)
	for {
		snap, err = cache.Snapshot(context.Background())
		if err != nil {
			t.Fatalf("read after refresh: %v", err)
		}
		if len(snap.Routes) == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("refreshed snapshot never published")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSnapshotCacheRefreshFailureKeepsPrevious(t *testing.T) {
	var loads atomic.Int32
	cache := NewSnapshotCache(func(ctx context.Context) (*Snapshot, error) {
		if loads.Add(1) > 1 {
			return nil, fmt.Errorf("workspace unreachable")
		}
		return &Snapshot{Routes: []Route{{Name: "keep", DatabaseID: "db"}}}, nil
	}, testLogger())

	now := time.Now()
	cache.SetClock(func() time.Time { return now })

	if _, err := cache.Snapshot(context.Background()); err != nil {
		t.Fatalf("cold load: %v", err)
	}

	now = now.Add(DefaultSnapshotTTL + time.Second)
	if _, err := cache.Snapshot(context.Background()); err != nil {
		t.Fatalf("stale read: %v", err)
	}

	// Wait for the failed refresh to settle, then confirm the old
	// snapshot is still served.
	deadline := time.Now().Add(5 * time.Second)
	for loads.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("refresh never ran")
		}
		time.Sleep(10 * time.Millisecond)
	}
	snap, err := cache.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("read after failed refresh: %v", err)
	}
	if len(snap.Routes) != 1 || snap.Routes[0].Name != "keep" {
		t.Fatalf("previous snapshot not kept: %+v", snap.Routes)
	}
}

func TestSnapshotCacheConcurrentColdLoadsShareOneLoad(t *testing.T) {
	var loads atomic.Int32
	release := make(chan struct{})
	cache := NewSnapshotCache(func(ctx context.Context) (*Snapshot, error) {
		loads.Add(1)
		<-release
		return &Snapshot{}, nil
	}, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cache.Snapshot(context.Background())
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if loads.Load() != 1 {
		t.Fatalf("concurrent cold loads = %d, want 1", loads.Load())
	}
}
