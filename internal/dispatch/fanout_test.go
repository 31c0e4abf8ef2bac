package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"
	"unicode/utf8"
)

func TestCoordinatorAtMostOneRunPerObjective(t *testing.T) {
	block := make(chan struct{})
	store := &fakeStore{
		singleRelations: map[string]string{
			"task1/po": "objective1",
			"task2/po": "objective1",
		},
		relations:      map[string][]string{"objective1/pt": {"t1", "t2"}},
		blockRelations: block,
	}
	c := NewCoordinator(store, testDispatchConfig(), testLogger())
	req := FanoutRequest{
		RequestID:            "req1",
		OriginTaskID:         "task1",
		TaskObjectivePropID:  "po",
		ObjectiveTasksPropID: "pt",
		MatchedRouteNames:    []string{"done"},
	}

	c.Enqueue(context.Background(), req)

	// A second request for the same objective while the first run is
	// held in flight must be dropped, not queued.
	req2 := req
	req2.RequestID = "req2"
	req2.OriginTaskID = "task2"
	c.Enqueue(context.Background(), req2)

	close(block)
	c.Wait()

	if got := store.createdCount(); got != 2 {
		t.Fatalf("created %d commands, want 2 (one run, not two)", got)
	}
}

func TestCoordinatorReleasesObjectiveAfterRun(t *testing.T) {
	store := &fakeStore{
		singleRelations: map[string]string{"task1/po": "objective1"},
		relations:       map[string][]string{"objective1/pt": {"t1"}},
	}
	c := NewCoordinator(store, testDispatchConfig(), testLogger())
	req := FanoutRequest{
		RequestID:            "req1",
		OriginTaskID:         "task1",
		TaskObjectivePropID:  "po",
		ObjectiveTasksPropID: "pt",
	}

	c.Enqueue(context.Background(), req)
	c.Wait()
	c.Enqueue(context.Background(), req)
	c.Wait()

	if got := store.createdCount(); got != 2 {
		t.Fatalf("created %d commands across two runs, want 2", got)
	}
}

func TestCoordinatorReleasesObjectiveAfterFailedRun(t *testing.T) {
	store := &fakeStore{
		singleRelations: map[string]string{"task1/po": "objective1"},
		relations:       map[string][]string{"objective1/pt": {"t1"}},
		failTitles:      map[string]bool{"done": true},
	}
	c := NewCoordinator(store, testDispatchConfig(), testLogger())
	req := FanoutRequest{
		RequestID:            "req1",
		OriginTaskID:         "task1",
		TaskObjectivePropID:  "po",
		ObjectiveTasksPropID: "pt",
		MatchedRouteNames:    []string{"done"},
	}

	c.Enqueue(context.Background(), req)
	c.Wait()

	// The objective must be available again after the failed run.
	store.failTitles = nil
	c.Enqueue(context.Background(), req)
	c.Wait()

	if got := store.createdCount(); got != 1 {
		t.Fatalf("created %d commands, want 1 from the second run", got)
	}
}

func TestCoordinatorCapsTaskCount(t *testing.T) {
	taskIDs := make([]string, 250)
	for i := range taskIDs {
		taskIDs[i] = fmt.Sprintf("t%d", i)
	}
	store := &fakeStore{
		singleRelations: map[string]string{"task1/po": "objective1"},
		relations:       map[string][]string{"objective1/pt": taskIDs},
	}
	cfg := testDispatchConfig()
	cfg.MaxFanoutTasks = 200
	c := NewCoordinator(store, cfg, testLogger())

	c.Enqueue(context.Background(), FanoutRequest{
		RequestID:            "req1",
		OriginTaskID:         "task1",
		TaskObjectivePropID:  "po",
		ObjectiveTasksPropID: "pt",
	})
	c.Wait()

	if got := store.createdCount(); got != 200 {
		t.Fatalf("created %d commands, want capped 200", got)
	}
}

func TestCoordinatorDropsRequestWithoutObjective(t *testing.T) {
	store := &fakeStore{singleRelations: map[string]string{}}
	c := NewCoordinator(store, testDispatchConfig(), testLogger())

	c.Enqueue(context.Background(), FanoutRequest{
		RequestID:            "req1",
		OriginTaskID:         "orphan-task",
		TaskObjectivePropID:  "po",
		ObjectiveTasksPropID: "pt",
	})
	c.Wait()

	if got := store.createdCount(); got != 0 {
		t.Fatalf("created %d commands, want 0", got)
	}
}

func TestCoordinatorRunOutlivesCallerContext(t *testing.T) {
	store := &fakeStore{
		singleRelations: map[string]string{"task1/po": "objective1"},
		relations:       map[string][]string{"objective1/pt": {"t1"}},
	}
	c := NewCoordinator(store, testDispatchConfig(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	c.Enqueue(ctx, FanoutRequest{
		RequestID:            "req1",
		OriginTaskID:         "task1",
		TaskObjectivePropID:  "po",
		ObjectiveTasksPropID: "pt",
	})
	cancel()

	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("fan-out run did not finish after caller cancellation")
	}
	if got := store.createdCount(); got != 1 {
		t.Fatalf("created %d commands, want 1", got)
	}
}

func TestFanoutTitle(t *testing.T) {
	if got := fanoutTitle(nil); got != "Fanout" {
		t.Fatalf("empty title = %q", got)
	}
	if got := fanoutTitle([]string{"a", "b"}); got != "a | b" {
		t.Fatalf("joined title = %q", got)
	}
	long := make([]string, 60)
	for i := range long {
		long[i] = "route"
	}
	if got := fanoutTitle(long); len(got) != maxFanoutTitleLen {
		t.Fatalf("capped title length = %d, want %d", len(got), maxFanoutTitleLen)
	}

	wide := make([]string, 60)
	for i := range wide {
		wide[i] = "ルート"
	}
	got := fanoutTitle(wide)
	if !utf8.ValidString(got) {
		t.Fatalf("capped title is not valid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != maxFanoutTitleLen {
		t.Fatalf("capped title runes = %d, want %d", n, maxFanoutTitleLen)
	}
}
