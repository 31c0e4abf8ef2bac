package events

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestQueueRunsJobsInSubmissionOrder(t *testing.T) {
	q := NewQueue(16)
	defer q.Close()

	var (
		mu    sync.Mutex
		order []int
	)
	for i := 0; i < 10; i++ {
		i := i
		if err := q.Do(context.Background(), func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}); err != nil {
			t.Fatalf("do: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("order[%d] = %d", i, v)
		}
	}
}

func TestQueueFailedJobDoesNotBlockNext(t *testing.T) {
	q := NewQueue(16)
	defer q.Close()

	ran := false
	_ = q.Do(context.Background(), func() {
		panic("job failure")
	})
	if err := q.Do(context.Background(), func() { ran = true }); err != nil {
		t.Fatalf("do: %v", err)
	}
	if !ran {
		t.Fatal("queue stalled after failed job")
	}
}

func TestQueueDoRespectsContext(t *testing.T) {
	q := NewQueue(0)
	defer q.Close()

	block := make(chan struct{})
	go q.Do(context.Background(), func() { <-block })
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := q.Do(ctx, func() {})
	if err == nil {
		t.Fatal("expected context error while worker is busy")
	}
	close(block)
}

func TestQueueCloseDrains(t *testing.T) {
	q := NewQueue(16)
	done := make(chan struct{})
	go func() {
		q.Do(context.Background(), func() { time.Sleep(20 * time.Millisecond) })
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	q.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("close did not wait for queued job")
	}
}
