package events

import (
	"context"
	"sync"
)

// Queue serializes ingestion jobs: one worker goroutine runs submitted
// jobs strictly in submission order, and a job's failure never blocks the
// next job. This is the only strong ordering guarantee in the service,
// and it is per process, not a distributed lock.
type Queue struct {
	jobs chan func()

	closeOnce sync.Once
	done      chan struct{}
}

// NewQueue starts the worker. Buffer is the number of jobs that may wait
// without blocking submitters.
func NewQueue(buffer int) *Queue {
	q := &Queue{
		jobs: make(chan func(), buffer),
		done: make(chan struct{}),
	}
	go q.work()
	return q
}

func (q *Queue) work() {
	defer close(q.done)
	for job := range q.jobs {
		runJob(job)
	}
}

// runJob isolates a panicking job so the worker keeps advancing.
func runJob(job func()) {
	defer func() { _ = recover() }()
	job()
}

// Do submits fn and waits for it to finish. Submission order is
// completion order. Waiting is abandoned when ctx expires, but a job that
// was already accepted still runs to completion behind later arrivals'
// submissions.
func (q *Queue) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case q.jobs <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for queued work to drain.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.jobs) })
	<-q.done
}
