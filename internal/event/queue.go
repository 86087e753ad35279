package event

import (
	"context"
	"sync"
	"time"
)

// Poster accepts events from producer goroutines.
type Poster interface {
	Post(ev Event)
}

// Queue is an ordered, single-consumer mailbox with a wake signal.
//
// Any goroutine may Post. Wait, Check and Pop belong to the one consumer.
// The pending slice and the signal share a mutex, so a consumer that
// observes the signal always observes the event that raised it.
type Queue struct {
	mu       sync.Mutex
	pending  []Event
	signaled bool

	// wake holds at most one token, present only while signaled is true.
	wake chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		wake: make(chan struct{}, 1),
	}
}

// Post appends ev to the tail of the queue and raises the wake signal.
// It never blocks and never drops an event.
func (q *Queue) Post(ev Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = append(q.pending, ev)
	q.signaled = true
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Wait blocks until the wake signal is raised, timeout elapses, or ctx is
// done. It does not clear the signal: use Check to tell an event wake-up
// from a timeout.
//
// Returns:
//   - error: ctx.Err() when ctx ended the wait, nil otherwise
func (q *Queue) Wait(ctx context.Context, timeout time.Duration) error {
	q.mu.Lock()
	signaled := q.signaled
	q.mu.Unlock()
	if signaled {
		return nil
	}

	if timeout <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-q.wake:
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Check atomically tests and clears the wake signal.
//
// Returns:
//   - bool: true if something was posted since the previous Check
func (q *Queue) Check() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	select {
	case <-q.wake:
	default:
	}
	signaled := q.signaled
	q.signaled = false
	return signaled
}

// Pop removes and returns the head of the queue.
//
// Returns:
//   - Event: The oldest pending event
//   - bool: false when the queue is empty
func (q *Queue) Pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return Event{}, false
	}
	ev := q.pending[0]
	q.pending[0] = Event{}
	q.pending = q.pending[1:]
	return ev, true
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
