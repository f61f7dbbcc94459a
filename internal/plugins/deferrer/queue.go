package deferrerplugin

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Queue holds cleanup work registered while a scenario runs. Work is drained
// last in, first out.
type Queue struct {
	mu      sync.Mutex
	entries []entry
}

type entry struct {
	name string
	fn   func(ctx context.Context) error
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Defer registers fn under name.
func (q *Queue) Defer(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, entry{name: name, fn: fn})
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Reset drops every pending entry without running it.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = nil
}

// Drain runs and removes every pending entry, most recent first. Every entry
// runs even when an earlier one fails; the failures are joined.
func (q *Queue) Drain(ctx context.Context) error {
	q.mu.Lock()
	entries := q.entries
	q.entries = nil
	q.mu.Unlock()

	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		if err := entries[i].fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entries[i].name, err))
		}
	}
	return errors.Join(errs...)
}
