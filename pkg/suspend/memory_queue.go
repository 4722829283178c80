package suspend

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue for tests and local development.
type MemoryQueue struct {
	mu      sync.Mutex
	entries []Continuation
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(_ context.Context, c Continuation) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries = append(q.entries, c)

	return nil
}

func (q *MemoryQueue) ClaimDue(_ context.Context, now time.Time, limit int) ([]Continuation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due, remaining []Continuation

	for _, c := range q.entries {
		if !c.ResumeAt.After(now) && len(due) < limit {
			due = append(due, c)
		} else {
			remaining = append(remaining, c)
		}
	}

	q.entries = remaining

	sort.Slice(due, func(i, j int) bool {
		return due[i].ResumeAt.Before(due[j].ResumeAt)
	})

	return due, nil
}

func (q *MemoryQueue) Close() error { return nil }

// Pending returns the continuations still waiting. Test helper.
func (q *MemoryQueue) Pending() []Continuation {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Continuation, len(q.entries))
	copy(out, q.entries)

	return out
}
