package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ordersvc/commander/internal/core/domain"
)

// FallbackQueue is an in-memory FIFO fallback queue.
type FallbackQueue struct {
	mu    sync.Mutex
	items []*domain.QueuedNotification
}

// NewFallbackQueue creates an empty queue.
func NewFallbackQueue() *FallbackQueue {
	return &FallbackQueue{}
}

// Enqueue parks a notification for later delivery.
func (q *FallbackQueue) Enqueue(ctx context.Context, n *domain.QueuedNotification) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	stored := *n
	if stored.EnqueuedAt.IsZero() {
		stored.EnqueuedAt = time.Now().UTC()
	}
	q.items = append(q.items, &stored)
	return nil
}

// Dequeue pops the oldest parked notification.
func (q *FallbackQueue) Dequeue(ctx context.Context) (*domain.QueuedNotification, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false, nil
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head, true, nil
}

// Len returns the number of parked notifications.
func (q *FallbackQueue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), nil
}
