package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ordersvc/commander/internal/core/domain"
)

const notificationQueueKey = "commander:notifications"

// FallbackQueue implements the durable employee queue on a Redis list. RPUSH
// on enqueue, LPOP on dequeue: FIFO, so the oldest parked notification is
// retried first.
type FallbackQueue struct {
	rdb *redis.Client
}

// NewFallbackQueue creates a Redis-backed fallback queue.
func NewFallbackQueue(client *Client) *FallbackQueue {
	return &FallbackQueue{rdb: client.rdb}
}

// Enqueue parks a notification for later delivery.
func (q *FallbackQueue) Enqueue(ctx context.Context, n *domain.QueuedNotification) error {
	stored := *n
	if stored.EnqueuedAt.IsZero() {
		stored.EnqueuedAt = time.Now().UTC()
	}
	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := q.rdb.RPush(ctx, notificationQueueKey, data).Err(); err != nil {
		return fmt.Errorf("rpush notification: %w", err)
	}
	return nil
}

// Dequeue pops the oldest parked notification. found is false on an empty
// queue.
func (q *FallbackQueue) Dequeue(ctx context.Context) (n *domain.QueuedNotification, found bool, err error) {
	data, err := q.rdb.LPop(ctx, notificationQueueKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lpop notification: %w", err)
	}

	var parked domain.QueuedNotification
	if err := json.Unmarshal(data, &parked); err != nil {
		return nil, false, fmt.Errorf("unmarshal notification: %w", err)
	}
	return &parked, true, nil
}

// Len returns the number of parked notifications.
func (q *FallbackQueue) Len(ctx context.Context) (int, error) {
	n, err := q.rdb.LLen(ctx, notificationQueueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("llen notifications: %w", err)
	}
	return int(n), nil
}
