package domain

import "time"

// QueuedNotification is a customer notification that could not be delivered
// while the saga ran and was parked on the durable fallback queue instead.
// Delivery degrades to "later" rather than blocking order completion.
type QueuedNotification struct {
	OrderID    string    `json:"order_id"`
	Message    string    `json:"message"`
	Attempts   int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
