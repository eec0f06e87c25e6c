package domain

import "time"

// SagaLogEntry is one append-only row in the saga log. The sequence of
// entries for an order is its durable execution history: the latest entry is
// the resume point after a crash, and the CREATED entry carries the order
// payload so the saga can be rebuilt from the log alone.
type SagaLogEntry struct {
	OrderID string `json:"order_id"`

	// Phase the order transitioned to when this entry was written.
	Phase Phase `json:"phase"`

	// RequestID of the step that caused the transition, empty for entries
	// not tied to a remote call (CREATED, COMPLETED).
	RequestID string `json:"request_id,omitempty"`

	// Reason is populated on COMPENSATING and FAILED entries.
	Reason string `json:"reason,omitempty"`

	// CompensationFailed marks a FAILED entry whose compensation itself
	// exhausted retries. These orders need manual reconciliation.
	CompensationFailed bool `json:"compensation_failed,omitempty"`

	// Payload is the JSON-serialised order, written once on the CREATED
	// entry and empty afterwards.
	Payload string `json:"payload,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
