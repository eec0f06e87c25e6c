package domain

import "time"

// Outcome is the lifecycle state of an operation record.
type Outcome string

const (
	OutcomePending   Outcome = "PENDING"
	OutcomeSucceeded Outcome = "SUCCEEDED"
	OutcomeFailed    Outcome = "FAILED"
)

// Terminal reports whether the outcome can no longer change.
func (o Outcome) Terminal() bool {
	return o == OutcomeSucceeded || o == OutcomeFailed
}

// OperationRecord is what the idempotency store keeps per request ID. A record
// is inserted as PENDING by the first caller to present a request ID, moved to
// a terminal outcome exactly once, and deleted only by the retention sweep
// after the owning order has finished.
type OperationRecord struct {
	RequestID   string    `json:"request_id"`
	OrderID     string    `json:"order_id"`
	Outcome     Outcome   `json:"outcome"`
	Payload     string    `json:"payload,omitempty"` // result payload on SUCCEEDED
	Reason      string    `json:"reason,omitempty"`  // failure reason on FAILED
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}
