package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ordersvc/commander/internal/core/domain"
)

// ErrOrderNotFound is returned when an order has no saga log entries.
var ErrOrderNotFound = errors.New("order not found")

// OperationRecordRepository is the idempotency store: it maps a request ID to
// the last recorded outcome of that logical operation. RecordIfAbsent is the
// sole synchronization primitive preventing two executions of the same
// request ID from both performing the side effect, so implementations must
// use an atomic check-and-insert, never check-then-insert.
type OperationRecordRepository interface {
	// RecordIfAbsent atomically inserts rec as PENDING if no record exists
	// for rec.RequestID. It returns the record now in the store and whether
	// this call created it. When created is false the caller must not
	// execute the side effect.
	RecordIfAbsent(ctx context.Context, rec *domain.OperationRecord) (existing *domain.OperationRecord, created bool, err error)

	// Complete transitions a PENDING record to a terminal outcome. It is
	// idempotent when repeated with the same outcome, returns
	// ErrRecordNotFound for an unknown request ID and AlreadyTerminalError
	// for a conflicting outcome.
	Complete(ctx context.Context, requestID string, outcome domain.Outcome, payload, reason string) error

	// Get retrieves a record, or ErrRecordNotFound.
	Get(ctx context.Context, requestID string) (*domain.OperationRecord, error)

	// Release deletes a PENDING record whose side effect did not complete,
	// so a retry reusing the same request ID can execute afresh. Releasing
	// a terminal or unknown record is a no-op.
	Release(ctx context.Context, requestID string) error

	// DeleteStalePending removes PENDING records older than olderThan. A
	// deleted key is safe to retry by a fresh caller reusing the same
	// request ID. Returns the number of records removed.
	DeleteStalePending(ctx context.Context, olderThan time.Duration) (int, error)

	// PurgeTerminal removes terminal records completed before the retention
	// window. Returns the number of records removed.
	PurgeTerminal(ctx context.Context, olderThan time.Duration) (int, error)
}

// SagaLogRepository is the durable, append-only record of phase transitions.
// Append must never fail silently: the commander treats a failed append as
// fatal to the order because durability of the decision is a precondition
// for safe resumption.
type SagaLogRepository interface {
	// Append persists a new entry. The log is append-only; entries are
	// never mutated once written.
	Append(ctx context.Context, entry *domain.SagaLogEntry) error

	// Latest returns the most recent entry for an order, or
	// ErrOrderNotFound.
	Latest(ctx context.Context, orderID string) (*domain.SagaLogEntry, error)

	// First returns the CREATED entry carrying the order payload, used to
	// rebuild the order on resume.
	First(ctx context.Context, orderID string) (*domain.SagaLogEntry, error)

	// History returns all entries for an order in append order.
	History(ctx context.Context, orderID string) ([]*domain.SagaLogEntry, error)

	// InFlight returns the IDs of orders whose latest phase is not
	// terminal. Used on startup to resume interrupted sagas.
	InFlight(ctx context.Context) ([]string, error)

	// Escalations returns the IDs of orders whose FAILED entry carries the
	// compensation-failed flag and therefore need manual reconciliation.
	Escalations(ctx context.Context) ([]string, error)
}
