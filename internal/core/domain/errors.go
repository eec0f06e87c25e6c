package domain

import (
	"errors"
	"fmt"
)

// FailureClass is the tagged classification the retry policy and the
// commander switch on. Raw transport errors never reach them: gateway
// adapters translate everything into this taxonomy first.
type FailureClass int

const (
	// FailureTransient is expected to resolve on retry (downstream down).
	FailureTransient FailureClass = iota
	// FailureTerminal is a definitive business refusal; never retried.
	FailureTerminal
	// FailureFatal means the orchestrator cannot safely continue
	// (saga log write failed, idempotency conflict, cancellation).
	FailureFatal
)

// ErrRecordNotFound is returned when completing or reading an unknown
// operation record.
var ErrRecordNotFound = errors.New("operation record not found")

// UnavailableError reports a transient downstream failure.
type UnavailableError struct {
	Service string
	Err     error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("%s unavailable", e.Service)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// RejectionError reports a terminal business refusal, e.g. insufficient
// funds. It is never retried and always triggers compensation of prior
// critical steps.
type RejectionError struct {
	Service string
	Reason  string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s rejected request: %s", e.Service, e.Reason)
}

// RetriesExhaustedError wraps the last transient error once the retry budget
// for a step is spent.
type RetriesExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Err }

// SagaLogWriteError is fatal to the current order: without a durable record
// of the decision the orchestrator must not apply further side effects.
type SagaLogWriteError struct {
	OrderID string
	Phase   Phase
	Err     error
}

func (e *SagaLogWriteError) Error() string {
	return fmt.Sprintf("saga log write for order %s (phase %s) failed: %v", e.OrderID, e.Phase, e.Err)
}

func (e *SagaLogWriteError) Unwrap() error { return e.Err }

// AlreadyTerminalError indicates the same request ID was completed twice with
// conflicting outcomes. This is a logic bug, never silently ignored.
type AlreadyTerminalError struct {
	RequestID string
	Existing  Outcome
	Attempted Outcome
}

func (e *AlreadyTerminalError) Error() string {
	return fmt.Sprintf("record %s already %s, cannot complete as %s",
		e.RequestID, e.Existing, e.Attempted)
}

// CompensationFailedError marks the one case that cannot be automated: the
// compensating call itself exhausted retries. The order is FAILED with the
// flag set and must be reconciled by an operator.
type CompensationFailedError struct {
	OrderID   string
	RequestID string
	Err       error
}

func (e *CompensationFailedError) Error() string {
	return fmt.Sprintf("compensation %s for order %s failed: %v", e.RequestID, e.OrderID, e.Err)
}

func (e *CompensationFailedError) Unwrap() error { return e.Err }

// Classify maps an error onto the taxonomy. The retry policy retries only
// FailureTransient; everything else propagates immediately.
func Classify(err error) FailureClass {
	var unavailable *UnavailableError
	if errors.As(err, &unavailable) {
		return FailureTransient
	}
	var rejection *RejectionError
	if errors.As(err, &rejection) {
		return FailureTerminal
	}
	return FailureFatal
}
