package domain

import "fmt"

// Step names the logical saga steps. They double as request ID suffixes so
// that every retry and every crash-resume of the same step reuses the same
// idempotency key.
type Step string

const (
	StepPayment   Step = "payment"
	StepShipping  Step = "shipping"
	StepMessaging Step = "messaging"
)

// OperationRequest is the value object sent to a remote service. RequestID is
// the idempotency key: derived once per logical step, never per physical call.
type OperationRequest struct {
	RequestID string `json:"request_id"`
	OrderID   string `json:"order_id"`
	Step      Step   `json:"step"`
	Payload   string `json:"payload"`
}

// RequestID derives the deterministic idempotency key for a step of an order.
func RequestID(orderID string, step Step) string {
	return fmt.Sprintf("%s:%s", orderID, step)
}

// CompensationRequestID derives the idempotency key for undoing a previously
// issued request. Deterministic so a retried or resumed compensation is
// itself idempotent.
func CompensationRequestID(requestID string) string {
	return requestID + ":compensate"
}

// ResultStatus is the outcome of a remote service execution.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "SUCCESS"
)

// Result is what a remote service returns on success.
type Result struct {
	Status  ResultStatus `json:"status"`
	Payload string       `json:"payload,omitempty"`
}
