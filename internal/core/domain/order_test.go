package domain

import (
	"errors"
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Phase
		to   Phase
		want bool
	}{
		{"created to payment pending", PhaseCreated, PhasePaymentPending, true},
		{"payment pending to done", PhasePaymentPending, PhasePaymentDone, true},
		{"payment done to shipping pending", PhasePaymentDone, PhaseShippingPending, true},
		{"skip ahead is still forward", PhasePaymentDone, PhaseNotified, true},
		{"notified to completed", PhaseNotified, PhaseCompleted, true},
		{"backwards is illegal", PhaseShippingDone, PhasePaymentPending, false},
		{"no self transition", PhasePaymentPending, PhasePaymentPending, false},
		{"pending to compensating", PhaseShippingPending, PhaseCompensating, true},
		{"created to compensating", PhaseCreated, PhaseCompensating, true},
		{"compensating to failed", PhaseCompensating, PhaseFailed, true},
		{"compensating to completed is illegal", PhaseCompensating, PhaseCompleted, false},
		{"completed to compensating is illegal", PhaseCompleted, PhaseCompensating, false},
		{"failed to compensating is illegal", PhaseFailed, PhaseCompensating, false},
		{"forward to failed without compensating", PhaseShippingPending, PhaseFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestPhasePredicates(t *testing.T) {
	if !PhaseCompleted.Terminal() || !PhaseFailed.Terminal() {
		t.Error("COMPLETED and FAILED must be terminal")
	}
	if PhaseNotified.Terminal() {
		t.Error("NOTIFIED is not terminal")
	}
	if !PhasePaymentPending.Pending() || !PhaseShippingPending.Pending() {
		t.Error("*_PENDING phases must report Pending")
	}
	if PhasePaymentDone.Pending() {
		t.Error("PAYMENT_DONE is not pending")
	}
}

func TestRequestIDDerivation(t *testing.T) {
	id := RequestID("order-1", StepPayment)
	if id != "order-1:payment" {
		t.Errorf("RequestID = %q, want %q", id, "order-1:payment")
	}
	comp := CompensationRequestID(id)
	if comp != "order-1:payment:compensate" {
		t.Errorf("CompensationRequestID = %q, want %q", comp, "order-1:payment:compensate")
	}
	// Derivation is stable: a resumed saga must reuse the exact same keys.
	if RequestID("order-1", StepPayment) != id {
		t.Error("RequestID is not deterministic")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureClass
	}{
		{"unavailable", &UnavailableError{Service: "payment"}, FailureTransient},
		{"wrapped unavailable", errorsWrap(&UnavailableError{Service: "shipping"}), FailureTransient},
		{"rejection", &RejectionError{Service: "payment", Reason: "insufficient funds"}, FailureTerminal},
		{"log write", &SagaLogWriteError{OrderID: "o"}, FailureFatal},
		{"plain error", errors.New("boom"), FailureFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func errorsWrap(err error) error {
	return &wrapped{err}
}

type wrapped struct{ err error }

func (w *wrapped) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrapped) Unwrap() error { return w.err }
