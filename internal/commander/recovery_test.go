package commander

import (
	"context"
	"errors"
	"testing"

	"github.com/ordersvc/commander/internal/core/domain"
	"github.com/ordersvc/commander/internal/infra/storage"
)

// Append order on the happy path:
//
//	1 CREATED, 2 PAYMENT_PENDING, 3 PAYMENT_DONE, 4 SHIPPING_PENDING,
//	5 SHIPPING_DONE, 6 NOTIFIED, 7 COMPLETED
//
// Failing append n simulates a crash right before that entry landed.

func TestResumeContinuesAfterCrash(t *testing.T) {
	h := newHarness(t, &scriptedGateway{})
	h.sagaLog.failFrom = 4 // crash before SHIPPING_PENDING is logged
	order := newTestOrder()

	_, err := h.cmd.PlaceOrder(context.Background(), order)
	var logErr *domain.SagaLogWriteError
	if !errors.As(err, &logErr) {
		t.Fatalf("err = %v, want SagaLogWriteError", err)
	}
	if pay, _, ship, _ := h.gw.calls(); pay != 1 || ship != 0 {
		t.Fatalf("calls before crash pay=%d ship=%d, want 1/0", pay, ship)
	}

	h.sagaLog.heal()
	res, err := h.cmd.Resume(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if res.FinalPhase != domain.PhaseCompleted {
		t.Fatalf("final phase = %s, want COMPLETED", res.FinalPhase)
	}

	// The payment landed before the crash and is not charged again.
	pay, refund, ship, notify := h.gw.calls()
	if pay != 1 || refund != 0 || ship != 1 || notify != 1 {
		t.Errorf("calls pay=%d refund=%d ship=%d notify=%d, want 1/0/1/1", pay, refund, ship, notify)
	}

	assertPhases(t, h.phases(t, order.ID), []domain.Phase{
		domain.PhaseCreated,
		domain.PhasePaymentPending,
		domain.PhasePaymentDone,
		domain.PhaseShippingPending,
		domain.PhaseShippingDone,
		domain.PhaseNotified,
		domain.PhaseCompleted,
	})
}

func TestResumeRecognizesLandedPayment(t *testing.T) {
	// Crash after the charge executed but before PAYMENT_DONE was logged. On
	// resume the payment step re-runs with the same request ID and is served
	// from the operation record instead of charging twice.
	h := newHarness(t, &scriptedGateway{})
	h.sagaLog.failFrom = 3
	order := newTestOrder()

	if _, err := h.cmd.PlaceOrder(context.Background(), order); err == nil {
		t.Fatal("PlaceOrder succeeded, want crash")
	}
	if pay, _, _, _ := h.gw.calls(); pay != 1 {
		t.Fatalf("pay calls before crash = %d, want 1", pay)
	}

	h.sagaLog.heal()
	res, err := h.cmd.Resume(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if res.FinalPhase != domain.PhaseCompleted {
		t.Fatalf("final phase = %s, want COMPLETED", res.FinalPhase)
	}
	if pay, _, _, _ := h.gw.calls(); pay != 1 {
		t.Errorf("pay calls after resume = %d, want 1", pay)
	}
}

func TestResumeCompensationIsIdempotent(t *testing.T) {
	// Shipping was rejected, the refund went through, then the process died
	// before the FAILED entry landed. The resumed compensation recognizes the
	// landed refund and does not refund twice.
	h := newHarness(t, &scriptedGateway{shipErrs: []error{rejected("shipping", "no capacity")}})
	h.sagaLog.failFrom = 6 // crash before FAILED (5 here is COMPENSATING)
	order := newTestOrder()

	if _, err := h.cmd.PlaceOrder(context.Background(), order); err == nil {
		t.Fatal("PlaceOrder succeeded, want crash")
	}
	if _, refund, _, _ := h.gw.calls(); refund != 1 {
		t.Fatalf("refund calls before crash = %d, want 1", refund)
	}

	h.sagaLog.heal()
	res, err := h.cmd.Resume(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if res.FinalPhase != domain.PhaseFailed {
		t.Fatalf("final phase = %s, want FAILED", res.FinalPhase)
	}
	if res.Reason == "" {
		t.Error("resumed failure lost its reason")
	}
	if _, refund, _, _ := h.gw.calls(); refund != 1 {
		t.Errorf("refund calls after resume = %d, want 1", refund)
	}

	latest, err := h.sagaLog.Latest(context.Background(), order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if latest.CompensationFailed {
		t.Error("CompensationFailed set although the refund landed")
	}
}

func TestResumeTerminalOrderIsNoOp(t *testing.T) {
	h := newHarness(t, &scriptedGateway{})
	order := newTestOrder()

	if _, err := h.cmd.PlaceOrder(context.Background(), order); err != nil {
		t.Fatal(err)
	}
	payBefore, _, shipBefore, notifyBefore := h.gw.calls()

	res, err := h.cmd.Resume(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if res.FinalPhase != domain.PhaseCompleted {
		t.Errorf("final phase = %s, want COMPLETED", res.FinalPhase)
	}

	pay, _, ship, notify := h.gw.calls()
	if pay != payBefore || ship != shipBefore || notify != notifyBefore {
		t.Error("resuming a terminal order re-executed side effects")
	}
}

func TestResumeUnknownOrder(t *testing.T) {
	h := newHarness(t, &scriptedGateway{})

	_, err := h.cmd.Resume(context.Background(), "no-such-order")
	if !errors.Is(err, storage.ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestResumeAllDrainsInFlightOrders(t *testing.T) {
	h := newHarness(t, &scriptedGateway{})
	h.sagaLog.failFrom = 4

	first := newTestOrder()
	if _, err := h.cmd.PlaceOrder(context.Background(), first); err == nil {
		t.Fatal("first PlaceOrder succeeded, want crash")
	}

	// Re-arm the crash for the second order.
	h.sagaLog.mu.Lock()
	h.sagaLog.appends = 0
	h.sagaLog.mu.Unlock()

	second := newTestOrder()
	if _, err := h.cmd.PlaceOrder(context.Background(), second); err == nil {
		t.Fatal("second PlaceOrder succeeded, want crash")
	}

	h.sagaLog.heal()
	if err := h.cmd.ResumeAll(context.Background()); err != nil {
		t.Fatalf("ResumeAll: %v", err)
	}

	inflight, err := h.sagaLog.InFlight(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(inflight) != 0 {
		t.Errorf("in-flight after ResumeAll = %v, want none", inflight)
	}
	for _, id := range []string{first.ID, second.ID} {
		latest, err := h.sagaLog.Latest(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if latest.Phase != domain.PhaseCompleted {
			t.Errorf("order %s phase = %s, want COMPLETED", id, latest.Phase)
		}
	}
}
