package commander

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ordersvc/commander/internal/core/domain"
	"github.com/ordersvc/commander/internal/infra/storage/memory"
	"github.com/ordersvc/commander/internal/retry"
	"github.com/ordersvc/commander/internal/service"
)

// scriptedGateway fails with the queued errors in order, then succeeds.
type scriptedGateway struct {
	mu          sync.Mutex
	payErrs     []error
	refundErrs  []error
	shipErrs    []error
	notifyErrs  []error
	payCalls    int
	refundCalls int
	shipCalls   int
	notifyCalls int
}

func (g *scriptedGateway) next(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (g *scriptedGateway) Pay(ctx context.Context, orderID string, amount int64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payCalls++
	if err := g.next(&g.payErrs); err != nil {
		return "", err
	}
	return "txn-" + orderID, nil
}

func (g *scriptedGateway) Refund(ctx context.Context, orderID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refundCalls++
	if err := g.next(&g.refundErrs); err != nil {
		return "", err
	}
	return "refund-" + orderID, nil
}

func (g *scriptedGateway) Ship(ctx context.Context, orderID string, items []domain.LineItem) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.shipCalls++
	if err := g.next(&g.shipErrs); err != nil {
		return "", err
	}
	return "ship-" + orderID, nil
}

func (g *scriptedGateway) Notify(ctx context.Context, orderID, message string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.notifyCalls++
	return g.next(&g.notifyErrs)
}

func (g *scriptedGateway) calls() (pay, refund, ship, notify int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.payCalls, g.refundCalls, g.shipCalls, g.notifyCalls
}

func unavailable(svc string) error {
	return &domain.UnavailableError{Service: svc}
}

func rejected(svc, reason string) error {
	return &domain.RejectionError{Service: svc, Reason: reason}
}

var errLogDown = errors.New("saga log unavailable")

// flakySagaLog wraps the in-memory saga log and starts failing Append at the
// n-th call, simulating a crash mid-saga. heal makes appends succeed again so
// a test can resume the interrupted order.
type flakySagaLog struct {
	*memory.SagaLog
	mu       sync.Mutex
	appends  int
	failFrom int // 1-based append index; 0 means never fail
}

func (l *flakySagaLog) Append(ctx context.Context, entry *domain.SagaLogEntry) error {
	l.mu.Lock()
	l.appends++
	n, failFrom := l.appends, l.failFrom
	l.mu.Unlock()
	if failFrom > 0 && n >= failFrom {
		return errLogDown
	}
	return l.SagaLog.Append(ctx, entry)
}

func (l *flakySagaLog) heal() {
	l.mu.Lock()
	l.failFrom = 0
	l.mu.Unlock()
}

// harness wires a commander over in-memory repositories and the scripted
// gateway, with a fast retry policy so failure tests stay quick.
type harness struct {
	gw      *scriptedGateway
	records *memory.RecordStore
	sagaLog *flakySagaLog
	queue   *memory.FallbackQueue
	cmd     *Commander
}

func newHarness(t *testing.T, gw *scriptedGateway) *harness {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	records := memory.NewRecordStore()
	sagaLog := &flakySagaLog{SagaLog: memory.NewSagaLog()}
	queue := memory.NewFallbackQueue()

	cfg := Config{
		StepTimeout: 200 * time.Millisecond,
		Retry: retry.Config{
			MaxAttempts:     2,
			InitialDelay:    time.Millisecond,
			MaxDelay:        2 * time.Millisecond,
			BackoffMultiple: 2.0,
		},
	}
	cmd := New(cfg, Deps{
		Payment:   service.NewPayment(gw, records, log),
		Shipping:  service.NewShipping(gw, records, log),
		Messaging: service.NewMessaging(gw, records, log),
		Fallback:  queue,
		SagaLog:   sagaLog,
		Records:   records,
		Log:       log,
	})
	return &harness{gw: gw, records: records, sagaLog: sagaLog, queue: queue, cmd: cmd}
}

func newTestOrder() *domain.Order {
	order := domain.NewOrder("cust-1", []domain.LineItem{{SKU: "sku-1", Quantity: 2}}, 4200)
	return order
}

// phases returns the logged phase sequence for an order.
func (h *harness) phases(t *testing.T, orderID string) []domain.Phase {
	t.Helper()
	history, err := h.sagaLog.History(context.Background(), orderID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	out := make([]domain.Phase, len(history))
	for i, e := range history {
		out[i] = e.Phase
	}
	return out
}

func assertPhases(t *testing.T, got, want []domain.Phase) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("phases = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("phases = %v, want %v", got, want)
		}
	}
}
