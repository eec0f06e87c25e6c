package service

import (
	"context"
	"sync"
	"time"

	"github.com/ordersvc/commander/internal/core/domain"
)

// scriptedGateway fails with the queued errors in order, then succeeds. The
// shape mirrors how the downstream simulators in this repo's integration
// setups inject failures: one scripted error per upcoming call.
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
	delay       time.Duration
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
	g.payCalls++
	err := g.next(&g.payErrs)
	delay := g.delay
	g.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
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

func unavailable(service string) error {
	return &domain.UnavailableError{Service: service}
}

func rejected(service, reason string) error {
	return &domain.RejectionError{Service: service, Reason: reason}
}
