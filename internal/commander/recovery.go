package commander

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ordersvc/commander/internal/core/domain"
)

// resumeConcurrency bounds the startup fan-out so a large backlog does not
// stampede the downstream services.
const resumeConcurrency = 8

// Resume re-enters the state machine for an interrupted order. The order is
// rebuilt from the CREATED entry's payload and continued at the phase of the
// latest saga log entry. Steps whose effects already landed before the crash
// are recognized through the operation records and not re-executed.
func (c *Commander) Resume(ctx context.Context, orderID string) (*domain.OrderResult, error) {
	latest, err := c.sagaLog.Latest(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if latest.Phase.Terminal() {
		return &domain.OrderResult{
			OrderID:    orderID,
			FinalPhase: latest.Phase,
			Reason:     latest.Reason,
		}, nil
	}

	first, err := c.sagaLog.First(ctx, orderID)
	if err != nil {
		return nil, err
	}
	var order domain.Order
	if err := json.Unmarshal([]byte(first.Payload), &order); err != nil {
		return nil, fmt.Errorf("rebuild order %s from saga log: %w", orderID, err)
	}
	order.Phase = latest.Phase

	c.log.Info("resuming order", "order_id", orderID, "phase", latest.Phase)
	return c.run(ctx, &order, latest.Reason)
}

// ResumeAll resumes every in-flight order, bounded-concurrently. Individual
// failures do not stop the other resumptions; the first error is returned
// after all of them have finished.
func (c *Commander) ResumeAll(ctx context.Context) error {
	ids, err := c.sagaLog.InFlight(ctx)
	if err != nil {
		return fmt.Errorf("list in-flight orders: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	c.log.Info("resuming in-flight orders", "count", len(ids))

	var g errgroup.Group
	g.SetLimit(resumeConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			if _, err := c.Resume(ctx, id); err != nil {
				c.log.Error("resume failed", "order_id", id, "error", err)
				return fmt.Errorf("resume order %s: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}
