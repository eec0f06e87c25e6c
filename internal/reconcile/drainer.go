package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/ordersvc/commander/internal/core/domain"
	"github.com/ordersvc/commander/internal/retry"
	"github.com/ordersvc/commander/internal/service"
)

// Drainer re-attempts delivery of notifications that were parked on the
// fallback queue while the messaging service was down. Delivery goes through
// the messaging adapter, so a notification that actually went out before a
// crash is recognized by its request ID and not sent twice.
type Drainer struct {
	cfg       Config
	retryCfg  retry.Config
	queue     service.FallbackQueue
	messaging service.Remote
	log       *slog.Logger
}

// NewDrainer creates a drainer.
func NewDrainer(cfg Config, retryCfg retry.Config, queue service.FallbackQueue, messaging service.Remote, log *slog.Logger) *Drainer {
	if log == nil {
		log = slog.Default()
	}
	return &Drainer{
		cfg:       cfg.withDefaults(),
		retryCfg:  retryCfg,
		queue:     queue,
		messaging: messaging,
		log:       log.With("component", "drainer"),
	}
}

// Run drains on the configured interval until ctx is done.
func (d *Drainer) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.Drain(ctx); err != nil {
				d.log.Warn("drain cycle failed", "error", err)
			}
		}
	}
}

// Drain pops up to DrainBatch notifications and re-attempts delivery. A
// notification that still cannot be delivered goes back to the queue and ends
// the cycle; one that exceeded its attempt budget is dropped with an error
// log. Returns the number delivered.
func (d *Drainer) Drain(ctx context.Context) (int, error) {
	delivered := 0
	for i := 0; i < d.cfg.DrainBatch; i++ {
		n, found, err := d.queue.Dequeue(ctx)
		if err != nil {
			return delivered, err
		}
		if !found {
			return delivered, nil
		}

		if err := d.deliver(ctx, n); err != nil {
			if domain.Classify(err) == domain.FailureTerminal {
				d.log.Error("notification rejected, dropping", "order_id", n.OrderID, "error", err)
				continue
			}

			n.Attempts++
			if n.Attempts >= d.cfg.MaxDeliveryAttempts {
				d.log.Error("notification exceeded delivery attempts, dropping",
					"order_id", n.OrderID, "attempts", n.Attempts)
				continue
			}
			// Still undeliverable; park it again and stop this cycle, the
			// downstream is likely down for everything behind it too.
			if qerr := d.queue.Enqueue(ctx, n); qerr != nil {
				d.log.Error("failed to re-enqueue notification", "order_id", n.OrderID, "error", qerr)
			}
			return delivered, nil
		}
		delivered++
		d.log.Info("queued notification delivered", "order_id", n.OrderID, "attempts", n.Attempts)
	}
	return delivered, nil
}

func (d *Drainer) deliver(ctx context.Context, n *domain.QueuedNotification) error {
	req, err := service.MessagingRequest(&domain.Order{ID: n.OrderID}, n.Message)
	if err != nil {
		return err
	}
	return retry.Do(ctx, d.retryCfg, func(ctx context.Context) error {
		_, err := d.messaging.Execute(ctx, req)
		return err
	})
}
