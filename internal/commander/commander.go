// Package commander drives the order saga: payment, shipping and messaging in
// order, with retries per step, compensation of critical steps on failure and
// a durable saga log that makes every decision resumable after a crash.
package commander

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ordersvc/commander/internal/core/domain"
	"github.com/ordersvc/commander/internal/infra/storage"
	"github.com/ordersvc/commander/internal/metrics"
	"github.com/ordersvc/commander/internal/retry"
	"github.com/ordersvc/commander/internal/service"
)

// Config tunes the orchestrator.
type Config struct {
	// StepTimeout bounds a single downstream attempt, not the whole retry
	// series.
	StepTimeout time.Duration `yaml:"step_timeout"`
	Retry       retry.Config  `yaml:"retry"`
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{
	StepTimeout: 10 * time.Second,
	Retry:       retry.DefaultConfig,
}

// Deps are the collaborators the commander coordinates.
type Deps struct {
	Payment   service.Compensable
	Shipping  service.Remote
	Messaging service.Remote
	Fallback  service.FallbackQueue
	SagaLog   storage.SagaLogRepository
	Records   storage.OperationRecordRepository
	Log       *slog.Logger
}

// Commander is the saga orchestrator. It is safe for concurrent use: each
// order is driven by exactly one goroutine and all shared state lives behind
// the repositories.
type Commander struct {
	cfg       Config
	payment   service.Compensable
	shipping  service.Remote
	messaging service.Remote
	fallback  service.FallbackQueue
	sagaLog   storage.SagaLogRepository
	records   storage.OperationRecordRepository
	log       *slog.Logger
}

// New creates a commander.
func New(cfg Config, deps Deps) *Commander {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	return &Commander{
		cfg:       cfg,
		payment:   deps.Payment,
		shipping:  deps.Shipping,
		messaging: deps.Messaging,
		fallback:  deps.Fallback,
		sagaLog:   deps.SagaLog,
		records:   deps.Records,
		log:       log.With("component", "commander"),
	}
}

// PlaceOrder drives a freshly created order through the whole saga and returns
// its terminal outcome. A non-nil error means the orchestrator could not bring
// the order to a terminal phase (saga log unavailable, context cancelled); the
// order stays in-flight and is picked up by Resume.
func (c *Commander) PlaceOrder(ctx context.Context, order *domain.Order) (*domain.OrderResult, error) {
	payload, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("marshal order %s: %w", order.ID, err)
	}
	entry := &domain.SagaLogEntry{
		OrderID:   order.ID,
		Phase:     domain.PhaseCreated,
		Payload:   string(payload),
		CreatedAt: time.Now().UTC(),
	}
	if err := c.sagaLog.Append(ctx, entry); err != nil {
		return nil, &domain.SagaLogWriteError{OrderID: order.ID, Phase: domain.PhaseCreated, Err: err}
	}
	c.log.Info("order accepted", "order_id", order.ID, "amount", order.Amount)
	return c.run(ctx, order, "")
}

// run is the state machine. It is entered at order.Phase and loops until the
// order reaches a terminal phase or a fatal error stops it mid-flight. Both
// PlaceOrder and Resume funnel into it, so every step behaves identically on
// first execution and on replay.
func (c *Commander) run(ctx context.Context, order *domain.Order, reason string) (*domain.OrderResult, error) {
	for {
		switch order.Phase {
		case domain.PhaseCreated:
			req, err := service.PaymentRequest(order)
			if err != nil {
				return nil, err
			}
			if err := c.transition(ctx, order, domain.PhasePaymentPending, req.RequestID, "", false); err != nil {
				return nil, err
			}

		case domain.PhasePaymentPending:
			req, err := service.PaymentRequest(order)
			if err != nil {
				return nil, err
			}
			if _, err := c.executeStep(ctx, c.payment, req); err != nil {
				if fatal(err) {
					return nil, err
				}
				reason = err.Error()
				c.log.Warn("payment failed, compensating", "order_id", order.ID, "error", err)
				if err := c.transition(ctx, order, domain.PhaseCompensating, req.RequestID, reason, false); err != nil {
					return nil, err
				}
				continue
			}
			if err := c.transition(ctx, order, domain.PhasePaymentDone, req.RequestID, "", false); err != nil {
				return nil, err
			}

		case domain.PhasePaymentDone:
			req, err := service.ShippingRequest(order)
			if err != nil {
				return nil, err
			}
			if err := c.transition(ctx, order, domain.PhaseShippingPending, req.RequestID, "", false); err != nil {
				return nil, err
			}

		case domain.PhaseShippingPending:
			req, err := service.ShippingRequest(order)
			if err != nil {
				return nil, err
			}
			if _, err := c.executeStep(ctx, c.shipping, req); err != nil {
				if fatal(err) {
					return nil, err
				}
				reason = err.Error()
				c.log.Warn("shipping failed, compensating", "order_id", order.ID, "error", err)
				if err := c.transition(ctx, order, domain.PhaseCompensating, req.RequestID, reason, false); err != nil {
					return nil, err
				}
				continue
			}
			if err := c.transition(ctx, order, domain.PhaseShippingDone, req.RequestID, "", false); err != nil {
				return nil, err
			}

		case domain.PhaseShippingDone:
			message := fmt.Sprintf("order %s has shipped", order.ID)
			req, err := service.MessagingRequest(order, message)
			if err != nil {
				return nil, err
			}
			if _, err := c.executeStep(ctx, c.messaging, req); err != nil {
				if fatal(err) {
					return nil, err
				}
				// Messaging is non-critical: park the notification on the
				// fallback queue and keep the saga moving forward.
				c.parkNotification(ctx, order, message, err)
			}
			if err := c.transition(ctx, order, domain.PhaseNotified, req.RequestID, "", false); err != nil {
				return nil, err
			}

		case domain.PhaseNotified:
			if err := c.transition(ctx, order, domain.PhaseCompleted, "", "", false); err != nil {
				return nil, err
			}
			metrics.OrdersTotal.WithLabelValues(string(domain.PhaseCompleted)).Inc()
			c.log.Info("order completed", "order_id", order.ID)

		case domain.PhaseCompensating:
			compFailed, err := c.compensatePayment(ctx, order)
			if err != nil {
				return nil, err
			}
			if err := c.transition(ctx, order, domain.PhaseFailed, "", reason, compFailed); err != nil {
				return nil, err
			}
			metrics.OrdersTotal.WithLabelValues(string(domain.PhaseFailed)).Inc()
			c.log.Warn("order failed", "order_id", order.ID, "reason", reason, "compensation_failed", compFailed)

		case domain.PhaseCompleted, domain.PhaseFailed:
			return &domain.OrderResult{
				OrderID:    order.ID,
				FinalPhase: order.Phase,
				Reason:     reason,
			}, nil

		default:
			return nil, fmt.Errorf("order %s in unknown phase %s", order.ID, order.Phase)
		}
	}
}

// transition appends the phase change to the saga log and only then advances
// the in-memory order. An append failure is fatal to the order: without the
// durable record no further side effects are allowed.
func (c *Commander) transition(ctx context.Context, order *domain.Order, next domain.Phase, requestID, reason string, compFailed bool) error {
	if !order.Phase.CanTransition(next) {
		return fmt.Errorf("illegal transition %s -> %s for order %s", order.Phase, next, order.ID)
	}
	entry := &domain.SagaLogEntry{
		OrderID:            order.ID,
		Phase:              next,
		RequestID:          requestID,
		Reason:             reason,
		CompensationFailed: compFailed,
		CreatedAt:          time.Now().UTC(),
	}
	if err := c.sagaLog.Append(ctx, entry); err != nil {
		return &domain.SagaLogWriteError{OrderID: order.ID, Phase: next, Err: err}
	}
	order.Phase = next
	return nil
}

// executeStep runs one saga step under the retry policy, each attempt bounded
// by the step timeout. A deadline hit surfaces as a transient unavailability
// of the step's service.
func (c *Commander) executeStep(ctx context.Context, svc service.Remote, req domain.OperationRequest) (domain.Result, error) {
	timer := prometheus.NewTimer(metrics.StepLatency.WithLabelValues(string(req.Step)))
	defer timer.ObserveDuration()

	var res domain.Result
	err := retry.Do(ctx, c.cfg.Retry, func(ctx context.Context) error {
		stepCtx, cancel := c.stepContext(ctx)
		defer cancel()
		r, err := svc.Execute(stepCtx, req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return &domain.UnavailableError{Service: svc.Name(), Err: err}
			}
			return err
		}
		res = r
		return nil
	})
	return res, err
}

func (c *Commander) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.StepTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.StepTimeout)
}

// compensatePayment undoes the payment if, and only if, its effect actually
// landed. Whether it landed is read from the operation record, so a resumed
// compensation after a crash makes the same decision as the original run.
// The returned bool reports whether compensation was needed but could not be
// carried out; such orders are escalated for manual reconciliation.
func (c *Commander) compensatePayment(ctx context.Context, order *domain.Order) (bool, error) {
	req, err := service.PaymentRequest(order)
	if err != nil {
		return false, err
	}

	var rec *domain.OperationRecord
	err = retry.Do(ctx, c.cfg.Retry, func(ctx context.Context) error {
		r, err := c.records.Get(ctx, req.RequestID)
		if errors.Is(err, domain.ErrRecordNotFound) {
			rec = nil
			return nil
		}
		if err != nil {
			return &domain.UnavailableError{Service: "records", Err: err}
		}
		rec = r
		return nil
	})
	if err != nil {
		return false, err
	}
	if rec == nil || rec.Outcome != domain.OutcomeSucceeded {
		// Payment never took effect; nothing to undo.
		return false, nil
	}

	err = retry.Do(ctx, c.cfg.Retry, func(ctx context.Context) error {
		stepCtx, cancel := c.stepContext(ctx)
		defer cancel()
		_, err := c.payment.Compensate(stepCtx, req)
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return &domain.UnavailableError{Service: c.payment.Name(), Err: err}
		}
		return err
	})
	if err != nil {
		if fatal(err) {
			return false, err
		}
		metrics.CompensationsTotal.WithLabelValues(string(domain.StepPayment), "failure").Inc()
		compErr := &domain.CompensationFailedError{
			OrderID:   order.ID,
			RequestID: domain.CompensationRequestID(req.RequestID),
			Err:       err,
		}
		c.log.Error("compensation failed, escalating", "order_id", order.ID, "error", compErr)
		return true, nil
	}
	metrics.CompensationsTotal.WithLabelValues(string(domain.StepPayment), "success").Inc()
	return false, nil
}

// parkNotification places an undeliverable notification on the fallback
// queue. The queue is assumed available; a failed enqueue is logged loudly but
// never fails the order.
func (c *Commander) parkNotification(ctx context.Context, order *domain.Order, message string, cause error) {
	n := &domain.QueuedNotification{
		OrderID:    order.ID,
		Message:    message,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := c.fallback.Enqueue(ctx, n); err != nil {
		c.log.Error("failed to enqueue fallback notification", "order_id", order.ID, "error", err)
		return
	}
	metrics.FallbackEnqueuedTotal.Inc()
	c.log.Warn("notification parked on fallback queue", "order_id", order.ID, "cause", cause)
}

// fatal reports whether err must stop the state machine. Transient exhaustion
// and business rejections are handled by the saga itself; everything else
// (cancellation, saga log failures, idempotency conflicts) is not.
func fatal(err error) bool {
	return domain.Classify(err) == domain.FailureFatal
}
