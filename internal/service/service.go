// Package service adapts the downstream gateways into saga steps. Every
// adapter routes its side effect through the operation record store, turning
// at-least-once delivery of a request ID into an at-most-once applied effect.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ordersvc/commander/internal/core/domain"
	"github.com/ordersvc/commander/internal/infra/storage"
	"github.com/ordersvc/commander/internal/metrics"
)

// Remote is a single downstream collaborator in the saga.
type Remote interface {
	// Name identifies the service in logs, metrics and errors.
	Name() string

	// Execute applies the operation for req at most once. Repeated delivery
	// of the same request ID returns the recorded outcome without
	// re-executing the side effect.
	Execute(ctx context.Context, req domain.OperationRequest) (domain.Result, error)
}

// Compensable is a Remote whose effect can be undone.
type Compensable interface {
	Remote

	// Compensate undoes a previously executed request. The compensation has
	// its own deterministically derived request ID, so it is idempotent in
	// exactly the same way as the forward operation.
	Compensate(ctx context.Context, req domain.OperationRequest) (domain.Result, error)
}

// pendingPollInterval is how often a duplicate caller polls a PENDING record
// while the first caller's side effect is still in flight.
const pendingPollInterval = 20 * time.Millisecond

// executor implements the idempotent execution protocol shared by all
// adapters.
type executor struct {
	name    string
	records storage.OperationRecordRepository
	log     *slog.Logger
}

func newExecutor(name string, records storage.OperationRecordRepository, log *slog.Logger) executor {
	if log == nil {
		log = slog.Default()
	}
	return executor{name: name, records: records, log: log.With("service", name)}
}

// run executes effect at most once for requestID. The first caller to insert
// the PENDING record performs the side effect; duplicates either return the
// recorded terminal outcome or await the in-flight attempt. A transient
// failure releases the record so the retry policy can drive a fresh attempt
// with the same key.
func (e *executor) run(ctx context.Context, requestID, orderID string, effect func(ctx context.Context) (string, error)) (domain.Result, error) {
	rec, created, err := e.records.RecordIfAbsent(ctx, &domain.OperationRecord{
		RequestID: requestID,
		OrderID:   orderID,
	})
	if err != nil {
		// The idempotency store is infrastructure: treat its outage like
		// any other transient downstream failure.
		return domain.Result{}, &domain.UnavailableError{Service: e.name, Err: err}
	}

	if !created {
		if rec.Outcome.Terminal() {
			metrics.DuplicatesSuppressedTotal.WithLabelValues(e.name).Inc()
			e.log.Debug("duplicate request served from record store", "request_id", requestID, "outcome", rec.Outcome)
			return recordResult(e.name, rec)
		}
		return e.awaitPending(ctx, requestID)
	}

	metrics.DownstreamCallsTotal.WithLabelValues(e.name).Inc()
	payload, err := effect(ctx)
	if err != nil {
		return domain.Result{}, e.recordFailure(ctx, requestID, err)
	}

	if err := e.records.Complete(ctx, requestID, domain.OutcomeSucceeded, payload, ""); err != nil {
		var terminal *domain.AlreadyTerminalError
		if errors.As(err, &terminal) {
			// Two different outcomes for one request ID is a logic bug.
			e.log.Error("idempotency conflict", "request_id", requestID, "error", err)
			return domain.Result{}, err
		}
		return domain.Result{}, &domain.UnavailableError{Service: e.name, Err: err}
	}
	return domain.Result{Status: domain.ResultSuccess, Payload: payload}, nil
}

// recordFailure completes or releases the record depending on the failure
// class, then returns the original error.
func (e *executor) recordFailure(ctx context.Context, requestID string, cause error) error {
	switch domain.Classify(cause) {
	case domain.FailureTerminal:
		// A definitive rejection is cached: redelivery of the same request
		// ID must observe the same refusal, not retry the gateway.
		if err := e.records.Complete(ctx, requestID, domain.OutcomeFailed, "", cause.Error()); err != nil {
			var terminal *domain.AlreadyTerminalError
			if errors.As(err, &terminal) {
				e.log.Error("idempotency conflict", "request_id", requestID, "error", err)
				return err
			}
			e.log.Warn("failed to record rejection", "request_id", requestID, "error", err)
		}
	default:
		// The side effect did not complete; free the key so the same
		// request ID can be attempted again. Release uses a background
		// context: the caller may already be cancelled, but leaving the
		// record PENDING would block every future retry until the TTL
		// sweep.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := e.records.Release(releaseCtx, requestID); err != nil {
			e.log.Warn("failed to release pending record", "request_id", requestID, "error", err)
		}
	}
	return cause
}

// awaitPending polls an in-flight record until it becomes terminal, the
// first caller releases it, or ctx is done.
func (e *executor) awaitPending(ctx context.Context, requestID string) (domain.Result, error) {
	ticker := time.NewTicker(pendingPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return domain.Result{}, ctx.Err()
		case <-ticker.C:
		}

		rec, err := e.records.Get(ctx, requestID)
		if errors.Is(err, domain.ErrRecordNotFound) {
			// The owning attempt failed transiently and released the key.
			return domain.Result{}, &domain.UnavailableError{
				Service: e.name,
				Err:     fmt.Errorf("in-flight attempt for %s was released", requestID),
			}
		}
		if err != nil {
			return domain.Result{}, &domain.UnavailableError{Service: e.name, Err: err}
		}
		if rec.Outcome.Terminal() {
			metrics.DuplicatesSuppressedTotal.WithLabelValues(e.name).Inc()
			return recordResult(e.name, rec)
		}
	}
}

// recordResult converts a terminal record back into the result the original
// caller observed.
func recordResult(service string, rec *domain.OperationRecord) (domain.Result, error) {
	if rec.Outcome == domain.OutcomeSucceeded {
		return domain.Result{Status: domain.ResultSuccess, Payload: rec.Payload}, nil
	}
	return domain.Result{}, &domain.RejectionError{Service: service, Reason: rec.Reason}
}
