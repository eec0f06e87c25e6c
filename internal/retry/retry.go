// Package retry implements the backoff policy applied to every saga step.
// Only transient failures are retried; terminal and fatal errors propagate
// immediately so a business rejection is never re-executed.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/ordersvc/commander/internal/core/domain"
)

// Config defines retry behavior for one step execution.
type Config struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialDelay    time.Duration `yaml:"initial_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	BackoffMultiple float64       `yaml:"backoff_multiple"`
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{
	MaxAttempts:     3,
	InitialDelay:    100 * time.Millisecond,
	MaxDelay:        5 * time.Second,
	BackoffMultiple: 2.0,
}

// Do executes fn with capped exponential backoff. fn is attempted at most
// cfg.MaxAttempts times; success short-circuits, so the number of underlying
// calls equals the number of attempts actually made. A non-transient error
// returns immediately. Exhaustion returns RetriesExhaustedError wrapping the
// last transient error. The backoff sleep is cancellable through ctx; an
// attempt already in flight is allowed to finish.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		if domain.Classify(err) != domain.FailureTransient {
			return err
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(attempt, cfg)):
		}
	}

	return &domain.RetriesExhaustedError{Attempts: attempts, Err: lastErr}
}

// backoff computes the delay after the given 1-based attempt number:
// initial * multiple^(attempt-1), capped at MaxDelay.
func backoff(attempt int, cfg Config) time.Duration {
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffMultiple, float64(attempt-1))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}
