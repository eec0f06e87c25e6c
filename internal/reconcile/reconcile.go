// Package reconcile runs the background maintenance the saga relies on:
// sweeping the idempotency store and draining the notification fallback
// queue.
package reconcile

import "time"

// Config tunes the background workers.
type Config struct {
	// SweepInterval is how often the record sweeper runs.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// PendingTTL is how long a PENDING record may sit before it is
	// considered orphaned and deleted, making its key safe to retry.
	PendingTTL time.Duration `yaml:"pending_ttl"`

	// Retention is how long terminal records are kept so duplicate requests
	// keep being answered from the store.
	Retention time.Duration `yaml:"retention"`

	// DrainInterval is how often the fallback queue drainer runs.
	DrainInterval time.Duration `yaml:"drain_interval"`

	// DrainBatch caps the notifications re-attempted per drain cycle.
	DrainBatch int `yaml:"drain_batch"`

	// MaxDeliveryAttempts caps how many drain cycles may re-attempt one
	// notification before it is dropped.
	MaxDeliveryAttempts int `yaml:"max_delivery_attempts"`
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{
	SweepInterval:       time.Minute,
	PendingTTL:          5 * time.Minute,
	Retention:           24 * time.Hour,
	DrainInterval:       30 * time.Second,
	DrainBatch:          50,
	MaxDeliveryAttempts: 10,
}

func (c Config) withDefaults() Config {
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultConfig.SweepInterval
	}
	if c.PendingTTL <= 0 {
		c.PendingTTL = DefaultConfig.PendingTTL
	}
	if c.Retention <= 0 {
		c.Retention = DefaultConfig.Retention
	}
	if c.DrainInterval <= 0 {
		c.DrainInterval = DefaultConfig.DrainInterval
	}
	if c.DrainBatch <= 0 {
		c.DrainBatch = DefaultConfig.DrainBatch
	}
	if c.MaxDeliveryAttempts <= 0 {
		c.MaxDeliveryAttempts = DefaultConfig.MaxDeliveryAttempts
	}
	return c
}
