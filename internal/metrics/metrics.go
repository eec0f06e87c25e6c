// Package metrics exposes the commander's prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersTotal tracks finished sagas by final phase.
	OrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commander_orders_total",
			Help: "Total number of finished order sagas",
		},
		[]string{"final_phase"},
	)

	// DownstreamCallsTotal tracks side-effecting calls per service.
	DownstreamCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commander_downstream_calls_total",
			Help: "Total number of side-effecting downstream calls",
		},
		[]string{"service"},
	)

	// DuplicatesSuppressedTotal counts requests answered from the
	// idempotency store without re-executing the side effect.
	DuplicatesSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commander_duplicates_suppressed_total",
			Help: "Total number of duplicate requests served from the idempotency store",
		},
		[]string{"service"},
	)

	// CompensationsTotal tracks compensations by step and result.
	CompensationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commander_compensations_total",
			Help: "Total number of compensation attempts",
		},
		[]string{"step", "result"},
	)

	// FallbackEnqueuedTotal counts notifications parked on the fallback queue.
	FallbackEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "commander_fallback_enqueued_total",
			Help: "Total number of notifications parked on the fallback queue",
		},
	)

	// StepLatency tracks wall time per saga step, including retries.
	StepLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "commander_step_latency_seconds",
			Help:    "Saga step latency in seconds, including retries and backoff",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)

	// RecordsSweptTotal counts records removed by the reconciliation sweeper.
	RecordsSweptTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commander_records_swept_total",
			Help: "Total number of operation records removed by the sweeper",
		},
		[]string{"kind"},
	)
)
