// Package memory provides in-memory implementations of the storage
// repositories, used by tests and by deployments that opt out of postgres.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/ordersvc/commander/internal/core/domain"
	"github.com/ordersvc/commander/internal/infra/storage"
)

// RecordStore is an in-memory OperationRecordRepository. The xsync map gives
// the atomic load-or-compute needed for RecordIfAbsent without a global lock;
// per-record mutation goes through Compute so completion is atomic too.
type RecordStore struct {
	records *xsync.MapOf[string, *domain.OperationRecord]
}

// NewRecordStore creates an empty record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{records: xsync.NewMapOf[string, *domain.OperationRecord]()}
}

// RecordIfAbsent inserts a PENDING record for rec.RequestID unless one exists.
func (s *RecordStore) RecordIfAbsent(ctx context.Context, rec *domain.OperationRecord) (*domain.OperationRecord, bool, error) {
	inserted := &domain.OperationRecord{
		RequestID: rec.RequestID,
		OrderID:   rec.OrderID,
		Outcome:   domain.OutcomePending,
		CreatedAt: time.Now().UTC(),
	}
	actual, loaded := s.records.LoadOrStore(rec.RequestID, inserted)
	return copyRecord(actual), !loaded, nil
}

// Complete moves a PENDING record to a terminal outcome.
func (s *RecordStore) Complete(ctx context.Context, requestID string, outcome domain.Outcome, payload, reason string) error {
	var completeErr error
	s.records.Compute(requestID, func(old *domain.OperationRecord, loaded bool) (*domain.OperationRecord, bool) {
		if !loaded {
			completeErr = domain.ErrRecordNotFound
			return nil, true // delete no-op
		}
		if old.Outcome.Terminal() {
			if old.Outcome == outcome {
				return old, false // idempotent repeat
			}
			completeErr = &domain.AlreadyTerminalError{
				RequestID: requestID,
				Existing:  old.Outcome,
				Attempted: outcome,
			}
			return old, false
		}
		updated := *old
		updated.Outcome = outcome
		updated.Payload = payload
		updated.Reason = reason
		updated.CompletedAt = time.Now().UTC()
		return &updated, false
	})
	return completeErr
}

// Get returns a copy of the record for requestID.
func (s *RecordStore) Get(ctx context.Context, requestID string) (*domain.OperationRecord, error) {
	rec, ok := s.records.Load(requestID)
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return copyRecord(rec), nil
}

// Release deletes a PENDING record so the request ID can be retried.
func (s *RecordStore) Release(ctx context.Context, requestID string) error {
	s.records.Compute(requestID, func(old *domain.OperationRecord, loaded bool) (*domain.OperationRecord, bool) {
		if !loaded || old.Outcome.Terminal() {
			return old, !loaded // keep terminal records, no-op otherwise
		}
		return nil, true // delete the pending record
	})
	return nil
}

// DeleteStalePending removes PENDING records older than olderThan.
func (s *RecordStore) DeleteStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	removed := 0
	s.records.Range(func(key string, rec *domain.OperationRecord) bool {
		if rec.Outcome == domain.OutcomePending && rec.CreatedAt.Before(cutoff) {
			s.records.Delete(key)
			removed++
		}
		return true
	})
	return removed, nil
}

// PurgeTerminal removes terminal records completed before the retention window.
func (s *RecordStore) PurgeTerminal(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	removed := 0
	s.records.Range(func(key string, rec *domain.OperationRecord) bool {
		if rec.Outcome.Terminal() && rec.CompletedAt.Before(cutoff) {
			s.records.Delete(key)
			removed++
		}
		return true
	})
	return removed, nil
}

func copyRecord(rec *domain.OperationRecord) *domain.OperationRecord {
	c := *rec
	return &c
}

// SagaLog is an in-memory SagaLogRepository.
type SagaLog struct {
	mu      sync.RWMutex
	entries map[string][]*domain.SagaLogEntry
	order   []string // insertion order of order IDs, for stable InFlight output
}

// NewSagaLog creates an empty saga log.
func NewSagaLog() *SagaLog {
	return &SagaLog{entries: make(map[string][]*domain.SagaLogEntry)}
}

// Append adds an entry to the order's history.
func (l *SagaLog) Append(ctx context.Context, entry *domain.SagaLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := *entry
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if _, ok := l.entries[e.OrderID]; !ok {
		l.order = append(l.order, e.OrderID)
	}
	l.entries[e.OrderID] = append(l.entries[e.OrderID], &e)
	return nil
}

// Latest returns the most recent entry for orderID.
func (l *SagaLog) Latest(ctx context.Context, orderID string) (*domain.SagaLogEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	history := l.entries[orderID]
	if len(history) == 0 {
		return nil, storage.ErrOrderNotFound
	}
	e := *history[len(history)-1]
	return &e, nil
}

// First returns the oldest entry for orderID.
func (l *SagaLog) First(ctx context.Context, orderID string) (*domain.SagaLogEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	history := l.entries[orderID]
	if len(history) == 0 {
		return nil, storage.ErrOrderNotFound
	}
	e := *history[0]
	return &e, nil
}

// History returns all entries for orderID in append order.
func (l *SagaLog) History(ctx context.Context, orderID string) ([]*domain.SagaLogEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	history := l.entries[orderID]
	if len(history) == 0 {
		return nil, storage.ErrOrderNotFound
	}
	out := make([]*domain.SagaLogEntry, len(history))
	for i, e := range history {
		c := *e
		out[i] = &c
	}
	return out, nil
}

// InFlight returns order IDs whose latest phase is not terminal.
func (l *SagaLog) InFlight(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var ids []string
	for _, id := range l.order {
		history := l.entries[id]
		if len(history) == 0 {
			continue
		}
		if !history[len(history)-1].Phase.Terminal() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Escalations returns order IDs whose FAILED entry has the
// compensation-failed flag.
func (l *SagaLog) Escalations(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var ids []string
	for _, id := range l.order {
		for _, e := range l.entries[id] {
			if e.Phase == domain.PhaseFailed && e.CompensationFailed {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids, nil
}
