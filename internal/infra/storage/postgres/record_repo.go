package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ordersvc/commander/internal/core/domain"
)

// RecordRepo implements OperationRecordRepository on PostgreSQL. The
// check-and-insert is a single INSERT ... ON CONFLICT DO NOTHING so two
// concurrent callers for the same request ID cannot both win.
type RecordRepo struct {
	db *DB
}

// NewRecordRepo creates a postgres-backed record repository.
func NewRecordRepo(db *DB) *RecordRepo {
	return &RecordRepo{db: db}
}

type recordRow struct {
	RequestID   string       `db:"request_id"`
	OrderID     string       `db:"order_id"`
	Outcome     string       `db:"outcome"`
	Payload     string       `db:"payload"`
	Reason      string       `db:"reason"`
	CreatedAt   time.Time    `db:"created_at"`
	CompletedAt sql.NullTime `db:"completed_at"`
}

func (r recordRow) toDomain() *domain.OperationRecord {
	rec := &domain.OperationRecord{
		RequestID: r.RequestID,
		OrderID:   r.OrderID,
		Outcome:   domain.Outcome(r.Outcome),
		Payload:   r.Payload,
		Reason:    r.Reason,
		CreatedAt: r.CreatedAt,
	}
	if r.CompletedAt.Valid {
		rec.CompletedAt = r.CompletedAt.Time
	}
	return rec
}

// RecordIfAbsent atomically inserts a PENDING record unless one exists.
func (r *RecordRepo) RecordIfAbsent(ctx context.Context, rec *domain.OperationRecord) (*domain.OperationRecord, bool, error) {
	const insert = `
		INSERT INTO operation_records (request_id, order_id, outcome)
		VALUES ($1, $2, 'PENDING')
		ON CONFLICT (request_id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, insert, rec.RequestID, rec.OrderID)
	if err != nil {
		return nil, false, fmt.Errorf("insert operation record %q: %w", rec.RequestID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	stored, err := r.Get(ctx, rec.RequestID)
	if err != nil {
		return nil, false, err
	}
	return stored, affected == 1, nil
}

// Complete transitions a PENDING record to a terminal outcome.
func (r *RecordRepo) Complete(ctx context.Context, requestID string, outcome domain.Outcome, payload, reason string) error {
	const update = `
		UPDATE operation_records
		SET    outcome = $2, payload = $3, reason = $4, completed_at = now()
		WHERE  request_id = $1 AND outcome = 'PENDING'`

	res, err := r.db.ExecContext(ctx, update, requestID, string(outcome), payload, reason)
	if err != nil {
		return fmt.Errorf("complete operation record %q: %w", requestID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	// No PENDING row matched: either unknown or already terminal.
	stored, err := r.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if stored.Outcome == outcome {
		return nil // idempotent repeat
	}
	return &domain.AlreadyTerminalError{
		RequestID: requestID,
		Existing:  stored.Outcome,
		Attempted: outcome,
	}
}

// Get retrieves a record by request ID.
func (r *RecordRepo) Get(ctx context.Context, requestID string) (*domain.OperationRecord, error) {
	const query = `
		SELECT request_id, order_id, outcome, payload, reason, created_at, completed_at
		FROM   operation_records
		WHERE  request_id = $1`

	var row recordRow
	if err := r.db.GetContext(ctx, &row, query, requestID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get operation record %q: %w", requestID, err)
	}
	return row.toDomain(), nil
}

// Release deletes a PENDING record so the request ID can be retried.
func (r *RecordRepo) Release(ctx context.Context, requestID string) error {
	const del = `
		DELETE FROM operation_records
		WHERE request_id = $1 AND outcome = 'PENDING'`

	if _, err := r.db.ExecContext(ctx, del, requestID); err != nil {
		return fmt.Errorf("release operation record %q: %w", requestID, err)
	}
	return nil
}

// DeleteStalePending removes PENDING records older than olderThan.
func (r *RecordRepo) DeleteStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	const del = `
		DELETE FROM operation_records
		WHERE outcome = 'PENDING' AND created_at < $1`

	res, err := r.db.ExecContext(ctx, del, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("delete stale pending records: %w", err)
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}

// PurgeTerminal removes terminal records completed before the retention window.
func (r *RecordRepo) PurgeTerminal(ctx context.Context, olderThan time.Duration) (int, error) {
	const del = `
		DELETE FROM operation_records
		WHERE outcome IN ('SUCCEEDED', 'FAILED') AND completed_at < $1`

	res, err := r.db.ExecContext(ctx, del, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("purge terminal records: %w", err)
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}
