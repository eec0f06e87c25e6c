package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ordersvc/commander/internal/core/domain"
	"github.com/ordersvc/commander/internal/infra/storage"
)

// SagaLogRepo implements SagaLogRepository on PostgreSQL. Rows are append-only;
// the surrogate id column gives a total order per saga.
type SagaLogRepo struct {
	db *DB
}

// NewSagaLogRepo creates a postgres-backed saga log repository.
func NewSagaLogRepo(db *DB) *SagaLogRepo {
	return &SagaLogRepo{db: db}
}

type sagaLogRow struct {
	OrderID            string    `db:"order_id"`
	Phase              string    `db:"phase"`
	RequestID          string    `db:"request_id"`
	Reason             string    `db:"reason"`
	CompensationFailed bool      `db:"compensation_failed"`
	Payload            string    `db:"payload"`
	CreatedAt          time.Time `db:"created_at"`
}

func (r sagaLogRow) toDomain() *domain.SagaLogEntry {
	return &domain.SagaLogEntry{
		OrderID:            r.OrderID,
		Phase:              domain.Phase(r.Phase),
		RequestID:          r.RequestID,
		Reason:             r.Reason,
		CompensationFailed: r.CompensationFailed,
		Payload:            r.Payload,
		CreatedAt:          r.CreatedAt,
	}
}

const sagaLogColumns = `order_id, phase, request_id, reason, compensation_failed, payload, created_at`

// Append inserts a new log entry.
func (r *SagaLogRepo) Append(ctx context.Context, entry *domain.SagaLogEntry) error {
	const insert = `
		INSERT INTO saga_logs (order_id, phase, request_id, reason, compensation_failed, payload)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, insert,
		entry.OrderID,
		string(entry.Phase),
		entry.RequestID,
		entry.Reason,
		entry.CompensationFailed,
		entry.Payload,
	)
	if err != nil {
		return fmt.Errorf("append saga log for %q: %w", entry.OrderID, err)
	}
	return nil
}

// Latest returns the most recent entry for an order.
func (r *SagaLogRepo) Latest(ctx context.Context, orderID string) (*domain.SagaLogEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM saga_logs
		WHERE order_id = $1
		ORDER BY id DESC LIMIT 1`, sagaLogColumns)

	return r.one(ctx, query, orderID)
}

// First returns the oldest entry for an order (the CREATED entry with payload).
func (r *SagaLogRepo) First(ctx context.Context, orderID string) (*domain.SagaLogEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM saga_logs
		WHERE order_id = $1
		ORDER BY id ASC LIMIT 1`, sagaLogColumns)

	return r.one(ctx, query, orderID)
}

func (r *SagaLogRepo) one(ctx context.Context, query, orderID string) (*domain.SagaLogEntry, error) {
	var row sagaLogRow
	if err := r.db.GetContext(ctx, &row, query, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get saga log for %q: %w", orderID, err)
	}
	return row.toDomain(), nil
}

// History returns all entries for an order in append order.
func (r *SagaLogRepo) History(ctx context.Context, orderID string) ([]*domain.SagaLogEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM saga_logs
		WHERE order_id = $1
		ORDER BY id ASC`, sagaLogColumns)

	var rows []sagaLogRow
	if err := r.db.SelectContext(ctx, &rows, query, orderID); err != nil {
		return nil, fmt.Errorf("saga log history for %q: %w", orderID, err)
	}
	if len(rows) == 0 {
		return nil, storage.ErrOrderNotFound
	}
	entries := make([]*domain.SagaLogEntry, len(rows))
	for i, row := range rows {
		entries[i] = row.toDomain()
	}
	return entries, nil
}

// InFlight returns the IDs of orders whose latest phase is not terminal.
func (r *SagaLogRepo) InFlight(ctx context.Context) ([]string, error) {
	const query = `
		SELECT order_id FROM (
			SELECT DISTINCT ON (order_id) order_id, phase
			FROM saga_logs
			ORDER BY order_id, id DESC
		) latest
		WHERE phase NOT IN ('COMPLETED', 'FAILED')`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("list in-flight sagas: %w", err)
	}
	return ids, nil
}

// Escalations returns orders whose FAILED entry has the compensation-failed flag.
func (r *SagaLogRepo) Escalations(ctx context.Context) ([]string, error) {
	const query = `
		SELECT DISTINCT order_id FROM saga_logs
		WHERE phase = 'FAILED' AND compensation_failed
		ORDER BY order_id`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("list escalations: %w", err)
	}
	return ids, nil
}
