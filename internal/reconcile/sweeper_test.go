package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ordersvc/commander/internal/core/domain"
	"github.com/ordersvc/commander/internal/infra/storage/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweepRemovesStaleAndExpiredRecords(t *testing.T) {
	ctx := context.Background()
	records := memory.NewRecordStore()

	// An orphaned PENDING record and a terminal one past retention.
	if _, _, err := records.RecordIfAbsent(ctx, &domain.OperationRecord{RequestID: "o1:payment", OrderID: "o1"}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := records.RecordIfAbsent(ctx, &domain.OperationRecord{RequestID: "o2:payment", OrderID: "o2"}); err != nil {
		t.Fatal(err)
	}
	if err := records.Complete(ctx, "o2:payment", domain.OutcomeSucceeded, "txn", ""); err != nil {
		t.Fatal(err)
	}

	time.Sleep(10 * time.Millisecond)

	s := NewSweeper(Config{
		PendingTTL: time.Millisecond,
		Retention:  time.Millisecond,
	}, records, discardLogger())
	s.Sweep(ctx)

	if _, err := records.Get(ctx, "o1:payment"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("stale pending record still present: %v", err)
	}
	if _, err := records.Get(ctx, "o2:payment"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("expired terminal record still present: %v", err)
	}
}

func TestSweepKeepsRecordsInsideWindows(t *testing.T) {
	ctx := context.Background()
	records := memory.NewRecordStore()

	if _, _, err := records.RecordIfAbsent(ctx, &domain.OperationRecord{RequestID: "o1:payment", OrderID: "o1"}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := records.RecordIfAbsent(ctx, &domain.OperationRecord{RequestID: "o2:payment", OrderID: "o2"}); err != nil {
		t.Fatal(err)
	}
	if err := records.Complete(ctx, "o2:payment", domain.OutcomeSucceeded, "txn", ""); err != nil {
		t.Fatal(err)
	}

	s := NewSweeper(Config{
		PendingTTL: time.Hour,
		Retention:  time.Hour,
	}, records, discardLogger())
	s.Sweep(ctx)

	if _, err := records.Get(ctx, "o1:payment"); err != nil {
		t.Errorf("fresh pending record was swept: %v", err)
	}
	if _, err := records.Get(ctx, "o2:payment"); err != nil {
		t.Errorf("retained terminal record was swept: %v", err)
	}
}
