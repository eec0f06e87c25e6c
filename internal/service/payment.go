package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ordersvc/commander/internal/core/domain"
	"github.com/ordersvc/commander/internal/infra/gateway"
	"github.com/ordersvc/commander/internal/infra/storage"
)

// PaymentPayload is the operation payload for the payment step.
type PaymentPayload struct {
	Amount int64 `json:"amount"`
}

// PaymentRequest builds the payment step request for an order.
func PaymentRequest(order *domain.Order) (domain.OperationRequest, error) {
	payload, err := json.Marshal(PaymentPayload{Amount: order.Amount})
	if err != nil {
		return domain.OperationRequest{}, fmt.Errorf("marshal payment payload: %w", err)
	}
	return domain.OperationRequest{
		RequestID: domain.RequestID(order.ID, domain.StepPayment),
		OrderID:   order.ID,
		Step:      domain.StepPayment,
		Payload:   string(payload),
	}, nil
}

// Payment adapts the payment gateway into an idempotent, compensable saga
// step.
type Payment struct {
	executor
	gw gateway.Payment
}

// NewPayment creates the payment service adapter.
func NewPayment(gw gateway.Payment, records storage.OperationRecordRepository, log *slog.Logger) *Payment {
	return &Payment{
		executor: newExecutor("payment", records, log),
		gw:       gw,
	}
}

// Name implements Remote.
func (p *Payment) Name() string { return p.name }

// Execute charges the order amount at most once per request ID.
func (p *Payment) Execute(ctx context.Context, req domain.OperationRequest) (domain.Result, error) {
	var payload PaymentPayload
	if err := json.Unmarshal([]byte(req.Payload), &payload); err != nil {
		return domain.Result{}, fmt.Errorf("decode payment payload: %w", err)
	}
	return p.run(ctx, req.RequestID, req.OrderID, func(ctx context.Context) (string, error) {
		return p.gw.Pay(ctx, req.OrderID, payload.Amount)
	})
}

// Compensate refunds a previously executed charge. The compensation key is
// derived from the forward request ID, so a crashed-and-resumed compensation
// is recognized instead of refunding twice.
func (p *Payment) Compensate(ctx context.Context, req domain.OperationRequest) (domain.Result, error) {
	compensationID := domain.CompensationRequestID(req.RequestID)
	return p.run(ctx, compensationID, req.OrderID, func(ctx context.Context) (string, error) {
		return p.gw.Refund(ctx, req.OrderID)
	})
}
