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

// ShippingPayload is the operation payload for the shipping step.
type ShippingPayload struct {
	Items []domain.LineItem `json:"items"`
}

// ShippingRequest builds the shipping step request for an order.
func ShippingRequest(order *domain.Order) (domain.OperationRequest, error) {
	payload, err := json.Marshal(ShippingPayload{Items: order.Items})
	if err != nil {
		return domain.OperationRequest{}, fmt.Errorf("marshal shipping payload: %w", err)
	}
	return domain.OperationRequest{
		RequestID: domain.RequestID(order.ID, domain.StepShipping),
		OrderID:   order.ID,
		Step:      domain.StepShipping,
		Payload:   string(payload),
	}, nil
}

// Shipping adapts the shipping gateway into an idempotent saga step.
type Shipping struct {
	executor
	gw gateway.Shipping
}

// NewShipping creates the shipping service adapter.
func NewShipping(gw gateway.Shipping, records storage.OperationRecordRepository, log *slog.Logger) *Shipping {
	return &Shipping{
		executor: newExecutor("shipping", records, log),
		gw:       gw,
	}
}

// Name implements Remote.
func (s *Shipping) Name() string { return s.name }

// Execute books the shipment at most once per request ID.
func (s *Shipping) Execute(ctx context.Context, req domain.OperationRequest) (domain.Result, error) {
	var payload ShippingPayload
	if err := json.Unmarshal([]byte(req.Payload), &payload); err != nil {
		return domain.Result{}, fmt.Errorf("decode shipping payload: %w", err)
	}
	return s.run(ctx, req.RequestID, req.OrderID, func(ctx context.Context) (string, error) {
		return s.gw.Ship(ctx, req.OrderID, payload.Items)
	})
}
