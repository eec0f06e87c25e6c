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

// MessagePayload is the operation payload for the messaging step.
type MessagePayload struct {
	Message string `json:"message"`
}

// MessagingRequest builds the notification step request for an order.
func MessagingRequest(order *domain.Order, message string) (domain.OperationRequest, error) {
	payload, err := json.Marshal(MessagePayload{Message: message})
	if err != nil {
		return domain.OperationRequest{}, fmt.Errorf("marshal message payload: %w", err)
	}
	return domain.OperationRequest{
		RequestID: domain.RequestID(order.ID, domain.StepMessaging),
		OrderID:   order.ID,
		Step:      domain.StepMessaging,
		Payload:   string(payload),
	}, nil
}

// Messaging adapts the notification client into an idempotent saga step.
// Messaging is non-critical: when it stays unavailable the commander parks
// the notification on the fallback queue instead of compensating the saga.
type Messaging struct {
	executor
	gw gateway.Messaging
}

// NewMessaging creates the messaging service adapter.
func NewMessaging(gw gateway.Messaging, records storage.OperationRecordRepository, log *slog.Logger) *Messaging {
	return &Messaging{
		executor: newExecutor("messaging", records, log),
		gw:       gw,
	}
}

// Name implements Remote.
func (m *Messaging) Name() string { return m.name }

// Execute delivers the notification at most once per request ID.
func (m *Messaging) Execute(ctx context.Context, req domain.OperationRequest) (domain.Result, error) {
	var payload MessagePayload
	if err := json.Unmarshal([]byte(req.Payload), &payload); err != nil {
		return domain.Result{}, fmt.Errorf("decode message payload: %w", err)
	}
	return m.run(ctx, req.RequestID, req.OrderID, func(ctx context.Context) (string, error) {
		if err := m.gw.Notify(ctx, req.OrderID, payload.Message); err != nil {
			return "", err
		}
		return "delivered", nil
	})
}

// FallbackQueue is the durable queue notifications fall back to when the
// messaging service stays unavailable. It is assumed always available or
// retried by its own infrastructure.
type FallbackQueue interface {
	Enqueue(ctx context.Context, n *domain.QueuedNotification) error
	Dequeue(ctx context.Context) (n *domain.QueuedNotification, found bool, err error)
	Len(ctx context.Context) (int, error)
}
