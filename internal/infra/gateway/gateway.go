// Package gateway holds the clients for the downstream collaborators the
// commander coordinates: the payment gateway, the shipping gateway and the
// notification service. Clients translate transport-level failures into the
// domain error taxonomy, so the orchestrator never sees a raw network error.
package gateway

import (
	"context"

	"github.com/ordersvc/commander/internal/core/domain"
)

// Payment is the payment gateway client.
type Payment interface {
	// Pay charges the order amount. Returns the gateway transaction
	// reference on success.
	Pay(ctx context.Context, orderID string, amount int64) (txnRef string, err error)

	// Refund reverses a previously successful charge. Refunding a charge
	// that never landed is a no-op on the gateway side.
	Refund(ctx context.Context, orderID string) (txnRef string, err error)
}

// Shipping is the shipping gateway client.
type Shipping interface {
	// Ship books a shipment for the order items. Returns the shipment
	// reference on success.
	Ship(ctx context.Context, orderID string, items []domain.LineItem) (shipmentRef string, err error)
}

// Messaging is the notification client.
type Messaging interface {
	// Notify delivers a message about the order to the customer.
	Notify(ctx context.Context, orderID, message string) error
}
