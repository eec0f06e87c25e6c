package domain

import (
	"time"

	"github.com/google/uuid"
)

// Phase represents the saga lifecycle state of an order.
type Phase string

const (
	PhaseCreated         Phase = "CREATED"
	PhasePaymentPending  Phase = "PAYMENT_PENDING"
	PhasePaymentDone     Phase = "PAYMENT_DONE"
	PhaseShippingPending Phase = "SHIPPING_PENDING"
	PhaseShippingDone    Phase = "SHIPPING_DONE"
	PhaseNotified        Phase = "NOTIFIED"
	PhaseCompensating    Phase = "COMPENSATING"
	PhaseFailed          Phase = "FAILED"
	PhaseCompleted       Phase = "COMPLETED"
)

// phaseRank orders the forward path. COMPENSATING and FAILED sit outside the
// forward path and are handled separately by CanTransition.
var phaseRank = map[Phase]int{
	PhaseCreated:         0,
	PhasePaymentPending:  1,
	PhasePaymentDone:     2,
	PhaseShippingPending: 3,
	PhaseShippingDone:    4,
	PhaseNotified:        5,
	PhaseCompleted:       6,
}

// Terminal reports whether a phase is an end state.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// Pending reports whether a phase is a *_PENDING state, i.e. a step was
// started but its completion was never recorded.
func (p Phase) Pending() bool {
	return p == PhasePaymentPending || p == PhaseShippingPending
}

// CanTransition reports whether moving from p to next is a legal phase
// transition. Forward transitions must be strictly increasing; the only
// side-branch is any non-terminal phase -> COMPENSATING -> FAILED.
func (p Phase) CanTransition(next Phase) bool {
	if next == PhaseCompensating {
		return !p.Terminal() && p != PhaseCompensating
	}
	if p == PhaseCompensating {
		return next == PhaseFailed
	}
	from, okFrom := phaseRank[p]
	to, okTo := phaseRank[next]
	if !okFrom || !okTo {
		return false
	}
	return to > from
}

// LineItem is a single ordered item.
type LineItem struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// Order is the unit of work driven through the saga. It is owned exclusively
// by the commander goroutine processing it; everything shared lives behind
// the saga log and the operation record store.
type Order struct {
	ID         string     `json:"id"`
	CustomerID string     `json:"customer_id"`
	Items      []LineItem `json:"items"`
	Amount     int64      `json:"amount"` // minor currency units
	Phase      Phase      `json:"phase"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewOrder creates an order in the CREATED phase with a fresh ID.
func NewOrder(customerID string, items []LineItem, amount int64) *Order {
	return &Order{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Items:      items,
		Amount:     amount,
		Phase:      PhaseCreated,
		CreatedAt:  time.Now().UTC(),
	}
}

// OrderResult is what the caller of PlaceOrder receives. Intermediate retries
// and compensations are visible only through logs and metrics.
type OrderResult struct {
	OrderID    string `json:"order_id"`
	FinalPhase Phase  `json:"final_phase"`
	Reason     string `json:"reason,omitempty"`
}
