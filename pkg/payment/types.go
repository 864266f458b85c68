package payment

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle state of a payment order.
type OrderStatus string

const (
	// OrderCreated means the gateway order exists and awaits payment.
	OrderCreated OrderStatus = "created"
	// OrderCompleted means the payment was verified and the subscription
	// activated.
	OrderCompleted OrderStatus = "completed"
	// OrderFailed means verification failed, most often a bad signature.
	OrderFailed OrderStatus = "failed"
	// OrderCancelled means the order was abandoned before payment.
	OrderCancelled OrderStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderCompleted, OrderFailed, OrderCancelled:
		return true
	default:
		return false
	}
}

// Order is one checkout attempt. GatewayOrderID is the gateway's own
// identifier, which the client echoes back during verification.
// GatewayStatus is the provider's status for the payment ("captured",
// "authorized", ...), recorded at verification time for reconciliation.
type Order struct {
	ID             uuid.UUID   `json:"id"`
	OwnerID        uuid.UUID   `json:"ownerId"`
	PlanID         string      `json:"planType"`
	GatewayOrderID string      `json:"orderId"`
	Amount         int64       `json:"amount"`
	Currency       string      `json:"currency"`
	Status         OrderStatus `json:"status"`
	PaymentID      string      `json:"paymentId,omitempty"`
	GatewayStatus  string      `json:"gatewayStatus,omitempty"`
	Signature      string      `json:"-"`
	FailureReason  string      `json:"failureReason,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// GatewayOrder is the gateway's view of a freshly created order.
type GatewayOrder struct {
	ID       string
	Amount   int64
	Currency string
}
