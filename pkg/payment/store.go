package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines payment order persistence.
type Store interface {
	// Insert persists a new order in status created.
	Insert(ctx context.Context, order *Order) error

	// GetByGatewayOrderID returns the order with the given gateway
	// identifier. Returns ErrOrderNotFound when none exists.
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Order, error)

	// MarkCompleted transitions an order from created to completed,
	// recording the payment id, signature, and the gateway's own payment
	// status. Returns ErrOrderAlreadyProcessed when the order is no
	// longer in created.
	MarkCompleted(ctx context.Context, id uuid.UUID, paymentID, signature, gatewayStatus string, at time.Time) error

	// MarkFailed transitions an order from created to failed with a reason.
	// A no-op when the order is already terminal.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) error

	// CancelStale flips orders still in created whose creation time is
	// before the cutoff to cancelled. Returns the number of rows changed.
	CancelStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Transactor runs a function inside a storage transaction.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
