package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines subscription persistence. Implementations must honor the
// session context so calls participate in the caller's transaction.
type Store interface {
	// Insert persists a new subscription. Returns ErrConflict when another
	// active subscription for the same owner was committed concurrently.
	Insert(ctx context.Context, sub *Subscription) error

	// GetActive returns the owner's subscription with status=active, even
	// if its endDate has passed (callers decide about lazy expiry).
	// Returns ErrSubscriptionNotFound when none exists.
	GetActive(ctx context.Context, ownerID uuid.UUID) (*Subscription, error)

	// MarkReplaced transitions an active subscription to replaced.
	MarkReplaced(ctx context.Context, id uuid.UUID, at time.Time) error

	// MarkExpired transitions an active subscription to expired. A no-op
	// when the row is already terminal, so the lazy path and the batch
	// sweep can race harmlessly toward the same state.
	MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) error

	// MarkCancelled transitions an active subscription to cancelled and
	// returns the updated record. Returns ErrSubscriptionNotFound when the
	// row is no longer active.
	MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time, reason string) (*Subscription, error)

	// SweepExpired flips every active subscription whose endDate has
	// passed to expired and returns the number of rows changed.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// Transactor runs a function inside a storage transaction. Services depend
// on this interface so tests can substitute a passthrough implementation.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
