package entitlement

import (
	"context"

	"github.com/google/uuid"

	"github.com/dentaflow/dentaflow/pkg/subscription"
)

// Role is the authenticated caller's role as asserted by upstream auth.
type Role string

const (
	RoleOwner Role = "owner"
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

// Principal is the authenticated caller. Upstream auth middleware puts it
// in the request context; everything in this package reads it from there.
type Principal struct {
	ID   uuid.UUID
	Role Role
}

type contextKey int

const (
	principalKey contextKey = iota
	ownerKey
	subscriptionKey
)

// WithPrincipal returns a context carrying the authenticated principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// WithOwnerID returns a context carrying the resolved billing owner.
func WithOwnerID(ctx context.Context, ownerID uuid.UUID) context.Context {
	return context.WithValue(ctx, ownerKey, ownerID)
}

// OwnerIDFromContext returns the resolved billing owner, if any.
func OwnerIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ownerKey).(uuid.UUID)
	return id, ok
}

// WithSubscription returns a context carrying the owner's active
// subscription, set by RequireSubscription so downstream handlers read the
// snapshot without a second query.
func WithSubscription(ctx context.Context, sub *subscription.Subscription) context.Context {
	return context.WithValue(ctx, subscriptionKey, sub)
}

// SubscriptionFromContext returns the active subscription, if any.
func SubscriptionFromContext(ctx context.Context) (*subscription.Subscription, bool) {
	sub, ok := ctx.Value(subscriptionKey).(*subscription.Subscription)
	return sub, ok
}
