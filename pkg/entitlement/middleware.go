package entitlement

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/dentaflow/dentaflow/core"
	"github.com/dentaflow/dentaflow/pkg/subscription"
)

// SubscriptionReader loads an owner's active subscription. Satisfied by
// subscription.Service.
type SubscriptionReader interface {
	GetCurrent(ctx context.Context, ownerID uuid.UUID) (*subscription.Subscription, error)
}

// PatientCounter counts an owner's non-deleted patients.
type PatientCounter func(ctx context.Context, ownerID uuid.UUID) (int64, error)

// PrincipalFromHeaders trusts the identity headers the authenticating
// reverse proxy injects upstream of this service. Requests without them
// proceed anonymous; route guards decide whether that is acceptable.
func PrincipalFromHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.Header.Get("X-User-ID"))
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		role := Role(r.Header.Get("X-User-Role"))
		switch role {
		case RoleOwner, RoleStaff, RoleAdmin:
		default:
			role = RoleOwner
		}

		ctx := WithPrincipal(r.Context(), Principal{ID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ResolveOwner resolves the principal to the paying owner and stores the
// owner id in the request context. Requests without a principal are
// rejected as unauthorized.
func ResolveOwner(resolver OwnerResolver, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				core.Error(w, log, core.ErrUnauthorized)
				return
			}

			ownerID, err := resolver.ResolveOwner(r.Context(), principal)
			if err != nil {
				if errors.Is(err, ErrOwnerNotResolved) {
					core.Error(w, log, core.ErrForbidden)
					return
				}
				core.Error(w, log, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOwnerID(r.Context(), ownerID)))
		})
	}
}

// RequireSubscription blocks requests from owners without an active
// subscription, answering 402 with an upgrade redirect hint. On success the
// subscription lands in the request context for downstream quota checks.
func RequireSubscription(subs SubscriptionReader, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ownerID, ok := OwnerIDFromContext(r.Context())
			if !ok {
				core.Error(w, log, core.ErrUnauthorized)
				return
			}

			current, err := subs.GetCurrent(r.Context(), ownerID)
			if err != nil {
				if errors.Is(err, subscription.ErrSubscriptionNotFound) {
					core.ErrorWithMeta(w, http.StatusPaymentRequired,
						"subscription_required",
						"an active subscription is required",
						map[string]any{"redirect": "/plans"},
					)
					return
				}
				core.Error(w, log, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSubscription(r.Context(), current)))
		})
	}
}

// PatientQuota blocks patient creation once the plan's patient limit is
// reached. The count runs synchronously on every guarded request so the
// limit holds even right after an import. Plans with the unlimited
// sentinel skip the count entirely.
func PatientQuota(count PatientCounter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub, ok := SubscriptionFromContext(r.Context())
			if !ok {
				core.Error(w, log, core.ErrPaymentRequired)
				return
			}

			if !sub.Features.UnlimitedPatients() {
				current, err := count(r.Context(), sub.OwnerID)
				if err != nil {
					core.Error(w, log, err)
					return
				}
				if current >= sub.Features.MaxPatients {
					core.ErrorWithMeta(w, http.StatusForbidden,
						"quota_exceeded",
						"patient limit reached for the current plan",
						map[string]any{
							"current": current,
							"allowed": sub.Features.MaxPatients,
						},
					)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireFeature blocks requests unless the active subscription's snapshot
// includes the feature.
func RequireFeature(feature subscription.Feature, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub, ok := SubscriptionFromContext(r.Context())
			if !ok || !sub.Features.Has(feature) {
				core.ErrorWithMeta(w, http.StatusForbidden,
					"feature_not_available",
					"the current plan does not include this feature",
					map[string]any{"feature": string(feature)},
				)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
