package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// PaymentProof carries the gateway identifiers of a verified payment. It is
// recorded on the subscription for audit and idempotent retries.
type PaymentProof struct {
	OrderID   string
	PaymentID string
}

// Service manages the subscription lifecycle for clinic owners.
type Service struct {
	catalog *Catalog
	store   Store
	tx      Transactor
	log     *slog.Logger
	now     func() time.Time
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source, used by tests that need to move a
// subscription past its end date.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a subscription Service.
func NewService(catalog *Catalog, store Store, tx Transactor, opts ...ServiceOption) (*Service, error) {
	if catalog == nil {
		return nil, ErrCatalogNil
	}
	if store == nil {
		return nil, ErrStoreNil
	}
	if tx == nil {
		return nil, errors.New("subscription transactor is required")
	}

	s := &Service{
		catalog: catalog,
		store:   store,
		tx:      tx,
		log:     slog.New(slog.DiscardHandler),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Catalog returns the plan catalog the service sells from.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// CreateOrSwitch activates a subscription for ownerID on the given plan,
// replacing any currently active subscription of a different plan. The
// whole read-check-then-write sequence runs in one transaction, so no
// window exists with zero or two active subscriptions. Callers retry the
// full flow on ErrConflict, keyed by the payment id.
func (s *Service) CreateOrSwitch(ctx context.Context, ownerID uuid.UUID, planID string, proof PaymentProof) (*Subscription, error) {
	plan, err := s.catalog.Get(planID)
	if err != nil {
		return nil, err
	}

	var created *Subscription
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		now := s.now().UTC()

		current, err := s.store.GetActive(ctx, ownerID)
		switch {
		case err == nil:
			if current.IsActiveAt(now) {
				if current.PlanID == planID {
					return ErrDuplicatePlan
				}
				if err := s.store.MarkReplaced(ctx, current.ID, now); err != nil {
					return err
				}
				s.log.InfoContext(ctx, "plan switch",
					slog.String("owner_id", ownerID.String()),
					slog.String("from", current.PlanID),
					slog.String("to", planID),
				)
			} else if err := s.store.MarkExpired(ctx, current.ID, now); err != nil {
				return err
			}
		case errors.Is(err, ErrSubscriptionNotFound):
			// First subscription for this owner.
		default:
			return err
		}

		sub := &Subscription{
			ID:        uuid.New(),
			OwnerID:   ownerID,
			PlanID:    plan.ID,
			Status:    StatusActive,
			StartDate: now,
			EndDate:   now.Add(plan.Duration()),
			Amount:    plan.Price.Amount,
			Currency:  plan.Price.Currency,
			PaymentID: proof.PaymentID,
			OrderID:   proof.OrderID,
			Features:  plan.Features,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.store.Insert(ctx, sub); err != nil {
			return err
		}
		created = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetCurrent returns the owner's active, unexpired subscription. A stored
// record whose end date has passed but still reads active is flipped to
// expired on the way through (lazy expiry), then reported as not found.
func (s *Service) GetCurrent(ctx context.Context, ownerID uuid.UUID) (*Subscription, error) {
	current, err := s.store.GetActive(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if current.IsActiveAt(now) {
		return current, nil
	}

	// The batch sweep may flip the same row concurrently; both writers set
	// the same terminal value, so losing this write is harmless.
	if err := s.tx.InTransaction(ctx, func(ctx context.Context) error {
		return s.store.MarkExpired(ctx, current.ID, now)
	}); err != nil {
		return nil, err
	}
	return nil, ErrSubscriptionNotFound
}

// Cancel ends the owner's active subscription with the given reason.
func (s *Service) Cancel(ctx context.Context, ownerID uuid.UUID, reason string) (*Subscription, error) {
	return s.cancel(ctx, ownerID, "", reason)
}

// CancelPlan ends the owner's active subscription only when it is on the
// named plan. Used by the administrative cancellation endpoint.
func (s *Service) CancelPlan(ctx context.Context, ownerID uuid.UUID, planID, reason string) (*Subscription, error) {
	if _, err := s.catalog.Get(planID); err != nil {
		return nil, err
	}
	return s.cancel(ctx, ownerID, planID, reason)
}

func (s *Service) cancel(ctx context.Context, ownerID uuid.UUID, planID, reason string) (*Subscription, error) {
	var cancelled *Subscription
	err := s.tx.InTransaction(ctx, func(ctx context.Context) error {
		now := s.now().UTC()

		current, err := s.store.GetActive(ctx, ownerID)
		if err != nil {
			return err
		}
		if !current.IsActiveAt(now) {
			if err := s.store.MarkExpired(ctx, current.ID, now); err != nil {
				return err
			}
			return ErrSubscriptionNotFound
		}
		if planID != "" && current.PlanID != planID {
			return ErrSubscriptionNotFound
		}

		cancelled, err = s.store.MarkCancelled(ctx, current.ID, now, reason)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "subscription cancelled",
		slog.String("owner_id", ownerID.String()),
		slog.String("plan", cancelled.PlanID),
		slog.String("reason", reason),
	)
	return cancelled, nil
}

// CheckFeature reports whether the owner's active subscription includes the
// feature. It reads the snapshot, never the catalog, and fails closed: no
// active subscription means no feature.
func (s *Service) CheckFeature(ctx context.Context, ownerID uuid.UUID, feature Feature) bool {
	current, err := s.GetCurrent(ctx, ownerID)
	if err != nil {
		return false
	}
	return current.Features.Has(feature)
}

// SweepExpired flips all overdue active subscriptions to expired and
// returns the count. Safe to re-run and safe to race with per-request lazy
// expiry, since every writer converges on the same terminal status.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	count, err := s.store.SweepExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.log.InfoContext(ctx, "expired subscriptions swept", slog.Int64("count", count))
	}
	return count, nil
}
