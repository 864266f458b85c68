package referral

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines referral persistence.
type Store interface {
	// Insert persists a new pending referral. Returns ErrAlreadyInvited
	// when the referrer already invited this email.
	Insert(ctx context.Context, ref *Referral) error

	// GetByCode returns the referral with the given invite code.
	GetByCode(ctx context.Context, code string) (*Referral, error)

	// GetByReferredID returns the referral whose invitee registered with
	// the given account.
	GetByReferredID(ctx context.Context, referredID uuid.UUID) (*Referral, error)

	// ListByReferrer returns an owner's referrals, newest first.
	ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]Referral, error)

	// MarkRegistered transitions pending → registered and binds the
	// invitee's account id. A no-op when already registered or accepted.
	MarkRegistered(ctx context.Context, id uuid.UUID, referredID uuid.UUID, at time.Time) error

	// MarkAccepted transitions registered → accepted, recording the
	// reward. Returns false when the referral was not in registered, which
	// callers treat as "already credited, do nothing".
	MarkAccepted(ctx context.Context, id uuid.UUID, reward int64, at time.Time) (bool, error)

	// StatsByReferrer aggregates an owner's funnel counts and rewards.
	StatsByReferrer(ctx context.Context, referrerID uuid.UUID) (Stats, error)
}
