package referral

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dentaflow/dentaflow/pkg/queue"
	"github.com/dentaflow/dentaflow/pkg/subscription"
)

// InviteEmailTask is the queued payload for sending an invite email. The
// queue worker routes it by type name to the registered handler.
type InviteEmailTask struct {
	ReferralID uuid.UUID `json:"referral_id"`
	Email      string    `json:"email"`
	Code       string    `json:"code"`
}

// Enqueuer schedules background tasks. Satisfied by queue.Enqueuer.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload any, opts ...queue.EnqueueOption) error
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Service runs the referral program.
type Service struct {
	store    Store
	enqueuer Enqueuer
	log      *slog.Logger
	now      func() time.Time
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

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a referral Service. The enqueuer is optional; without
// one, invites are recorded but no email goes out.
func NewService(store Store, enqueuer Enqueuer, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, ErrStoreNil
	}

	s := &Service{
		store:    store,
		enqueuer: enqueuer,
		log:      slog.New(slog.DiscardHandler),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Invite records a pending referral and queues the invite email. The email
// send is best-effort: a full queue does not undo the referral.
func (s *Service) Invite(ctx context.Context, referrerID uuid.UUID, email string) (*Referral, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailRegex.MatchString(email) {
		return nil, ErrInvalidEmail
	}

	now := s.now().UTC()
	ref := &Referral{
		ID:            uuid.New(),
		ReferrerID:    referrerID,
		ReferredEmail: email,
		Code:          newInviteCode(),
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Insert(ctx, ref); err != nil {
		return nil, err
	}

	if s.enqueuer != nil {
		task := InviteEmailTask{ReferralID: ref.ID, Email: email, Code: ref.Code}
		if err := s.enqueuer.Enqueue(ctx, task); err != nil {
			s.log.ErrorContext(ctx, "failed to enqueue invite email",
				slog.String("referral_id", ref.ID.String()),
				slog.Any("error", err),
			)
		}
	}

	s.log.InfoContext(ctx, "referral invited",
		slog.String("referrer_id", referrerID.String()),
		slog.String("code", ref.Code),
	)
	return ref, nil
}

// MarkRegistered binds a new account to the referral behind the invite
// code. Called from the registration flow.
func (s *Service) MarkRegistered(ctx context.Context, code string, referredID uuid.UUID) (*Referral, error) {
	ref, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if ref.ReferrerID == referredID {
		return nil, ErrSelfReferral
	}
	if ref.Status == StatusPending {
		now := s.now().UTC()
		if err := s.store.MarkRegistered(ctx, ref.ID, referredID, now); err != nil {
			return nil, err
		}
		ref.Status = StatusRegistered
		ref.ReferredID = &referredID
		ref.RegisteredAt = &now
	}
	return ref, nil
}

// AcceptOnSubscription credits the referrer when the referred account buys
// a plan. Idempotent: a referral already accepted is left untouched, so a
// plan switch after the first purchase cannot double-credit. Returns
// ErrReferralNotFound when the buyer was never referred, which callers
// treat as the common case.
func (s *Service) AcceptOnSubscription(ctx context.Context, sub *subscription.Subscription) (*Referral, error) {
	ref, err := s.store.GetByReferredID(ctx, sub.OwnerID)
	if err != nil {
		return nil, err
	}
	if ref.ReferredID == nil || *ref.ReferredID != sub.OwnerID {
		return nil, ErrOwnerMismatch
	}
	if ref.Status == StatusAccepted {
		return ref, nil
	}

	now := s.now().UTC()
	reward := RewardFor(sub.PlanID)
	credited, err := s.store.MarkAccepted(ctx, ref.ID, reward, now)
	if err != nil {
		return nil, err
	}
	if !credited {
		// Lost a race with another acceptance; re-read the settled row.
		return s.store.GetByReferredID(ctx, sub.OwnerID)
	}

	ref.Status = StatusAccepted
	ref.RewardAmount = reward
	ref.AcceptedAt = &now

	s.log.InfoContext(ctx, "referral reward credited",
		slog.String("referrer_id", ref.ReferrerID.String()),
		slog.String("plan", sub.PlanID),
		slog.Int64("reward", reward),
	)
	return ref, nil
}

// List returns an owner's referrals, newest first.
func (s *Service) List(ctx context.Context, referrerID uuid.UUID) ([]Referral, error) {
	return s.store.ListByReferrer(ctx, referrerID)
}

// Stats returns an owner's referral funnel summary.
func (s *Service) Stats(ctx context.Context, referrerID uuid.UUID) (Stats, error) {
	return s.store.StatsByReferrer(ctx, referrerID)
}

// NewInviteEmailBody renders the invite email. Kept as plain HTML string
// assembly; the transactional templates live with the provider.
func NewInviteEmailBody(code string) string {
	return fmt.Sprintf(
		`<p>You have been invited to join DentaFlow.</p><p>Use referral code <strong>%s</strong> when you sign up.</p>`,
		code,
	)
}

// newInviteCode returns a short URL-safe invite code.
func newInviteCode() string {
	var buf [10]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	return strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf[:]))
}
