package subscription

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Subscription represents one owner's purchase of a plan. The Features
// field is a snapshot copied from the catalog at creation time.
type Subscription struct {
	ID           uuid.UUID  `json:"id"`
	OwnerID      uuid.UUID  `json:"ownerId"`
	PlanID       string     `json:"planType"`
	Status       Status     `json:"status"`
	StartDate    time.Time  `json:"startDate"`
	EndDate      time.Time  `json:"endDate"`
	Amount       int64      `json:"amount"`
	Currency     string     `json:"currency"`
	PaymentID    string     `json:"paymentId,omitempty"`
	OrderID      string     `json:"orderId,omitempty"`
	Features     Features   `json:"features"`
	AutoRenew    bool       `json:"autoRenew"`
	CancelledAt  *time.Time `json:"cancelledAt,omitempty"`
	CancelReason string     `json:"cancelReason,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// IsActiveAt reports whether the subscription is active and unexpired at
// the given time.
func (s *Subscription) IsActiveAt(now time.Time) bool {
	return s.Status == StatusActive && s.EndDate.After(now)
}

// IsActive reports whether the subscription is active and unexpired now.
func (s *Subscription) IsActive() bool {
	return s.IsActiveAt(time.Now().UTC())
}

// DaysRemainingAt returns whole days until expiry at the given time,
// rounded up so a subscription expiring tomorrow morning still shows 1.
func (s *Subscription) DaysRemainingAt(now time.Time) int {
	if !s.IsActiveAt(now) {
		return 0
	}
	remaining := s.EndDate.Sub(now)
	return int(math.Ceil(remaining.Hours() / 24))
}

// DaysRemaining returns whole days until expiry.
func (s *Subscription) DaysRemaining() int {
	return s.DaysRemainingAt(time.Now().UTC())
}
