package referral

import (
	"time"

	"github.com/google/uuid"

	"github.com/dentaflow/dentaflow/pkg/subscription"
)

// Status tracks a referral through its funnel. Transitions are monotonic:
// pending → registered → accepted, never backwards.
type Status string

const (
	// StatusPending means the invite email went out, nothing more.
	StatusPending Status = "pending"
	// StatusRegistered means the invitee created an account.
	StatusRegistered Status = "registered"
	// StatusAccepted means the invitee bought a plan and the reward was
	// credited.
	StatusAccepted Status = "accepted"
)

// Referral is one owner-to-colleague invitation.
type Referral struct {
	ID            uuid.UUID  `json:"id"`
	ReferrerID    uuid.UUID  `json:"referrerId"`
	ReferredEmail string     `json:"referredEmail"`
	ReferredID    *uuid.UUID `json:"referredId,omitempty"`
	Code          string     `json:"code"`
	Status        Status     `json:"status"`
	RewardAmount  int64      `json:"rewardAmount"`
	RegisteredAt  *time.Time `json:"registeredAt,omitempty"`
	AcceptedAt    *time.Time `json:"acceptedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Stats summarizes an owner's referral funnel.
type Stats struct {
	Total        int64 `json:"total"`
	Pending      int64 `json:"pending"`
	Registered   int64 `json:"registered"`
	Accepted     int64 `json:"accepted"`
	TotalRewards int64 `json:"totalRewards"`
}

// Reward amounts in INR paise, keyed by purchased plan.
var rewardTable = map[string]int64{
	subscription.PlanBasic:   5000,   // ₹50
	subscription.PlanMonthly: 10000,  // ₹100
	subscription.PlanYearly:  100000, // ₹1000
}

// RewardFor returns the bounty for a purchase of the given plan. Unknown
// plans earn nothing.
func RewardFor(planID string) int64 {
	return rewardTable[planID]
}
