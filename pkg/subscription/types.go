package subscription

// Unlimited indicates no limit for a counted resource (-1 keeps the
// sentinel distinguishable from "zero allowed" in queries and JSON).
const Unlimited int64 = -1

// Feature represents a plan capability that can be enabled per plan.
type Feature string

const (
	FeatureAdvancedReporting Feature = "advanced_reporting"
	FeaturePrioritySupport   Feature = "priority_support"
	FeatureAPIAccess         Feature = "api_access"
	FeatureWhiteLabel        Feature = "white_label"
)

// Features is the entitlement set attached to a plan and snapshotted onto
// every subscription sold from it.
type Features struct {
	MaxPatients       int64 `json:"maxPatients" yaml:"max_patients"`
	AdvancedReporting bool  `json:"advancedReporting" yaml:"advanced_reporting"`
	PrioritySupport   bool  `json:"prioritySupport" yaml:"priority_support"`
	APIAccess         bool  `json:"apiAccess" yaml:"api_access"`
	WhiteLabel        bool  `json:"whiteLabel" yaml:"white_label"`
}

// Has reports whether a boolean feature is enabled. Quota-style
// entitlements (MaxPatients) are read directly, not through Has.
func (f Features) Has(feature Feature) bool {
	switch feature {
	case FeatureAdvancedReporting:
		return f.AdvancedReporting
	case FeaturePrioritySupport:
		return f.PrioritySupport
	case FeatureAPIAccess:
		return f.APIAccess
	case FeatureWhiteLabel:
		return f.WhiteLabel
	default:
		return false
	}
}

// UnlimitedPatients reports whether the snapshot allows unlimited patients.
func (f Features) UnlimitedPatients() bool {
	return f.MaxPatients == Unlimited
}

// Money represents a monetary amount in the smallest currency unit.
// For example, ₹999.00 INR is Amount: 99900, Currency: "INR".
type Money struct {
	Amount   int64  `json:"amount" yaml:"amount"`
	Currency string `json:"currency" yaml:"currency"`
}

// Status represents the lifecycle state of a subscription.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
	StatusReplaced  Status = "replaced"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusExpired, StatusCancelled, StatusReplaced:
		return true
	default:
		return false
	}
}
