package referral

import "errors"

var (
	ErrReferralNotFound = errors.New("referral not found")
	ErrSelfReferral     = errors.New("owners cannot refer themselves")
	ErrAlreadyInvited   = errors.New("email already invited by this owner")
	ErrOwnerMismatch    = errors.New("subscription owner does not match the referred account")

	ErrStoreNil     = errors.New("referral store is required")
	ErrInvalidEmail = errors.New("invalid referral email")
)
