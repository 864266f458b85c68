package billing

import (
	"errors"
	"net/http"

	"github.com/dentaflow/dentaflow/core"
	"github.com/dentaflow/dentaflow/pkg/payment"
	"github.com/dentaflow/dentaflow/pkg/referral"
	"github.com/dentaflow/dentaflow/pkg/subscription"
)

// Domain sentinels mapped to their HTTP representations. Anything not
// listed falls through to core.Error's generic 500.
var errorMap = []struct {
	match error
	http  core.HTTPError
}{
	{subscription.ErrPlanNotFound, core.NewHTTPError(http.StatusBadRequest, "invalid_plan")},
	{subscription.ErrDuplicatePlan, core.NewHTTPError(http.StatusConflict, "duplicate_plan")},
	{subscription.ErrSubscriptionNotFound, core.ErrNotFound},
	{subscription.ErrConflict, core.ErrConflict},
	{payment.ErrSignatureInvalid, core.NewHTTPError(http.StatusBadRequest, "signature_invalid")},
	{payment.ErrOrderNotFound, core.ErrNotFound},
	{payment.ErrOrderOwnerMismatch, core.NewHTTPError(http.StatusForbidden, "owner_mismatch")},
	{payment.ErrOrderAlreadyProcessed, core.ErrConflict},
	{payment.ErrGatewayUnavailable, core.ErrGatewayTimeout},
	{referral.ErrReferralNotFound, core.ErrNotFound},
	{referral.ErrAlreadyInvited, core.NewHTTPError(http.StatusConflict, "already_invited")},
	{referral.ErrSelfReferral, core.NewHTTPError(http.StatusBadRequest, "self_referral")},
	{referral.ErrOwnerMismatch, core.NewHTTPError(http.StatusForbidden, "owner_mismatch")},
}

// mapError translates domain errors to HTTP errors where a mapping exists.
func mapError(err error) error {
	if errors.Is(err, referral.ErrInvalidEmail) {
		return core.ValidationError{"email": {"must be a valid email address"}}
	}
	for _, entry := range errorMap {
		if errors.Is(err, entry.match) {
			return entry.http
		}
	}
	return err
}
