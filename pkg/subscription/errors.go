package subscription

import "errors"

var (
	ErrPlanNotFound             = errors.New("subscription plan not found")
	ErrInvalidPlanConfiguration = errors.New("invalid subscription plan configuration")

	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrDuplicatePlan        = errors.New("owner already holds an active subscription of this plan")
	ErrConflict             = errors.New("concurrent subscription update lost the race")

	ErrStoreNil   = errors.New("subscription store is required")
	ErrCatalogNil = errors.New("plan catalog is required")
)
