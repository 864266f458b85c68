package payment

import "errors"

var (
	ErrOrderNotFound         = errors.New("payment order not found")
	ErrOrderOwnerMismatch    = errors.New("payment order belongs to a different owner")
	ErrOrderAlreadyProcessed = errors.New("payment order already processed")
	ErrSignatureInvalid      = errors.New("payment signature verification failed")
	ErrGatewayUnavailable    = errors.New("payment gateway unavailable")

	ErrStoreNil       = errors.New("payment store is required")
	ErrGatewayNil     = errors.New("payment gateway is required")
	ErrSecretRequired = errors.New("payment signing secret is required")
)
