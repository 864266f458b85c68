package payment

import "context"

// Gateway abstracts the external payment provider. Implementations return
// ErrGatewayUnavailable (wrapped) when the provider cannot be reached, so
// the HTTP layer can map provider downtime to a gateway-timeout response.
type Gateway interface {
	// CreateOrder registers a new order with the provider and returns the
	// provider's identifier for it. Amount is in the smallest currency
	// unit. Notes travel to the provider dashboard for reconciliation.
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (GatewayOrder, error)

	// FetchPayment returns the provider's current status string for a
	// payment, used by reconciliation tooling.
	FetchPayment(ctx context.Context, paymentID string) (string, error)
}
