package payment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dentaflow/dentaflow/pkg/subscription"
)

// ActivatedHook runs after a payment verification commits, outside the
// transaction. Hooks are best-effort: failures are logged, never returned,
// because the money has already moved.
type ActivatedHook func(ctx context.Context, order *Order, sub *subscription.Subscription)

// Orchestrator drives checkout: it opens gateway orders and turns verified
// payments into active subscriptions.
type Orchestrator struct {
	subs    *subscription.Service
	store   Store
	gateway Gateway
	tx      Transactor
	secret  string
	log     *slog.Logger
	now     func() time.Time
	hooks   []ActivatedHook
}

// OrchestratorOption configures the Orchestrator.
type OrchestratorOption func(*Orchestrator)

func WithLogger(log *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// OnActivated registers a hook invoked after a successful verification.
func OnActivated(hook ActivatedHook) OrchestratorOption {
	return func(o *Orchestrator) {
		if hook != nil {
			o.hooks = append(o.hooks, hook)
		}
	}
}

// NewOrchestrator creates a payment Orchestrator. The secret signs and
// verifies the orderID|paymentID checksum; for Razorpay it is the API key
// secret.
func NewOrchestrator(subs *subscription.Service, store Store, gateway Gateway, tx Transactor, secret string, opts ...OrchestratorOption) (*Orchestrator, error) {
	if subs == nil {
		return nil, errors.New("subscription service is required")
	}
	if store == nil {
		return nil, ErrStoreNil
	}
	if gateway == nil {
		return nil, ErrGatewayNil
	}
	if tx == nil {
		return nil, errors.New("payment transactor is required")
	}
	if secret == "" {
		return nil, ErrSecretRequired
	}

	o := &Orchestrator{
		subs:    subs,
		store:   store,
		gateway: gateway,
		tx:      tx,
		secret:  secret,
		log:     slog.New(slog.DiscardHandler),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// OpenOrder prices the plan from the catalog, registers an order with the
// gateway, and persists it in status created. Owners already holding an
// active subscription of the same plan are rejected before any money can
// move.
func (o *Orchestrator) OpenOrder(ctx context.Context, ownerID uuid.UUID, planID string) (*Order, error) {
	plan, err := o.subs.Catalog().Get(planID)
	if err != nil {
		return nil, err
	}

	current, err := o.subs.GetCurrent(ctx, ownerID)
	switch {
	case err == nil:
		if current.PlanID == planID {
			return nil, subscription.ErrDuplicatePlan
		}
	case errors.Is(err, subscription.ErrSubscriptionNotFound):
		// Nothing active, free to buy.
	default:
		return nil, err
	}

	now := o.now().UTC()
	id := uuid.New()

	gwOrder, err := o.gateway.CreateOrder(ctx, plan.Price.Amount, plan.Price.Currency, id.String(), map[string]string{
		"owner_id": ownerID.String(),
		"plan_id":  planID,
	})
	if err != nil {
		return nil, err
	}

	order := &Order{
		ID:             id,
		OwnerID:        ownerID,
		PlanID:         planID,
		GatewayOrderID: gwOrder.ID,
		Amount:         plan.Price.Amount,
		Currency:       plan.Price.Currency,
		Status:         OrderCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := o.store.Insert(ctx, order); err != nil {
		return nil, err
	}

	o.log.InfoContext(ctx, "payment order opened",
		slog.String("order_id", gwOrder.ID),
		slog.String("owner_id", ownerID.String()),
		slog.String("plan", planID),
		slog.Int64("amount", plan.Price.Amount),
	)
	return order, nil
}

// VerifyRequest is the client's report of a completed gateway payment.
type VerifyRequest struct {
	OrderID   string
	PaymentID string
	Signature string
}

// Verify validates the reported payment and activates the subscription.
// The signature check happens first and never touches the gateway; a
// mismatch marks the order failed before the error is reported. Once the
// signature holds, the payment record is fetched from the gateway and its
// status stored on the order for reconciliation; a gateway outage here
// leaves the order in created so the client can retry. On success the
// order completion and the subscription activation commit in one
// transaction, so a crash between them cannot take the money without
// granting the plan.
func (o *Orchestrator) Verify(ctx context.Context, ownerID uuid.UUID, req VerifyRequest) (*subscription.Subscription, error) {
	order, err := o.store.GetByGatewayOrderID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.OwnerID != ownerID {
		return nil, ErrOrderOwnerMismatch
	}
	if order.Status.Terminal() {
		return nil, ErrOrderAlreadyProcessed
	}

	if err := VerifyPaymentSignature(o.secret, req.OrderID, req.PaymentID, req.Signature); err != nil {
		now := o.now().UTC()
		if markErr := o.store.MarkFailed(ctx, order.ID, "signature mismatch", now); markErr != nil {
			o.log.ErrorContext(ctx, "failed to record signature failure",
				slog.String("order_id", req.OrderID),
				slog.Any("error", markErr),
			)
		}
		o.log.WarnContext(ctx, "payment signature rejected",
			slog.String("order_id", req.OrderID),
			slog.String("owner_id", ownerID.String()),
		)
		return nil, err
	}

	gatewayStatus, err := o.gateway.FetchPayment(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}

	var sub *subscription.Subscription
	err = o.tx.InTransaction(ctx, func(ctx context.Context) error {
		now := o.now().UTC()
		if err := o.store.MarkCompleted(ctx, order.ID, req.PaymentID, req.Signature, gatewayStatus, now); err != nil {
			return err
		}
		sub, err = o.subs.CreateOrSwitch(ctx, ownerID, order.PlanID, subscription.PaymentProof{
			OrderID:   req.OrderID,
			PaymentID: req.PaymentID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	o.log.InfoContext(ctx, "payment verified",
		slog.String("order_id", req.OrderID),
		slog.String("payment_id", req.PaymentID),
		slog.String("owner_id", ownerID.String()),
		slog.String("plan", order.PlanID),
	)

	order.Status = OrderCompleted
	order.PaymentID = req.PaymentID
	order.GatewayStatus = gatewayStatus
	order.Signature = req.Signature
	for _, hook := range o.hooks {
		hook(ctx, order, sub)
	}
	return sub, nil
}

// CancelStaleOrders abandons orders that never saw a payment. Wired to a
// background task alongside the subscription sweep.
func (o *Orchestrator) CancelStaleOrders(ctx context.Context, maxAge time.Duration) (int64, error) {
	count, err := o.store.CancelStale(ctx, o.now().UTC().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	if count > 0 {
		o.log.InfoContext(ctx, "stale payment orders cancelled", slog.Int64("count", count))
	}
	return count, nil
}
