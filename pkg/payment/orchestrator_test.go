package payment_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentaflow/dentaflow/pkg/payment"
	"github.com/dentaflow/dentaflow/pkg/subscription"
)

const testSecret = "rzp_test_secret"

// memOrderStore is an in-memory payment.Store.
type memOrderStore struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*payment.Order
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{orders: make(map[uuid.UUID]*payment.Order)}
}

func (m *memOrderStore) Insert(_ context.Context, order *payment.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *order
	m.orders[order.ID] = &clone
	return nil
}

func (m *memOrderStore) GetByGatewayOrderID(_ context.Context, gatewayOrderID string) (*payment.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, order := range m.orders {
		if order.GatewayOrderID == gatewayOrderID {
			clone := *order
			return &clone, nil
		}
	}
	return nil, payment.ErrOrderNotFound
}

func (m *memOrderStore) MarkCompleted(_ context.Context, id uuid.UUID, paymentID, signature, gatewayStatus string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok || order.Status != payment.OrderCreated {
		return payment.ErrOrderAlreadyProcessed
	}
	order.Status = payment.OrderCompleted
	order.PaymentID = paymentID
	order.GatewayStatus = gatewayStatus
	order.Signature = signature
	order.UpdatedAt = at
	return nil
}

func (m *memOrderStore) MarkFailed(_ context.Context, id uuid.UUID, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok || order.Status != payment.OrderCreated {
		return nil
	}
	order.Status = payment.OrderFailed
	order.FailureReason = reason
	order.UpdatedAt = at
	return nil
}

func (m *memOrderStore) CancelStale(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, order := range m.orders {
		if order.Status == payment.OrderCreated && order.CreatedAt.Before(cutoff) {
			order.Status = payment.OrderCancelled
			count++
		}
	}
	return count, nil
}

func (m *memOrderStore) get(id uuid.UUID) *payment.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *m.orders[id]
	return &clone
}

// memSubStore is a minimal in-memory subscription.Store, enough for the
// orchestrator paths exercised here.
type memSubStore struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*subscription.Subscription
}

func newMemSubStore() *memSubStore {
	return &memSubStore{subs: make(map[uuid.UUID]*subscription.Subscription)}
}

func (m *memSubStore) Insert(_ context.Context, sub *subscription.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.subs {
		if existing.OwnerID == sub.OwnerID && existing.Status == subscription.StatusActive {
			return subscription.ErrConflict
		}
	}
	clone := *sub
	m.subs[sub.ID] = &clone
	return nil
}

func (m *memSubStore) GetActive(_ context.Context, ownerID uuid.UUID) (*subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subs {
		if sub.OwnerID == ownerID && sub.Status == subscription.StatusActive {
			clone := *sub
			return &clone, nil
		}
	}
	return nil, subscription.ErrSubscriptionNotFound
}

func (m *memSubStore) MarkReplaced(_ context.Context, id uuid.UUID, at time.Time) error {
	return m.flip(id, subscription.StatusReplaced, at)
}

func (m *memSubStore) MarkExpired(_ context.Context, id uuid.UUID, at time.Time) error {
	return m.flip(id, subscription.StatusExpired, at)
}

func (m *memSubStore) flip(id uuid.UUID, to subscription.Status, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub, ok := m.subs[id]; ok && sub.Status == subscription.StatusActive {
		sub.Status = to
		sub.UpdatedAt = at
	}
	return nil
}

func (m *memSubStore) MarkCancelled(_ context.Context, id uuid.UUID, at time.Time, reason string) (*subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok || sub.Status != subscription.StatusActive {
		return nil, subscription.ErrSubscriptionNotFound
	}
	sub.Status = subscription.StatusCancelled
	sub.CancelledAt = &at
	sub.CancelReason = reason
	clone := *sub
	return &clone, nil
}

func (m *memSubStore) SweepExpired(_ context.Context, now time.Time) (int64, error) {
	return 0, nil
}

type passTx struct{}

func (passTx) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeGateway hands out sequential order ids and can be told to fail
// either order creation or the payment fetch.
type fakeGateway struct {
	mu        sync.Mutex
	seq       int
	fail      bool
	fetchFail bool
	created   []int64
	fetched   []string
}

func (g *fakeGateway) CreateOrder(_ context.Context, amount int64, currency, receipt string, notes map[string]string) (payment.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return payment.GatewayOrder{}, payment.ErrGatewayUnavailable
	}
	g.seq++
	g.created = append(g.created, amount)
	return payment.GatewayOrder{
		ID:       fmt.Sprintf("order_fake_%d", g.seq),
		Amount:   amount,
		Currency: currency,
	}, nil
}

func (g *fakeGateway) FetchPayment(_ context.Context, paymentID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchFail {
		return "", payment.ErrGatewayUnavailable
	}
	g.fetched = append(g.fetched, paymentID)
	return "captured", nil
}

type testRig struct {
	orch       *payment.Orchestrator
	subs       *subscription.Service
	orderStore *memOrderStore
	gateway    *fakeGateway
	activated  []*subscription.Subscription
}

func newTestRig(t *testing.T, opts ...payment.OrchestratorOption) *testRig {
	t.Helper()

	subStore := newMemSubStore()
	subs, err := subscription.NewService(subscription.DefaultCatalog(), subStore, passTx{})
	require.NoError(t, err)

	rig := &testRig{
		subs:       subs,
		orderStore: newMemOrderStore(),
		gateway:    &fakeGateway{},
	}

	opts = append(opts, payment.OnActivated(func(_ context.Context, _ *payment.Order, sub *subscription.Subscription) {
		rig.activated = append(rig.activated, sub)
	}))

	rig.orch, err = payment.NewOrchestrator(subs, rig.orderStore, rig.gateway, passTx{}, testSecret, opts...)
	require.NoError(t, err)
	return rig
}

func TestOrchestratorOpenOrder(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()

	t.Run("prices from the catalog", func(t *testing.T) {
		t.Parallel()
		rig := newTestRig(t)

		order, err := rig.orch.OpenOrder(context.Background(), ownerID, subscription.PlanMonthly)
		require.NoError(t, err)

		assert.Equal(t, payment.OrderCreated, order.Status)
		assert.Equal(t, int64(99900), order.Amount)
		assert.Equal(t, "INR", order.Currency)
		assert.Equal(t, "order_fake_1", order.GatewayOrderID)
		assert.Equal(t, []int64{99900}, rig.gateway.created)
	})

	t.Run("unknown plan never reaches the gateway", func(t *testing.T) {
		t.Parallel()
		rig := newTestRig(t)

		_, err := rig.orch.OpenOrder(context.Background(), ownerID, "Platinum Plan")
		require.ErrorIs(t, err, subscription.ErrPlanNotFound)
		assert.Empty(t, rig.gateway.created)
	})

	t.Run("duplicate plan rejected before charging", func(t *testing.T) {
		t.Parallel()
		rig := newTestRig(t)

		sub, err := rig.subs.CreateOrSwitch(context.Background(), ownerID, subscription.PlanMonthly,
			subscription.PaymentProof{OrderID: "o", PaymentID: "p"})
		require.NoError(t, err)
		require.Equal(t, subscription.StatusActive, sub.Status)

		_, err = rig.orch.OpenOrder(context.Background(), ownerID, subscription.PlanMonthly)
		require.ErrorIs(t, err, subscription.ErrDuplicatePlan)
		assert.Empty(t, rig.gateway.created)
	})

	t.Run("different plan allowed while active", func(t *testing.T) {
		t.Parallel()
		rig := newTestRig(t)

		_, err := rig.subs.CreateOrSwitch(context.Background(), ownerID, subscription.PlanBasic,
			subscription.PaymentProof{OrderID: "o", PaymentID: "p"})
		require.NoError(t, err)

		order, err := rig.orch.OpenOrder(context.Background(), ownerID, subscription.PlanYearly)
		require.NoError(t, err)
		assert.Equal(t, int64(999900), order.Amount)
	})

	t.Run("gateway failure surfaces and persists nothing", func(t *testing.T) {
		t.Parallel()
		rig := newTestRig(t)
		rig.gateway.fail = true

		_, err := rig.orch.OpenOrder(context.Background(), ownerID, subscription.PlanBasic)
		require.ErrorIs(t, err, payment.ErrGatewayUnavailable)
		assert.Empty(t, rig.orderStore.orders)
	})
}

func TestOrchestratorVerify(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()

	openOrder := func(t *testing.T, rig *testRig, planID string) *payment.Order {
		t.Helper()
		order, err := rig.orch.OpenOrder(context.Background(), ownerID, planID)
		require.NoError(t, err)
		return order
	}

	t.Run("valid payment activates subscription", func(t *testing.T) {
		t.Parallel()
		rig := newTestRig(t)
		order := openOrder(t, rig, subscription.PlanYearly)

		sub, err := rig.orch.Verify(context.Background(), ownerID, payment.VerifyRequest{
			OrderID:   order.GatewayOrderID,
			PaymentID: "pay_1",
			Signature: payment.SignPayment(testSecret, order.GatewayOrderID, "pay_1"),
		})
		require.NoError(t, err)

		assert.Equal(t, subscription.StatusActive, sub.Status)
		assert.Equal(t, subscription.PlanYearly, sub.PlanID)
		assert.Equal(t, "pay_1", sub.PaymentID)

		stored := rig.orderStore.get(order.ID)
		assert.Equal(t, payment.OrderCompleted, stored.Status)
		assert.Equal(t, "pay_1", stored.PaymentID)

		require.Len(t, rig.activated, 1)
		assert.Equal(t, sub.ID, rig.activated[0].ID)
	})

	t.Run("gateway payment status recorded for reconciliation", func(t *testing.T) {
		t.Parallel()
		rig := newTestRig(t)
		order := openOrder(t, rig, subscription.PlanMonthly)

		_, err := rig.orch.Verify(context.Background(), ownerID, payment.VerifyRequest{
			OrderID:   order.GatewayOrderID,
			PaymentID: "pay_7",
			Signature: payment.SignPayment(testSecret, order.GatewayOrderID, "pay_7"),
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"pay_7"}, rig.gateway.fetched)
		assert.Equal(t, "captured", rig.orderStore.get(order.ID).GatewayStatus)
	})

	t.Run("gateway outage during verify leaves the order retryable", func(t *testing.T) {
		t.Parallel()
		rig := newTestRig(t)
		order := openOrder(t, rig, subscription.PlanMonthly)
		rig.gateway.fetchFail = true

		req := payment.VerifyRequest{
			OrderID:   order.GatewayOrderID,
			PaymentID: "pay_1",
			Signature: payment.SignPayment(testSecret, order.GatewayOrderID, "pay_1"),
		}
		_, err := rig.orch.Verify(context.Background(), ownerID, req)
		require.ErrorIs(t, err, payment.ErrGatewayUnavailable)

		// Still in created, nothing activated; the client can verify again.
		assert.Equal(t, payment.OrderCreated, rig.orderStore.get(order.ID).Status)
		assert.Empty(t, rig.activated)

		rig.gateway.fetchFail = false
		sub, err := rig.orch.Verify(context.Background(), ownerID, req)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, sub.Status)
	})

	t.Run("tampered signature never activates", func(t *testing.T) {
		t.Parallel()
		rig := newTestRig(t)
		order := openOrder(t, rig, subscription.PlanYearly)

		_, err := rig.orch.Verify(context.Background(), ownerID, payment.VerifyRequest{
			OrderID:   order.GatewayOrderID,
			PaymentID: "pay_1",
			Signature: payment.SignPayment(testSecret, order.GatewayOrderID, "pay_other"),
		})
		require.ErrorIs(t, err, payment.ErrSignatureInvalid)

		// The order is failed, no subscription exists, no hook fired.
		assert.Equal(t, payment.OrderFailed, rig.orderStore.get(order.ID).Status)
		_, err = rig.subs.GetCurrent(context.Background(), ownerID)
		require.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
		assert.Empty(t, rig.activated)
	})

	t.Run("unknown order", func(t *testing.T) {
		t.Parallel()
		rig := newTestRig(t)

		_, err := rig.orch.Verify(context.Background(), ownerID, payment.VerifyRequest{
			OrderID:   "order_unknown",
			PaymentID: "pay_1",
			Signature: payment.SignPayment(testSecret, "order_unknown", "pay_1"),
		})
		require.ErrorIs(t, err, payment.ErrOrderNotFound)
	})

	t.Run("order owned by someone else", func(t *testing.T) {
		t.Parallel()
		rig := newTestRig(t)
		order := openOrder(t, rig, subscription.PlanBasic)

		_, err := rig.orch.Verify(context.Background(), uuid.New(), payment.VerifyRequest{
			OrderID:   order.GatewayOrderID,
			PaymentID: "pay_1",
			Signature: payment.SignPayment(testSecret, order.GatewayOrderID, "pay_1"),
		})
		require.ErrorIs(t, err, payment.ErrOrderOwnerMismatch)
		assert.Equal(t, payment.OrderCreated, rig.orderStore.get(order.ID).Status)
	})

	t.Run("replay of a completed order", func(t *testing.T) {
		t.Parallel()
		rig := newTestRig(t)
		order := openOrder(t, rig, subscription.PlanMonthly)

		req := payment.VerifyRequest{
			OrderID:   order.GatewayOrderID,
			PaymentID: "pay_1",
			Signature: payment.SignPayment(testSecret, order.GatewayOrderID, "pay_1"),
		}
		_, err := rig.orch.Verify(context.Background(), ownerID, req)
		require.NoError(t, err)

		_, err = rig.orch.Verify(context.Background(), ownerID, req)
		require.ErrorIs(t, err, payment.ErrOrderAlreadyProcessed)
		require.Len(t, rig.activated, 1)
	})

	t.Run("verified switch replaces the old plan", func(t *testing.T) {
		t.Parallel()
		rig := newTestRig(t)

		basic, err := rig.subs.CreateOrSwitch(context.Background(), ownerID, subscription.PlanBasic,
			subscription.PaymentProof{OrderID: "o0", PaymentID: "p0"})
		require.NoError(t, err)

		order := openOrder(t, rig, subscription.PlanYearly)
		sub, err := rig.orch.Verify(context.Background(), ownerID, payment.VerifyRequest{
			OrderID:   order.GatewayOrderID,
			PaymentID: "pay_1",
			Signature: payment.SignPayment(testSecret, order.GatewayOrderID, "pay_1"),
		})
		require.NoError(t, err)

		assert.Equal(t, subscription.PlanYearly, sub.PlanID)
		current, err := rig.subs.GetCurrent(context.Background(), ownerID)
		require.NoError(t, err)
		assert.Equal(t, sub.ID, current.ID)
		assert.NotEqual(t, basic.ID, current.ID)
	})
}

func TestOrchestratorCancelStaleOrders(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)

	old, err := rig.orch.OpenOrder(context.Background(), uuid.New(), subscription.PlanBasic)
	require.NoError(t, err)

	// Age the first order past the cutoff.
	rig.orderStore.mu.Lock()
	rig.orderStore.orders[old.ID].CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	rig.orderStore.mu.Unlock()

	fresh, err := rig.orch.OpenOrder(context.Background(), uuid.New(), subscription.PlanMonthly)
	require.NoError(t, err)

	count, err := rig.orch.CancelStaleOrders(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, payment.OrderCancelled, rig.orderStore.get(old.ID).Status)
	assert.Equal(t, payment.OrderCreated, rig.orderStore.get(fresh.ID).Status)
}
