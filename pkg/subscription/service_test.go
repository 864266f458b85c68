package subscription_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentaflow/dentaflow/pkg/subscription"
)

// memStore is an in-memory Store with the same transition semantics as the
// mongo implementation, including the single-active-per-owner constraint.
type memStore struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*subscription.Subscription
}

func newMemStore() *memStore {
	return &memStore{subs: make(map[uuid.UUID]*subscription.Subscription)}
}

func (m *memStore) Insert(_ context.Context, sub *subscription.Subscription) error {
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

func (m *memStore) GetActive(_ context.Context, ownerID uuid.UUID) (*subscription.Subscription, error) {
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

func (m *memStore) MarkReplaced(_ context.Context, id uuid.UUID, at time.Time) error {
	return m.transition(id, subscription.StatusReplaced, at, true)
}

func (m *memStore) MarkExpired(_ context.Context, id uuid.UUID, at time.Time) error {
	return m.transition(id, subscription.StatusExpired, at, false)
}

func (m *memStore) transition(id uuid.UUID, to subscription.Status, at time.Time, strict bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok || sub.Status != subscription.StatusActive {
		if strict {
			return subscription.ErrConflict
		}
		return nil
	}
	sub.Status = to
	sub.UpdatedAt = at
	return nil
}

func (m *memStore) MarkCancelled(_ context.Context, id uuid.UUID, at time.Time, reason string) (*subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok || sub.Status != subscription.StatusActive {
		return nil, subscription.ErrSubscriptionNotFound
	}
	sub.Status = subscription.StatusCancelled
	sub.CancelledAt = &at
	sub.CancelReason = reason
	sub.UpdatedAt = at
	clone := *sub
	return &clone, nil
}

func (m *memStore) SweepExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, sub := range m.subs {
		if sub.Status == subscription.StatusActive && !sub.EndDate.After(now) {
			sub.Status = subscription.StatusExpired
			sub.UpdatedAt = now
			count++
		}
	}
	return count, nil
}

func (m *memStore) get(id uuid.UUID) *subscription.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *m.subs[id]
	return &clone
}

// passTx runs the function directly; the memory store is already atomic
// enough for single-goroutine tests.
type passTx struct{}

func (passTx) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock { return &clock{now: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T, clk *clock) (*subscription.Service, *memStore) {
	t.Helper()
	store := newMemStore()
	svc, err := subscription.NewService(
		subscription.DefaultCatalog(),
		store,
		passTx{},
		subscription.WithClock(clk.Now),
	)
	require.NoError(t, err)
	return svc, store
}

func TestNewService(t *testing.T) {
	t.Parallel()

	t.Run("requires catalog", func(t *testing.T) {
		t.Parallel()
		_, err := subscription.NewService(nil, newMemStore(), passTx{})
		require.ErrorIs(t, err, subscription.ErrCatalogNil)
	})

	t.Run("requires store", func(t *testing.T) {
		t.Parallel()
		_, err := subscription.NewService(subscription.DefaultCatalog(), nil, passTx{})
		require.ErrorIs(t, err, subscription.ErrStoreNil)
	})
}

func TestServiceCreateOrSwitch(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	ownerID := uuid.New()
	proof := subscription.PaymentProof{OrderID: "order_1", PaymentID: "pay_1"}

	t.Run("first subscription", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestService(t, newClock(start))

		sub, err := svc.CreateOrSwitch(context.Background(), ownerID, subscription.PlanBasic, proof)
		require.NoError(t, err)

		assert.Equal(t, ownerID, sub.OwnerID)
		assert.Equal(t, subscription.StatusActive, sub.Status)
		assert.Equal(t, start.Add(30*24*time.Hour), sub.EndDate)
		assert.Equal(t, int64(49900), sub.Amount)
		assert.Equal(t, "INR", sub.Currency)
		assert.Equal(t, "pay_1", sub.PaymentID)
		assert.EqualValues(t, 4, sub.Features.MaxPatients)
		assert.False(t, sub.Features.Has(subscription.FeatureAPIAccess))
	})

	t.Run("unknown plan", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestService(t, newClock(start))

		_, err := svc.CreateOrSwitch(context.Background(), ownerID, "Platinum Plan", proof)
		require.ErrorIs(t, err, subscription.ErrPlanNotFound)
	})

	t.Run("same plan rejected while active", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestService(t, newClock(start))

		_, err := svc.CreateOrSwitch(context.Background(), ownerID, subscription.PlanMonthly, proof)
		require.NoError(t, err)

		_, err = svc.CreateOrSwitch(context.Background(), ownerID, subscription.PlanMonthly,
			subscription.PaymentProof{OrderID: "order_2", PaymentID: "pay_2"})
		require.ErrorIs(t, err, subscription.ErrDuplicatePlan)
	})

	t.Run("switch replaces old plan", func(t *testing.T) {
		t.Parallel()
		svc, store := newTestService(t, newClock(start))

		basic, err := svc.CreateOrSwitch(context.Background(), ownerID, subscription.PlanBasic, proof)
		require.NoError(t, err)

		yearly, err := svc.CreateOrSwitch(context.Background(), ownerID, subscription.PlanYearly,
			subscription.PaymentProof{OrderID: "order_2", PaymentID: "pay_2"})
		require.NoError(t, err)

		assert.Equal(t, subscription.StatusReplaced, store.get(basic.ID).Status)
		assert.Equal(t, subscription.StatusActive, yearly.Status)
		assert.True(t, yearly.Features.UnlimitedPatients())
		assert.True(t, yearly.Features.Has(subscription.FeatureWhiteLabel))

		current, err := svc.GetCurrent(context.Background(), ownerID)
		require.NoError(t, err)
		assert.Equal(t, yearly.ID, current.ID)
	})

	t.Run("stale active row expired before new purchase", func(t *testing.T) {
		t.Parallel()
		clk := newClock(start)
		svc, store := newTestService(t, clk)

		old, err := svc.CreateOrSwitch(context.Background(), ownerID, subscription.PlanMonthly, proof)
		require.NoError(t, err)

		clk.Advance(45 * 24 * time.Hour)

		// Buying the same plan again after expiry is a renewal, not a
		// duplicate.
		renewed, err := svc.CreateOrSwitch(context.Background(), ownerID, subscription.PlanMonthly,
			subscription.PaymentProof{OrderID: "order_2", PaymentID: "pay_2"})
		require.NoError(t, err)

		assert.Equal(t, subscription.StatusExpired, store.get(old.ID).Status)
		assert.Equal(t, subscription.StatusActive, renewed.Status)
	})

	t.Run("feature snapshot survives later catalog change", func(t *testing.T) {
		t.Parallel()
		store := newMemStore()
		catalog := subscription.MustNewCatalog(subscription.Plan{
			ID:           subscription.PlanBasic,
			Name:         "Basic",
			Price:        subscription.Money{Amount: 49900, Currency: "INR"},
			DurationDays: 30,
			Features:     subscription.Features{MaxPatients: 4},
		})
		svc, err := subscription.NewService(catalog, store, passTx{},
			subscription.WithClock(newClock(start).Now))
		require.NoError(t, err)

		sub, err := svc.CreateOrSwitch(context.Background(), ownerID, subscription.PlanBasic, proof)
		require.NoError(t, err)

		// The snapshot on the sold subscription is independent of whatever
		// the catalog says afterwards.
		assert.EqualValues(t, 4, store.get(sub.ID).Features.MaxPatients)
	})
}

// staleReadStore simulates two writers racing through CreateOrSwitch: both
// read "no active subscription" before either insert lands, so the unique
// index is the only thing standing between the owner and two active rows.
type staleReadStore struct {
	*memStore
}

func (s *staleReadStore) GetActive(context.Context, uuid.UUID) (*subscription.Subscription, error) {
	return nil, subscription.ErrSubscriptionNotFound
}

func TestServiceCreateOrSwitchRace(t *testing.T) {
	t.Parallel()

	store := &staleReadStore{memStore: newMemStore()}
	svc, err := subscription.NewService(subscription.DefaultCatalog(), store, passTx{})
	require.NoError(t, err)

	ownerID := uuid.New()
	proof := subscription.PaymentProof{OrderID: "order_1", PaymentID: "pay_1"}

	winner, err := svc.CreateOrSwitch(context.Background(), ownerID, subscription.PlanMonthly, proof)
	require.NoError(t, err)

	// The second writer still sees the pre-insert world; its insert must
	// lose to the single-active constraint.
	_, err = svc.CreateOrSwitch(context.Background(), ownerID, subscription.PlanMonthly, proof)
	require.ErrorIs(t, err, subscription.ErrConflict)

	active := 0
	for _, sub := range store.memStore.subs {
		if sub.Status == subscription.StatusActive {
			active++
			assert.Equal(t, winner.ID, sub.ID)
		}
	}
	assert.Equal(t, 1, active)
}

func TestServiceGetCurrent(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	ownerID := uuid.New()

	t.Run("no subscription", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestService(t, newClock(start))

		_, err := svc.GetCurrent(context.Background(), ownerID)
		require.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})

	t.Run("active subscription returned", func(t *testing.T) {
		t.Parallel()
		clk := newClock(start)
		svc, _ := newTestService(t, clk)

		created, err := svc.CreateOrSwitch(context.Background(), ownerID, subscription.PlanYearly,
			subscription.PaymentProof{OrderID: "o", PaymentID: "p"})
		require.NoError(t, err)

		clk.Advance(100 * 24 * time.Hour)

		current, err := svc.GetCurrent(context.Background(), ownerID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, current.ID)
		assert.Equal(t, 265, current.DaysRemainingAt(clk.Now()))
	})

	t.Run("lazy expiry flips overdue row", func(t *testing.T) {
		t.Parallel()
		clk := newClock(start)
		svc, store := newTestService(t, clk)

		created, err := svc.CreateOrSwitch(context.Background(), ownerID, subscription.PlanBasic,
			subscription.PaymentProof{OrderID: "o", PaymentID: "p"})
		require.NoError(t, err)

		clk.Advance(31 * 24 * time.Hour)

		_, err = svc.GetCurrent(context.Background(), ownerID)
		require.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
		assert.Equal(t, subscription.StatusExpired, store.get(created.ID).Status)

		// Idempotent: asking again changes nothing further.
		_, err = svc.GetCurrent(context.Background(), ownerID)
		require.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
		assert.Equal(t, subscription.StatusExpired, store.get(created.ID).Status)
	})
}

func TestServiceCancel(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	ownerID := uuid.New()
	proof := subscription.PaymentProof{OrderID: "o", PaymentID: "p"}

	t.Run("cancel active", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestService(t, newClock(start))

		_, err := svc.CreateOrSwitch(context.Background(), ownerID, subscription.PlanMonthly, proof)
		require.NoError(t, err)

		cancelled, err := svc.Cancel(context.Background(), ownerID, "requested by owner")
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCancelled, cancelled.Status)
		assert.Equal(t, "requested by owner", cancelled.CancelReason)
		require.NotNil(t, cancelled.CancelledAt)

		_, err = svc.GetCurrent(context.Background(), ownerID)
		require.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})

	t.Run("cancel without subscription", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestService(t, newClock(start))

		_, err := svc.Cancel(context.Background(), ownerID, "cleanup")
		require.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})

	t.Run("cancel by plan mismatch", func(t *testing.T) {
		t.Parallel()
		svc, store := newTestService(t, newClock(start))

		created, err := svc.CreateOrSwitch(context.Background(), ownerID, subscription.PlanYearly, proof)
		require.NoError(t, err)

		_, err = svc.CancelPlan(context.Background(), ownerID, subscription.PlanBasic, "admin cleanup")
		require.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
		assert.Equal(t, subscription.StatusActive, store.get(created.ID).Status)
	})

	t.Run("cancel by plan match", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestService(t, newClock(start))

		_, err := svc.CreateOrSwitch(context.Background(), ownerID, subscription.PlanBasic, proof)
		require.NoError(t, err)

		cancelled, err := svc.CancelPlan(context.Background(), ownerID, subscription.PlanBasic, "admin cleanup")
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCancelled, cancelled.Status)
	})

	t.Run("cancel by unknown plan", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestService(t, newClock(start))

		_, err := svc.CancelPlan(context.Background(), ownerID, "Platinum Plan", "admin cleanup")
		require.ErrorIs(t, err, subscription.ErrPlanNotFound)
	})
}

func TestServiceCheckFeature(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	ownerID := uuid.New()
	proof := subscription.PaymentProof{OrderID: "o", PaymentID: "p"}

	t.Run("no subscription fails closed", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestService(t, newClock(start))
		assert.False(t, svc.CheckFeature(context.Background(), ownerID, subscription.FeatureAPIAccess))
	})

	t.Run("reads the snapshot", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestService(t, newClock(start))

		_, err := svc.CreateOrSwitch(context.Background(), ownerID, subscription.PlanMonthly, proof)
		require.NoError(t, err)

		assert.True(t, svc.CheckFeature(context.Background(), ownerID, subscription.FeatureAPIAccess))
		assert.False(t, svc.CheckFeature(context.Background(), ownerID, subscription.FeatureWhiteLabel))
	})

	t.Run("expired subscription has no features", func(t *testing.T) {
		t.Parallel()
		clk := newClock(start)
		svc, _ := newTestService(t, clk)

		_, err := svc.CreateOrSwitch(context.Background(), ownerID, subscription.PlanMonthly, proof)
		require.NoError(t, err)

		clk.Advance(31 * 24 * time.Hour)
		assert.False(t, svc.CheckFeature(context.Background(), ownerID, subscription.FeatureAPIAccess))
	})
}

func TestServiceSweepExpired(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	clk := newClock(start)
	svc, store := newTestService(t, clk)

	overdueOwner := uuid.New()
	freshOwner := uuid.New()

	overdue, err := svc.CreateOrSwitch(context.Background(), overdueOwner, subscription.PlanBasic,
		subscription.PaymentProof{OrderID: "o1", PaymentID: "p1"})
	require.NoError(t, err)

	clk.Advance(20 * 24 * time.Hour)

	fresh, err := svc.CreateOrSwitch(context.Background(), freshOwner, subscription.PlanMonthly,
		subscription.PaymentProof{OrderID: "o2", PaymentID: "p2"})
	require.NoError(t, err)

	clk.Advance(15 * 24 * time.Hour) // basic is now 5 days overdue, monthly has 15 left

	count, err := svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, subscription.StatusExpired, store.get(overdue.ID).Status)
	assert.Equal(t, subscription.StatusActive, store.get(fresh.ID).Status)

	// Second run converges to zero changes.
	count, err = svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}
