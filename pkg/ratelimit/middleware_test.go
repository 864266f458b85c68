package ratelimit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentaflow/dentaflow/pkg/entitlement"
	"github.com/dentaflow/dentaflow/pkg/ratelimit"
)

type errorLimiter struct{}

func (errorLimiter) Allow(context.Context, string) (*ratelimit.Result, error) {
	return nil, context.DeadlineExceeded
}

func (errorLimiter) Status(context.Context, string) (*ratelimit.Result, error) {
	return nil, context.DeadlineExceeded
}

func (errorLimiter) Reset(context.Context, string) error { return nil }

func TestMiddleware(t *testing.T) {
	t.Parallel()

	newLimiter := func(t *testing.T, limit int) ratelimit.Limiter {
		t.Helper()
		limiter, err := ratelimit.NewFixedWindow(ratelimit.NewMemoryStore(), limit, time.Minute)
		require.NoError(t, err)
		return limiter
	}

	ownerCtx := func(ownerID uuid.UUID) context.Context {
		return entitlement.WithOwnerID(context.Background(), ownerID)
	}

	doRequest := func(handler http.Handler, ctx context.Context) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/payments/create-order", nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("allows under the limit with headers", func(t *testing.T) {
		t.Parallel()
		mw := ratelimit.Middleware(newLimiter(t, 2), ratelimit.KeyByOwner)
		rec := doRequest(mw(ok), ownerCtx(uuid.New()))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("blocks over the limit with retry-after", func(t *testing.T) {
		t.Parallel()
		mw := ratelimit.Middleware(newLimiter(t, 1), ratelimit.KeyByOwner)
		handler := mw(ok)
		ctx := ownerCtx(uuid.New())

		rec := doRequest(handler, ctx)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doRequest(handler, ctx)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		assert.Contains(t, rec.Body.String(), "too_many_requests")
	})

	t.Run("owners are limited independently", func(t *testing.T) {
		t.Parallel()
		mw := ratelimit.Middleware(newLimiter(t, 1), ratelimit.KeyByOwner)
		handler := mw(ok)

		rec := doRequest(handler, ownerCtx(uuid.New()))
		assert.Equal(t, http.StatusOK, rec.Code)
		rec = doRequest(handler, ownerCtx(uuid.New()))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("empty key passes unlimited", func(t *testing.T) {
		t.Parallel()
		mw := ratelimit.Middleware(newLimiter(t, 1), ratelimit.KeyByOwner)
		handler := mw(ok)

		// No owner in context, so KeyByOwner returns "".
		for i := 0; i < 5; i++ {
			rec := doRequest(handler, context.Background())
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})

	t.Run("store errors fail open", func(t *testing.T) {
		t.Parallel()
		mw := ratelimit.Middleware(errorLimiter{}, ratelimit.KeyByOwner)
		rec := doRequest(mw(ok), ownerCtx(uuid.New()))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestKeyFuncs(t *testing.T) {
	t.Parallel()

	t.Run("owner key", func(t *testing.T) {
		t.Parallel()
		ownerID := uuid.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil).
			WithContext(entitlement.WithOwnerID(context.Background(), ownerID))
		assert.Equal(t, "owner:"+ownerID.String(), ratelimit.KeyByOwner(req))

		bare := httptest.NewRequest(http.MethodGet, "/", nil)
		assert.Empty(t, ratelimit.KeyByOwner(bare))
	})

	t.Run("ip key", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.9:4711"
		assert.Equal(t, "ip:203.0.113.9", ratelimit.KeyByIP(req))
	})

	t.Run("composite hashes long keys", func(t *testing.T) {
		t.Parallel()
		long := func(*http.Request) string {
			return "a-very-long-key-part-that-keeps-going-and-going-and-going-far-past-the-bound"
		}
		key := ratelimit.Composite(long, long)(httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Len(t, key, 32)
	})
}
