package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/niksmo/storefront/internal/adapter/session"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var tee = domain.Product{
	ID: 1, Name: "Classic Tee", Category: "Clothing",
	Price: decimal.RequireFromString("24.99"),
}

func addTee(s domain.Session) (domain.Session, error) {
	return s.Apply(domain.ProductAdded{Product: tee}), nil
}

func TestMemoryStore(t *testing.T) {
	t.Run("CreateGetUpdateDelete", func(t *testing.T) {
		s := session.NewMemoryStore(time.Hour)
		ctx := t.Context()

		require.NoError(t, s.Create(ctx, "a", domain.NewSession()))

		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, domain.AllCategories, got.Category)

		got, err = s.Update(ctx, "a", addTee)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Cart.ItemCount())

		got, err = s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 1, got.Cart.ItemCount())

		require.NoError(t, s.Delete(ctx, "a"))
		_, err = s.Get(ctx, "a")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("UnknownID", func(t *testing.T) {
		s := session.NewMemoryStore(time.Hour)

		_, err := s.Get(t.Context(), "nope")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		_, err = s.Update(t.Context(), "nope", addTee)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		assert.ErrorIs(t, s.Delete(t.Context(), "nope"), domain.ErrSessionNotFound)
	})

	t.Run("FailedUpdateKeepsSession", func(t *testing.T) {
		s := session.NewMemoryStore(time.Hour)
		require.NoError(t, s.Create(t.Context(), "a", domain.NewSession()))

		_, err := s.Update(t.Context(), "a",
			func(domain.Session) (domain.Session, error) {
				return domain.Session{}, context.DeadlineExceeded
			},
		)
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		got, err := s.Get(t.Context(), "a")
		require.NoError(t, err)
		assert.Equal(t, domain.AllCategories, got.Category)
	})

	t.Run("Expiry", func(t *testing.T) {
		clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
		s := session.NewMemoryStore(10*time.Minute, session.WithClock(clock.Now))
		require.NoError(t, s.Create(t.Context(), "a", domain.NewSession()))

		clock.Advance(9 * time.Minute)
		_, err := s.Update(t.Context(), "a", addTee)
		require.NoError(t, err)

		clock.Advance(9 * time.Minute)
		_, err = s.Get(t.Context(), "a")
		require.NoError(t, err, "activity extends the session")

		clock.Advance(10 * time.Minute)
		_, err = s.Get(t.Context(), "a")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("SerializesWriters", func(t *testing.T) {
		s := session.NewMemoryStore(time.Hour)
		require.NoError(t, s.Create(t.Context(), "a", domain.NewSession()))

		const n = 100
		var wg sync.WaitGroup
		wg.Add(n)
		for range n {
			go func() {
				defer wg.Done()
				_, err := s.Update(t.Context(), "a", addTee)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := s.Get(t.Context(), "a")
		require.NoError(t, err)
		assert.Equal(t, n, got.Cart.ItemCount())
	})

	t.Run("RunSweepsAndStops", func(t *testing.T) {
		clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
		s := session.NewMemoryStore(time.Minute, session.WithClock(clock.Now))
		require.NoError(t, s.Create(t.Context(), "a", domain.NewSession()))
		require.NoError(t, s.Create(t.Context(), "b", domain.NewSession()))
		clock.Advance(2 * time.Minute)

		ctx, cancel := context.WithCancel(t.Context())
		done := make(chan struct{})
		go func() {
			defer close(done)
			s.Run(ctx, time.Millisecond)
		}()

		assert.Eventually(t, func() bool {
			return s.Len() == 0
		}, time.Second, 5*time.Millisecond)

		cancel()
		<-done
	})
}
