package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]domain.Session)}
}

func (f *fakeSessions) Create(_ context.Context, id string, s domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[id] = s
	return nil
}

func (f *fakeSessions) Get(_ context.Context, id string) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessions) Update(
	_ context.Context, id string, fn func(domain.Session) (domain.Session, error),
) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	next, err := fn(s)
	if err != nil {
		return domain.Session{}, err
	}
	f.sessions[id] = next
	return next, nil
}

func (f *fakeSessions) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(f.sessions, id)
	return nil
}

type MockCartEventsProducer struct {
	mock.Mock
}

func (m *MockCartEventsProducer) ProduceCartEvent(
	ctx context.Context, e domain.CartEvent,
) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

type MockDemandReader struct {
	mock.Mock
}

func (m *MockDemandReader) ProductDemand(
	ctx context.Context, productID int64,
) (int64, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(int64), args.Error(1)
}

func testCatalog(t *testing.T) domain.Catalog {
	t.Helper()
	c, err := domain.NewCatalog([]domain.Product{
		{ID: 1, Name: "Classic Tee", Category: "Clothing", Price: decimal.RequireFromString("24.99")},
		{ID: 2, Name: "Running Shoes", Category: "Footwear", Price: decimal.RequireFromString("69.99")},
	})
	require.NoError(t, err)
	return c
}

func cartEvent(productID int64, delta int) any {
	return mock.MatchedBy(func(e domain.CartEvent) bool {
		return e.Product.ID == productID &&
			e.Delta == delta &&
			!e.OccurredAt.IsZero()
	})
}

func TestServiceCatalog(t *testing.T) {
	s := service.New(testCatalog(t), newFakeSessions(), nil, nil)

	assert.Equal(t, []string{"All", "Clothing", "Footwear"}, s.Categories())

	ps := s.Products("shoes", "All")
	require.Len(t, ps, 1)
	assert.Equal(t, int64(2), ps[0].ID)

	assert.Empty(t, s.Products("zzz", "All"))
}

func TestServiceSession(t *testing.T) {
	t.Run("Scenario", func(t *testing.T) {
		events := new(MockCartEventsProducer)
		events.On("ProduceCartEvent", mock.Anything, cartEvent(1, 1)).Return(nil).Twice()
		events.On("ProduceCartEvent", mock.Anything, cartEvent(2, 1)).Return(nil).Once()
		events.On("ProduceCartEvent", mock.Anything, cartEvent(1, -2)).Return(nil).Once()

		s := service.New(testCatalog(t), newFakeSessions(), events, nil)
		ctx := t.Context()

		id, v, err := s.OpenSession(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, id)
		assert.Len(t, v.Products, 2)
		assert.Equal(t, domain.AllCategories, v.Category)

		_, err = s.AddToCart(ctx, id, 1)
		require.NoError(t, err)
		_, err = s.AddToCart(ctx, id, 1)
		require.NoError(t, err)
		v, err = s.AddToCart(ctx, id, 2)
		require.NoError(t, err)

		assert.Equal(t, 3, v.ItemCount)
		assert.Equal(t, "119.97", domain.FormatAmount(v.Total))

		v, err = s.RemoveFromCart(ctx, id, 1)
		require.NoError(t, err)
		require.Len(t, v.Lines, 1)
		assert.Equal(t, int64(2), v.Lines[0].ID)
		assert.Equal(t, "69.99", domain.FormatAmount(v.Total))

		events.AssertExpectations(t)
	})

	t.Run("RemoveAbsentPublishesNothing", func(t *testing.T) {
		events := new(MockCartEventsProducer)
		s := service.New(testCatalog(t), newFakeSessions(), events, nil)

		id, _, err := s.OpenSession(t.Context())
		require.NoError(t, err)

		v, err := s.RemoveFromCart(t.Context(), id, 2)
		require.NoError(t, err)
		assert.Empty(t, v.Lines)

		events.AssertNotCalled(t, "ProduceCartEvent", mock.Anything, mock.Anything)
	})

	t.Run("PublishFailureIsNotFatal", func(t *testing.T) {
		events := new(MockCartEventsProducer)
		events.On("ProduceCartEvent", mock.Anything, mock.Anything).
			Return(errors.New("broker down"))

		s := service.New(testCatalog(t), newFakeSessions(), events, nil)
		id, _, err := s.OpenSession(t.Context())
		require.NoError(t, err)

		v, err := s.AddToCart(t.Context(), id, 2)
		require.NoError(t, err)
		assert.Equal(t, 1, v.ItemCount)
	})

	t.Run("Filters", func(t *testing.T) {
		s := service.New(testCatalog(t), newFakeSessions(), nil, nil)
		id, _, err := s.OpenSession(t.Context())
		require.NoError(t, err)

		v, err := s.SetQuery(t.Context(), id, "TEE")
		require.NoError(t, err)
		assert.Equal(t, "TEE", v.Query)
		require.Len(t, v.Products, 1)

		v, err = s.SelectCategory(t.Context(), id, "Footwear")
		require.NoError(t, err)
		assert.Empty(t, v.Products)

		v, err = s.Session(t.Context(), id)
		require.NoError(t, err)
		assert.Equal(t, "TEE", v.Query)
		assert.Equal(t, "Footwear", v.Category)
	})

	t.Run("UnknownProduct", func(t *testing.T) {
		s := service.New(testCatalog(t), newFakeSessions(), nil, nil)
		id, _, err := s.OpenSession(t.Context())
		require.NoError(t, err)

		_, err = s.AddToCart(t.Context(), id, 42)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
	})

	t.Run("UnknownSession", func(t *testing.T) {
		s := service.New(testCatalog(t), newFakeSessions(), nil, nil)

		_, err := s.Session(t.Context(), "missing")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		_, err = s.AddToCart(t.Context(), "missing", 1)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		_, err = s.RemoveFromCart(t.Context(), "missing", 1)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		err = s.CloseSession(t.Context(), "missing")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Close", func(t *testing.T) {
		s := service.New(testCatalog(t), newFakeSessions(), nil, nil)
		id, _, err := s.OpenSession(t.Context())
		require.NoError(t, err)

		require.NoError(t, s.CloseSession(t.Context(), id))

		_, err = s.Session(t.Context(), id)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		s := service.New(testCatalog(t), newFakeSessions(), nil, nil)
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, _, err := s.OpenSession(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("ConcurrentAdds", func(t *testing.T) {
		s := service.New(testCatalog(t), newFakeSessions(), nil, nil)
		id, _, err := s.OpenSession(t.Context())
		require.NoError(t, err)

		const n = 50
		var wg sync.WaitGroup
		wg.Add(n)
		for range n {
			go func() {
				defer wg.Done()
				_, err := s.AddToCart(t.Context(), id, 1)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		v, err := s.Session(t.Context(), id)
		require.NoError(t, err)
		require.Len(t, v.Lines, 1)
		assert.Equal(t, n, v.ItemCount)
	})
}

func TestServiceProductDemand(t *testing.T) {
	t.Run("Unavailable", func(t *testing.T) {
		s := service.New(testCatalog(t), newFakeSessions(), nil, nil)
		_, err := s.ProductDemand(t.Context(), 1)
		assert.ErrorIs(t, err, domain.ErrDemandUnavailable)
	})

	t.Run("UnknownProduct", func(t *testing.T) {
		demand := new(MockDemandReader)
		s := service.New(testCatalog(t), newFakeSessions(), nil, demand)

		_, err := s.ProductDemand(t.Context(), 7)
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
		demand.AssertNotCalled(t, "ProductDemand", mock.Anything, mock.Anything)
	})

	t.Run("Regular", func(t *testing.T) {
		demand := new(MockDemandReader)
		demand.On("ProductDemand", mock.Anything, int64(2)).Return(int64(5), nil)
		s := service.New(testCatalog(t), newFakeSessions(), nil, demand)

		units, err := s.ProductDemand(t.Context(), 2)
		require.NoError(t, err)
		assert.Equal(t, int64(5), units)
	})
}
