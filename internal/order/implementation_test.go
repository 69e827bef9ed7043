package order

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"bookshop/internal/clients"
	"bookshop/pkg/paging"
)

type stubLookup map[string]clients.Book

func (s stubLookup) GetBookByISBN(ctx context.Context, isbn string) (clients.Book, bool) {
	b, ok := s[isbn]
	return b, ok
}

// memRepository mimics the Postgres repository in memory.
type memRepository struct {
	mu     sync.Mutex
	orders []Order
	err    error
}

func (m *memRepository) Save(ctx context.Context, o Order) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	o.ID = int64(len(m.orders) + 1)
	o.Version = 1
	m.orders = append(m.orders, o)
	return &o, nil
}

func (m *memRepository) FindAll(ctx context.Context, page paging.Request) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	start := min(page.Offset(), len(m.orders))
	end := min(start+page.Size, len(m.orders))
	return append([]Order(nil), m.orders[start:end]...), nil
}

func (m *memRepository) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.orders)), m.err
}

var catalogBooks = stubLookup{
	"1234567890": {ISBN: "1234567890", Title: "Title", Author: "Author", Price: decimal.RequireFromString("9.90")},
}

func TestSubmitOrderWhenBookAvailable(t *testing.T) {
	repo := &memRepository{}
	svc := NewService(catalogBooks, repo, zerolog.Nop())

	order, err := svc.SubmitOrder(context.Background(), "1234567890", 3)

	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, order.Status)
	assert.Equal(t, "1234567890", order.BookISBN)
	require.NotNil(t, order.BookName)
	assert.Equal(t, "Title - Author", *order.BookName)
	require.NotNil(t, order.BookPrice)
	assert.True(t, order.BookPrice.Equal(decimal.RequireFromString("9.90")))
	assert.Equal(t, 3, order.Quantity)
	assert.Equal(t, int64(1), order.ID)
	assert.Len(t, repo.orders, 1)
}

func TestSubmitOrderWhenBookNotAvailable(t *testing.T) {
	repo := &memRepository{}
	svc := NewService(catalogBooks, repo, zerolog.Nop())

	order, err := svc.SubmitOrder(context.Background(), "1234567891", 3)

	require.NoError(t, err)
	assert.Equal(t, StatusRejected, order.Status)
	assert.Equal(t, "1234567891", order.BookISBN)
	assert.Equal(t, 3, order.Quantity)
	assert.Nil(t, order.BookName)
	assert.Nil(t, order.BookPrice)
	assert.Len(t, repo.orders, 1)
}

func TestSubmitOrderPropagatesStorageFailure(t *testing.T) {
	boom := errors.New("disk full")
	svc := NewService(catalogBooks, &memRepository{err: boom}, zerolog.Nop())

	order, err := svc.SubmitOrder(context.Background(), "1234567890", 1)

	assert.Nil(t, order)
	assert.ErrorIs(t, err, boom)
}

type cancellingLookup struct {
	cancel context.CancelFunc
}

func (c cancellingLookup) GetBookByISBN(ctx context.Context, isbn string) (clients.Book, bool) {
	c.cancel()
	return clients.Book{}, false
}

func TestSubmitOrderStoresNothingOnceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	repo := &memRepository{}
	svc := NewService(cancellingLookup{cancel: cancel}, repo, zerolog.Nop())

	order, err := svc.SubmitOrder(ctx, "1234567890", 1)

	assert.Nil(t, order)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, repo.orders)
}

func TestSubmitOrderDecision(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		isbn := rapid.StringMatching(`[0-9]{10}`).Draw(t, "isbn")
		quantity := rapid.IntRange(1, 5).Draw(t, "quantity")
		known := rapid.Bool().Draw(t, "known")

		lookup := stubLookup{}
		if known {
			cents := rapid.Int64Range(1, 100000).Draw(t, "cents")
			lookup[isbn] = clients.Book{ISBN: isbn, Title: "T", Author: "A", Price: decimal.New(cents, -2)}
		}
		repo := &memRepository{}
		order, err := NewService(lookup, repo, zerolog.Nop()).SubmitOrder(context.Background(), isbn, quantity)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(repo.orders) != 1 {
			t.Fatalf("stored %d orders, want 1", len(repo.orders))
		}
		if order.Quantity != quantity || order.BookISBN != isbn {
			t.Fatalf("order %+v does not carry the request", order)
		}
		if known {
			if order.Status != StatusAccepted || order.BookPrice == nil || !order.BookPrice.Equal(lookup[isbn].Price) {
				t.Fatalf("known book gave %+v", order)
			}
		} else if order.Status != StatusRejected || order.BookPrice != nil || order.BookName != nil {
			t.Fatalf("unknown book gave %+v", order)
		}
	})
}

func TestGetAllOrdersCountsEveryOrder(t *testing.T) {
	repo := &memRepository{}
	svc := NewService(catalogBooks, repo, zerolog.Nop())
	for range 5 {
		_, err := svc.SubmitOrder(context.Background(), "1234567890", 1)
		require.NoError(t, err)
	}

	page, err := svc.GetAllOrders(context.Background(), paging.Request{Number: 1, Size: 2})

	require.NoError(t, err)
	assert.Len(t, page.Content, 2)
	assert.Equal(t, int64(5), page.TotalElements)
	assert.Equal(t, 3, page.TotalPages())
	assert.Equal(t, int64(3), page.Content[0].ID)
}
