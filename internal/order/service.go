// internal/order/service.go
package order

import (
	"context"

	"bookshop/internal/clients"
	"bookshop/pkg/paging"
)

// Service defines the interface for the order service.
type Service interface {
	SubmitOrder(ctx context.Context, isbn string, quantity int) (*Order, error)
	GetAllOrders(ctx context.Context, page paging.Request) (*paging.Page[Order], error)
}

// BookLookup resolves an ISBN to catalog data. It reports false instead of
// failing when the book cannot be verified.
type BookLookup interface {
	GetBookByISBN(ctx context.Context, isbn string) (clients.Book, bool)
}

// Repository stores orders. Save assigns the id, audit fields and version.
type Repository interface {
	Save(ctx context.Context, order Order) (*Order, error)
	FindAll(ctx context.Context, page paging.Request) ([]Order, error)
	Count(ctx context.Context) (int64, error)
}
