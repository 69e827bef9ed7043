// internal/catalog/service.go
package catalog

import (
	"context"

	"github.com/google/uuid"

	"bookshop/pkg/eventstore"
	"bookshop/pkg/paging"
)

// Service defines the interface for the catalog service.
type Service interface {
	ViewBookList(ctx context.Context, page paging.Request) (*paging.Page[Book], error)
	ViewBookDetails(ctx context.Context, isbn string) (*Book, error)
	AddBookToCatalog(ctx context.Context, in BookInput) (*Book, error)
	EditBookDetails(ctx context.Context, isbn string, in BookInput) (*Book, error)
	RemoveBookFromCatalog(ctx context.Context, isbn string) error
	BookHistory(ctx context.Context, isbn string) ([]eventstore.Event, error)
}

// EventLog is the part of the event store the catalog writes to.
type EventLog interface {
	AppendEvents(ctx context.Context, aggregateID uuid.UUID, aggregateType string, expectedVersion int, events []eventstore.Event) error
	LoadEvents(ctx context.Context, aggregateID uuid.UUID, fromVersion, toVersion int) ([]eventstore.Event, error)
	GetCurrentVersion(ctx context.Context, aggregateID uuid.UUID) (int, error)
}

// Repository is the books read model.
type Repository interface {
	FindByISBN(ctx context.Context, isbn string) (*Book, error)
	Insert(ctx context.Context, book Book) (*Book, error)
	Update(ctx context.Context, book Book) (*Book, error)
	DeleteByISBN(ctx context.Context, isbn string) error
	DeleteAll(ctx context.Context) error
	FindAll(ctx context.Context, page paging.Request) ([]Book, error)
	Count(ctx context.Context) (int64, error)
}
