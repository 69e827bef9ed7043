// internal/catalog/implementation.go
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bookshop/pkg/eventstore"
	"bookshop/pkg/logging"
	"bookshop/pkg/paging"
)

// service implements the Service interface.
type service struct {
	events EventLog
	books  Repository
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewService creates a new catalog service instance.
func NewService(events EventLog, books Repository, logger zerolog.Logger) Service {
	return &service{
		events: events,
		books:  books,
		logger: logger,
		tracer: otel.Tracer("bookshop/catalog"),
	}
}

func (s *service) ViewBookList(ctx context.Context, page paging.Request) (*paging.Page[Book], error) {
	books, err := s.books.FindAll(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	total, err := s.books.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count books: %w", err)
	}
	return paging.NewPage(books, page, total), nil
}

func (s *service) ViewBookDetails(ctx context.Context, isbn string) (*Book, error) {
	book, err := s.books.FindByISBN(ctx, isbn)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, notFound(isbn)
	}
	return book, nil
}

// AddBookToCatalog records a BookAdded event and inserts the book into the
// read model. It fails with ErrBookAlreadyExists for a known ISBN.
func (s *service) AddBookToCatalog(ctx context.Context, in BookInput) (*Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.add_book", trace.WithAttributes(attribute.String("book.isbn", in.ISBN)))
	defer span.End()

	existing, err := s.books.FindByISBN(ctx, in.ISBN)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, alreadyExists(in.ISBN)
	}

	err = s.appendEvent(ctx, in.ISBN, EventBookAdded, BookAddedEvent{
		ISBN:      in.ISBN,
		Title:     in.Title,
		Author:    in.Author,
		Price:     *in.Price,
		Publisher: in.Publisher,
	})
	if err != nil {
		return nil, err
	}

	book, err := s.books.Insert(ctx, Book{
		ISBN:      in.ISBN,
		Title:     in.Title,
		Author:    in.Author,
		Price:     *in.Price,
		Publisher: in.Publisher,
	})
	if err != nil {
		// The BookAdded event stays in the stream; a later add appends after it.
		s.logger.Warn().Err(err).Str(logging.ISBN, in.ISBN).Msg("book added to history but not to read model")
		return nil, fmt.Errorf("failed to update read model: %w", err)
	}

	s.logger.Info().Str(logging.ISBN, in.ISBN).Msg("book added")
	return book, nil
}

// EditBookDetails changes every field but the ISBN. A book that is not in the
// catalog yet is added under isbn.
func (s *service) EditBookDetails(ctx context.Context, isbn string, in BookInput) (*Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.edit_book", trace.WithAttributes(attribute.String("book.isbn", isbn)))
	defer span.End()

	existing, err := s.books.FindByISBN(ctx, isbn)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		in.ISBN = isbn
		return s.AddBookToCatalog(ctx, in)
	}

	err = s.appendEvent(ctx, isbn, EventBookEdited, BookEditedEvent{
		ISBN:      isbn,
		Title:     in.Title,
		Author:    in.Author,
		Price:     *in.Price,
		Publisher: in.Publisher,
	})
	if err != nil {
		return nil, err
	}

	edited := *existing
	edited.Title = in.Title
	edited.Author = in.Author
	edited.Price = *in.Price
	edited.Publisher = in.Publisher

	book, err := s.books.Update(ctx, edited)
	if err != nil {
		return nil, fmt.Errorf("failed to update read model: %w", err)
	}

	s.logger.Info().Str(logging.ISBN, isbn).Int("version", book.Version).Msg("book edited")
	return book, nil
}

// RemoveBookFromCatalog deletes the book. Removing an unknown ISBN is not an
// error.
func (s *service) RemoveBookFromCatalog(ctx context.Context, isbn string) error {
	ctx, span := s.tracer.Start(ctx, "catalog.remove_book", trace.WithAttributes(attribute.String("book.isbn", isbn)))
	defer span.End()

	existing, err := s.books.FindByISBN(ctx, isbn)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}

	if err := s.appendEvent(ctx, isbn, EventBookRemoved, BookRemovedEvent{ISBN: isbn}); err != nil {
		return err
	}
	if err := s.books.DeleteByISBN(ctx, isbn); err != nil {
		return fmt.Errorf("failed to update read model: %w", err)
	}

	s.logger.Info().Str(logging.ISBN, isbn).Msg("book removed")
	return nil
}

// BookHistory returns every event recorded for isbn, oldest first, including
// those of earlier incarnations of a removed book.
func (s *service) BookHistory(ctx context.Context, isbn string) ([]eventstore.Event, error) {
	events, err := s.events.LoadEvents(ctx, BookID(isbn), 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	if len(events) == 0 {
		return nil, notFound(isbn)
	}
	return events, nil
}

// appendEvent adds one event at the end of the book stream.
func (s *service) appendEvent(ctx context.Context, isbn, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	id := BookID(isbn)
	version, err := s.events.GetCurrentVersion(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read stream version: %w", err)
	}

	event := eventstore.Event{
		AggregateID:   id,
		AggregateType: aggregateType,
		EventType:     eventType,
		EventData:     jsonData,
		Metadata:      map[string]string{"auditor": "0"},
		Version:       version + 1,
	}
	if err := s.events.AppendEvents(ctx, id, aggregateType, version, []eventstore.Event{event}); err != nil {
		if errors.Is(err, eventstore.ErrConcurrencyConflict) {
			s.logger.Warn().Str(logging.ISBN, isbn).Str("event", eventType).Msg("book stream moved on")
		}
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}
