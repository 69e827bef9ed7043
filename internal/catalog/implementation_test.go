package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshop/pkg/eventstore"
	"bookshop/pkg/paging"
)

func newTestService() (Service, *memEventLog, *memBooks) {
	events, books := newMemEventLog(), newMemBooks()
	return NewService(events, books, zerolog.Nop()), events, books
}

func input(isbn, title, author, price string) BookInput {
	p := decimal.RequireFromString(price)
	return BookInput{ISBN: isbn, Title: title, Author: author, Price: &p}
}

func TestAddBookToCatalog(t *testing.T) {
	svc, events, _ := newTestService()
	ctx := context.Background()

	book, err := svc.AddBookToCatalog(ctx, input("1234567890", "Title", "Author", "9.90"))

	require.NoError(t, err)
	assert.Equal(t, "1234567890", book.ISBN)
	assert.Equal(t, 1, book.Version)

	stream := events.streams[BookID("1234567890")]
	require.Len(t, stream, 1)
	assert.Equal(t, EventBookAdded, stream[0].EventType)

	var added BookAddedEvent
	require.NoError(t, json.Unmarshal(stream[0].EventData, &added))
	assert.Equal(t, "Title", added.Title)
	assert.True(t, added.Price.Equal(decimal.RequireFromString("9.90")))
}

func TestAddBookTwiceFails(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	_, err := svc.AddBookToCatalog(ctx, input("1234567890", "Title", "Author", "9.90"))
	require.NoError(t, err)

	_, err = svc.AddBookToCatalog(ctx, input("1234567890", "Other", "Author", "1.00"))

	assert.ErrorIs(t, err, ErrBookAlreadyExists)
	assert.EqualError(t, err, "A book with ISBN 1234567890 already exists.")
}

func TestViewBookDetailsUnknown(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.ViewBookDetails(context.Background(), "1234567891")

	assert.ErrorIs(t, err, ErrBookNotFound)
	assert.EqualError(t, err, "The book with ISBN 1234567891 was not found.")
}

func TestEditBookDetailsKeepsISBN(t *testing.T) {
	svc, events, _ := newTestService()
	ctx := context.Background()
	_, err := svc.AddBookToCatalog(ctx, input("1234567890", "Title", "Author", "9.90"))
	require.NoError(t, err)

	edited, err := svc.EditBookDetails(ctx, "1234567890", input("9999999999", "New Title", "Author", "12.90"))

	require.NoError(t, err)
	assert.Equal(t, "1234567890", edited.ISBN)
	assert.Equal(t, "New Title", edited.Title)
	assert.Equal(t, 2, edited.Version)
	assert.Len(t, events.streams[BookID("1234567890")], 2)
	assert.Empty(t, events.streams[BookID("9999999999")])
}

func TestEditBookDetailsAddsMissingBook(t *testing.T) {
	svc, _, books := newTestService()

	book, err := svc.EditBookDetails(context.Background(), "1234567890", input("1234567890", "Title", "Author", "9.90"))

	require.NoError(t, err)
	assert.Equal(t, 1, book.Version)
	assert.Contains(t, books.books, "1234567890")
}

func TestRemoveBookIsIdempotent(t *testing.T) {
	svc, events, books := newTestService()
	ctx := context.Background()
	_, err := svc.AddBookToCatalog(ctx, input("1234567890", "Title", "Author", "9.90"))
	require.NoError(t, err)

	require.NoError(t, svc.RemoveBookFromCatalog(ctx, "1234567890"))
	require.NoError(t, svc.RemoveBookFromCatalog(ctx, "1234567890"))

	assert.Empty(t, books.books)
	assert.Len(t, events.streams[BookID("1234567890")], 2)
}

func TestBookHistorySurvivesRemoval(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	_, err := svc.AddBookToCatalog(ctx, input("1234567890", "Title", "Author", "9.90"))
	require.NoError(t, err)
	require.NoError(t, svc.RemoveBookFromCatalog(ctx, "1234567890"))
	_, err = svc.AddBookToCatalog(ctx, input("1234567890", "Title", "Author", "10.90"))
	require.NoError(t, err)

	history, err := svc.BookHistory(ctx, "1234567890")

	require.NoError(t, err)
	types := make([]string, 0, len(history))
	for _, e := range history {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []string{EventBookAdded, EventBookRemoved, EventBookAdded}, types)

	_, err = svc.BookHistory(ctx, "0000000000")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

type conflictingLog struct{ *memEventLog }

func (conflictingLog) AppendEvents(context.Context, uuid.UUID, string, int, []eventstore.Event) error {
	return eventstore.ErrConcurrencyConflict
}

func TestConcurrentEditSurfacesConflict(t *testing.T) {
	books := newMemBooks()
	_, err := books.Insert(context.Background(), Book{ISBN: "1234567890", Title: "Title", Author: "Author"})
	require.NoError(t, err)
	svc := NewService(conflictingLog{newMemEventLog()}, books, zerolog.Nop())

	_, err = svc.EditBookDetails(context.Background(), "1234567890", input("1234567890", "T", "A", "1.00"))

	assert.ErrorIs(t, err, eventstore.ErrConcurrencyConflict)
}

type failingBooks struct{ *memBooks }

func (failingBooks) Insert(context.Context, Book) (*Book, error) {
	return nil, errors.New("disk full")
}

func TestAddBookReadModelFailureKeepsEventAndWarns(t *testing.T) {
	var logs bytes.Buffer
	events := newMemEventLog()
	svc := NewService(events, failingBooks{newMemBooks()}, zerolog.New(&logs))

	_, err := svc.AddBookToCatalog(context.Background(), input("1234567890", "Title", "Author", "9.90"))
	require.Error(t, err)

	version, err := events.GetCurrentVersion(context.Background(), BookID("1234567890"))
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	assert.Contains(t, logs.String(), "book added to history but not to read model")
	assert.Contains(t, logs.String(), `"level":"warn"`)
}

func TestViewBookList(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	for _, isbn := range []string{"1234567890", "1234567891", "1234567892"} {
		_, err := svc.AddBookToCatalog(ctx, input(isbn, "Title", "Author", "9.90"))
		require.NoError(t, err)
	}

	page, err := svc.ViewBookList(ctx, paging.Request{Number: 0, Size: 2})

	require.NoError(t, err)
	require.Len(t, page.Content, 2)
	assert.Equal(t, "1234567892", page.Content[0].ISBN)
	assert.Equal(t, int64(3), page.TotalElements)
	assert.Equal(t, 2, page.TotalPages())
}

func TestLoadTestData(t *testing.T) {
	svc, _, books := newTestService()
	ctx := context.Background()
	_, err := svc.AddBookToCatalog(ctx, input("1234567890", "Stale", "Author", "1.00"))
	require.NoError(t, err)

	require.NoError(t, LoadTestData(ctx, svc, books, zerolog.Nop()))

	assert.Len(t, books.books, 2)
	assert.Equal(t, "Northern Lights", books.books["1234567891"].Title)
	assert.True(t, books.books["1234567892"].Price.Equal(decimal.RequireFromString("12.90")))
}
