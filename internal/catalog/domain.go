// internal/catalog/domain.go
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bookshop/internal/web"
)

var (
	ErrBookNotFound      = errors.New("book not found")
	ErrBookAlreadyExists = errors.New("book already exists")
)

// bookNamespace scopes the name-based aggregate ids of books.
var bookNamespace = uuid.MustParse("6f1c5d1e-8a52-4a37-9d43-2b9b1f3c0e71")

const aggregateType = "book"

// Event types in a book stream.
const (
	EventBookAdded   = "BookAdded"
	EventBookEdited  = "BookEdited"
	EventBookRemoved = "BookRemoved"
)

// Book is a catalog entry. The ISBN identifies it; ID, audit fields and
// Version belong to the read model.
type Book struct {
	ID               int64           `json:"id" db:"id"`
	ISBN             string          `json:"isbn" db:"isbn"`
	Title            string          `json:"title" db:"title"`
	Author           string          `json:"author" db:"author"`
	Price            decimal.Decimal `json:"price" db:"price"`
	Publisher        *string         `json:"publisher,omitempty" db:"publisher"`
	CreatedBy        int64           `json:"-" db:"created_by"`
	CreatedDate      time.Time       `json:"createdDate" db:"created_date"`
	LastModifiedBy   int64           `json:"-" db:"last_modified_by"`
	LastModifiedDate time.Time       `json:"lastModifiedDate" db:"last_modified_date"`
	Version          int             `json:"version" db:"version"`
}

// BookInput is the writable part of a book as sent by clients. Price is a
// pointer so that a missing price is told apart from zero.
type BookInput struct {
	ISBN      string           `json:"isbn"`
	Title     string           `json:"title"`
	Author    string           `json:"author"`
	Price     *decimal.Decimal `json:"price"`
	Publisher *string          `json:"publisher,omitempty"`
}

func (in BookInput) Validate() error {
	verr := web.ValidationError{}
	switch {
	case isBlank(in.ISBN):
		verr.Add("isbn", "The book ISBN must be defined.")
	case !web.ValidISBN(in.ISBN):
		verr.Add("isbn", "The ISBN format must be valid.")
	}
	if isBlank(in.Title) {
		verr.Add("title", "The book title must be defined.")
	}
	if isBlank(in.Author) {
		verr.Add("author", "The book author must be defined.")
	}
	switch {
	case in.Price == nil:
		verr.Add("price", "The book price must be defined.")
	case !in.Price.IsPositive():
		verr.Add("price", "The book price must be greater than zero.")
	}
	return verr.Err()
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// BookID is the aggregate id of the book stream for isbn.
func BookID(isbn string) uuid.UUID {
	return uuid.NewSHA1(bookNamespace, []byte(isbn))
}

// BookAddedEvent is recorded when a book enters the catalog.
type BookAddedEvent struct {
	ISBN      string          `json:"isbn"`
	Title     string          `json:"title"`
	Author    string          `json:"author"`
	Price     decimal.Decimal `json:"price"`
	Publisher *string         `json:"publisher,omitempty"`
}

// BookEditedEvent carries the new details of a book.
type BookEditedEvent struct {
	ISBN      string          `json:"isbn"`
	Title     string          `json:"title"`
	Author    string          `json:"author"`
	Price     decimal.Decimal `json:"price"`
	Publisher *string         `json:"publisher,omitempty"`
}

// BookRemovedEvent is recorded when a book leaves the catalog.
type BookRemovedEvent struct {
	ISBN string `json:"isbn"`
}

// BookError ties ErrBookNotFound or ErrBookAlreadyExists to an ISBN. Its
// message is meant for clients.
type BookError struct {
	ISBN string
	Err  error
}

func (e *BookError) Error() string {
	if errors.Is(e.Err, ErrBookAlreadyExists) {
		return fmt.Sprintf("A book with ISBN %s already exists.", e.ISBN)
	}
	return fmt.Sprintf("The book with ISBN %s was not found.", e.ISBN)
}

func (e *BookError) Unwrap() error {
	return e.Err
}

func notFound(isbn string) error {
	return &BookError{ISBN: isbn, Err: ErrBookNotFound}
}

func alreadyExists(isbn string) error {
	return &BookError{ISBN: isbn, Err: ErrBookAlreadyExists}
}
