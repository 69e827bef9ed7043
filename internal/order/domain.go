// internal/order/domain.go
package order

import (
	"time"

	"github.com/shopspring/decimal"

	"bookshop/internal/clients"
)

type Status string

const (
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
)

// Order is a request for a quantity of one book. ID, audit fields and Version
// are assigned by the Repository.
type Order struct {
	ID               int64            `json:"id" db:"id"`
	BookISBN         string           `json:"bookIsbn" db:"book_isbn"`
	BookName         *string          `json:"bookName,omitempty" db:"book_name"`
	BookPrice        *decimal.Decimal `json:"bookPrice,omitempty" db:"book_price"`
	Quantity         int              `json:"quantity" db:"quantity"`
	Status           Status           `json:"status" db:"status"`
	CreatedBy        int64            `json:"createdBy" db:"created_by"`
	CreatedDate      time.Time        `json:"createdDate" db:"created_date"`
	LastModifiedBy   int64            `json:"lastModifiedBy" db:"last_modified_by"`
	LastModifiedDate time.Time        `json:"lastModifiedDate" db:"last_modified_date"`
	Version          int              `json:"version" db:"version"`
}

// NewAcceptedOrder builds an order for a book the catalog confirmed.
func NewAcceptedOrder(isbn string, book clients.Book, quantity int) Order {
	name := book.Title + " - " + book.Author
	price := book.Price
	return Order{
		BookISBN:  isbn,
		BookName:  &name,
		BookPrice: &price,
		Quantity:  quantity,
		Status:    StatusAccepted,
	}
}

// NewRejectedOrder builds an order for a book that could not be verified.
func NewRejectedOrder(isbn string, quantity int) Order {
	return Order{
		BookISBN: isbn,
		Quantity: quantity,
		Status:   StatusRejected,
	}
}

// OrderAcceptedEvent is published for every accepted order.
type OrderAcceptedEvent struct {
	OrderID   int64           `json:"orderId"`
	BookISBN  string          `json:"bookIsbn"`
	BookPrice decimal.Decimal `json:"bookPrice"`
	Quantity  int             `json:"quantity"`
}
