// internal/order/implementation.go
package order

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"bookshop/pkg/logging"
	"bookshop/pkg/paging"
)

// service implements the Service interface.
type service struct {
	books     BookLookup
	orders    Repository
	logger    zerolog.Logger
	tracer    trace.Tracer
	submitted metric.Int64Counter
}

// NewService creates a new order service instance.
func NewService(books BookLookup, orders Repository, logger zerolog.Logger) Service {
	submitted, err := otel.Meter("bookshop/order").Int64Counter("orders.submitted",
		metric.WithDescription("Orders stored, by status."),
	)
	if err != nil {
		logger.Warn().Err(err).Msg("orders.submitted counter unavailable")
	}
	return &service{
		books:     books,
		orders:    orders,
		logger:    logger,
		tracer:    otel.Tracer("bookshop/order"),
		submitted: submitted,
	}
}

// SubmitOrder checks the book with the catalog and stores an accepted or a
// rejected order. A failed lookup never fails the call; only storing the
// order can. Nothing is stored once ctx is done.
func (s *service) SubmitOrder(ctx context.Context, isbn string, quantity int) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.submit",
		trace.WithAttributes(
			attribute.String("book.isbn", isbn),
			attribute.Int("order.quantity", quantity),
		),
	)
	defer span.End()

	var order Order
	if book, found := s.books.GetBookByISBN(ctx, isbn); found {
		order = NewAcceptedOrder(isbn, book, quantity)
	} else {
		order = NewRejectedOrder(isbn, quantity)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("submit order abandoned: %w", err)
	}

	saved, err := s.orders.Save(ctx, order)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	span.SetAttributes(
		attribute.Int64("order.id", saved.ID),
		attribute.String("order.status", string(saved.Status)),
	)
	if s.submitted != nil {
		s.submitted.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(saved.Status))))
	}
	s.logger.Info().
		Int64(logging.ORDER, saved.ID).
		Str(logging.ISBN, isbn).
		Str(logging.STATUS, string(saved.Status)).
		Msg("order submitted")

	return saved, nil
}

// GetAllOrders returns one page of orders. The total is counted separately
// from the page contents.
func (s *service) GetAllOrders(ctx context.Context, page paging.Request) (*paging.Page[Order], error) {
	ctx, span := s.tracer.Start(ctx, "order.list",
		trace.WithAttributes(
			attribute.Int("page.number", page.Number),
			attribute.Int("page.size", page.Size),
		),
	)
	defer span.End()

	orders, err := s.orders.FindAll(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	total, err := s.orders.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	return paging.NewPage(orders, page, total), nil
}
