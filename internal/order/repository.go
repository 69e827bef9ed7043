// internal/order/repository.go
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"bookshop/pkg/outbox"
	"bookshop/pkg/paging"
)

const (
	// auditor is the user recorded in audit fields until users exist.
	auditor = 0

	TopicOrderAccepted = "order-accepted"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id                 BIGSERIAL PRIMARY KEY NOT NULL,
	book_isbn          VARCHAR(255) NOT NULL,
	book_name          VARCHAR(255),
	book_price         NUMERIC(10,2),
	quantity           INT NOT NULL,
	status             VARCHAR(255) NOT NULL,
	created_by         BIGINT NOT NULL,
	created_date       TIMESTAMPTZ NOT NULL,
	last_modified_by   BIGINT NOT NULL,
	last_modified_date TIMESTAMPTZ NOT NULL,
	version            INTEGER NOT NULL
)`

var sortColumns = map[string]string{
	"id":               "id",
	"bookIsbn":         "book_isbn",
	"bookName":         "book_name",
	"bookPrice":        "book_price",
	"quantity":         "quantity",
	"status":           "status",
	"createdDate":      "created_date",
	"lastModifiedDate": "last_modified_date",
}

// PostgresRepository stores orders in Postgres. Accepted orders also queue an
// order-accepted event in the outbox within the same transaction.
type PostgresRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create orders table: %w", err)
	}
	return outbox.Migrate(ctx, r.db)
}

func (r *PostgresRepository) Save(ctx context.Context, o Order) (*Order, error) {
	now := r.now().UTC()
	o.CreatedBy, o.LastModifiedBy = auditor, auditor
	o.CreatedDate, o.LastModifiedDate = now, now
	o.Version = 1

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	query, args, err := tx.BindNamed(`
		INSERT INTO orders (book_isbn, book_name, book_price, quantity, status,
			created_by, created_date, last_modified_by, last_modified_date, version)
		VALUES (:book_isbn, :book_name, :book_price, :quantity, :status,
			:created_by, :created_date, :last_modified_by, :last_modified_date, :version)
		RETURNING id`, o)
	if err != nil {
		return nil, fmt.Errorf("bind insert: %w", err)
	}
	if err := tx.QueryRowxContext(ctx, query, args...).Scan(&o.ID); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	if o.Status == StatusAccepted && o.BookPrice != nil {
		event := OrderAcceptedEvent{
			OrderID:   o.ID,
			BookISBN:  o.BookISBN,
			BookPrice: *o.BookPrice,
			Quantity:  o.Quantity,
		}
		if err := outbox.Insert(ctx, tx, uuid.NewString(), TopicOrderAccepted, o.BookISBN, event); err != nil {
			return nil, fmt.Errorf("queue order accepted: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &o, nil
}

func (r *PostgresRepository) FindAll(ctx context.Context, page paging.Request) ([]Order, error) {
	orderBy, err := page.OrderBy(sortColumns)
	if err != nil {
		return nil, err
	}
	if orderBy == "" {
		orderBy = " ORDER BY id ASC"
	}

	var out []Order
	err = r.db.SelectContext(ctx, &out, `
		SELECT id, book_isbn, book_name, book_price, quantity, status,
			created_by, created_date, last_modified_by, last_modified_date, version
		FROM orders`+orderBy+`
		LIMIT $1 OFFSET $2`, page.Size, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM orders`); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}
