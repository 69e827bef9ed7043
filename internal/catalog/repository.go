// internal/catalog/repository.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"bookshop/pkg/eventstore"
	"bookshop/pkg/paging"
)

const auditor = 0

const schema = `
CREATE TABLE IF NOT EXISTS books (
	id                 BIGSERIAL PRIMARY KEY NOT NULL,
	isbn               VARCHAR(255) UNIQUE NOT NULL,
	title              VARCHAR(255) NOT NULL,
	author             VARCHAR(255) NOT NULL,
	price              NUMERIC(10,2) NOT NULL,
	publisher          VARCHAR(255),
	created_by         BIGINT NOT NULL,
	created_date       TIMESTAMPTZ NOT NULL,
	last_modified_by   BIGINT NOT NULL,
	last_modified_date TIMESTAMPTZ NOT NULL,
	version            INTEGER NOT NULL
)`

const bookColumns = `id, isbn, title, author, price, publisher,
	created_by, created_date, last_modified_by, last_modified_date, version`

var sortColumns = map[string]string{
	"id":               "id",
	"isbn":             "isbn",
	"title":            "title",
	"author":           "author",
	"price":            "price",
	"publisher":        "publisher",
	"createdDate":      "created_date",
	"lastModifiedDate": "last_modified_date",
}

// PostgresRepository is the books read model.
type PostgresRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create books table: %w", err)
	}
	return nil
}

// FindByISBN returns nil without error when no book has isbn.
func (r *PostgresRepository) FindByISBN(ctx context.Context, isbn string) (*Book, error) {
	var b Book
	err := r.db.GetContext(ctx, &b, `SELECT `+bookColumns+` FROM books WHERE isbn = $1`, isbn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book from read model: %w", err)
	}
	return &b, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, b Book) (*Book, error) {
	now := r.now().UTC()
	b.CreatedBy, b.LastModifiedBy = auditor, auditor
	b.CreatedDate, b.LastModifiedDate = now, now
	b.Version = 1

	rows, err := r.db.NamedQueryContext(ctx, `
		INSERT INTO books (isbn, title, author, price, publisher,
			created_by, created_date, last_modified_by, last_modified_date, version)
		VALUES (:isbn, :title, :author, :price, :publisher,
			:created_by, :created_date, :last_modified_by, :last_modified_date, :version)
		RETURNING id`, b)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, alreadyExists(b.ISBN)
		}
		return nil, err
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&b.ID); err != nil {
			return nil, err
		}
	}
	return &b, rows.Err()
}

// Update writes b when the stored version still equals b.Version and bumps
// the version. A stale version yields eventstore.ErrConcurrencyConflict.
func (r *PostgresRepository) Update(ctx context.Context, b Book) (*Book, error) {
	b.LastModifiedBy = auditor
	b.LastModifiedDate = r.now().UTC()

	res, err := r.db.NamedExecContext(ctx, `
		UPDATE books
		SET title = :title, author = :author, price = :price, publisher = :publisher,
			last_modified_by = :last_modified_by, last_modified_date = :last_modified_date,
			version = version + 1
		WHERE isbn = :isbn AND version = :version`, b)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, eventstore.ErrConcurrencyConflict
	}
	b.Version++
	return &b, nil
}

func (r *PostgresRepository) DeleteByISBN(ctx context.Context, isbn string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE isbn = $1`, isbn)
	return err
}

func (r *PostgresRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM books`)
	return err
}

func (r *PostgresRepository) FindAll(ctx context.Context, page paging.Request) ([]Book, error) {
	orderBy, err := page.OrderBy(sortColumns)
	if err != nil {
		return nil, err
	}
	if orderBy == "" {
		orderBy = " ORDER BY id DESC"
	}

	var out []Book
	err = r.db.SelectContext(ctx, &out, `SELECT `+bookColumns+` FROM books`+orderBy+` LIMIT $1 OFFSET $2`,
		page.Size, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("select books: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM books`); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
