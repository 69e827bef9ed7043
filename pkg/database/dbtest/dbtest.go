// Package dbtest connects tests to the Postgres database named by the PG*
// variables and skips them when it is not reachable.
package dbtest

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"

	"bookshop/pkg/database"
)

func Open(t testing.TB) *sqlx.DB {
	t.Helper()

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getenv("PGHOST", "localhost"),
		getenv("PGPORT", "5432"),
		getenv("PGUSER", "user"),
		getenv("PGPASSWORD", "password"),
		getenv("PGDATABASE", "testdb"),
	)

	db, err := database.Open(context.Background(), connStr)
	if err != nil {
		t.Skipf("skipping: could not connect to postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Truncate empties tables and restarts their identity sequences.
func Truncate(t testing.TB, db *sqlx.DB, tables ...string) {
	t.Helper()
	for _, table := range tables {
		if _, err := db.Exec("TRUNCATE TABLE " + table + " RESTART IDENTITY"); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
