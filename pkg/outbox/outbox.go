// Package outbox stores events in the same transaction as the state change
// that produced them and relays them to a broker afterwards.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS outbox (
	id         BIGSERIAL PRIMARY KEY,
	event_id   TEXT NOT NULL UNIQUE,
	topic      TEXT NOT NULL,
	key        TEXT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	sent_at    TIMESTAMPTZ
)`

type Record struct {
	ID        int64           `json:"id" db:"id"`
	EventID   string          `json:"event_id" db:"event_id"`
	Topic     string          `json:"topic" db:"topic"`
	Key       string          `json:"key" db:"key"`
	Payload   json.RawMessage `json:"payload" db:"payload"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	SentAt    *time.Time      `json:"sent_at" db:"sent_at"`
}

func Migrate(ctx context.Context, db sqlx.ExecerContext) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create outbox table: %w", err)
	}
	return nil
}

// Insert queues payload. Pass the transaction that writes the state change.
func Insert(ctx context.Context, db sqlx.ExecerContext, eventID, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	_, err = db.ExecContext(ctx, `INSERT INTO outbox(event_id, topic, key, payload) VALUES ($1, $2, $3, $4)`, eventID, topic, key, data)
	return err
}

// Store reads and acknowledges pending records.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) MarkSent(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE outbox SET sent_at=now() WHERE id=$1`, id)
	return err
}

func (s *Store) FetchPending(ctx context.Context, limit int) ([]Record, error) {
	var out []Record
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, event_id, topic, key, payload, created_at, sent_at
		FROM outbox
		WHERE sent_at IS NULL
		ORDER BY id
		LIMIT $1`, limit)
	return out, err
}
