package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

type Publisher interface {
	Publish(ctx context.Context, rec Record) error
}

type PendingStore interface {
	FetchPending(ctx context.Context, limit int) ([]Record, error)
	MarkSent(ctx context.Context, id int64) error
}

// Relay polls the outbox and hands pending records to a Publisher in id
// order. A record is marked sent only after it was published, so delivery is
// at least once.
type Relay struct {
	store     PendingStore
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    zerolog.Logger
}

func NewRelay(store PendingStore, publisher Publisher, interval time.Duration, logger zerolog.Logger) *Relay {
	if interval <= 0 {
		interval = time.Second
	}
	return &Relay{
		store:     store,
		publisher: publisher,
		interval:  interval,
		batchSize: 100,
		logger:    logger,
	}
}

// Run flushes the outbox every interval until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := r.Flush(ctx); err != nil {
				r.logger.Warn().Err(err).Int("published", n).Msg("outbox flush failed")
			} else if n > 0 {
				r.logger.Debug().Int("published", n).Msg("outbox flushed")
			}
		}
	}
}

// Flush publishes one batch and returns how many records were sent. It stops
// at the first failure to keep records in order.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	records, err := r.store.FetchPending(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch pending: %w", err)
	}

	sent := 0
	for _, rec := range records {
		if err := r.publisher.Publish(ctx, rec); err != nil {
			return sent, fmt.Errorf("publish %s: %w", rec.EventID, err)
		}
		if err := r.store.MarkSent(ctx, rec.ID); err != nil {
			return sent, fmt.Errorf("mark %s sent: %w", rec.EventID, err)
		}
		sent++
	}
	return sent, nil
}
