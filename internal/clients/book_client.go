// internal/clients/book_client.go
package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"bookshop/pkg/logging"
)

const (
	DefaultTimeout        = 3 * time.Second
	DefaultInitialBackoff = 100 * time.Millisecond
	DefaultMultiplier     = 2.0
	DefaultMaxRetries     = 3

	booksRootAPI = "/books/"
)

// Book is the part of a catalog book an order needs.
type Book struct {
	ISBN   string          `json:"isbn"`
	Title  string          `json:"title"`
	Author string          `json:"author"`
	Price  decimal.Decimal `json:"price"`
}

type BookClient struct {
	baseURL        string
	httpClient     *http.Client
	timeout        time.Duration
	initialBackoff time.Duration
	multiplier     float64
	jitter         float64
	maxRetries     uint
	logger         zerolog.Logger
	tracer         trace.Tracer
}

type Option func(*BookClient)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *BookClient) { c.httpClient = hc }
}

// WithTimeout bounds every single attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *BookClient) { c.timeout = d }
}

// WithBackoff sets the first wait between attempts and the factor applied to
// each following wait.
func WithBackoff(initial time.Duration, multiplier float64) Option {
	return func(c *BookClient) {
		c.initialBackoff = initial
		c.multiplier = multiplier
	}
}

// WithJitter randomizes each wait by +/- factor. Zero keeps waits non-decreasing.
func WithJitter(factor float64) Option {
	return func(c *BookClient) { c.jitter = factor }
}

// WithMaxRetries sets how many retries follow the first attempt. Negative
// values mean none.
func WithMaxRetries(n int) Option {
	return func(c *BookClient) { c.maxRetries = uint(max(n, 0)) }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *BookClient) { c.logger = logger }
}

func NewBookClient(baseURL string, opts ...Option) *BookClient {
	c := &BookClient{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     http.DefaultClient,
		timeout:        DefaultTimeout,
		initialBackoff: DefaultInitialBackoff,
		multiplier:     DefaultMultiplier,
		maxRetries:     DefaultMaxRetries,
		logger:         zerolog.Nop(),
		tracer:         otel.Tracer("bookshop/clients"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetBookByISBN fetches a book from the catalog service. It never fails: a
// missing book, a timed out attempt and exhausted retries all report false.
//
// A 404 or a timeout ends the lookup at once. Any other failure is retried
// with exponential backoff up to the retry budget.
func (c *BookClient) GetBookByISBN(ctx context.Context, isbn string) (Book, bool) {
	ctx, span := c.tracer.Start(ctx, "bookclient.get_book",
		trace.WithAttributes(attribute.String("book.isbn", isbn)),
	)
	defer span.End()

	attempts := 0
	book, err := backoff.Retry(ctx,
		func() (*Book, error) {
			attempts++
			return c.fetch(ctx, isbn)
		},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxRetries+1),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Debug().
				Err(err).
				Str(logging.ISBN, isbn).
				Int(logging.ATTEMPT, attempts).
				Dur("next", next).
				Msg("book lookup failed, retrying")
		}),
	)
	span.SetAttributes(attribute.Int("lookup.attempts", attempts))

	if err != nil {
		span.RecordError(err)
		c.logger.Warn().
			Err(err).
			Str(logging.ISBN, isbn).
			Int(logging.ATTEMPT, attempts).
			Msg("book lookup gave up")
		return Book{}, false
	}
	if book == nil {
		span.SetAttributes(attribute.Bool("book.found", false))
		return Book{}, false
	}
	span.SetAttributes(attribute.Bool("book.found", true))
	return *book, true
}

func (c *BookClient) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	b.Multiplier = c.multiplier
	b.RandomizationFactor = c.jitter
	b.MaxInterval = time.Minute
	b.Reset()
	return b
}

// fetch performs one attempt. A nil book with a nil error is a definitive
// "no such book".
func (c *BookClient) fetch(ctx context.Context, isbn string) (*Book, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, c.baseURL+booksRootAPI+url.PathEscape(isbn), nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(attemptCtx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if attemptTimedOut(ctx, attemptCtx) {
			return nil, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var book Book
	if err := json.NewDecoder(resp.Body).Decode(&book); err != nil {
		if attemptTimedOut(ctx, attemptCtx) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode book: %w", err)
	}
	return &book, nil
}

// attemptTimedOut reports whether the attempt hit its own deadline while the
// caller's context was still alive.
func attemptTimedOut(parent, attempt context.Context) bool {
	return parent.Err() == nil && errors.Is(attempt.Err(), context.DeadlineExceeded)
}
