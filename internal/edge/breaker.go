// internal/edge/breaker.go
package edge

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned instead of calling an upstream whose breaker is
// open or already probing.
var ErrCircuitOpen = errors.New("circuit breaker open")

var errUpstream = errors.New("upstream server error")

type BreakerSettings struct {
	MinCalls         uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenRequests uint32
	TimeLimit        time.Duration
}

// BreakerTransport counts transport errors, timeouts and 5xx answers as
// failures and stops calling the upstream while the breaker is open. Each
// call is bounded by TimeLimit.
type BreakerTransport struct {
	next      http.RoundTripper
	cb        *gobreaker.CircuitBreaker
	timeLimit time.Duration
}

func NewBreakerTransport(name string, next http.RoundTripper, s BreakerSettings, logger zerolog.Logger) *BreakerTransport {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: s.HalfOpenRequests,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= s.MinCalls && float64(c.TotalFailures)/float64(c.Requests) >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("route", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	return &BreakerTransport{next: next, cb: cb, timeLimit: s.TimeLimit}
}

func (t *BreakerTransport) State() gobreaker.State {
	return t.cb.State()
}

func (t *BreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(req.Context(), t.timeLimit)

	out, err := t.cb.Execute(func() (any, error) {
		resp, err := t.next.RoundTrip(req.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errUpstream
		}
		return resp, nil
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		cancel()
		return nil, ErrCircuitOpen
	case errors.Is(err, errUpstream):
		err = nil
	case err != nil:
		cancel()
		return nil, err
	}

	resp := out.(*http.Response)
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, err
}

// cancelOnClose releases the time limit once the proxied body is consumed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
