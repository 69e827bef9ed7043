// internal/edge/retry.go
package edge

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryTransport retries GET requests that fail with a transport error or a
// 5xx response. Other methods pass through untouched.
type RetryTransport struct {
	Next       http.RoundTripper
	MaxRetries uint
	First      time.Duration
	Max        time.Duration
	Factor     float64
}

func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet || t.MaxRetries == 0 {
		return t.Next.RoundTrip(req)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.First
	b.MaxInterval = t.Max
	b.Multiplier = t.Factor
	b.RandomizationFactor = 0
	b.Reset()

	var last *http.Response
	resp, err := backoff.Retry(req.Context(), func() (*http.Response, error) {
		resp, err := t.Next.RoundTrip(req)
		if last != nil {
			drain(last)
			last = nil
		}
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			last = resp
			return nil, fmt.Errorf("upstream returned %d", resp.StatusCode)
		}
		return resp, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(t.MaxRetries+1), backoff.WithMaxElapsedTime(0))

	if err != nil && last != nil {
		if req.Context().Err() == nil {
			// the final 5xx answer goes back to the client as is
			return last, nil
		}
		drain(last)
	}
	return resp, err
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
