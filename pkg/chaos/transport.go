// pkg/chaos/transport.go

// Package chaos injects faults into outbound HTTP calls so that retries,
// timeouts and circuit breakers can be exercised against real servers.
package chaos

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Fault describes what happens to one call. Latency is applied first; then
// Err is returned, or a response with Status is synthesized, or the call is
// passed through when both are zero.
type Fault struct {
	Latency time.Duration
	Err     error
	Status  int
}

// Pass lets a call through untouched.
var Pass = Fault{}

func (f Fault) passes() bool {
	return f.Latency == 0 && f.Err == nil && f.Status == 0
}

// Transport applies a script of faults to successive calls. Calls beyond the
// script pass through to Next.
type Transport struct {
	next   http.RoundTripper
	tracer trace.Tracer

	mu     sync.Mutex
	script []Fault
	calls  int
}

func NewTransport(next http.RoundTripper, script ...Fault) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{
		next:   next,
		tracer: otel.Tracer("bookshop/chaos"),
		script: script,
	}
}

// Calls reports how many requests reached the transport.
func (t *Transport) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	n := t.calls
	t.calls++
	fault := Pass
	if n < len(t.script) {
		fault = t.script[n]
	}
	t.mu.Unlock()

	if fault.passes() {
		return t.next.RoundTrip(req)
	}

	ctx, span := t.tracer.Start(req.Context(), "chaos.inject",
		trace.WithAttributes(
			attribute.Int("chaos.call", n+1),
			attribute.Int64("chaos.latency_ms", fault.Latency.Milliseconds()),
			attribute.Int("chaos.status", fault.Status),
		),
	)
	defer span.End()

	if err := sleep(ctx, fault.Latency); err != nil {
		return nil, err
	}
	switch {
	case fault.Err != nil:
		span.RecordError(fault.Err)
		return nil, fault.Err
	case fault.Status != 0:
		return &http.Response{
			StatusCode: fault.Status,
			Status:     http.StatusText(fault.Status),
			Proto:      "HTTP/1.1",
			ProtoMajor: 1,
			ProtoMinor: 1,
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader("")),
			Request:    req,
		}, nil
	}
	return t.next.RoundTrip(req)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
