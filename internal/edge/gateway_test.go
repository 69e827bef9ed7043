package edge

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshop/internal/web"
	"bookshop/pkg/chaos"
)

func testSettings() Settings {
	s := DefaultSettings()
	s.RatePerSecond = 1000
	s.Burst = 1000
	s.FirstBackoff = time.Millisecond
	s.MaxBackoff = 5 * time.Millisecond
	return s
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

// deadURL points at a server that has already been shut down.
func deadURL(t *testing.T) *url.URL {
	srv := httptest.NewServer(http.NotFoundHandler())
	u := mustURL(t, srv.URL)
	srv.Close()
	return u
}

func newTestGateway(t *testing.T, s Settings, catalog, order *url.URL) (*Gateway, http.Handler) {
	t.Helper()
	g := NewGateway([]Route{
		{Name: "catalog-route", Prefix: "/books", Upstream: catalog, Fallback: http.HandlerFunc(CatalogFallback)},
		{Name: "order-route", Prefix: "/orders", Upstream: order},
	}, s, nil, zerolog.Nop())
	r := web.NewRouter(zerolog.Nop(), nil)
	g.RegisterRoutes(r)
	return g, r
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var req *http.Request
	if method == http.MethodPost {
		req = httptest.NewRequest(method, target, strings.NewReader(`{"isbn":"1234567890","quantity":1}`))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutesToUpstreams(t *testing.T) {
	catalog := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "catalog %s", r.URL.Path)
	}))
	defer catalog.Close()
	order := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "order %s %s", r.Method, r.URL.Path)
	}))
	defer order.Close()

	_, h := newTestGateway(t, testSettings(), mustURL(t, catalog.URL), mustURL(t, order.URL))

	assert.Equal(t, "catalog /books/1234567890", serve(h, http.MethodGet, "/books/1234567890").Body.String())
	assert.Equal(t, "catalog /books", serve(h, http.MethodGet, "/books").Body.String())
	assert.Equal(t, "order POST /orders", serve(h, http.MethodPost, "/orders").Body.String())
}

func TestRetriesGetOnServerError(t *testing.T) {
	var calls atomic.Int32
	catalog := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer catalog.Close()

	_, h := newTestGateway(t, testSettings(), mustURL(t, catalog.URL), deadURL(t))

	rec := serve(h, http.MethodGet, "/books/1234567890")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetriesGiveUpWithLastAnswer(t *testing.T) {
	var calls atomic.Int32
	catalog := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer catalog.Close()

	_, h := newTestGateway(t, testSettings(), mustURL(t, catalog.URL), deadURL(t))

	rec := serve(h, http.MethodGet, "/books/1234567890")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, int32(4), calls.Load())
}

func TestDoesNotRetryPost(t *testing.T) {
	var calls atomic.Int32
	order := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer order.Close()

	_, h := newTestGateway(t, testSettings(), deadURL(t), mustURL(t, order.URL))

	assert.Equal(t, http.StatusInternalServerError, serve(h, http.MethodPost, "/orders").Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCatalogFallback(t *testing.T) {
	_, h := newTestGateway(t, testSettings(), deadURL(t), deadURL(t))

	rec := serve(h, http.MethodGet, "/books/1234567890")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	assert.Equal(t, http.StatusServiceUnavailable, serve(h, http.MethodPost, "/books").Code)

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, FallbackPath).Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h, http.MethodPost, FallbackPath).Code)
}

func TestOrderRouteWithoutFallback(t *testing.T) {
	s := testSettings()
	s.Breaker.MinCalls = 2
	s.Breaker.OpenTimeout = time.Minute
	g, h := newTestGateway(t, s, deadURL(t), deadURL(t))

	assert.Equal(t, http.StatusBadGateway, serve(h, http.MethodPost, "/orders").Code)
	assert.Equal(t, http.StatusBadGateway, serve(h, http.MethodPost, "/orders").Code)
	assert.Equal(t, gobreaker.StateOpen, g.Breaker("order-route").State())
	assert.Equal(t, http.StatusServiceUnavailable, serve(h, http.MethodPost, "/orders").Code)
}

func TestRateLimit(t *testing.T) {
	catalog := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer catalog.Close()

	s := testSettings()
	s.RatePerSecond = 0.001
	s.Burst = 2
	_, h := newTestGateway(t, s, mustURL(t, catalog.URL), deadURL(t))

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/books").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/books").Code)

	rec := serve(h, http.MethodGet, "/books")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Burst-Capacity"))

	// the fallback endpoint is not rate limited
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, FallbackPath).Code)
}

func TestRetriesTransportErrors(t *testing.T) {
	catalog := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer catalog.Close()

	faults := chaos.NewTransport(nil,
		chaos.Fault{Err: errors.New("connection reset")},
		chaos.Fault{Err: errors.New("connection reset")},
	)
	g := NewGateway([]Route{
		{Name: "catalog-route", Prefix: "/books", Upstream: mustURL(t, catalog.URL)},
	}, testSettings(), faults, zerolog.Nop())
	r := web.NewRouter(zerolog.Nop(), nil)
	g.RegisterRoutes(r)

	rec := serve(r, http.MethodGet, "/books")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, faults.Calls())
}

func TestTimeLimitCountsAsFailure(t *testing.T) {
	s := testSettings()
	s.MaxRetries = 0
	s.Breaker.TimeLimit = 20 * time.Millisecond
	s.Breaker.MinCalls = 1

	faults := chaos.NewTransport(nil, chaos.Fault{Latency: time.Second, Status: http.StatusOK})
	g := NewGateway([]Route{
		{Name: "order-route", Prefix: "/orders", Upstream: deadURL(t)},
	}, s, faults, zerolog.Nop())
	r := web.NewRouter(zerolog.Nop(), nil)
	g.RegisterRoutes(r)

	start := time.Now()
	rec := serve(r, http.MethodPost, "/orders")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, gobreaker.StateOpen, g.Breaker("order-route").State())
}
