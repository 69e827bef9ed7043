// internal/edge/gateway.go

// Package edge is the bookshop gateway: it routes /books to the catalog
// service and /orders to the order service behind a shared rate limiter,
// with GET retries and a circuit breaker per route.
package edge

import (
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"bookshop/internal/web"
)

const FallbackPath = "/catalog-fallback"

type Route struct {
	Name     string
	Prefix   string
	Upstream *url.URL
	// Fallback handles requests the upstream could not answer. Nil means
	// 503 while the breaker is open and 502 otherwise.
	Fallback http.Handler
}

type Settings struct {
	RatePerSecond float64
	Burst         int
	MaxRetries    uint
	FirstBackoff  time.Duration
	MaxBackoff    time.Duration
	BackoffFactor float64
	Breaker       BreakerSettings
}

func DefaultSettings() Settings {
	return Settings{
		RatePerSecond: 10,
		Burst:         20,
		MaxRetries:    3,
		FirstBackoff:  50 * time.Millisecond,
		MaxBackoff:    500 * time.Millisecond,
		BackoffFactor: 2,
		Breaker: BreakerSettings{
			MinCalls:         20,
			FailureRatio:     0.5,
			OpenTimeout:      15 * time.Second,
			HalfOpenRequests: 5,
			TimeLimit:        5 * time.Second,
		},
	}
}

type Gateway struct {
	routes   []Route
	proxies  map[string]*httputil.ReverseProxy
	breakers map[string]*BreakerTransport
	limiter  *RateLimiter
	logger   zerolog.Logger
}

// NewGateway builds one reverse proxy per route. base is the transport to
// the upstreams, http.DefaultTransport when nil.
func NewGateway(routes []Route, s Settings, base http.RoundTripper, logger zerolog.Logger) *Gateway {
	if base == nil {
		base = http.DefaultTransport
	}
	g := &Gateway{
		routes:   routes,
		proxies:  map[string]*httputil.ReverseProxy{},
		breakers: map[string]*BreakerTransport{},
		limiter:  NewRateLimiter(s.RatePerSecond, s.Burst, AnonymousKey),
		logger:   logger,
	}

	for _, rt := range routes {
		retry := &RetryTransport{
			Next:       base,
			MaxRetries: s.MaxRetries,
			First:      s.FirstBackoff,
			Max:        s.MaxBackoff,
			Factor:     s.BackoffFactor,
		}
		breaker := NewBreakerTransport(rt.Name, retry, s.Breaker, logger)

		proxy := httputil.NewSingleHostReverseProxy(rt.Upstream)
		proxy.Transport = breaker
		proxy.ErrorHandler = g.errorHandler(rt)

		g.proxies[rt.Name] = proxy
		g.breakers[rt.Name] = breaker
	}
	return g
}

func (g *Gateway) RegisterRoutes(r chi.Router) {
	r.Get(FallbackPath, CatalogFallback)
	r.Post(FallbackPath, CatalogFallback)

	r.Group(func(r chi.Router) {
		r.Use(g.limiter.Middleware)
		for _, rt := range g.routes {
			proxy := g.proxies[rt.Name]
			r.Handle(rt.Prefix, proxy)
			r.Handle(rt.Prefix+"/*", proxy)
		}
	})
}

// Breaker exposes the breaker of a route, nil for an unknown name.
func (g *Gateway) Breaker(name string) *BreakerTransport {
	return g.breakers[name]
}

func (g *Gateway) errorHandler(rt Route) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		g.logger.Warn().Err(err).Str("route", rt.Name).Str("path", r.URL.Path).Msg("upstream call failed")
		if rt.Fallback != nil {
			rt.Fallback.ServeHTTP(w, r)
			return
		}
		if errors.Is(err, ErrCircuitOpen) {
			web.WriteError(w, http.StatusServiceUnavailable, rt.Name+" is unavailable")
			return
		}
		web.WriteError(w, http.StatusBadGateway, rt.Name+" did not answer")
	}
}

// CatalogFallback answers GET with an empty 200 and everything else with 503.
func CatalogFallback(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
}
