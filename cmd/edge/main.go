// cmd/edge/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"bookshop/internal/config"
	"bookshop/internal/edge"
	"bookshop/internal/web"
	"bookshop/pkg/logging"
	"bookshop/pkg/metrics"
	"bookshop/pkg/telemetry"
)

const serviceName = "edge-service"

var defaults = map[string]string{
	"server.port":           "9000",
	"catalog-service.url":   "http://localhost:9001",
	"order-service.url":     "http://localhost:9002",
	"ratelimit.replenish":   "10",
	"ratelimit.burst":       "20",
	"retry.max-retries":     "3",
	"circuitbreaker.open":   "15s",
	"circuitbreaker.budget": "5s",
}

func main() {
	logger := logging.New(serviceName)
	if err := run(logger); err != nil {
		logger.Fatal().Err(err).Msg("edge service stopped")
	}
}

func run(logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, serviceName, defaults, config.WithLogger(logger))
	if err != nil {
		return err
	}

	shutdownTracer, err := telemetry.InitTracer(ctx, serviceName)
	if err != nil {
		return err
	}
	defer shutdownTracer(context.Background())

	catalogURL, err := url.Parse(cfg.String("catalog-service.url"))
	if err != nil {
		return fmt.Errorf("catalog-service.url: %w", err)
	}
	orderURL, err := url.Parse(cfg.String("order-service.url"))
	if err != nil {
		return fmt.Errorf("order-service.url: %w", err)
	}

	s := edge.DefaultSettings()
	s.RatePerSecond = float64(cfg.Int("ratelimit.replenish", 10))
	s.Burst = cfg.Int("ratelimit.burst", s.Burst)
	s.MaxRetries = uint(cfg.Int("retry.max-retries", int(s.MaxRetries)))
	s.Breaker.OpenTimeout = cfg.Duration("circuitbreaker.open", s.Breaker.OpenTimeout)
	s.Breaker.TimeLimit = cfg.Duration("circuitbreaker.budget", s.Breaker.TimeLimit)

	gateway := edge.NewGateway([]edge.Route{
		{Name: "catalog-route", Prefix: "/books", Upstream: catalogURL, Fallback: http.HandlerFunc(edge.CatalogFallback)},
		{Name: "order-route", Prefix: "/orders", Upstream: orderURL},
	}, s, nil, logger)

	reg := prometheus.NewRegistry()
	r := web.NewRouter(logger, metrics.NewServerMetrics(reg, "edge"))
	r.Get("/health", web.Health(nil))
	r.Method("GET", "/metrics", metrics.Handler(reg))
	gateway.RegisterRoutes(r)

	return web.Serve(ctx, ":"+cfg.String("server.port"), r, logger)
}
