// cmd/config/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"bookshop/internal/configserver"
	"bookshop/internal/web"
	"bookshop/pkg/logging"
	"bookshop/pkg/metrics"
)

const serviceName = "config-service"

func main() {
	logger := logging.New(serviceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir := getEnv("CONFIG_REPO_DIR", "./config-repo")
	files, err := configserver.DirFS(dir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", dir).Msg("config repository unavailable")
	}

	reg := prometheus.NewRegistry()
	r := web.NewRouter(logger, metrics.NewServerMetrics(reg, "config"))
	r.Get("/health", web.Health(nil))
	r.Method("GET", "/metrics", metrics.Handler(reg))
	configserver.NewServer(files, logger).RegisterRoutes(r)

	if err := web.Serve(ctx, ":"+getEnv("SERVER_PORT", "8888"), r, logger); err != nil {
		logger.Fatal().Err(err).Msg("config service stopped")
	}
}

// The config service cannot configure itself, so it reads plain variables.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
