// internal/config/config.go

// Package config resolves service properties from built-in defaults, the
// config service and the environment, in increasing order of precedence.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

const (
	EnvConfigServiceURL = "CONFIG_SERVICE_URL"
	EnvProfiles         = "BOOKSHOP_PROFILES"

	defaultProfile = "default"
)

// Environment is the document the config service returns for an
// application and its profiles. Property sources come highest priority
// first.
type Environment struct {
	Name            string           `json:"name"`
	Profiles        []string         `json:"profiles"`
	PropertySources []PropertySource `json:"propertySources"`
}

type PropertySource struct {
	Name   string            `json:"name"`
	Source map[string]string `json:"source"`
}

type Config struct {
	props    map[string]string
	profiles []string
}

type loader struct {
	serviceURL string
	client     *http.Client
	lookupEnv  func(string) (string, bool)
	maxTries   uint
	logger     zerolog.Logger
}

type Option func(*loader)

// WithServiceURL overrides CONFIG_SERVICE_URL. An empty url disables the
// config service.
func WithServiceURL(url string) Option {
	return func(l *loader) { l.serviceURL = strings.TrimRight(url, "/") }
}

func WithHTTPClient(c *http.Client) Option {
	return func(l *loader) { l.client = c }
}

// WithLookupEnv replaces os.LookupEnv.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(l *loader) { l.lookupEnv = fn }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(l *loader) { l.logger = logger }
}

// Load resolves the properties of app. The config service is optional: when
// it cannot be reached Load logs a warning and carries on with defaults and
// environment.
func Load(ctx context.Context, app string, defaults map[string]string, opts ...Option) (*Config, error) {
	l := &loader{
		client:    &http.Client{Timeout: 5 * time.Second},
		lookupEnv: os.LookupEnv,
		maxTries:  3,
		logger:    zerolog.Nop(),
	}
	l.serviceURL, _ = os.LookupEnv(EnvConfigServiceURL)
	for _, opt := range opts {
		opt(l)
	}
	l.serviceURL = strings.TrimRight(l.serviceURL, "/")

	cfg := &Config{props: map[string]string{}}
	for k, v := range defaults {
		cfg.props[k] = v
	}
	if raw, ok := l.lookupEnv(EnvProfiles); ok {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.profiles = append(cfg.profiles, p)
			}
		}
	}

	if l.serviceURL != "" {
		env, err := l.fetch(ctx, app, cfg.profiles)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			l.logger.Warn().Err(err).Str("url", l.serviceURL).Msg("config service unavailable, using local configuration")
		} else {
			// lowest priority first so that higher sources overwrite
			for i := len(env.PropertySources) - 1; i >= 0; i-- {
				for k, v := range env.PropertySources[i].Source {
					cfg.props[k] = v
				}
			}
			l.logger.Info().Int("sources", len(env.PropertySources)).Msg("configuration fetched")
		}
	}

	for k := range cfg.props {
		if v, ok := l.lookupEnv(EnvName(k)); ok {
			cfg.props[k] = v
		}
	}
	return cfg, nil
}

func (l *loader) fetch(ctx context.Context, app string, profiles []string) (*Environment, error) {
	profile := defaultProfile
	if len(profiles) > 0 {
		profile = strings.Join(profiles, ",")
	}
	url := fmt.Sprintf("%s/%s/%s", l.serviceURL, app, profile)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.Reset()

	return backoff.Retry(ctx, func() (*Environment, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("config service returned %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return nil, backoff.Permanent(fmt.Errorf("config service returned %d", resp.StatusCode))
		}

		var env Environment
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("decode environment: %w", err))
		}
		return &env, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(l.maxTries), backoff.WithMaxElapsedTime(0))
}

// EnvName maps a property key to the environment variable that overrides it:
// polar.catalog-service-uri becomes POLAR_CATALOG_SERVICE_URI.
func EnvName(key string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "[", "_", "]", "")
	return strings.ToUpper(r.Replace(key))
}

func (c *Config) Profiles() []string {
	return c.profiles
}

func (c *Config) HasProfile(p string) bool {
	return slices.Contains(c.profiles, p)
}

func (c *Config) String(key string) string {
	return c.props[key]
}

// Int returns def when key is unset or not a number.
func (c *Config) Int(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(c.props[key]))
	if err != nil {
		return def
	}
	return n
}

// Duration accepts Go durations ("3s") and plain milliseconds ("3000").
func (c *Config) Duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(c.props[key])
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

func (c *Config) Bool(key string, def bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(c.props[key]))
	if err != nil {
		return def
	}
	return b
}
