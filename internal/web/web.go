// internal/web/web.go

// Package web holds the HTTP plumbing shared by the bookshop services.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bookshop/pkg/logging"
	"bookshop/pkg/metrics"
)

func init() {
	// Prices travel as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

const maxBodyBytes = 1 << 20

// NewRouter returns a chi router with request ids, access logging, metrics
// and panic recovery installed. m may be nil.
func NewRouter(logger zerolog.Logger, m *metrics.ServerMetrics) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.AccessLog(logger))
	if m != nil {
		r.Use(m.Middleware)
	}
	r.Use(middleware.Recoverer)
	return r
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, map[string]string{"error": msg})
}

// DecodeJSON reads a single JSON document from the request body.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health reports ok when db answers a ping. A nil db is always healthy.
func Health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down", "error": err.Error()})
				return
			}
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// WriteValidation writes field errors as 400 and reports whether err was a
// ValidationError.
func WriteValidation(w http.ResponseWriter, err error) bool {
	var verr ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	WriteJSON(w, http.StatusBadRequest, verr)
	return true
}
