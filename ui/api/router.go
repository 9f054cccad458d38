// Package api serves the read-only JSON API over a session history
// store: session listings, entry timelines and compaction summaries.
package api

import (
	"context"
	"net/http"

	"github.com/agentctx/agentctx/history"
)

// Config holds API router configuration.
type Config struct {
	// PageSize caps the number of entries returned per listing.
	PageSize int

	// Logger for structured logging.
	Logger Logger
}

// Logger interface for structured logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SessionLister is implemented by stores that can enumerate their
// sessions, such as the SQL-backed ones. Stores without it still serve
// per-session routes.
type SessionLister interface {
	ListSessions(ctx context.Context) ([]string, error)
}

// router holds the API router state.
type router struct {
	store  history.Store
	config *Config
}

// NewRouter creates a new API router over the store.
func NewRouter(store history.Store, cfg *Config) http.Handler {
	if cfg == nil {
		cfg = &Config{PageSize: 100}
	}

	r := &router{store: store, config: cfg}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /sessions", r.handleListSessions)
	mux.HandleFunc("GET /sessions/{id}/entries", r.handleListEntries)
	mux.HandleFunc("GET /sessions/{id}/latest", r.handleLatestEntry)
	mux.HandleFunc("GET /sessions/{id}/compactions", r.handleListCompactions)

	return withMiddleware(mux, cfg)
}

// withMiddleware wraps the handler with common middleware.
func withMiddleware(handler http.Handler, cfg *Config) http.Handler {
	handler = jsonMiddleware(handler)
	handler = recoveryMiddleware(handler, cfg.Logger)
	return handler
}

// jsonMiddleware sets JSON content type for all responses.
func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware recovers from panics and returns 500.
func recoveryMiddleware(next http.Handler, logger Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if logger != nil {
					logger.Error("panic recovered", "error", err, "path", r.URL.Path)
				}
				http.Error(w, `{"error":{"code":"internal_error","message":"internal server error"}}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
