// Package api serves the trust scoring HTTP surface: anonymous stats
// reads, authenticated rating submissions, and the token-guarded admin
// endpoints.
package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/sitetrust/scoring-engine/internal/auth"
	"github.com/sitetrust/scoring-engine/internal/config"
	"github.com/sitetrust/scoring-engine/internal/domain"
	"github.com/sitetrust/scoring-engine/internal/scoring"
	"github.com/sitetrust/scoring-engine/internal/store"
)

// Analyzer is the slice of the domain analyser the API drives: fire-and-
// forget triggers from the read/submit paths and full runs from admin.
type Analyzer interface {
	Analyze(ctx context.Context, dom string) (*domain.DomainCacheEntry, error)
	TriggerBestEffort(dom string) bool
	Stats() map[string]int64
}

// JobRunner triggers registered background jobs by name; the scheduler
// implements it.
type JobRunner interface {
	Trigger(ctx context.Context, name string) (string, error)
}

// Server wires the handlers to the engine, stores, and background
// machinery.
type Server struct {
	cfg      config.Config
	engine   *scoring.Engine
	analyzer Analyzer
	jobs     JobRunner
	ratings  store.RatingStore
	stats    store.URLStatsStore
	cache    store.DomainCacheStore
	trustcfg store.TrustConfigStore
	verifier *auth.Verifier

	db    *sql.DB
	redis *redis.Client

	validate *validator.Validate
	errors   *errorRecorder
	handler  http.Handler
	server   *http.Server
}

// Deps carries everything a Server needs. db and redis may be nil; the
// health endpoint then skips their pings.
type Deps struct {
	Config   config.Config
	Engine   *scoring.Engine
	Analyzer Analyzer
	Jobs     JobRunner
	Ratings  store.RatingStore
	Stats    store.URLStatsStore
	Cache    store.DomainCacheStore
	TrustCfg store.TrustConfigStore
	Verifier *auth.Verifier
	DB       *sql.DB
	Redis    *redis.Client
}

// NewServer builds the server and its route tree.
func NewServer(deps Deps) *Server {
	s := &Server{
		cfg:      deps.Config,
		engine:   deps.Engine,
		analyzer: deps.Analyzer,
		jobs:     deps.Jobs,
		ratings:  deps.Ratings,
		stats:    deps.Stats,
		cache:    deps.Cache,
		trustcfg: deps.TrustCfg,
		verifier: deps.Verifier,
		db:       deps.DB,
		redis:    deps.Redis,
		validate: validator.New(),
		errors:   newErrorRecorder(),
	}
	s.handler = s.routes()
	return s
}

// ListenAndServe starts the HTTP server on addr and blocks.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}
