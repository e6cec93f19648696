package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sitetrust/scoring-engine/internal/auth"
)

// routes builds the router: public stats reads, authenticated rating
// submission, token-guarded admin, and the operational endpoints.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout()))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Admin-Token"},
		MaxAge:         300,
	}))

	// Operational endpoints (no auth, no rate limit)
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.cfg.RateLimit.RequestsPerMinute > 0 {
			r.Use(httprate.Limit(
				s.cfg.RateLimit.RequestsPerMinute,
				time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, req *http.Request) {
					s.writeEnvelope(w, req, CodeRateLimit, "rate limit exceeded")
				}),
			))
		}

		// Stats reads are anonymous.
		r.Get("/stats", s.GetStats)
		r.Post("/stats/batch", s.BatchGetStats)

		// Rating submission needs a user token.
		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)
			r.Post("/ratings", s.SubmitRating)
		})

		// Admin surface.
		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/aggregate", s.AdminTriggerAggregate)
			r.Post("/domains/{domain}/refresh", s.AdminRefreshDomain)
			r.Put("/config/{key}", s.AdminSetConfig)
			r.Get("/cache-stats", s.AdminCacheStats)
			r.Get("/error-stats", s.AdminErrorStats)
		})
	})

	return r
}

// requireUser rejects requests without a valid user token, stashing the
// user ID in the context; failures use the envelope.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.verifier.FromRequest(r)
		if err != nil {
			s.writeEnvelope(w, r, CodeAuth, "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
	})
}

// requireAdmin guards the admin routes with the static admin token.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.verifier.IsAdmin(r) {
			s.writeEnvelope(w, r, CodeAuth, "admin token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
