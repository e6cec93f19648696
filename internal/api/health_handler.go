package api

import (
	"net/http"
	"time"

	"github.com/sitetrust/scoring-engine/internal/pkg/httputil"
)

// HealthCheck reports liveness plus dependency pings. A failing dependency
// degrades the status but still answers 200; orchestration kills on
// connection failure, not on degraded dependencies.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deps := map[string]string{}
	status := "ok"

	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			deps["postgres"] = "down: " + err.Error()
			status = "degraded"
		} else {
			deps["postgres"] = "ok"
		}
	}
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			deps["redis"] = "down: " + err.Error()
			status = "degraded"
		} else {
			deps["redis"] = "ok"
		}
	}

	httputil.OK(w, map[string]any{
		"status":       status,
		"time":         time.Now().UTC().Format(time.RFC3339),
		"dependencies": deps,
	})
}
