package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sitetrust/scoring-engine/internal/domain"
	"github.com/sitetrust/scoring-engine/internal/pkg/httputil"
	"github.com/sitetrust/scoring-engine/internal/urlkey"
)

// AdminTriggerAggregate runs the aggregator outside its schedule.
func (s *Server) AdminTriggerAggregate(w http.ResponseWriter, r *http.Request) {
	summary, err := s.jobs.Trigger(r.Context(), "aggregator")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.OK(w, map[string]string{"message": summary})
}

// AdminRefreshDomain forces a fresh analysis of one domain, bypassing the
// daily quota.
func (s *Server) AdminRefreshDomain(w http.ResponseWriter, r *http.Request) {
	dom := urlkey.NormalizeDomain(chi.URLParam(r, "domain"))
	if dom == "" {
		s.writeEnvelope(w, r, CodeValidation, "domain is required")
		return
	}

	entry, err := s.analyzer.Analyze(r.Context(), dom)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.OK(w, map[string]any{
		"message": "domain refreshed",
		"entry":   entry,
	})
}

// configUpdate is the admin config payload.
type configUpdate struct {
	Value       string `json:"value" validate:"required"`
	Description string `json:"description"`
}

// AdminSetConfig upserts one runtime config key.
func (s *Server) AdminSetConfig(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		s.writeEnvelope(w, r, CodeValidation, "config key is required")
		return
	}

	var req configUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeEnvelope(w, r, CodeValidation, "invalid JSON: "+err.Error())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.writeEnvelope(w, r, CodeValidation, "value is required")
		return
	}

	entry := &domain.TrustConfigEntry{
		Key:         key,
		Value:       req.Value,
		Description: req.Description,
	}
	if err := s.trustcfg.Set(r.Context(), entry); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.OK(w, map[string]string{"message": "config updated", "key": key})
}

// AdminCacheStats reports the domain-cache table summary plus analyzer
// counters and, when Redis is wired, its keyspace size.
func (s *Server) AdminCacheStats(w http.ResponseWriter, r *http.Request) {
	cacheStats, err := s.cache.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := map[string]any{
		"message":      "cache statistics",
		"domain_cache": cacheStats,
		"analyzer":     s.analyzer.Stats(),
	}
	if s.redis != nil {
		if size, err := s.redis.DBSize(r.Context()).Result(); err == nil {
			resp["redis_keys"] = size
		}
	}
	httputil.OK(w, resp)
}

// AdminErrorStats reports the envelope-code counts since process start.
func (s *Server) AdminErrorStats(w http.ResponseWriter, r *http.Request) {
	counts, since := s.errors.snapshot()
	httputil.OK(w, map[string]any{
		"message": "error statistics",
		"since":   since.Format(time.RFC3339),
		"counts":  counts,
	})
}
