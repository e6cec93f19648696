package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/sitetrust/scoring-engine/internal/domain"
	"github.com/sitetrust/scoring-engine/internal/pkg/httputil"
	"github.com/sitetrust/scoring-engine/internal/store"
	"github.com/sitetrust/scoring-engine/internal/urlkey"
)

// statsResponse is the public view of one URL's trust stats.
type statsResponse struct {
	URL                 string             `json:"url"`
	URLHash             string             `json:"url_hash"`
	Domain              string             `json:"domain"`
	FinalTrustScore     float64            `json:"final_trust_score"`
	TrustScore          float64            `json:"trust_score"`
	DomainTrustScore    float64            `json:"domain_trust_score"`
	CommunityTrustScore float64            `json:"community_trust_score"`
	ContentType         string             `json:"content_type"`
	RatingCount         int                `json:"rating_count"`
	AverageRating       float64            `json:"average_rating"`
	SpamReports         int                `json:"spam_reports_count"`
	MisleadingReports   int                `json:"misleading_reports_count"`
	ScamReports         int                `json:"scam_reports_count"`
	LastUpdated         time.Time          `json:"last_updated"`
	DataSource          domain.DataSource  `json:"data_source"`
	CacheStatus         domain.CacheStatus `json:"cache_status"`
}

func statsFromRow(row *domain.URLStats, cacheStatus domain.CacheStatus) statsResponse {
	return statsResponse{
		URL:                 row.URL,
		URLHash:             row.Fingerprint,
		Domain:              row.Domain,
		FinalTrustScore:     row.FinalScore,
		TrustScore:          row.FinalScore,
		DomainTrustScore:    row.DomainScore,
		CommunityTrustScore: row.CommunityScore,
		ContentType:         row.ContentType,
		RatingCount:         row.RatingCount,
		AverageRating:       row.AvgRating,
		SpamReports:         row.SpamCount,
		MisleadingReports:   row.MisleadingCount,
		ScamReports:         row.ScamCount,
		LastUpdated:         row.LastUpdated,
		DataSource:          row.DataSource(),
		CacheStatus:         cacheStatus,
	}
}

// GetStats returns the trust stats for one URL. Unknown URLs get a
// synthesised baseline and, when the domain is unseen, kick off a
// best-effort analysis for next time.
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	resp, err := s.statsFor(r, raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.OK(w, resp)
}

// statsFor is the lookup shared by GetStats and the batch endpoint.
func (s *Server) statsFor(r *http.Request, raw string) (*statsResponse, error) {
	key, err := urlkey.Parse(raw)
	if err != nil {
		return nil, err
	}
	ctx := r.Context()

	row, err := s.stats.Get(ctx, key.Fingerprint)
	switch {
	case err == nil:
		check, cerr := s.cache.Check(ctx, key.Domain)
		if cerr != nil {
			log.Printf("[API] cache check failed for %s: %v", key.Domain, cerr)
		}
		resp := statsFromRow(row, cacheStatusFromCheck(check))
		return &resp, nil

	case errors.Is(err, store.ErrNotFound):
		row, cacheStatus, berr := s.engine.BaselineStats(ctx, key.Canonical, key.Fingerprint, key.Domain)
		if berr != nil {
			return nil, berr
		}
		if cacheStatus == domain.CacheMissing {
			s.analyzer.TriggerBestEffort(key.Domain)
		}
		resp := statsFromRow(row, cacheStatus)
		return &resp, nil

	default:
		return nil, err
	}
}

func cacheStatusFromCheck(check domain.CacheCheck) domain.CacheStatus {
	switch {
	case !check.Exists:
		return domain.CacheMissing
	case check.Valid:
		return domain.CacheValid
	default:
		return domain.CacheExpired
	}
}

// batchRequest is the batch lookup payload.
type batchRequest struct {
	URLs []string `json:"urls" validate:"required,min=1,max=50"`
}

// batchEntry is one per-URL result; failed lookups carry an error instead
// of stats, without failing the batch.
type batchEntry struct {
	URL   string         `json:"url"`
	Stats *statsResponse `json:"stats,omitempty"`
	Error string         `json:"error,omitempty"`
}

// BatchGetStats resolves up to 50 URLs in request order.
func (s *Server) BatchGetStats(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeEnvelope(w, r, CodeValidation, "invalid JSON: "+err.Error())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.writeEnvelope(w, r, CodeValidation, "urls must contain between 1 and 50 entries")
		return
	}

	results := make([]batchEntry, len(req.URLs))
	for i, raw := range req.URLs {
		entry := batchEntry{URL: raw}
		resp, err := s.statsFor(r, raw)
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.Stats = resp
		}
		results[i] = entry
	}

	httputil.OK(w, map[string]any{
		"results": results,
		"count":   len(results),
	})
}
