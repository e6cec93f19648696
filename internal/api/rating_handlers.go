package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/sitetrust/scoring-engine/internal/auth"
	"github.com/sitetrust/scoring-engine/internal/domain"
	"github.com/sitetrust/scoring-engine/internal/pkg/httputil"
	"github.com/sitetrust/scoring-engine/internal/store"
	"github.com/sitetrust/scoring-engine/internal/urlkey"
)

// ratingRequest is the submit payload.
type ratingRequest struct {
	URL        string `json:"url" validate:"required"`
	Score      int    `json:"score" validate:"required,min=1,max=5"`
	IsSpam     bool   `json:"isSpam"`
	Misleading bool   `json:"isMisleading"`
	IsScam     bool   `json:"isScam"`
}

// ratingResponse echoes the recomputed stats so clients see their own
// submission reflected immediately.
type ratingResponse struct {
	Message    string           `json:"message"`
	URLStats   statsResponse    `json:"urlStats"`
	Processing ratingProcessing `json:"processing"`
}

type ratingProcessing struct {
	DomainAnalysisTriggered bool `json:"domain_analysis_triggered"`
}

// SubmitRating appends a rating and synchronously recomputes the URL's
// stats. The 24 h per-user cooldown maps to 409.
func (s *Server) SubmitRating(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		s.writeEnvelope(w, r, CodeAuth, "missing or invalid bearer token")
		return
	}

	var req ratingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeEnvelope(w, r, CodeValidation, "invalid JSON: "+err.Error())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.writeEnvelope(w, r, CodeValidation, "score must be between 1 and 5 and url is required")
		return
	}

	key, err := urlkey.Parse(req.URL)
	if err != nil {
		s.writeEnvelope(w, r, CodeValidation, "url must be an absolute http or https URL")
		return
	}
	ctx := r.Context()

	rating := &domain.Rating{
		ID:          uuid.NewString(),
		Fingerprint: key.Fingerprint,
		URL:         key.Canonical,
		Domain:      key.Domain,
		UserID:      userID,
		Stars:       req.Score,
		Spam:        req.IsSpam,
		Misleading:  req.Misleading,
		Scam:        req.IsScam,
	}
	if err := s.ratings.Append(ctx, rating); err != nil {
		if errors.Is(err, store.ErrRatingConflict) {
			s.writeEnvelope(w, r, CodeConflict, "you have already rated this URL recently")
			return
		}
		s.writeError(w, r, err)
		return
	}

	triggered := s.analyzer.TriggerBestEffort(key.Domain)

	// Recompute synchronously so the response reflects this submission;
	// the aggregator will mark the rating processed on its next tick.
	row, err := s.engine.Refresh(ctx, key.Canonical, key.Fingerprint, key.Domain)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	check, cerr := s.cache.Check(ctx, key.Domain)
	cacheStatus := domain.CacheMissing
	if cerr == nil {
		cacheStatus = cacheStatusFromCheck(check)
	}

	httputil.Created(w, ratingResponse{
		Message:    "rating recorded",
		URLStats:   statsFromRow(row, cacheStatus),
		Processing: ratingProcessing{DomainAnalysisTriggered: triggered},
	})
}
