package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/sitetrust/scoring-engine/internal/pkg/httputil"
	"github.com/sitetrust/scoring-engine/internal/store"
	"github.com/sitetrust/scoring-engine/internal/urlkey"
)

// Envelope codes. Every failure response carries exactly one of these.
const (
	CodeValidation = "ValidationError"
	CodeAuth       = "AuthError"
	CodeRateLimit  = "RateLimitError"
	CodeConflict   = "Conflict"
	CodeDatabase   = "DatabaseError"
	CodeInternal   = "InternalError"
)

// errorEnvelope is the JSON body of every failure response.
type errorEnvelope struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id,omitempty"`
}

// statusForCode maps envelope codes to HTTP statuses. 406 is never used.
func statusForCode(code string) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeAuth:
		return http.StatusUnauthorized
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimit:
		return http.StatusTooManyRequests
	case CodeDatabase:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// codeForError maps sentinel errors to envelope codes.
func codeForError(err error) string {
	switch {
	case errors.Is(err, urlkey.ErrInvalidURL):
		return CodeValidation
	case errors.Is(err, store.ErrRatingConflict):
		return CodeConflict
	case errors.Is(err, context.DeadlineExceeded):
		return CodeInternal
	default:
		return CodeDatabase
	}
}

// writeEnvelope emits the failure envelope and records the code.
func (s *Server) writeEnvelope(w http.ResponseWriter, r *http.Request, code, message string) {
	s.errors.record(code)
	httputil.JSON(w, statusForCode(code), errorEnvelope{
		Error:     message,
		Code:      code,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// writeError maps an error to its envelope.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeEnvelope(w, r, codeForError(err), err.Error())
}

// errorRecorder counts envelope codes since process start. The admin
// error-stats endpoint reads it; restarts reset it.
type errorRecorder struct {
	mu     sync.Mutex
	since  time.Time
	counts map[string]int64
}

func newErrorRecorder() *errorRecorder {
	return &errorRecorder{
		since:  time.Now().UTC(),
		counts: make(map[string]int64),
	}
}

func (e *errorRecorder) record(code string) {
	e.mu.Lock()
	e.counts[code]++
	e.mu.Unlock()
}

// snapshot returns the counts by code plus the window start.
func (e *errorRecorder) snapshot() (map[string]int64, time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]int64, len(e.counts))
	for code, n := range e.counts {
		out[code] = n
	}
	return out, e.since
}
