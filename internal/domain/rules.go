package domain

import (
	"time"
)

const (
	// MaxBlacklistPenalty caps the total penalty subtracted from the
	// domain score, however many patterns match.
	MaxBlacklistPenalty = 50.0

	// SeverityPenaltyFactor converts a blacklist severity into score
	// penalty points.
	SeverityPenaltyFactor = 5.0

	MinSeverity = 1
	MaxSeverity = 10

	MinTrustModifier = -10
	MaxTrustModifier = 10

	MinRatingsRequired = 1
	MaxRatingsRequired = 10
)

// ContentTypeGeneral is the fallback content type when no rule matches.
const ContentTypeGeneral = "general"

// Content types the rule learner can assign.
const (
	ContentTypeVideo         = "video"
	ContentTypeSocial        = "social"
	ContentTypeCode          = "code"
	ContentTypeNews          = "news"
	ContentTypeEducation     = "education"
	ContentTypeEcommerce     = "ecommerce"
	ContentTypeDocs          = "docs"
	ContentTypeProfessional  = "professional"
	ContentTypeEntertainment = "entertainment"
	ContentTypeArticle       = "article"
	ContentTypeProduct       = "product"
)

// BlacklistEntry is one pattern row. Pattern is either an exact domain or a
// SQL LIKE expression; severity weights the penalty.
type BlacklistEntry struct {
	ID          int64     `json:"id" db:"id"`
	Pattern     string    `json:"pattern" db:"pattern"`
	Type        string    `json:"blacklist_type" db:"blacklist_type"`
	Severity    int       `json:"severity" db:"severity"`
	Description string    `json:"description" db:"description"`
	Active      bool      `json:"active" db:"active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// BlacklistVerdict is the aggregate answer of a blacklist lookup.
type BlacklistVerdict struct {
	Blacklisted bool    `json:"is_blacklisted"`
	WorstType   string  `json:"worst_type,omitempty"`
	MaxSeverity int     `json:"max_severity"`
	Penalty     float64 `json:"penalty"`
}

// VerdictFromMatches folds matched blacklist rows into a verdict. The
// penalty is severity-weighted and capped; the worst type is the type of
// the highest-severity match.
func VerdictFromMatches(matches []BlacklistEntry) BlacklistVerdict {
	if len(matches) == 0 {
		return BlacklistVerdict{}
	}
	v := BlacklistVerdict{Blacklisted: true}
	total := 0
	for _, m := range matches {
		total += m.Severity
		if m.Severity > v.MaxSeverity {
			v.MaxSeverity = m.Severity
			v.WorstType = m.Type
		}
	}
	v.Penalty = float64(total) * SeverityPenaltyFactor
	if v.Penalty > MaxBlacklistPenalty {
		v.Penalty = MaxBlacklistPenalty
	}
	return v
}

// ContentTypeRule maps URLs under a domain to a content type and a trust
// score modifier. URLPattern is nil when the rule covers the whole domain.
type ContentTypeRule struct {
	ID          int64     `json:"id" db:"id"`
	Domain      string    `json:"domain" db:"domain"`
	ContentType string    `json:"content_type" db:"content_type"`
	URLPattern  *string   `json:"url_pattern" db:"url_pattern"`
	Modifier    int       `json:"trust_score_modifier" db:"trust_score_modifier"`
	MinRatings  int       `json:"min_ratings_required" db:"min_ratings_required"`
	Active      bool      `json:"active" db:"active"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ClampModifier forces a learned modifier into the allowed range.
func ClampModifier(m int) int {
	if m < MinTrustModifier {
		return MinTrustModifier
	}
	if m > MaxTrustModifier {
		return MaxTrustModifier
	}
	return m
}

// ClampMinRatings forces a learned min-ratings requirement into range.
func ClampMinRatings(n int) int {
	if n < MinRatingsRequired {
		return MinRatingsRequired
	}
	if n > MaxRatingsRequired {
		return MaxRatingsRequired
	}
	return n
}
