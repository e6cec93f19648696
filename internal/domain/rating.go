package domain

import (
	"time"
)

const (
	// MinStars and MaxStars bound the star value of a rating.
	MinStars = 1
	MaxStars = 5

	// RatingCooldown is the window during which a user may not rate the
	// same URL twice.
	RatingCooldown = 24 * time.Hour

	// RatingRetentionDays is how long processed ratings are kept before
	// the janitor deletes them.
	RatingRetentionDays = 7
)

// Rating is a single user submission for a URL. Rows are append-only: the
// aggregator flips Processed exactly once and the record is immutable after
// that.
type Rating struct {
	ID          string    `json:"id" db:"id"`
	Fingerprint string    `json:"fingerprint" db:"fingerprint"`
	URL         string    `json:"url" db:"url"`
	Domain      string    `json:"domain" db:"domain"`
	UserID      string    `json:"user_id" db:"user_id"`
	Stars       int       `json:"stars" db:"stars"`
	Spam        bool      `json:"spam" db:"is_spam"`
	Misleading  bool      `json:"misleading" db:"is_misleading"`
	Scam        bool      `json:"scam" db:"is_scam"`
	Processed   bool      `json:"processed" db:"processed"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// StarsInRange reports whether the star value is within [MinStars, MaxStars].
func (r *Rating) StarsInRange() bool {
	return r.Stars >= MinStars && r.Stars <= MaxStars
}

// RatingAggregates are the per-fingerprint counts the scorer consumes,
// recomputed from the rating log on every pass.
type RatingAggregates struct {
	Fingerprint     string  `json:"fingerprint" db:"fingerprint"`
	RatingCount     int     `json:"rating_count" db:"rating_count"`
	AvgRating       float64 `json:"avg_rating" db:"avg_rating"`
	SpamCount       int     `json:"spam_count" db:"spam_count"`
	MisleadingCount int     `json:"misleading_count" db:"misleading_count"`
	ScamCount       int     `json:"scam_count" db:"scam_count"`
}

// SpamRatio returns the fraction of ratings flagged as spam, 0 when empty.
func (a RatingAggregates) SpamRatio() float64 {
	if a.RatingCount == 0 {
		return 0
	}
	return float64(a.SpamCount) / float64(a.RatingCount)
}

// MisleadingRatio returns the fraction flagged as misleading, 0 when empty.
func (a RatingAggregates) MisleadingRatio() float64 {
	if a.RatingCount == 0 {
		return 0
	}
	return float64(a.MisleadingCount) / float64(a.RatingCount)
}

// ScamRatio returns the fraction flagged as scam, 0 when empty.
func (a RatingAggregates) ScamRatio() float64 {
	if a.RatingCount == 0 {
		return 0
	}
	return float64(a.ScamCount) / float64(a.RatingCount)
}

// DomainRatingSummary is the per-domain rating rollup the rule learner
// scans for candidate domains.
type DomainRatingSummary struct {
	Domain          string  `json:"domain" db:"domain"`
	RatingCount     int     `json:"rating_count" db:"rating_count"`
	AvgRating       float64 `json:"avg_rating" db:"avg_rating"`
	SpamCount       int     `json:"spam_count" db:"spam_count"`
	MisleadingCount int     `json:"misleading_count" db:"misleading_count"`
	ScamCount       int     `json:"scam_count" db:"scam_count"`
}

// Ratios returns the flag ratios of the summary as a RatingAggregates view.
func (d DomainRatingSummary) Ratios() RatingAggregates {
	return RatingAggregates{
		RatingCount:     d.RatingCount,
		AvgRating:       d.AvgRating,
		SpamCount:       d.SpamCount,
		MisleadingCount: d.MisleadingCount,
		ScamCount:       d.ScamCount,
	}
}
