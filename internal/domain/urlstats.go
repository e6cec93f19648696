package domain

import (
	"time"
)

// ProcessingStatus records which inputs the latest aggregation had available.
type ProcessingStatus string

const (
	StatusCommunityOnly        ProcessingStatus = "community_only"
	StatusCommunityBasicDomain ProcessingStatus = "community_with_basic_domain"
	StatusEnhanced             ProcessingStatus = "enhanced_with_domain_analysis"
)

// DataSource annotates a stats response with where its numbers came from.
type DataSource string

const (
	SourceBaseline  DataSource = "baseline"
	SourceDomain    DataSource = "domain"
	SourceCommunity DataSource = "community"
	SourceEnhanced  DataSource = "enhanced"
)

// CacheStatus describes the domain-cache state backing a stats response.
type CacheStatus string

const (
	CacheValid   CacheStatus = "valid"
	CacheExpired CacheStatus = "expired"
	CacheMissing CacheStatus = "missing"
)

// URLStats is the aggregated per-URL row, keyed by fingerprint. All score
// and count fields are replaced wholesale on every upsert; Domain is kept
// when the writer has nothing better.
type URLStats struct {
	Fingerprint     string           `json:"fingerprint" db:"fingerprint"`
	URL             string           `json:"url" db:"url"`
	Domain          string           `json:"domain" db:"domain"`
	ContentType     string           `json:"content_type" db:"content_type"`
	RatingCount     int              `json:"rating_count" db:"rating_count"`
	AvgRating       float64          `json:"avg_rating" db:"avg_rating"`
	SpamCount       int              `json:"spam_count" db:"spam_count"`
	MisleadingCount int              `json:"misleading_count" db:"misleading_count"`
	ScamCount       int              `json:"scam_count" db:"scam_count"`
	CommunityScore  float64          `json:"community_score" db:"community_score"`
	DomainScore     float64          `json:"domain_score" db:"domain_score"`
	FinalScore      float64          `json:"final_score" db:"final_score"`
	Status          ProcessingStatus `json:"processing_status" db:"processing_status"`
	DomainAnalyzed  bool             `json:"domain_analysis_processed" db:"domain_analysis_processed"`
	LastUpdated     time.Time        `json:"last_updated" db:"last_updated"`
}

// DataSource maps the processing status to the response annotation used by
// the stats API. Enhanced rows without any ratings were scored from domain
// signals alone; rows without valid domain analysis fall back to the
// community history or, with no ratings either, to baseline.
func (s *URLStats) DataSource() DataSource {
	if s.Status == StatusEnhanced {
		if s.RatingCount > 0 {
			return SourceEnhanced
		}
		return SourceDomain
	}
	if s.RatingCount > 0 {
		return SourceCommunity
	}
	return SourceBaseline
}

// Aggregates returns the rating aggregates view of the stored counts.
func (s *URLStats) Aggregates() RatingAggregates {
	return RatingAggregates{
		Fingerprint:     s.Fingerprint,
		RatingCount:     s.RatingCount,
		AvgRating:       s.AvgRating,
		SpamCount:       s.SpamCount,
		MisleadingCount: s.MisleadingCount,
		ScamCount:       s.ScamCount,
	}
}
