package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sitetrust/scoring-engine/internal/domain"
	"github.com/sitetrust/scoring-engine/internal/store"
)

// URLStatsRepo implements store.URLStatsStore against PostgreSQL.
type URLStatsRepo struct{ db *sql.DB }

// NewURLStatsRepo creates a Postgres-backed URL stats store.
func NewURLStatsRepo(db *sql.DB) *URLStatsRepo { return &URLStatsRepo{db: db} }

// Get returns the aggregated row for a fingerprint.
func (r *URLStatsRepo) Get(ctx context.Context, fingerprint string) (*domain.URLStats, error) {
	s := &domain.URLStats{}
	err := r.db.QueryRowContext(ctx, `
		SELECT fingerprint, url, COALESCE(domain,''), content_type,
		       rating_count, avg_rating, spam_count, misleading_count, scam_count,
		       community_score, domain_score, final_score,
		       processing_status, domain_analysis_processed, last_updated
		FROM trust_url_stats
		WHERE fingerprint = $1
	`, fingerprint).Scan(
		&s.Fingerprint, &s.URL, &s.Domain, &s.ContentType,
		&s.RatingCount, &s.AvgRating, &s.SpamCount, &s.MisleadingCount, &s.ScamCount,
		&s.CommunityScore, &s.DomainScore, &s.FinalScore,
		&s.Status, &s.DomainAnalyzed, &s.LastUpdated,
	)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get url stats: %w", err)
	}
	return s, nil
}

// Upsert writes the row atomically on the fingerprint key. All score and
// count fields are replaced; the stored domain survives an empty one.
func (r *URLStatsRepo) Upsert(ctx context.Context, s *domain.URLStats) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trust_url_stats
			(fingerprint, url, domain, content_type,
			 rating_count, avg_rating, spam_count, misleading_count, scam_count,
			 community_score, domain_score, final_score,
			 processing_status, domain_analysis_processed, last_updated)
		VALUES ($1, $2, NULLIF($3,''), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
		ON CONFLICT (fingerprint) DO UPDATE SET
			url = EXCLUDED.url,
			domain = COALESCE(NULLIF(EXCLUDED.domain,''), trust_url_stats.domain),
			content_type = EXCLUDED.content_type,
			rating_count = EXCLUDED.rating_count,
			avg_rating = EXCLUDED.avg_rating,
			spam_count = EXCLUDED.spam_count,
			misleading_count = EXCLUDED.misleading_count,
			scam_count = EXCLUDED.scam_count,
			community_score = EXCLUDED.community_score,
			domain_score = EXCLUDED.domain_score,
			final_score = EXCLUDED.final_score,
			processing_status = EXCLUDED.processing_status,
			domain_analysis_processed = EXCLUDED.domain_analysis_processed,
			last_updated = NOW()
	`, s.Fingerprint, s.URL, s.Domain, s.ContentType,
		s.RatingCount, s.AvgRating, s.SpamCount, s.MisleadingCount, s.ScamCount,
		s.CommunityScore, s.DomainScore, s.FinalScore,
		s.Status, s.DomainAnalyzed)
	if err != nil {
		return fmt.Errorf("upsert url stats: %w", err)
	}
	return nil
}

// DeleteIdle removes rows untouched since the cutoff.
func (r *URLStatsRepo) DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM trust_url_stats WHERE last_updated < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete idle url stats: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
