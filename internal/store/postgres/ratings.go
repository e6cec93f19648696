// Package postgres implements the store interfaces against PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/sitetrust/scoring-engine/internal/domain"
	"github.com/sitetrust/scoring-engine/internal/store"
)

// RatingRepo implements store.RatingStore against PostgreSQL.
type RatingRepo struct{ db *sql.DB }

// NewRatingRepo creates a Postgres-backed rating store.
func NewRatingRepo(db *sql.DB) *RatingRepo { return &RatingRepo{db: db} }

// Append inserts a rating unless the user already rated this fingerprint
// within the cooldown window or still has an unprocessed rating for it. The
// partial unique index on (fingerprint, user_id) WHERE NOT processed backs
// the same rule against concurrent inserts.
func (r *RatingRepo) Append(ctx context.Context, rating *domain.Rating) error {
	if rating.ID == "" {
		rating.ID = uuid.New().String()
	}

	q := fmt.Sprintf(`
		INSERT INTO trust_ratings
			(id, fingerprint, url, domain, user_id, stars, is_spam, is_misleading, is_scam, processed, created_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, false, NOW()
		WHERE NOT EXISTS (
			SELECT 1 FROM trust_ratings
			WHERE fingerprint = $2 AND user_id = $5
			  AND (processed = false OR created_at > NOW() - INTERVAL '%d hours')
		)
	`, int(domain.RatingCooldown.Hours()))

	res, err := r.db.ExecContext(ctx, q,
		rating.ID, rating.Fingerprint, rating.URL, rating.Domain, rating.UserID,
		rating.Stars, rating.Spam, rating.Misleading, rating.Scam)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrRatingConflict
		}
		return fmt.Errorf("append rating: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrRatingConflict
	}
	return nil
}

// ListUnprocessedFingerprints returns fingerprints with pending ratings,
// oldest submission first.
func (r *RatingRepo) ListUnprocessedFingerprints(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT fingerprint
		FROM trust_ratings
		WHERE processed = false
		GROUP BY fingerprint
		ORDER BY MIN(created_at) ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed fingerprints: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}

// Aggregates recounts every stored rating for the fingerprint.
func (r *RatingRepo) Aggregates(ctx context.Context, fingerprint string) (domain.RatingAggregates, error) {
	agg := domain.RatingAggregates{Fingerprint: fingerprint}
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(AVG(stars), 0),
		       COUNT(*) FILTER (WHERE is_spam),
		       COUNT(*) FILTER (WHERE is_misleading),
		       COUNT(*) FILTER (WHERE is_scam)
		FROM trust_ratings
		WHERE fingerprint = $1
	`, fingerprint).Scan(
		&agg.RatingCount, &agg.AvgRating, &agg.SpamCount, &agg.MisleadingCount, &agg.ScamCount,
	)
	if err != nil {
		return agg, fmt.Errorf("aggregate ratings: %w", err)
	}
	return agg, nil
}

// URLForFingerprint resolves the rated URL and domain for a fingerprint
// from its most recent rating.
func (r *RatingRepo) URLForFingerprint(ctx context.Context, fingerprint string) (string, string, error) {
	var u, dom string
	err := r.db.QueryRowContext(ctx, `
		SELECT url, domain
		FROM trust_ratings
		WHERE fingerprint = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, fingerprint).Scan(&u, &dom)
	if err == sql.ErrNoRows {
		return "", "", store.ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("url for fingerprint: %w", err)
	}
	return u, dom, nil
}

// MarkProcessed flips processed on every rating of the given fingerprints.
func (r *RatingRepo) MarkProcessed(ctx context.Context, fingerprints []string) error {
	if len(fingerprints) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE trust_ratings SET processed = true
		WHERE fingerprint = ANY($1) AND processed = false
	`, pq.Array(fingerprints))
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

// DeleteProcessedOlderThan prunes processed ratings past the retention
// window. Unprocessed rows are never deleted.
func (r *RatingRepo) DeleteProcessedOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = domain.RatingRetentionDays
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM trust_ratings
		WHERE processed = true AND created_at < NOW() - INTERVAL '%d days'
	`, days))
	if err != nil {
		return 0, fmt.Errorf("delete processed ratings: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// LearnableDomains returns domains with enough ratings and no active rule.
func (r *RatingRepo) LearnableDomains(ctx context.Context, minRatings, limit int) ([]domain.DomainRatingSummary, error) {
	if minRatings <= 0 {
		minRatings = 3
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.domain,
		       COUNT(*),
		       COALESCE(AVG(r.stars), 0),
		       COUNT(*) FILTER (WHERE r.is_spam),
		       COUNT(*) FILTER (WHERE r.is_misleading),
		       COUNT(*) FILTER (WHERE r.is_scam)
		FROM trust_ratings r
		WHERE r.domain <> ''
		  AND NOT EXISTS (
		      SELECT 1 FROM trust_content_rules cr
		      WHERE cr.domain = r.domain AND cr.active = true
		  )
		GROUP BY r.domain
		HAVING COUNT(*) >= $1
		ORDER BY COUNT(*) DESC, r.domain ASC
		LIMIT $2
	`, minRatings, limit)
	if err != nil {
		return nil, fmt.Errorf("list learnable domains: %w", err)
	}
	defer rows.Close()

	var out []domain.DomainRatingSummary
	for rows.Next() {
		var s domain.DomainRatingSummary
		if err := rows.Scan(&s.Domain, &s.RatingCount, &s.AvgRating,
			&s.SpamCount, &s.MisleadingCount, &s.ScamCount); err != nil {
			return nil, fmt.Errorf("scan domain summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SampleURLs returns recently rated URLs for a domain, newest first.
func (r *RatingRepo) SampleURLs(ctx context.Context, dom string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT url
		FROM trust_ratings
		WHERE domain = $1
		GROUP BY url
		ORDER BY MAX(created_at) DESC
		LIMIT $2
	`, dom, limit)
	if err != nil {
		return nil, fmt.Errorf("sample urls: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "duplicate key")
}
