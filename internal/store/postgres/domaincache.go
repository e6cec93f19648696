package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sitetrust/scoring-engine/internal/domain"
	"github.com/sitetrust/scoring-engine/internal/store"
)

// DomainCacheRepo implements store.DomainCacheStore against PostgreSQL.
type DomainCacheRepo struct{ db *sql.DB }

// NewDomainCacheRepo creates a Postgres-backed domain cache.
func NewDomainCacheRepo(db *sql.DB) *DomainCacheRepo { return &DomainCacheRepo{db: db} }

// Check probes existence and validity in one round trip.
func (r *DomainCacheRepo) Check(ctx context.Context, dom string) (domain.CacheCheck, error) {
	var valid bool
	err := r.db.QueryRowContext(ctx, `
		SELECT cache_expires_at > NOW() FROM trust_domain_cache WHERE domain = $1
	`, dom).Scan(&valid)
	if err == sql.ErrNoRows {
		return domain.CacheCheck{}, nil
	}
	if err != nil {
		return domain.CacheCheck{}, fmt.Errorf("check domain cache: %w", err)
	}
	return domain.CacheCheck{Exists: true, Valid: valid}, nil
}

// Get returns the entry regardless of validity.
func (r *DomainCacheRepo) Get(ctx context.Context, dom string) (*domain.DomainCacheEntry, error) {
	e := &domain.DomainCacheEntry{}
	var (
		ageDays      sql.NullInt64
		sslValid     sql.NullBool
		httpStatus   sql.NullInt64
		safeBrowsing sql.NullString
		hybrid       sql.NullString
		threatScore  sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT domain, domain_age_days, ssl_valid, http_status,
		       google_safe_browsing_status, hybrid_analysis_status,
		       whois_data, threat_score, last_checked, cache_expires_at
		FROM trust_domain_cache
		WHERE domain = $1
	`, dom).Scan(
		&e.Domain, &ageDays, &sslValid, &httpStatus,
		&safeBrowsing, &hybrid,
		&e.WhoisData, &threatScore, &e.LastChecked, &e.CacheExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get domain cache: %w", err)
	}

	if ageDays.Valid {
		v := int(ageDays.Int64)
		e.AgeDays = &v
	}
	if sslValid.Valid {
		v := sslValid.Bool
		e.SSLValid = &v
	}
	if httpStatus.Valid {
		v := int(httpStatus.Int64)
		e.HTTPStatus = &v
	}
	if safeBrowsing.Valid {
		v := domain.SafeBrowsingStatus(safeBrowsing.String)
		e.SafeBrowsing = &v
	}
	if hybrid.Valid {
		v := domain.HybridAnalysisStatus(hybrid.String)
		e.HybridAnalysis = &v
	}
	if threatScore.Valid {
		v := threatScore.Float64
		e.ThreatScore = &v
	}
	return e, nil
}

// UpsertSafe writes the entry on the domain key. The entry's timestamps are
// stamped here so every refresh carries a full TTL; concurrent writers
// simply last-write-win without surfacing conflicts. An analysis where the
// WHOIS source failed stores an empty JSON object.
func (r *DomainCacheRepo) UpsertSafe(ctx context.Context, e *domain.DomainCacheEntry) error {
	now := time.Now().UTC()
	e.LastChecked = now
	e.CacheExpiresAt = now.Add(domain.DomainCacheTTL)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trust_domain_cache
			(domain, domain_age_days, ssl_valid, http_status,
			 google_safe_browsing_status, hybrid_analysis_status,
			 whois_data, threat_score, last_checked, cache_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, '{}'::jsonb), $8, $9, $10)
		ON CONFLICT (domain) DO UPDATE SET
			domain_age_days = EXCLUDED.domain_age_days,
			ssl_valid = EXCLUDED.ssl_valid,
			http_status = EXCLUDED.http_status,
			google_safe_browsing_status = EXCLUDED.google_safe_browsing_status,
			hybrid_analysis_status = EXCLUDED.hybrid_analysis_status,
			whois_data = EXCLUDED.whois_data,
			threat_score = EXCLUDED.threat_score,
			last_checked = EXCLUDED.last_checked,
			cache_expires_at = EXCLUDED.cache_expires_at
	`, e.Domain, e.AgeDays, e.SSLValid, e.HTTPStatus,
		e.SafeBrowsing, e.HybridAnalysis,
		e.WhoisData, e.ThreatScore, e.LastChecked, e.CacheExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert domain cache: %w", err)
	}
	return nil
}

// ListNearExpiry returns domains expiring within the window, most urgent
// first. Already-expired entries come before soon-to-expire ones.
func (r *DomainCacheRepo) ListNearExpiry(ctx context.Context, within time.Duration, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT domain
		FROM trust_domain_cache
		WHERE cache_expires_at < NOW() + INTERVAL '%d hours'
		ORDER BY cache_expires_at ASC
		LIMIT $1
	`, int(within.Hours())), limit)
	if err != nil {
		return nil, fmt.Errorf("list near-expiry domains: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteExpiredBefore prunes entries that expired before the cutoff.
func (r *DomainCacheRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM trust_domain_cache WHERE cache_expires_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired domain cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Stats summarises the cache table.
func (r *DomainCacheRepo) Stats(ctx context.Context) (domain.DomainCacheStats, error) {
	var (
		s      domain.DomainCacheStats
		oldest sql.NullTime
		newest sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE cache_expires_at > NOW()),
		       MIN(last_checked), MAX(last_checked)
		FROM trust_domain_cache
	`).Scan(&s.Total, &s.Valid, &oldest, &newest)
	if err != nil {
		return s, fmt.Errorf("domain cache stats: %w", err)
	}
	s.Expired = s.Total - s.Valid
	if oldest.Valid {
		t := oldest.Time
		s.OldestScan = &t
	}
	if newest.Valid {
		t := newest.Time
		s.NewestScan = &t
	}
	return s, nil
}
