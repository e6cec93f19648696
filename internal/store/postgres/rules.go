package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sitetrust/scoring-engine/internal/domain"
	"github.com/sitetrust/scoring-engine/internal/store"
)

// RuleRepo implements store.RuleStore against PostgreSQL.
type RuleRepo struct{ db *sql.DB }

// NewRuleRepo creates a Postgres-backed blacklist/rule store.
func NewRuleRepo(db *sql.DB) *RuleRepo { return &RuleRepo{db: db} }

// CheckBlacklist matches the domain against active patterns. A pattern hits
// on string equality or as a SQL LIKE expression.
func (r *RuleRepo) CheckBlacklist(ctx context.Context, dom string) (domain.BlacklistVerdict, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, pattern, blacklist_type, severity, COALESCE(description,''), active, created_at
		FROM trust_blacklist
		WHERE active = true AND ($1 = pattern OR $1 LIKE pattern)
	`, dom)
	if err != nil {
		return domain.BlacklistVerdict{}, fmt.Errorf("check blacklist: %w", err)
	}
	defer rows.Close()

	var matches []domain.BlacklistEntry
	for rows.Next() {
		var e domain.BlacklistEntry
		if err := rows.Scan(&e.ID, &e.Pattern, &e.Type, &e.Severity,
			&e.Description, &e.Active, &e.CreatedAt); err != nil {
			return domain.BlacklistVerdict{}, fmt.Errorf("scan blacklist entry: %w", err)
		}
		matches = append(matches, e)
	}
	if err := rows.Err(); err != nil {
		return domain.BlacklistVerdict{}, fmt.Errorf("check blacklist: %w", err)
	}
	return domain.VerdictFromMatches(matches), nil
}

// InsertBlacklistEntry adds a pattern; duplicates on (pattern, type) are
// ignored so feed polls and seeding can re-run freely.
func (r *RuleRepo) InsertBlacklistEntry(ctx context.Context, e *domain.BlacklistEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trust_blacklist (pattern, blacklist_type, severity, description, active, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (pattern, blacklist_type) DO NOTHING
	`, e.Pattern, e.Type, e.Severity, e.Description, e.Active)
	if err != nil {
		return fmt.Errorf("insert blacklist entry: %w", err)
	}
	return nil
}

// ActiveRules returns the domain's active content-type rules in insertion
// order; the caller picks the first match.
func (r *RuleRepo) ActiveRules(ctx context.Context, dom string) ([]domain.ContentTypeRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, domain, content_type, url_pattern, trust_score_modifier,
		       min_ratings_required, active, COALESCE(description,''), created_at
		FROM trust_content_rules
		WHERE domain = $1 AND active = true
		ORDER BY id ASC
	`, dom)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	defer rows.Close()

	var out []domain.ContentTypeRule
	for rows.Next() {
		var (
			rule    domain.ContentTypeRule
			pattern sql.NullString
		)
		if err := rows.Scan(&rule.ID, &rule.Domain, &rule.ContentType, &pattern,
			&rule.Modifier, &rule.MinRatings, &rule.Active, &rule.Description,
			&rule.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan content rule: %w", err)
		}
		if pattern.Valid {
			p := pattern.String
			rule.URLPattern = &p
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// HasActiveRule reports whether any active rule covers the domain.
func (r *RuleRepo) HasActiveRule(ctx context.Context, dom string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM trust_content_rules WHERE domain = $1 AND active = true
		)
	`, dom).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active rule: %w", err)
	}
	return exists, nil
}

// InsertRule adds a rule unless an identical (domain, content_type,
// url_pattern) rule already exists, so the learner and seeding stay
// idempotent.
func (r *RuleRepo) InsertRule(ctx context.Context, rule *domain.ContentTypeRule) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trust_content_rules
			(domain, content_type, url_pattern, trust_score_modifier,
			 min_ratings_required, active, description, created_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, NOW()
		WHERE NOT EXISTS (
			SELECT 1 FROM trust_content_rules
			WHERE domain = $1 AND content_type = $2 AND url_pattern IS NOT DISTINCT FROM $3
		)
	`, rule.Domain, rule.ContentType, rule.URLPattern,
		rule.Modifier, rule.MinRatings, rule.Active, rule.Description)
	if err != nil {
		return fmt.Errorf("insert content rule: %w", err)
	}
	return nil
}

// DeactivateRule flips a rule inactive.
func (r *RuleRepo) DeactivateRule(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE trust_content_rules SET active = false WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate rule: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
