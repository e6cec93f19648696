package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sitetrust/scoring-engine/internal/domain"
	"github.com/sitetrust/scoring-engine/internal/store"
)

// TrustConfigRepo implements store.TrustConfigStore against PostgreSQL.
type TrustConfigRepo struct{ db *sql.DB }

// NewTrustConfigRepo creates a Postgres-backed trust config store.
func NewTrustConfigRepo(db *sql.DB) *TrustConfigRepo { return &TrustConfigRepo{db: db} }

// Get returns one config entry.
func (r *TrustConfigRepo) Get(ctx context.Context, key string) (*domain.TrustConfigEntry, error) {
	e := &domain.TrustConfigEntry{}
	err := r.db.QueryRowContext(ctx, `
		SELECT config_key, config_value, COALESCE(description,''), updated_at
		FROM trust_config
		WHERE config_key = $1
	`, key).Scan(&e.Key, &e.Value, &e.Description, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trust config: %w", err)
	}
	return e, nil
}

// Set upserts a key/value pair. An empty incoming description keeps the
// stored one.
func (r *TrustConfigRepo) Set(ctx context.Context, e *domain.TrustConfigEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trust_config (config_key, config_value, description, updated_at)
		VALUES ($1, $2, NULLIF($3,''), NOW())
		ON CONFLICT (config_key) DO UPDATE SET
			config_value = EXCLUDED.config_value,
			description = COALESCE(EXCLUDED.description, trust_config.description),
			updated_at = NOW()
	`, e.Key, e.Value, e.Description)
	if err != nil {
		return fmt.Errorf("set trust config: %w", err)
	}
	return nil
}

// List returns all entries ordered by key.
func (r *TrustConfigRepo) List(ctx context.Context) ([]domain.TrustConfigEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT config_key, config_value, COALESCE(description,''), updated_at
		FROM trust_config
		ORDER BY config_key ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list trust config: %w", err)
	}
	defer rows.Close()

	var out []domain.TrustConfigEntry
	for rows.Next() {
		var e domain.TrustConfigEntry
		if err := rows.Scan(&e.Key, &e.Value, &e.Description, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan trust config: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
