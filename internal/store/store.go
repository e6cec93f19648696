// Package store defines the persistence contracts for the trust scoring
// engine. Implementations live in store/postgres; consumers (scorer,
// workers, API) depend only on these interfaces.
package store

import (
	"context"
	"time"

	"github.com/sitetrust/scoring-engine/internal/domain"
)

// RatingStore is the append-only rating log. Implementations must be safe
// for concurrent use.
type RatingStore interface {
	// Append inserts a rating. Returns ErrRatingConflict when the same
	// user already rated the fingerprint within the cooldown window or an
	// unprocessed rating from them is still pending.
	Append(ctx context.Context, r *domain.Rating) error

	// ListUnprocessedFingerprints returns distinct fingerprints that have
	// at least one unprocessed rating, oldest submissions first, capped
	// at limit.
	ListUnprocessedFingerprints(ctx context.Context, limit int) ([]string, error)

	// Aggregates recomputes the per-fingerprint counts from all stored
	// ratings (processed or not).
	Aggregates(ctx context.Context, fingerprint string) (domain.RatingAggregates, error)

	// URLForFingerprint resolves the rated URL and its domain for a
	// fingerprint. Returns ErrNotFound when no rating exists for it.
	URLForFingerprint(ctx context.Context, fingerprint string) (url string, dom string, err error)

	// MarkProcessed flips processed=true for every rating of the given
	// fingerprints. Idempotent.
	MarkProcessed(ctx context.Context, fingerprints []string) error

	// DeleteProcessedOlderThan removes processed ratings older than the
	// given number of days. Unprocessed rows are never touched. Returns
	// the number of rows removed.
	DeleteProcessedOlderThan(ctx context.Context, days int) (int64, error)

	// LearnableDomains returns domains with at least minRatings ratings
	// and no active content-type rule, capped at limit.
	LearnableDomains(ctx context.Context, minRatings, limit int) ([]domain.DomainRatingSummary, error)

	// SampleURLs returns up to limit distinct rated URLs for a domain,
	// newest first, for pattern inspection.
	SampleURLs(ctx context.Context, dom string, limit int) ([]string, error)
}

// URLStatsStore holds the aggregated per-URL rows.
type URLStatsStore interface {
	// Get returns the stats row for a fingerprint. Returns ErrNotFound
	// when the URL has never been aggregated.
	Get(ctx context.Context, fingerprint string) (*domain.URLStats, error)

	// Upsert atomically writes the row keyed by fingerprint, replacing
	// all score and count fields. A stored domain is preserved when
	// stats.Domain is empty.
	Upsert(ctx context.Context, stats *domain.URLStats) error

	// DeleteIdle removes rows whose last_updated is older than the
	// cutoff. Returns the number of rows removed.
	DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error)
}

// DomainCacheStore holds per-domain reputation signals with a TTL.
type DomainCacheStore interface {
	// Check reports whether an entry exists and whether it is still
	// valid. Never returns ErrNotFound.
	Check(ctx context.Context, dom string) (domain.CacheCheck, error)

	// Get returns the entry even when expired; callers decide what an
	// invalid entry means. Returns ErrNotFound for unknown domains.
	Get(ctx context.Context, dom string) (*domain.DomainCacheEntry, error)

	// UpsertSafe writes the entry keyed by domain, replacing all signal
	// fields and stamping last_checked/cache_expires_at. Duplicate-key
	// races resolve to the newest write and never surface an error.
	UpsertSafe(ctx context.Context, e *domain.DomainCacheEntry) error

	// ListNearExpiry returns domains whose entries expire within the
	// window (including already-expired ones), most urgent first.
	ListNearExpiry(ctx context.Context, within time.Duration, limit int) ([]string, error)

	// DeleteExpiredBefore removes entries that expired before the cutoff.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Stats summarises the cache for the admin surface.
	Stats(ctx context.Context) (domain.DomainCacheStats, error)
}

// RuleStore serves blacklist and content-type rule lookups.
type RuleStore interface {
	// CheckBlacklist matches the domain against active patterns (exact
	// or LIKE) and folds the matches into a verdict.
	CheckBlacklist(ctx context.Context, dom string) (domain.BlacklistVerdict, error)

	// InsertBlacklistEntry adds a pattern, idempotent on
	// (pattern, blacklist_type).
	InsertBlacklistEntry(ctx context.Context, e *domain.BlacklistEntry) error

	// ActiveRules returns the active content-type rules for a domain in
	// insertion order.
	ActiveRules(ctx context.Context, dom string) ([]domain.ContentTypeRule, error)

	// HasActiveRule reports whether any active rule exists for a domain.
	HasActiveRule(ctx context.Context, dom string) (bool, error)

	// InsertRule adds a learned or seeded content-type rule.
	InsertRule(ctx context.Context, r *domain.ContentTypeRule) error

	// DeactivateRule flips a rule inactive; rules are never deleted.
	DeactivateRule(ctx context.Context, id int64) error
}

// TrustConfigStore persists runtime key/value knobs.
type TrustConfigStore interface {
	// Get returns one config entry. Returns ErrNotFound for unknown keys.
	Get(ctx context.Context, key string) (*domain.TrustConfigEntry, error)

	// Set upserts a key/value pair.
	Set(ctx context.Context, e *domain.TrustConfigEntry) error

	// List returns all entries ordered by key.
	List(ctx context.Context) ([]domain.TrustConfigEntry, error)
}
