package worker

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/sitetrust/scoring-engine/internal/domain"
	"github.com/sitetrust/scoring-engine/internal/scoring"
	"github.com/sitetrust/scoring-engine/internal/store"
)

// In-memory store fakes shared by the worker tests; only the methods the
// jobs touch do real work.

type fakeRatings struct {
	unprocessed []string
	urls        map[string][2]string // fp -> {url, domain}
	aggs        map[string]domain.RatingAggregates
	processed   []string
	deleted     int64
	deleteErr   error
	learnable   []domain.DomainRatingSummary
	samples     map[string][]string
	markErr     error
}

func (f *fakeRatings) Append(context.Context, *domain.Rating) error { return nil }
func (f *fakeRatings) ListUnprocessedFingerprints(_ context.Context, limit int) ([]string, error) {
	if limit > 0 && len(f.unprocessed) > limit {
		return f.unprocessed[:limit], nil
	}
	return f.unprocessed, nil
}
func (f *fakeRatings) Aggregates(_ context.Context, fp string) (domain.RatingAggregates, error) {
	return f.aggs[fp], nil
}
func (f *fakeRatings) URLForFingerprint(_ context.Context, fp string) (string, string, error) {
	pair, ok := f.urls[fp]
	if !ok {
		return "", "", store.ErrNotFound
	}
	return pair[0], pair[1], nil
}
func (f *fakeRatings) MarkProcessed(_ context.Context, fps []string) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.processed = append(f.processed, fps...)
	return nil
}
func (f *fakeRatings) DeleteProcessedOlderThan(context.Context, int) (int64, error) {
	return f.deleted, f.deleteErr
}
func (f *fakeRatings) LearnableDomains(_ context.Context, minRatings, limit int) ([]domain.DomainRatingSummary, error) {
	out := make([]domain.DomainRatingSummary, 0, len(f.learnable))
	for _, c := range f.learnable {
		if c.RatingCount >= minRatings {
			out = append(out, c)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
func (f *fakeRatings) SampleURLs(_ context.Context, dom string, _ int) ([]string, error) {
	return f.samples[dom], nil
}

type fakeStats struct {
	rows      map[string]*domain.URLStats
	upsertErr error
	deleted   int64
	deleteErr error
}

func (f *fakeStats) Get(_ context.Context, fp string) (*domain.URLStats, error) {
	if s, ok := f.rows[fp]; ok {
		return s, nil
	}
	return nil, store.ErrNotFound
}
func (f *fakeStats) Upsert(_ context.Context, s *domain.URLStats) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if f.rows == nil {
		f.rows = make(map[string]*domain.URLStats)
	}
	f.rows[s.Fingerprint] = s
	return nil
}
func (f *fakeStats) DeleteIdle(context.Context, time.Time) (int64, error) {
	return f.deleted, f.deleteErr
}

type fakeCache struct {
	entries    map[string]*domain.DomainCacheEntry
	nearExpiry []string
	deleted    int64
	deleteErr  error
}

func (f *fakeCache) Check(_ context.Context, dom string) (domain.CacheCheck, error) {
	e, ok := f.entries[dom]
	if !ok {
		return domain.CacheCheck{}, nil
	}
	return domain.CacheCheck{Exists: true, Valid: e.ValidAt(time.Now())}, nil
}
func (f *fakeCache) Get(_ context.Context, dom string) (*domain.DomainCacheEntry, error) {
	if e, ok := f.entries[dom]; ok {
		return e, nil
	}
	return nil, store.ErrNotFound
}
func (f *fakeCache) UpsertSafe(_ context.Context, e *domain.DomainCacheEntry) error {
	if f.entries == nil {
		f.entries = make(map[string]*domain.DomainCacheEntry)
	}
	e.LastChecked = time.Now().UTC()
	e.CacheExpiresAt = e.LastChecked.Add(domain.DomainCacheTTL)
	f.entries[e.Domain] = e
	return nil
}
func (f *fakeCache) ListNearExpiry(context.Context, time.Duration, int) ([]string, error) {
	return f.nearExpiry, nil
}
func (f *fakeCache) DeleteExpiredBefore(context.Context, time.Time) (int64, error) {
	return f.deleted, f.deleteErr
}
func (f *fakeCache) Stats(context.Context) (domain.DomainCacheStats, error) {
	return domain.DomainCacheStats{}, nil
}

type fakeRules struct {
	verdicts  map[string]domain.BlacklistVerdict
	rules     map[string][]domain.ContentTypeRule
	blacklist []*domain.BlacklistEntry
	inserted  []*domain.ContentTypeRule
	insertErr error
}

func (f *fakeRules) CheckBlacklist(_ context.Context, dom string) (domain.BlacklistVerdict, error) {
	return f.verdicts[dom], nil
}
func (f *fakeRules) InsertBlacklistEntry(_ context.Context, e *domain.BlacklistEntry) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	// Idempotent on (pattern, type), like the real store.
	for _, have := range f.blacklist {
		if have.Pattern == e.Pattern && have.Type == e.Type {
			return nil
		}
	}
	f.blacklist = append(f.blacklist, e)
	return nil
}
func (f *fakeRules) ActiveRules(_ context.Context, dom string) ([]domain.ContentTypeRule, error) {
	return f.rules[dom], nil
}
func (f *fakeRules) HasActiveRule(_ context.Context, dom string) (bool, error) {
	return len(f.rules[dom]) > 0, nil
}
func (f *fakeRules) InsertRule(_ context.Context, r *domain.ContentTypeRule) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, r)
	return nil
}
func (f *fakeRules) DeactivateRule(context.Context, int64) error { return nil }

var errStoreDown = errors.New("store down")

func newTestEngine(ratings *fakeRatings, stats *fakeStats, cache *fakeCache, rules *fakeRules) *scoring.Engine {
	if stats.rows == nil {
		stats.rows = make(map[string]*domain.URLStats)
	}
	if cache.entries == nil {
		cache.entries = make(map[string]*domain.DomainCacheEntry)
	}
	if rules.verdicts == nil {
		rules.verdicts = make(map[string]domain.BlacklistVerdict)
	}
	if rules.rules == nil {
		rules.rules = make(map[string][]domain.ContentTypeRule)
	}
	return scoring.NewEngine(ratings, stats, cache, rules)
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
