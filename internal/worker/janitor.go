package worker

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sitetrust/scoring-engine/internal/domain"
	"github.com/sitetrust/scoring-engine/internal/store"
)

const (
	// expiredCacheGrace is how long an expired domain-cache entry is kept
	// before deletion, so the scorer can still surface it as
	// cache_status=expired.
	expiredCacheGrace = 24 * time.Hour

	// staleStatsAge is the idle window after which a URL stats row is
	// swept.
	staleStatsAge = 30 * 24 * time.Hour
)

// Janitor enforces the retention windows: processed ratings, long-expired
// domain-cache entries, and idle URL stats. Each sweep runs independently;
// one failing sweep does not abort the rest.
type Janitor struct {
	ratings store.RatingStore
	stats   store.URLStatsStore
	cache   store.DomainCacheStore
}

// NewJanitor creates the retention job.
func NewJanitor(ratings store.RatingStore, stats store.URLStatsStore, cache store.DomainCacheStore) *Janitor {
	return &Janitor{ratings: ratings, stats: stats, cache: cache}
}

// Name identifies the job in scheduler logs and metrics.
func (j *Janitor) Name() string { return "janitor" }

// RunOnce runs all retention sweeps and reports what was removed.
func (j *Janitor) RunOnce(ctx context.Context) (string, error) {
	start := time.Now()
	var parts []string
	var failures []string

	if n, err := j.ratings.DeleteProcessedOlderThan(ctx, domain.RatingRetentionDays); err != nil {
		log.Printf("[Janitor] rating sweep failed: %v", err)
		failures = append(failures, "ratings")
	} else {
		parts = append(parts, fmt.Sprintf("%d ratings", n))
	}

	if n, err := j.cache.DeleteExpiredBefore(ctx, time.Now().Add(-expiredCacheGrace)); err != nil {
		log.Printf("[Janitor] domain cache sweep failed: %v", err)
		failures = append(failures, "domain cache")
	} else {
		parts = append(parts, fmt.Sprintf("%d cache entries", n))
	}

	if n, err := j.stats.DeleteIdle(ctx, time.Now().Add(-staleStatsAge)); err != nil {
		log.Printf("[Janitor] stale stats sweep failed: %v", err)
		failures = append(failures, "url stats")
	} else {
		parts = append(parts, fmt.Sprintf("%d stale stats", n))
	}

	result := fmt.Sprintf("removed %s in %s",
		strings.Join(parts, ", "), time.Since(start).Round(time.Millisecond))
	if len(failures) > 0 {
		return result, fmt.Errorf("sweeps failed: %s", strings.Join(failures, ", "))
	}
	return result, nil
}
