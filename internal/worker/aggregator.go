// Package worker implements the background jobs of the trust scoring
// engine: rating aggregation, domain-cache refresh, content-type rule
// learning, threat-feed polling, and retention cleanup. Each job exposes
// RunOnce so the scheduler (and the admin API) can drive it; jobs never
// schedule themselves.
package worker

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/sitetrust/scoring-engine/internal/scoring"
	"github.com/sitetrust/scoring-engine/internal/store"
)

// Aggregator consumes unprocessed ratings, re-scores their URLs, and
// marks the ratings processed. Ratings submitted before a tick are
// reflected in the stats that tick produces; failures leave their
// fingerprints unprocessed for the next tick.
type Aggregator struct {
	ratings store.RatingStore
	engine  *scoring.Engine
	softCap int

	totalTicks        int64
	totalFingerprints int64
	totalFailures     int64
}

// NewAggregator creates the aggregation job. softCap bounds the number of
// fingerprints one tick processes; overflow defers to the next tick.
func NewAggregator(ratings store.RatingStore, engine *scoring.Engine, softCap int) *Aggregator {
	if softCap <= 0 {
		softCap = 200
	}
	return &Aggregator{ratings: ratings, engine: engine, softCap: softCap}
}

// Name identifies the job in scheduler logs and metrics.
func (a *Aggregator) Name() string { return "aggregator" }

// RunOnce processes one batch of unprocessed fingerprints. Only the
// fingerprints whose stats were successfully written are marked processed,
// so a failed URL is retried next tick rather than silently dropped.
func (a *Aggregator) RunOnce(ctx context.Context) (string, error) {
	start := time.Now()
	atomic.AddInt64(&a.totalTicks, 1)

	fps, err := a.ratings.ListUnprocessedFingerprints(ctx, a.softCap)
	if err != nil {
		return "", fmt.Errorf("list unprocessed: %w", err)
	}
	if len(fps) == 0 {
		return "no pending ratings", nil
	}

	done := make([]string, 0, len(fps))
	failed := 0
	for _, fp := range fps {
		if ctx.Err() != nil {
			break
		}
		url, dom, err := a.ratings.URLForFingerprint(ctx, fp)
		if err != nil {
			log.Printf("[Aggregator] no URL for fingerprint %s: %v", fp, err)
			failed++
			continue
		}
		if _, err := a.engine.Refresh(ctx, url, fp, dom); err != nil {
			log.Printf("[Aggregator] refresh failed for %s: %v", fp, err)
			failed++
			continue
		}
		done = append(done, fp)
	}

	if len(done) > 0 {
		if err := a.ratings.MarkProcessed(ctx, done); err != nil {
			// Leave everything unprocessed; the next tick re-runs the
			// same fingerprints and the upsert is idempotent.
			return "", fmt.Errorf("mark processed: %w", err)
		}
	}

	atomic.AddInt64(&a.totalFingerprints, int64(len(done)))
	atomic.AddInt64(&a.totalFailures, int64(failed))

	return fmt.Sprintf("aggregated %d fingerprints (%d failed) in %s",
		len(done), failed, time.Since(start).Round(time.Millisecond)), nil
}

// Stats returns lifetime aggregation counters.
func (a *Aggregator) Stats() map[string]int64 {
	return map[string]int64{
		"total_ticks":        atomic.LoadInt64(&a.totalTicks),
		"total_fingerprints": atomic.LoadInt64(&a.totalFingerprints),
		"total_failures":     atomic.LoadInt64(&a.totalFailures),
	}
}
