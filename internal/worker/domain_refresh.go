package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/sitetrust/scoring-engine/internal/analysis"
	"github.com/sitetrust/scoring-engine/internal/store"
)

// refreshWindow is how far ahead of expiry an entry becomes eligible for
// the nightly refresh.
const refreshWindow = 24 * time.Hour

// DomainRefresh re-analyses domains whose cache entries are expired or
// about to expire, spending the analyser's daily external-API quota on the
// most urgent entries first.
type DomainRefresh struct {
	cache    store.DomainCacheStore
	analyzer *analysis.Analyzer
	batch    int

	totalRefreshed int64
}

// NewDomainRefresh creates the nightly refresh job. batch caps one run;
// it should match the analyser's daily quota.
func NewDomainRefresh(cache store.DomainCacheStore, analyzer *analysis.Analyzer, batch int) *DomainRefresh {
	if batch <= 0 {
		batch = 20
	}
	return &DomainRefresh{cache: cache, analyzer: analyzer, batch: batch}
}

// Name identifies the job in scheduler logs and metrics.
func (d *DomainRefresh) Name() string { return "domain-refresh" }

// RunOnce refreshes up to the batch size of near-expiry domains. An
// exhausted quota ends the run early without error; per-domain analysis
// failures are logged and skipped.
func (d *DomainRefresh) RunOnce(ctx context.Context) (string, error) {
	start := time.Now()

	domains, err := d.cache.ListNearExpiry(ctx, refreshWindow, d.batch)
	if err != nil {
		return "", fmt.Errorf("list near-expiry domains: %w", err)
	}
	if len(domains) == 0 {
		return "no domains near expiry", nil
	}

	refreshed := 0
	for _, dom := range domains {
		if ctx.Err() != nil {
			break
		}
		if _, err := d.analyzer.AnalyzeWithQuota(ctx, dom); err != nil {
			if errors.Is(err, analysis.ErrQuotaExhausted) {
				log.Printf("[DomainRefresh] quota exhausted after %d refreshes", refreshed)
				break
			}
			log.Printf("[DomainRefresh] analysis failed for %s: %v", dom, err)
			continue
		}
		refreshed++
	}

	atomic.AddInt64(&d.totalRefreshed, int64(refreshed))
	return fmt.Sprintf("refreshed %d/%d domains in %s",
		refreshed, len(domains), time.Since(start).Round(time.Millisecond)), nil
}

// Stats returns lifetime refresh counters.
func (d *DomainRefresh) Stats() map[string]int64 {
	return map[string]int64{
		"total_refreshed": atomic.LoadInt64(&d.totalRefreshed),
	}
}
