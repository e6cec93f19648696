// Package analysis populates the domain cache from external reputation
// signals: WHOIS age, TLS validity, HTTP reachability, and the Google Safe
// Browsing and Hybrid Analysis verdicts.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/sitetrust/scoring-engine/internal/domain"
	"github.com/sitetrust/scoring-engine/internal/store"
)

// ErrAllSourcesFailed is returned when no source produced a signal and the
// domain has no prior cache entry to fall back on.
var ErrAllSourcesFailed = errors.New("analysis: all signal sources failed")

// ErrQuotaExhausted is returned when the daily external-API budget is used
// up; callers treat it as "try again tomorrow".
var ErrQuotaExhausted = errors.New("analysis: daily quota exhausted")

// Analyzer collects signals for a domain and writes the cache entry.
// Concurrent analyses of the same domain are coalesced into one flight.
type Analyzer struct {
	cache   store.DomainCacheStore
	whois   WhoisClient
	prober  Prober
	sb      SafeBrowsingClient
	hybrid  HybridAnalysisClient
	timeout time.Duration

	flight singleflight.Group
	quota  dailyQuota

	totalAnalyses int64
	totalFailures int64
}

// NewAnalyzer wires the analyzer to its cache store and signal sources.
// Any source may be nil; its signal then stays null for every domain.
func NewAnalyzer(cache store.DomainCacheStore, whois WhoisClient, prober Prober,
	sb SafeBrowsingClient, hybrid HybridAnalysisClient, timeout time.Duration, dailyQuotaLimit int) *Analyzer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Analyzer{
		cache:   cache,
		whois:   whois,
		prober:  prober,
		sb:      sb,
		hybrid:  hybrid,
		timeout: timeout,
		quota:   dailyQuota{limit: dailyQuotaLimit},
	}
}

// Analyze collects every signal for the domain in parallel, each source
// under its own deadline, and upserts the resulting cache entry. A failed
// source contributes a null signal; the analysis as a whole fails only when
// every source failed and no prior entry exists, in which case the prior
// state (nothing) is preserved.
func (a *Analyzer) Analyze(ctx context.Context, dom string) (*domain.DomainCacheEntry, error) {
	v, err, _ := a.flight.Do(dom, func() (interface{}, error) {
		return a.analyze(ctx, dom)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.DomainCacheEntry), nil
}

func (a *Analyzer) analyze(ctx context.Context, dom string) (*domain.DomainCacheEntry, error) {
	atomic.AddInt64(&a.totalAnalyses, 1)
	start := time.Now()

	entry := &domain.DomainCacheEntry{Domain: dom}
	var mu sync.Mutex
	failures := 0
	sources := 0

	g, gctx := errgroup.WithContext(ctx)

	collect := func(name string, fn func(context.Context) error) {
		sources++
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, a.timeout)
			defer cancel()
			if err := fn(cctx); err != nil {
				log.Printf("[Analyzer] %s failed for %s: %v", name, dom, err)
				mu.Lock()
				failures++
				mu.Unlock()
			}
			// Source failures never abort the group; the signal just
			// stays null.
			return nil
		})
	}

	if a.whois != nil {
		collect("whois", func(cctx context.Context) error {
			days, raw, err := a.whois.AgeDays(cctx, dom)
			if err != nil {
				return err
			}
			mu.Lock()
			entry.AgeDays = &days
			entry.WhoisData = raw
			mu.Unlock()
			return nil
		})
	}
	if a.prober != nil {
		collect("http probe", func(cctx context.Context) error {
			status, err := a.prober.ProbeHTTP(cctx, dom)
			if err != nil {
				return err
			}
			mu.Lock()
			entry.HTTPStatus = &status
			mu.Unlock()
			return nil
		})
		collect("ssl check", func(cctx context.Context) error {
			valid, err := a.prober.CheckSSL(cctx, dom)
			if err != nil {
				return err
			}
			mu.Lock()
			entry.SSLValid = &valid
			mu.Unlock()
			return nil
		})
	}
	if a.sb != nil {
		collect("safe browsing", func(cctx context.Context) error {
			status, err := a.sb.Check(cctx, dom)
			if err != nil {
				return err
			}
			mu.Lock()
			entry.SafeBrowsing = &status
			mu.Unlock()
			return nil
		})
	}
	if a.hybrid != nil {
		collect("hybrid analysis", func(cctx context.Context) error {
			status, score, err := a.hybrid.Check(cctx, dom)
			if err != nil {
				return err
			}
			mu.Lock()
			entry.HybridAnalysis = &status
			entry.ThreatScore = &score
			mu.Unlock()
			return nil
		})
	}

	g.Wait()

	if sources > 0 && failures == sources {
		atomic.AddInt64(&a.totalFailures, 1)
		prior, err := a.cache.Get(ctx, dom)
		if err == nil {
			// Keep the prior entry untouched; its expiry keeps ticking
			// so the refresh batch picks the domain up again.
			return prior, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrAllSourcesFailed, dom)
	}

	if err := a.cache.UpsertSafe(ctx, entry); err != nil {
		return nil, fmt.Errorf("store analysis for %s: %w", dom, err)
	}

	log.Printf("[Analyzer] analysed %s in %s (failed sources: %d/%d)",
		dom, time.Since(start).Round(time.Millisecond), failures, sources)
	return entry, nil
}

// AnalyzeWithQuota runs Analyze only when the daily external-API budget
// allows another pass. The nightly refresh batch goes through here.
func (a *Analyzer) AnalyzeWithQuota(ctx context.Context, dom string) (*domain.DomainCacheEntry, error) {
	if !a.quota.allow() {
		return nil, ErrQuotaExhausted
	}
	return a.Analyze(ctx, dom)
}

// TriggerBestEffort fires an asynchronous analysis of the domain, bounded
// by the source timeout. Failures are logged and swallowed; the caller's
// request proceeds regardless. Returns whether a run was started.
func (a *Analyzer) TriggerBestEffort(dom string) bool {
	if dom == "" {
		return false
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if _, err := a.Analyze(ctx, dom); err != nil {
			log.Printf("[Analyzer] best-effort analysis of %s failed: %v", dom, err)
		}
	}()
	return true
}

// Stats returns lifetime analysis counters.
func (a *Analyzer) Stats() map[string]int64 {
	return map[string]int64{
		"total_analyses": atomic.LoadInt64(&a.totalAnalyses),
		"total_failures": atomic.LoadInt64(&a.totalFailures),
		"quota_used":     int64(a.quota.used()),
	}
}

// dailyQuota counts external-API spend per UTC day.
type dailyQuota struct {
	mu    sync.Mutex
	limit int
	day   string
	spent int
}

func (q *dailyQuota) allow() bool {
	if q.limit <= 0 {
		return true
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	today := time.Now().UTC().Format("2006-01-02")
	if q.day != today {
		q.day = today
		q.spent = 0
	}
	if q.spent >= q.limit {
		return false
	}
	q.spent++
	return true
}

func (q *dailyQuota) used() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.spent
}
