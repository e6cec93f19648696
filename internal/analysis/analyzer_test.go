package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sitetrust/scoring-engine/internal/domain"
	"github.com/sitetrust/scoring-engine/internal/store"
)

// fakeCache is an in-memory DomainCacheStore.
type fakeCache struct {
	entries map[string]*domain.DomainCacheEntry
	upserts int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*domain.DomainCacheEntry)}
}

func (f *fakeCache) Check(_ context.Context, dom string) (domain.CacheCheck, error) {
	e, ok := f.entries[dom]
	if !ok {
		return domain.CacheCheck{}, nil
	}
	return domain.CacheCheck{Exists: true, Valid: e.ValidAt(time.Now())}, nil
}

func (f *fakeCache) Get(_ context.Context, dom string) (*domain.DomainCacheEntry, error) {
	e, ok := f.entries[dom]
	if !ok {
		return nil, store.ErrNotFound
	}
	return e, nil
}

func (f *fakeCache) UpsertSafe(_ context.Context, e *domain.DomainCacheEntry) error {
	now := time.Now().UTC()
	e.LastChecked = now
	e.CacheExpiresAt = now.Add(domain.DomainCacheTTL)
	f.entries[e.Domain] = e
	f.upserts++
	return nil
}

func (f *fakeCache) ListNearExpiry(_ context.Context, _ time.Duration, _ int) ([]string, error) {
	return nil, nil
}

func (f *fakeCache) DeleteExpiredBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeCache) Stats(_ context.Context) (domain.DomainCacheStats, error) {
	return domain.DomainCacheStats{Total: len(f.entries)}, nil
}

type fakeWhois struct {
	days int
	err  error
}

func (f *fakeWhois) AgeDays(context.Context, string) (int, []byte, error) {
	return f.days, []byte(`{"WhoisRecord":{}}`), f.err
}

type fakeProber struct {
	status   int
	sslValid bool
	err      error
}

func (f *fakeProber) ProbeHTTP(context.Context, string) (int, error) { return f.status, f.err }
func (f *fakeProber) CheckSSL(context.Context, string) (bool, error) { return f.sslValid, f.err }

type fakeSB struct {
	status domain.SafeBrowsingStatus
	err    error
}

func (f *fakeSB) Check(context.Context, string) (domain.SafeBrowsingStatus, error) {
	return f.status, f.err
}

type fakeHybrid struct {
	status domain.HybridAnalysisStatus
	score  float64
	err    error
}

func (f *fakeHybrid) Check(context.Context, string) (domain.HybridAnalysisStatus, float64, error) {
	return f.status, f.score, f.err
}

func TestAnalyzeCollectsAllSignals(t *testing.T) {
	cache := newFakeCache()
	a := NewAnalyzer(cache,
		&fakeWhois{days: 2000},
		&fakeProber{status: 200, sslValid: true},
		&fakeSB{status: domain.SafeBrowsingClean},
		&fakeHybrid{status: domain.HybridClean, score: 10},
		time.Second, 0)

	entry, err := a.Analyze(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if entry.AgeDays == nil || *entry.AgeDays != 2000 {
		t.Errorf("AgeDays = %v, want 2000", entry.AgeDays)
	}
	if entry.SSLValid == nil || !*entry.SSLValid {
		t.Errorf("SSLValid = %v, want true", entry.SSLValid)
	}
	if entry.HTTPStatus == nil || *entry.HTTPStatus != 200 {
		t.Errorf("HTTPStatus = %v, want 200", entry.HTTPStatus)
	}
	if entry.SafeBrowsing == nil || *entry.SafeBrowsing != domain.SafeBrowsingClean {
		t.Errorf("SafeBrowsing = %v", entry.SafeBrowsing)
	}
	if entry.HybridAnalysis == nil || *entry.HybridAnalysis != domain.HybridClean {
		t.Errorf("HybridAnalysis = %v", entry.HybridAnalysis)
	}
	if cache.upserts != 1 {
		t.Errorf("upserts = %d, want 1", cache.upserts)
	}
}

func TestAnalyzeRefreshSetsFullTTL(t *testing.T) {
	cache := newFakeCache()
	a := NewAnalyzer(cache, &fakeWhois{days: 10}, nil, nil, nil, time.Second, 0)

	entry, err := a.Analyze(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	ttl := entry.CacheExpiresAt.Sub(entry.LastChecked)
	if ttl != domain.DomainCacheTTL {
		t.Errorf("TTL = %s, want %s", ttl, domain.DomainCacheTTL)
	}
}

func TestAnalyzePartialFailureKeepsNullSignals(t *testing.T) {
	cache := newFakeCache()
	a := NewAnalyzer(cache,
		&fakeWhois{err: errors.New("timeout")},
		&fakeProber{status: 200, sslValid: true},
		&fakeSB{err: errors.New("quota")},
		nil,
		time.Second, 0)

	entry, err := a.Analyze(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if entry.AgeDays != nil {
		t.Errorf("AgeDays = %v, want nil after whois failure", entry.AgeDays)
	}
	if entry.SafeBrowsing != nil {
		t.Errorf("SafeBrowsing = %v, want nil after source failure", entry.SafeBrowsing)
	}
	if entry.HTTPStatus == nil || *entry.HTTPStatus != 200 {
		t.Errorf("HTTPStatus = %v, want 200 from surviving source", entry.HTTPStatus)
	}
	if cache.upserts != 1 {
		t.Errorf("upserts = %d, want 1 (partial success still persists)", cache.upserts)
	}
}

func TestAnalyzeTotalFailureWithoutPriorEntry(t *testing.T) {
	cache := newFakeCache()
	a := NewAnalyzer(cache, &fakeWhois{err: errors.New("down")}, nil, nil, nil, time.Second, 0)

	_, err := a.Analyze(context.Background(), "example.com")
	if !errors.Is(err, ErrAllSourcesFailed) {
		t.Fatalf("Analyze() error = %v, want ErrAllSourcesFailed", err)
	}
	if cache.upserts != 0 {
		t.Errorf("upserts = %d, want 0", cache.upserts)
	}
}

func TestAnalyzeTotalFailureRetainsPriorEntry(t *testing.T) {
	cache := newFakeCache()
	prior := &domain.DomainCacheEntry{
		Domain:         "example.com",
		LastChecked:    time.Now().Add(-48 * time.Hour),
		CacheExpiresAt: time.Now().Add(24 * time.Hour),
	}
	cache.entries["example.com"] = prior

	a := NewAnalyzer(cache, &fakeWhois{err: errors.New("down")}, nil, nil, nil, time.Second, 0)

	entry, err := a.Analyze(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if !entry.CacheExpiresAt.Equal(prior.CacheExpiresAt) {
		t.Errorf("prior expiry must stay unchanged, got %v", entry.CacheExpiresAt)
	}
	if cache.upserts != 0 {
		t.Errorf("upserts = %d, want 0 when retaining the prior entry", cache.upserts)
	}
}

func TestAnalyzeWithQuota(t *testing.T) {
	cache := newFakeCache()
	a := NewAnalyzer(cache, &fakeWhois{days: 10}, nil, nil, nil, time.Second, 2)

	for i := 0; i < 2; i++ {
		if _, err := a.AnalyzeWithQuota(context.Background(), "example.com"); err != nil {
			t.Fatalf("AnalyzeWithQuota() #%d error: %v", i+1, err)
		}
	}
	_, err := a.AnalyzeWithQuota(context.Background(), "example.com")
	if !errors.Is(err, ErrQuotaExhausted) {
		t.Errorf("third call error = %v, want ErrQuotaExhausted", err)
	}
}

func TestTriggerBestEffortEmptyDomain(t *testing.T) {
	a := NewAnalyzer(newFakeCache(), nil, nil, nil, nil, time.Second, 0)
	if a.TriggerBestEffort("") {
		t.Error("TriggerBestEffort(\"\") should not start a run")
	}
}
