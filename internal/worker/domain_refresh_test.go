package worker

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sitetrust/scoring-engine/internal/analysis"
)

// stubWhois is the single signal source the refresh tests drive the
// analyzer with; failures per domain simulate unreachable registrars.
type stubWhois struct {
	age     int
	failFor map[string]bool
	calls   []string
}

func (s *stubWhois) AgeDays(_ context.Context, dom string) (int, []byte, error) {
	s.calls = append(s.calls, dom)
	if s.failFor[dom] {
		return 0, nil, errStoreDown
	}
	return s.age, []byte(`{}`), nil
}

func newRefreshAnalyzer(cache *fakeCache, whois *stubWhois, quota int) *analysis.Analyzer {
	return analysis.NewAnalyzer(cache, whois, nil, nil, nil, time.Second, quota)
}

func TestDomainRefreshAnalyzesNearExpiryDomains(t *testing.T) {
	cache := &fakeCache{nearExpiry: []string{"a.example", "b.example"}}
	whois := &stubWhois{age: 365}
	job := NewDomainRefresh(cache, newRefreshAnalyzer(cache, whois, 0), 20)

	summary, err := job.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}
	if !strings.Contains(summary, "refreshed 2/2") {
		t.Errorf("summary = %q, want 2/2 refreshed", summary)
	}
	for _, dom := range []string{"a.example", "b.example"} {
		entry, ok := cache.entries[dom]
		if !ok {
			t.Fatalf("no cache entry written for %s", dom)
		}
		if entry.AgeDays == nil || *entry.AgeDays != 365 {
			t.Errorf("%s AgeDays = %v, want 365", dom, entry.AgeDays)
		}
	}
}

func TestDomainRefreshStopsOnExhaustedQuota(t *testing.T) {
	cache := &fakeCache{nearExpiry: []string{"a.example", "b.example", "c.example"}}
	whois := &stubWhois{age: 100}
	job := NewDomainRefresh(cache, newRefreshAnalyzer(cache, whois, 2), 20)

	summary, err := job.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}
	if !strings.Contains(summary, "refreshed 2/3") {
		t.Errorf("summary = %q, want 2/3 refreshed", summary)
	}
	if len(whois.calls) != 2 {
		t.Errorf("analyzer ran %d times, want 2", len(whois.calls))
	}
}

func TestDomainRefreshSkipsFailedDomains(t *testing.T) {
	// b.example has no prior entry and its only source fails, so its
	// analysis errors; the job logs and moves on.
	cache := &fakeCache{nearExpiry: []string{"a.example", "b.example", "c.example"}}
	whois := &stubWhois{age: 50, failFor: map[string]bool{"b.example": true}}
	job := NewDomainRefresh(cache, newRefreshAnalyzer(cache, whois, 0), 20)

	summary, err := job.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}
	if !strings.Contains(summary, "refreshed 2/3") {
		t.Errorf("summary = %q, want 2/3 refreshed", summary)
	}
	if _, ok := cache.entries["b.example"]; ok {
		t.Error("failed analysis must not write a cache entry")
	}
}

func TestDomainRefreshNothingNearExpiry(t *testing.T) {
	cache := &fakeCache{}
	job := NewDomainRefresh(cache, newRefreshAnalyzer(cache, &stubWhois{}, 0), 20)

	summary, err := job.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}
	if summary != "no domains near expiry" {
		t.Errorf("summary = %q", summary)
	}
}
