package worker

import (
	"context"
	"strings"
	"testing"
)

func TestJanitorReportsAllSweeps(t *testing.T) {
	ratings := &fakeRatings{deleted: 12}
	stats := &fakeStats{deleted: 3}
	cache := &fakeCache{deleted: 7}
	j := NewJanitor(ratings, stats, cache)

	summary, err := j.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}
	for _, want := range []string{"12 ratings", "7 cache entries", "3 stale stats"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary = %q, missing %q", summary, want)
		}
	}
}

func TestJanitorFailedSweepDoesNotAbortOthers(t *testing.T) {
	ratings := &fakeRatings{deleteErr: errStoreDown}
	stats := &fakeStats{deleted: 5}
	cache := &fakeCache{deleted: 2}
	j := NewJanitor(ratings, stats, cache)

	summary, err := j.RunOnce(context.Background())
	if err == nil {
		t.Fatal("RunOnce() = nil error, want sweep failure")
	}
	if !strings.Contains(err.Error(), "ratings") {
		t.Errorf("error = %v, want the ratings sweep named", err)
	}
	// The other sweeps still ran and report their counts.
	if !strings.Contains(summary, "2 cache entries") || !strings.Contains(summary, "5 stale stats") {
		t.Errorf("summary = %q, want surviving sweep counts", summary)
	}
}

func TestJanitorAllSweepsFail(t *testing.T) {
	j := NewJanitor(
		&fakeRatings{deleteErr: errStoreDown},
		&fakeStats{deleteErr: errStoreDown},
		&fakeCache{deleteErr: errStoreDown},
	)

	_, err := j.RunOnce(context.Background())
	if err == nil {
		t.Fatal("RunOnce() = nil error, want failure")
	}
	for _, want := range []string{"ratings", "domain cache", "url stats"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error = %v, missing %q", err, want)
		}
	}
}
