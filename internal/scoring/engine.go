package scoring

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sitetrust/scoring-engine/internal/domain"
	"github.com/sitetrust/scoring-engine/internal/store"
)

// Engine gathers score inputs from the stores, runs Compute, and writes
// refreshed URL stats. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	ratings store.RatingStore
	stats   store.URLStatsStore
	cache   store.DomainCacheStore
	rules   store.RuleStore
}

// NewEngine wires the engine to its stores.
func NewEngine(ratings store.RatingStore, stats store.URLStatsStore, cache store.DomainCacheStore, rules store.RuleStore) *Engine {
	return &Engine{ratings: ratings, stats: stats, cache: cache, rules: rules}
}

// Snapshot is one fully-gathered and computed scoring pass.
type Snapshot struct {
	Inputs      Inputs
	Result      Result
	CacheStatus domain.CacheStatus
}

// Score gathers the current inputs for a URL and computes its scores
// without writing anything. Missing cache entries, blacklist rows, or rules
// degrade to neutral inputs; only a rating store failure aborts.
func (e *Engine) Score(ctx context.Context, url, fingerprint, dom string) (*Snapshot, error) {
	agg, err := e.ratings.Aggregates(ctx, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("gather aggregates: %w", err)
	}

	in := Inputs{
		URL:         url,
		Fingerprint: fingerprint,
		Aggregates:  agg,
	}
	cacheStatus := domain.CacheMissing

	if dom != "" {
		entry, err := e.cache.Get(ctx, dom)
		switch {
		case err == nil:
			in.Cache = entry
			in.CacheValid = entry.ValidAt(time.Now())
			if in.CacheValid {
				cacheStatus = domain.CacheValid
			} else {
				cacheStatus = domain.CacheExpired
			}
		case errors.Is(err, store.ErrNotFound):
			// No entry yet; the analyser fills it later.
		default:
			log.Printf("[scoring.Engine] domain cache read failed for %s: %v", dom, err)
		}

		verdict, err := e.rules.CheckBlacklist(ctx, dom)
		if err != nil {
			log.Printf("[scoring.Engine] blacklist check failed for %s: %v", dom, err)
		} else {
			in.Blacklist = verdict
		}

		rules, err := e.rules.ActiveRules(ctx, dom)
		if err != nil {
			log.Printf("[scoring.Engine] rule lookup failed for %s: %v", dom, err)
		}
		in.ContentType = MatchContentType(rules, url)
		in.Modifier = ModifierFor(rules, in.ContentType)
	} else {
		in.ContentType = domain.ContentTypeGeneral
	}

	return &Snapshot{
		Inputs:      in,
		Result:      Compute(in),
		CacheStatus: cacheStatus,
	}, nil
}

// Refresh recomputes a URL's stats from the rating log and persists them.
// This is the single write path shared by the aggregator and the
// synchronous submit flow.
func (e *Engine) Refresh(ctx context.Context, url, fingerprint, dom string) (*domain.URLStats, error) {
	snap, err := e.Score(ctx, url, fingerprint, dom)
	if err != nil {
		return nil, err
	}

	stats := e.buildStats(url, fingerprint, dom, snap)
	if err := e.stats.Upsert(ctx, stats); err != nil {
		return nil, fmt.Errorf("persist url stats: %w", err)
	}
	return stats, nil
}

func (e *Engine) buildStats(url, fingerprint, dom string, snap *Snapshot) *domain.URLStats {
	status := domain.StatusCommunityOnly
	switch {
	case snap.CacheStatus == domain.CacheValid:
		status = domain.StatusEnhanced
	case dom != "":
		status = domain.StatusCommunityBasicDomain
	}

	agg := snap.Inputs.Aggregates
	return &domain.URLStats{
		Fingerprint:     fingerprint,
		URL:             url,
		Domain:          dom,
		ContentType:     snap.Result.ContentType,
		RatingCount:     agg.RatingCount,
		AvgRating:       agg.AvgRating,
		SpamCount:       agg.SpamCount,
		MisleadingCount: agg.MisleadingCount,
		ScamCount:       agg.ScamCount,
		CommunityScore:  snap.Result.CommunityScore,
		DomainScore:     snap.Result.DomainScore,
		FinalScore:      snap.Result.FinalScore,
		Status:          status,
		DomainAnalyzed:  snap.CacheStatus != domain.CacheMissing,
		LastUpdated:     time.Now().UTC(),
	}
}

// BaselineStats computes a response row for a URL that has never been
// aggregated, without persisting anything. GetStats stays read-only.
func (e *Engine) BaselineStats(ctx context.Context, url, fingerprint, dom string) (*domain.URLStats, domain.CacheStatus, error) {
	snap, err := e.Score(ctx, url, fingerprint, dom)
	if err != nil {
		return nil, domain.CacheMissing, err
	}
	return e.buildStats(url, fingerprint, dom, snap), snap.CacheStatus, nil
}
