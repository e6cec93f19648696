package worker

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/sitetrust/scoring-engine/internal/config"
	"github.com/sitetrust/scoring-engine/internal/domain"
	"github.com/sitetrust/scoring-engine/internal/pkg/httpretry"
	"github.com/sitetrust/scoring-engine/internal/store"
	"github.com/sitetrust/scoring-engine/internal/urlkey"
)

// FeedPoller ingests threat feeds (URLhaus-style RSS) into the blacklist.
// Each feed contributes entries with the severity and type it is
// configured with; inserts are idempotent so re-polling the same feed is
// harmless.
type FeedPoller struct {
	rules  store.RuleStore
	feeds  []config.FeedConfig
	client httpretry.HTTPDoer
	parser *gofeed.Parser

	totalPolls   int64
	totalInserts int64
	totalErrors  int64
}

// NewFeedPoller creates the feed ingestion job. A nil client gets the
// default retrying HTTP client.
func NewFeedPoller(rules store.RuleStore, feeds []config.FeedConfig, client httpretry.HTTPDoer) *FeedPoller {
	if client == nil {
		client = httpretry.NewRetryClient(nil, 3)
	}
	return &FeedPoller{
		rules:  rules,
		feeds:  feeds,
		client: client,
		parser: gofeed.NewParser(),
	}
}

// Name identifies the job in scheduler logs and metrics.
func (p *FeedPoller) Name() string { return "feed-poller" }

// RunOnce polls every configured feed. A failing feed is logged and
// skipped; the rest still run.
func (p *FeedPoller) RunOnce(ctx context.Context) (string, error) {
	start := time.Now()
	atomic.AddInt64(&p.totalPolls, 1)

	if len(p.feeds) == 0 {
		return "no feeds configured", nil
	}

	inserted := 0
	failed := 0
	for _, feed := range p.feeds {
		n, err := p.pollFeed(ctx, feed)
		if err != nil {
			log.Printf("[FeedPoller] feed %s failed: %v", feed.URL, err)
			atomic.AddInt64(&p.totalErrors, 1)
			failed++
			continue
		}
		inserted += n
	}

	atomic.AddInt64(&p.totalInserts, int64(inserted))
	return fmt.Sprintf("ingested %d blacklist entries from %d feeds (%d failed) in %s",
		inserted, len(p.feeds), failed, time.Since(start).Round(time.Millisecond)), nil
}

// pollFeed fetches and parses one feed, extracting the registrable domain
// of every item link.
func (p *FeedPoller) pollFeed(ctx context.Context, feed config.FeedConfig) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch feed: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return 0, fmt.Errorf("read feed: %w", err)
	}

	parsed, err := p.parser.ParseString(string(body))
	if err != nil {
		return 0, fmt.Errorf("parse feed: %w", err)
	}

	severity := feed.Severity
	if severity < domain.MinSeverity || severity > domain.MaxSeverity {
		severity = 5
	}
	blType := feed.BlacklistType
	if blType == "" {
		blType = "malware"
	}

	inserted := 0
	for _, item := range parsed.Items {
		dom, err := p.itemDomain(item)
		if err != nil || dom == "" {
			continue
		}
		entry := &domain.BlacklistEntry{
			Pattern:     dom,
			Type:        blType,
			Severity:    severity,
			Description: fmt.Sprintf("threat feed: %s", parsed.Title),
			Active:      true,
		}
		if err := p.rules.InsertBlacklistEntry(ctx, entry); err != nil {
			log.Printf("[FeedPoller] insert failed for %s: %v", dom, err)
			continue
		}
		inserted++
	}
	return inserted, nil
}

// Stats returns lifetime poller counters.
func (p *FeedPoller) Stats() map[string]int64 {
	return map[string]int64{
		"total_polls":   atomic.LoadInt64(&p.totalPolls),
		"total_inserts": atomic.LoadInt64(&p.totalInserts),
		"total_errors":  atomic.LoadInt64(&p.totalErrors),
	}
}

// itemDomain extracts the registrable domain a feed item points at. Items
// usually carry the malicious URL in the link; the title is the fallback
// feeds like URLhaus use for bare hosts.
func (p *FeedPoller) itemDomain(item *gofeed.Item) (string, error) {
	if item.Link != "" {
		if dom, err := urlkey.RegistrableDomain(item.Link); err == nil {
			return dom, nil
		}
	}
	if item.Title != "" {
		if dom, err := urlkey.RegistrableDomain("http://" + item.Title); err == nil {
			return dom, nil
		}
	}
	return "", fmt.Errorf("no usable link in feed item")
}
