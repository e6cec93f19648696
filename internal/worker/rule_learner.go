package worker

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sitetrust/scoring-engine/internal/domain"
	"github.com/sitetrust/scoring-engine/internal/store"
)

const (
	// learnerMinRatings is how many ratings a domain needs before a rule
	// is generated for it.
	learnerMinRatings = 3

	// learnerDomainsPerRun caps one pass so a backlog cannot starve the
	// other daily jobs.
	learnerDomainsPerRun = 50

	// learnerSampleURLs is how many rated URLs are inspected for path
	// patterns per domain.
	learnerSampleURLs = 5
)

// knownDomainTypes short-circuits content-type detection for domains whose
// type is unambiguous.
var knownDomainTypes = map[string]string{
	"youtube.com":       domain.ContentTypeVideo,
	"vimeo.com":         domain.ContentTypeVideo,
	"twitch.tv":         domain.ContentTypeEntertainment,
	"netflix.com":       domain.ContentTypeEntertainment,
	"spotify.com":       domain.ContentTypeEntertainment,
	"facebook.com":      domain.ContentTypeSocial,
	"instagram.com":     domain.ContentTypeSocial,
	"twitter.com":       domain.ContentTypeSocial,
	"x.com":             domain.ContentTypeSocial,
	"reddit.com":        domain.ContentTypeSocial,
	"tiktok.com":        domain.ContentTypeSocial,
	"github.com":        domain.ContentTypeCode,
	"gitlab.com":        domain.ContentTypeCode,
	"stackoverflow.com": domain.ContentTypeCode,
	"nytimes.com":       domain.ContentTypeNews,
	"bbc.co.uk":         domain.ContentTypeNews,
	"cnn.com":           domain.ContentTypeNews,
	"reuters.com":       domain.ContentTypeNews,
	"theguardian.com":   domain.ContentTypeNews,
	"wikipedia.org":     domain.ContentTypeEducation,
	"coursera.org":      domain.ContentTypeEducation,
	"khanacademy.org":   domain.ContentTypeEducation,
	"udemy.com":         domain.ContentTypeEducation,
	"amazon.com":        domain.ContentTypeEcommerce,
	"ebay.com":          domain.ContentTypeEcommerce,
	"etsy.com":          domain.ContentTypeEcommerce,
	"aliexpress.com":    domain.ContentTypeEcommerce,
	"readthedocs.io":    domain.ContentTypeDocs,
	"linkedin.com":      domain.ContentTypeProfessional,
}

// RuleLearner mines the rating log for domains with enough history and no
// active rule, detects their content type, and inserts a rule adjusted by
// the community's spam/misleading/scam ratios.
type RuleLearner struct {
	ratings store.RatingStore
	rules   store.RuleStore

	totalRuns  int64
	totalRules int64
}

// NewRuleLearner creates the daily rule learning job.
func NewRuleLearner(ratings store.RatingStore, rules store.RuleStore) *RuleLearner {
	return &RuleLearner{ratings: ratings, rules: rules}
}

// Name identifies the job in scheduler logs and metrics.
func (l *RuleLearner) Name() string { return "rule-learner" }

// RunOnce scans one batch of learnable domains and inserts rules for them.
// Per-domain failures are logged and skipped.
func (l *RuleLearner) RunOnce(ctx context.Context) (string, error) {
	start := time.Now()
	atomic.AddInt64(&l.totalRuns, 1)

	candidates, err := l.ratings.LearnableDomains(ctx, learnerMinRatings, learnerDomainsPerRun)
	if err != nil {
		return "", fmt.Errorf("list learnable domains: %w", err)
	}
	if len(candidates) == 0 {
		return "no learnable domains", nil
	}

	inserted := 0
	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		rule, err := l.learn(ctx, c)
		if err != nil {
			log.Printf("[RuleLearner] skipping %s: %v", c.Domain, err)
			continue
		}
		if err := l.rules.InsertRule(ctx, rule); err != nil {
			log.Printf("[RuleLearner] insert failed for %s: %v", c.Domain, err)
			continue
		}
		inserted++
	}

	atomic.AddInt64(&l.totalRules, int64(inserted))
	return fmt.Sprintf("learned %d rules from %d domains in %s",
		inserted, len(candidates), time.Since(start).Round(time.Millisecond)), nil
}

// learn builds the rule for one domain: content type from the fixed
// decision list, then the community adjustment, then clamping.
func (l *RuleLearner) learn(ctx context.Context, c domain.DomainRatingSummary) (*domain.ContentTypeRule, error) {
	contentType := knownDomainTypes[c.Domain]
	if contentType == "" {
		urls, err := l.ratings.SampleURLs(ctx, c.Domain, learnerSampleURLs)
		if err != nil {
			return nil, fmt.Errorf("sample urls: %w", err)
		}
		contentType = detectTypeFromURLs(urls)
	}

	// Recognised types start with a small trust bonus; general stays flat.
	modifier := 0
	if contentType != domain.ContentTypeGeneral {
		modifier = 2
	}
	minRatings := learnerMinRatings

	ratios := c.Ratios()
	if ratios.SpamRatio() > 0.3 {
		modifier -= 5
		minRatings += 2
	}
	if ratios.MisleadingRatio() > 0.2 {
		modifier -= 3
		minRatings++
	}
	if ratios.ScamRatio() > 0.1 {
		modifier -= 8
		minRatings += 3
	}

	return &domain.ContentTypeRule{
		Domain:      c.Domain,
		ContentType: contentType,
		Modifier:    domain.ClampModifier(modifier),
		MinRatings:  domain.ClampMinRatings(minRatings),
		Active:      true,
		Description: fmt.Sprintf("auto-generated from %d ratings", c.RatingCount),
	}, nil
}

// detectTypeFromURLs inspects rated URL paths for the pattern families the
// learner recognises. First family to match across the samples wins.
func detectTypeFromURLs(urls []string) string {
	patterns := []struct {
		contentType string
		needles     []string
	}{
		{domain.ContentTypeVideo, []string{"/watch", "/video", "/v/", "/embed/"}},
		{domain.ContentTypeArticle, []string{"/article", "/blog", "/post", "/news/", "/story"}},
		{domain.ContentTypeProduct, []string{"/product", "/item", "/dp/", "/shop", "/buy"}},
	}

	for _, p := range patterns {
		for _, u := range urls {
			lower := strings.ToLower(u)
			for _, needle := range p.needles {
				if strings.Contains(lower, needle) {
					return p.contentType
				}
			}
		}
	}
	return domain.ContentTypeGeneral
}

// Stats returns lifetime learner counters.
func (l *RuleLearner) Stats() map[string]int64 {
	return map[string]int64{
		"total_runs":  atomic.LoadInt64(&l.totalRuns),
		"total_rules": atomic.LoadInt64(&l.totalRules),
	}
}
