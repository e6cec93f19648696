package worker

import (
	"context"
	"strings"
	"testing"

	"github.com/sitetrust/scoring-engine/internal/domain"
)

func TestRuleLearnerArticleDomain(t *testing.T) {
	// A blog with 4 ratings and a quarter of them flagged spam: the path
	// patterns say "article" (+2 baseline), the spam ratio of 0.25 is under
	// the 0.3 threshold so no adjustment applies.
	ratings := &fakeRatings{
		learnable: []domain.DomainRatingSummary{
			{Domain: "example-blog.com", RatingCount: 4, AvgRating: 3.5, SpamCount: 1},
		},
		samples: map[string][]string{
			"example-blog.com": {
				"https://example-blog.com/article/one",
				"https://example-blog.com/article/two",
			},
		},
	}
	rules := &fakeRules{}
	learner := NewRuleLearner(ratings, rules)

	summary, err := learner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}
	if !strings.Contains(summary, "learned 1 rules") {
		t.Errorf("summary = %q, want 1 learned rule", summary)
	}
	if len(rules.inserted) != 1 {
		t.Fatalf("inserted %d rules, want 1", len(rules.inserted))
	}
	r := rules.inserted[0]
	if r.Domain != "example-blog.com" || r.ContentType != domain.ContentTypeArticle {
		t.Errorf("rule = %s/%s, want example-blog.com/article", r.Domain, r.ContentType)
	}
	if r.Modifier != 2 || r.MinRatings != 3 {
		t.Errorf("rule modifier/minRatings = %d/%d, want 2/3", r.Modifier, r.MinRatings)
	}
	if !r.Active {
		t.Error("learned rule must be active")
	}
}

func TestRuleLearnerKnownDomainSkipsSampling(t *testing.T) {
	ratings := &fakeRatings{
		learnable: []domain.DomainRatingSummary{
			{Domain: "youtube.com", RatingCount: 20, AvgRating: 4.2},
		},
		// No samples on purpose; the known-domain list must win.
	}
	rules := &fakeRules{}
	learner := NewRuleLearner(ratings, rules)

	if _, err := learner.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}
	if len(rules.inserted) != 1 {
		t.Fatalf("inserted %d rules, want 1", len(rules.inserted))
	}
	if rules.inserted[0].ContentType != domain.ContentTypeVideo {
		t.Errorf("ContentType = %q, want video", rules.inserted[0].ContentType)
	}
}

func TestRuleLearnerFlagRatiosLowerModifier(t *testing.T) {
	// 10 ratings: 4 spam (0.4), 3 misleading (0.3), 2 scam (0.2). All
	// three thresholds trip: modifier 2-5-3-8 = -14 clamps to -10, min
	// ratings 3+2+1+3 = 9.
	ratings := &fakeRatings{
		learnable: []domain.DomainRatingSummary{
			{
				Domain: "sketchy.example", RatingCount: 10, AvgRating: 1.8,
				SpamCount: 4, MisleadingCount: 3, ScamCount: 2,
			},
		},
		samples: map[string][]string{
			"sketchy.example": {"https://sketchy.example/product/deal"},
		},
	}
	rules := &fakeRules{}
	learner := NewRuleLearner(ratings, rules)

	if _, err := learner.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}
	if len(rules.inserted) != 1 {
		t.Fatalf("inserted %d rules, want 1", len(rules.inserted))
	}
	r := rules.inserted[0]
	if r.ContentType != domain.ContentTypeProduct {
		t.Errorf("ContentType = %q, want product", r.ContentType)
	}
	if r.Modifier != domain.MinTrustModifier {
		t.Errorf("Modifier = %d, want clamp to %d", r.Modifier, domain.MinTrustModifier)
	}
	if r.MinRatings != 9 {
		t.Errorf("MinRatings = %d, want 9", r.MinRatings)
	}
}

func TestRuleLearnerUnrecognizedPathsStayGeneral(t *testing.T) {
	ratings := &fakeRatings{
		learnable: []domain.DomainRatingSummary{
			{Domain: "plain.example", RatingCount: 5, AvgRating: 3},
		},
		samples: map[string][]string{
			"plain.example": {"https://plain.example/about", "https://plain.example/contact"},
		},
	}
	rules := &fakeRules{}
	learner := NewRuleLearner(ratings, rules)

	if _, err := learner.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}
	r := rules.inserted[0]
	if r.ContentType != domain.ContentTypeGeneral || r.Modifier != 0 {
		t.Errorf("rule = %s/%d, want general/0", r.ContentType, r.Modifier)
	}
}

func TestRuleLearnerInsertFailureSkipsDomain(t *testing.T) {
	ratings := &fakeRatings{
		learnable: []domain.DomainRatingSummary{
			{Domain: "a.example", RatingCount: 5},
		},
		samples: map[string][]string{},
	}
	rules := &fakeRules{insertErr: errStoreDown}
	learner := NewRuleLearner(ratings, rules)

	summary, err := learner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}
	if !strings.Contains(summary, "learned 0 rules") {
		t.Errorf("summary = %q, want 0 learned rules", summary)
	}
}

func TestDetectTypeFromURLs(t *testing.T) {
	tests := []struct {
		name string
		urls []string
		want string
	}{
		{"video paths", []string{"https://x.example/watch?v=1"}, domain.ContentTypeVideo},
		{"embed paths", []string{"https://x.example/embed/abc"}, domain.ContentTypeVideo},
		{"article paths", []string{"https://x.example/blog/post-1"}, domain.ContentTypeArticle},
		{"product paths", []string{"https://x.example/dp/B000123"}, domain.ContentTypeProduct},
		{"case insensitive", []string{"https://x.example/Article/One"}, domain.ContentTypeArticle},
		{"no match", []string{"https://x.example/about"}, domain.ContentTypeGeneral},
		{"empty", nil, domain.ContentTypeGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectTypeFromURLs(tt.urls); got != tt.want {
				t.Errorf("detectTypeFromURLs(%v) = %q, want %q", tt.urls, got, tt.want)
			}
		})
	}
}
