package scoring

import (
	"testing"

	"github.com/sitetrust/scoring-engine/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestMatchContentType(t *testing.T) {
	rules := []domain.ContentTypeRule{
		{ContentType: "video", URLPattern: strPtr("%/watch%"), Active: true},
		{ContentType: "article", URLPattern: strPtr("/article/"), Active: true},
		{ContentType: "social", Active: false},
		{ContentType: "general", Active: true},
	}

	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/watch?v=abc", "video"},
		{"https://example.com/article/today", "article"},
		{"https://example.com/about", "general"},
	}
	for _, tt := range tests {
		if got := MatchContentType(rules, tt.url); got != tt.want {
			t.Errorf("MatchContentType(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestMatchContentTypeNilPatternWins(t *testing.T) {
	rules := []domain.ContentTypeRule{
		{ContentType: "docs", URLPattern: nil, Active: true},
		{ContentType: "video", URLPattern: strPtr("%/watch%"), Active: true},
	}
	// First active rule with a nil pattern covers every URL.
	if got := MatchContentType(rules, "https://example.com/watch"); got != "docs" {
		t.Errorf("MatchContentType() = %q, want docs", got)
	}
}

func TestMatchContentTypeNoRules(t *testing.T) {
	if got := MatchContentType(nil, "https://example.com/"); got != domain.ContentTypeGeneral {
		t.Errorf("MatchContentType(nil) = %q, want general", got)
	}
}

func TestModifierFor(t *testing.T) {
	rules := []domain.ContentTypeRule{
		{ContentType: "video", Modifier: 3, Active: true},
		{ContentType: "article", Modifier: -5, Active: false},
		{ContentType: "article", Modifier: 2, Active: true},
	}

	if got := ModifierFor(rules, "video"); got != 3 {
		t.Errorf("ModifierFor(video) = %d, want 3", got)
	}
	// Inactive rules are skipped; the active article rule wins.
	if got := ModifierFor(rules, "article"); got != 2 {
		t.Errorf("ModifierFor(article) = %d, want 2", got)
	}
	if got := ModifierFor(rules, "news"); got != 0 {
		t.Errorf("ModifierFor(news) = %d, want 0", got)
	}
}

func TestLikeMatch(t *testing.T) {
	tests := []struct {
		pattern string
		s       string
		want    bool
	}{
		{"/article/", "https://blog.example.com/article/one", true},
		{"/article/", "https://blog.example.com/about", false},
		{"%/watch%", "https://example.com/watch?v=1", true},
		{"%/watch%", "https://example.com/videos", false},
		{"https://example.com/_", "https://example.com/a", true},
		{"https://example.com/_", "https://example.com/ab", false},
		{"%.example.com%", "https://shop.example.com/item", true},
		{"ARTICLE", "https://example.com/article/x", true}, // case-insensitive
	}
	for _, tt := range tests {
		if got := likeMatch(tt.pattern, tt.s); got != tt.want {
			t.Errorf("likeMatch(%q, %q) = %v, want %v", tt.pattern, tt.s, got, tt.want)
		}
	}
}
