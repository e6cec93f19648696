package scoring

import (
	"strings"

	"github.com/sitetrust/scoring-engine/internal/domain"
)

// MatchContentType walks the domain's active rules in insertion order and
// returns the content type of the first rule whose url_pattern is nil or
// matches the URL. Falls back to "general".
func MatchContentType(rules []domain.ContentTypeRule, rawURL string) string {
	for _, r := range rules {
		if !r.Active {
			continue
		}
		if r.URLPattern == nil || likeMatch(*r.URLPattern, rawURL) {
			return r.ContentType
		}
	}
	return domain.ContentTypeGeneral
}

// ModifierFor returns the trust score modifier of the first active rule for
// the given content type, or 0 when none matches.
func ModifierFor(rules []domain.ContentTypeRule, contentType string) int {
	for _, r := range rules {
		if r.Active && r.ContentType == contentType {
			return r.Modifier
		}
	}
	return 0
}

// likeMatch applies SQL LIKE semantics ('%' any run, '_' one char),
// case-insensitive. Patterns without wildcards match as substrings, which
// is how rules such as "/article/" are written.
func likeMatch(pattern, s string) bool {
	p := strings.ToLower(pattern)
	t := strings.ToLower(s)

	if !strings.ContainsAny(p, "%_") {
		return strings.Contains(t, p)
	}

	return likeHere(p, t)
}

func likeHere(p, s string) bool {
	// Iterative matcher with single-level backtracking on '%'.
	var starP, starS = -1, 0
	pi, si := 0, 0
	for si < len(s) {
		switch {
		case pi < len(p) && (p[pi] == '_' || p[pi] == s[si]):
			pi++
			si++
		case pi < len(p) && p[pi] == '%':
			starP = pi
			starS = si
			pi++
		case starP >= 0:
			starS++
			si = starS
			pi = starP + 1
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '%' {
		pi++
	}
	return pi == len(p)
}
