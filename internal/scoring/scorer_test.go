package scoring

import (
	"testing"

	"github.com/sitetrust/scoring-engine/internal/domain"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func sbPtr(v domain.SafeBrowsingStatus) *domain.SafeBrowsingStatus { return &v }

func haPtr(v domain.HybridAnalysisStatus) *domain.HybridAnalysisStatus { return &v }

func validEntry(e domain.DomainCacheEntry) *domain.DomainCacheEntry { return &e }

func TestComputeBaseline(t *testing.T) {
	got := Compute(Inputs{URL: "https://unseen.example/"})
	if got.CommunityScore != 50 || got.DomainScore != 50 || got.FinalScore != 50 {
		t.Errorf("baseline = %+v, want 50/50/50", got)
	}
	if got.ContentType != domain.ContentTypeGeneral {
		t.Errorf("ContentType = %q, want general", got.ContentType)
	}
}

func TestComputeSingleFiveStarRating(t *testing.T) {
	got := Compute(Inputs{
		Aggregates: domain.RatingAggregates{RatingCount: 1, AvgRating: 5},
	})
	// base 100 blended at confidence 0.2: 100*0.2 + 50*0.8 = 60
	if got.CommunityScore != 60 {
		t.Errorf("CommunityScore = %v, want 60", got.CommunityScore)
	}
	if got.FinalScore != 56 {
		t.Errorf("FinalScore = %v, want 56", got.FinalScore)
	}
}

func TestComputeSpamReports(t *testing.T) {
	// Three users rate 1 star, all flagged spam.
	got := Compute(Inputs{
		Aggregates: domain.RatingAggregates{RatingCount: 3, AvgRating: 1, SpamCount: 3},
	})
	// base 0, spam penalty 30, confidence 0.6: -30*0.6 + 50*0.4 = 2
	if got.CommunityScore != 2 {
		t.Errorf("CommunityScore = %v, want 2", got.CommunityScore)
	}
	if got.DomainScore != 50 {
		t.Errorf("DomainScore = %v, want 50", got.DomainScore)
	}
	if got.FinalScore != 21.2 {
		t.Errorf("FinalScore = %v, want 21.2", got.FinalScore)
	}
}

func TestComputeSpamLowersScore(t *testing.T) {
	clean := Compute(Inputs{
		Aggregates: domain.RatingAggregates{RatingCount: 5, AvgRating: 1},
	})
	spammed := Compute(Inputs{
		Aggregates: domain.RatingAggregates{RatingCount: 5, AvgRating: 1, SpamCount: 5},
	})
	if spammed.CommunityScore > clean.CommunityScore {
		t.Errorf("spam-flagged score %v must not exceed clean score %v",
			spammed.CommunityScore, clean.CommunityScore)
	}
}

func TestComputeDomainSignals(t *testing.T) {
	got := Compute(Inputs{
		Aggregates: domain.RatingAggregates{RatingCount: 10, AvgRating: 5},
		Cache: validEntry(domain.DomainCacheEntry{
			AgeDays:        intPtr(2000),
			SSLValid:       boolPtr(true),
			HTTPStatus:     intPtr(200),
			SafeBrowsing:   sbPtr(domain.SafeBrowsingClean),
			HybridAnalysis: haPtr(domain.HybridClean),
		}),
		CacheValid: true,
	})
	// 50 + 10 (age > 2y) + 5 (ssl) = 65
	if got.DomainScore != 65 {
		t.Errorf("DomainScore = %v, want 65", got.DomainScore)
	}
	if got.CommunityScore != 100 {
		t.Errorf("CommunityScore = %v, want 100", got.CommunityScore)
	}
	if got.FinalScore != 86.0 {
		t.Errorf("FinalScore = %v, want 86.0", got.FinalScore)
	}
}

func TestComputeAgeTiers(t *testing.T) {
	// Bands use whole elapsed years, so a domain enters the next tier only
	// after its anniversary: 366d is still year one, 2000d (5 whole years)
	// still takes the >2y bonus.
	tests := []struct {
		days int
		want float64
	}{
		{2200, 65}, // 6 whole years: +15
		{2000, 60}, // 5 whole years: +10
		{1100, 60}, // 3 whole years: +10
		{800, 55},  // 2 whole years: +5
		{400, 50},  // 1 whole year: neutral
		{200, 50},  // between 30d and 1y: neutral
		{10, 40},   // <30d: -10
	}
	for _, tt := range tests {
		got := Compute(Inputs{
			Cache:      validEntry(domain.DomainCacheEntry{AgeDays: intPtr(tt.days)}),
			CacheValid: true,
		})
		if got.DomainScore != tt.want {
			t.Errorf("age %d days: DomainScore = %v, want %v", tt.days, got.DomainScore, tt.want)
		}
	}
}

func TestComputeSSLDelta(t *testing.T) {
	valid := Compute(Inputs{
		Cache:      validEntry(domain.DomainCacheEntry{SSLValid: boolPtr(true)}),
		CacheValid: true,
	})
	invalid := Compute(Inputs{
		Cache:      validEntry(domain.DomainCacheEntry{SSLValid: boolPtr(false)}),
		CacheValid: true,
	})
	// +5 vs -15: flipping SSL validity moves the domain score by 20.
	if valid.DomainScore-invalid.DomainScore != 20 {
		t.Errorf("SSL delta = %v, want 20", valid.DomainScore-invalid.DomainScore)
	}
}

func TestComputeThreatVerdicts(t *testing.T) {
	tests := []struct {
		name string
		in   Inputs
		want float64
	}{
		{"malware", Inputs{Cache: validEntry(domain.DomainCacheEntry{SafeBrowsing: sbPtr(domain.SafeBrowsingMalware)}), CacheValid: true}, 0},
		{"phishing", Inputs{Cache: validEntry(domain.DomainCacheEntry{SafeBrowsing: sbPtr(domain.SafeBrowsingPhishing)}), CacheValid: true}, 5},
		{"unwanted", Inputs{Cache: validEntry(domain.DomainCacheEntry{SafeBrowsing: sbPtr(domain.SafeBrowsingUnwanted)}), CacheValid: true}, 20},
		{"hybrid malicious", Inputs{Cache: validEntry(domain.DomainCacheEntry{HybridAnalysis: haPtr(domain.HybridMalicious)}), CacheValid: true}, 10},
		{"hybrid suspicious", Inputs{Cache: validEntry(domain.DomainCacheEntry{HybridAnalysis: haPtr(domain.HybridSuspicious)}), CacheValid: true}, 25},
		{"http error", Inputs{Cache: validEntry(domain.DomainCacheEntry{HTTPStatus: intPtr(503)}), CacheValid: true}, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compute(tt.in); got.DomainScore != tt.want {
				t.Errorf("DomainScore = %v, want %v", got.DomainScore, tt.want)
			}
		})
	}
}

func TestComputeExpiredCacheIsNeutral(t *testing.T) {
	got := Compute(Inputs{
		Cache: validEntry(domain.DomainCacheEntry{
			SafeBrowsing: sbPtr(domain.SafeBrowsingMalware),
		}),
		CacheValid: false,
	})
	if got.DomainScore != 50 {
		t.Errorf("expired cache DomainScore = %v, want 50", got.DomainScore)
	}
}

func TestComputeBlacklistPenalty(t *testing.T) {
	got := Compute(Inputs{
		Blacklist: domain.BlacklistVerdict{Blacklisted: true, MaxSeverity: 10, Penalty: 50},
	})
	if got.DomainScore != 0 {
		t.Errorf("DomainScore = %v, want 0 with max penalty", got.DomainScore)
	}
}

func TestComputeBlacklistAppliesWithoutCache(t *testing.T) {
	// Blacklist and modifier apply regardless of cache validity.
	got := Compute(Inputs{
		Blacklist: domain.BlacklistVerdict{Blacklisted: true, Penalty: 25},
		Modifier:  5,
	})
	if got.DomainScore != 30 {
		t.Errorf("DomainScore = %v, want 30", got.DomainScore)
	}
}

func TestComputeContentTypeModifierOnBaseline(t *testing.T) {
	got := Compute(Inputs{ContentType: domain.ContentTypeArticle, Modifier: 2})
	if got.DomainScore != 52 {
		t.Errorf("DomainScore = %v, want 52", got.DomainScore)
	}
	if got.ContentType != domain.ContentTypeArticle {
		t.Errorf("ContentType = %q", got.ContentType)
	}
}

func TestComputeDeterministic(t *testing.T) {
	in := Inputs{
		Aggregates: domain.RatingAggregates{RatingCount: 7, AvgRating: 3.4, SpamCount: 1},
		Cache: validEntry(domain.DomainCacheEntry{
			AgeDays:  intPtr(900),
			SSLValid: boolPtr(true),
		}),
		CacheValid: true,
		Modifier:   3,
	}
	first := Compute(in)
	for i := 0; i < 100; i++ {
		if got := Compute(in); got != first {
			t.Fatalf("Compute() not deterministic: %+v != %+v", got, first)
		}
	}
}

func TestComputeScoresStayInRange(t *testing.T) {
	extremes := []Inputs{
		{Aggregates: domain.RatingAggregates{RatingCount: 100, AvgRating: 1, SpamCount: 100, MisleadingCount: 100, ScamCount: 100}},
		{Aggregates: domain.RatingAggregates{RatingCount: 100, AvgRating: 5}, Modifier: 10},
		{Blacklist: domain.BlacklistVerdict{Penalty: 50}, Modifier: -10},
	}
	for i, in := range extremes {
		got := Compute(in)
		for name, v := range map[string]float64{
			"community": got.CommunityScore,
			"domain":    got.DomainScore,
			"final":     got.FinalScore,
		} {
			if v < 0 || v > 100 {
				t.Errorf("case %d: %s score %v out of [0,100]", i, name, v)
			}
		}
	}
}
