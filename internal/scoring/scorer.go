// Package scoring implements the trust score computation. The math lives in
// Compute, a pure function over explicit inputs; Engine gathers those inputs
// from the stores and persists refreshed URL stats.
package scoring

import (
	"math"

	"github.com/sitetrust/scoring-engine/internal/domain"
)

// Score weights and deltas. The domain component starts neutral and each
// signal shifts it; the final score fuses both components.
const (
	NeutralScore = 50.0

	DomainWeight    = 0.4
	CommunityWeight = 0.6

	spamPenaltyWeight       = 30.0
	misleadingPenaltyWeight = 25.0
	scamPenaltyWeight       = 40.0

	// Ratings needed before the community score stands on its own.
	fullConfidenceRatings = 5.0

	ageBonusOver5y  = 15.0
	ageBonusOver2y  = 10.0
	ageBonusOver1y  = 5.0
	agePenaltyUnder30d = 10.0

	sslBonus   = 5.0
	sslPenalty = 15.0

	httpErrorPenalty = 20.0

	sbMalwarePenalty  = 50.0
	sbPhishingPenalty = 45.0
	sbUnwantedPenalty = 30.0

	haMaliciousPenalty  = 40.0
	haSuspiciousPenalty = 25.0
)

// Inputs are everything Compute needs. CacheValid gates the reputation
// signal deltas; the blacklist penalty and content-type modifier apply
// regardless.
type Inputs struct {
	URL         string
	Fingerprint string
	Aggregates  domain.RatingAggregates
	Cache       *domain.DomainCacheEntry
	CacheValid  bool
	Blacklist   domain.BlacklistVerdict
	ContentType string
	Modifier    int
}

// Result is the computed score set for one URL.
type Result struct {
	CommunityScore float64
	DomainScore    float64
	FinalScore     float64
	ContentType    string
}

// Compute is deterministic and performs no I/O.
func Compute(in Inputs) Result {
	contentType := in.ContentType
	if contentType == "" {
		contentType = domain.ContentTypeGeneral
	}

	community := communityScore(in.Aggregates)
	domainScore := domainScore(in)
	final := round2(clamp(DomainWeight*domainScore + CommunityWeight*community))

	return Result{
		CommunityScore: community,
		DomainScore:    domainScore,
		FinalScore:     final,
		ContentType:    contentType,
	}
}

// communityScore turns the rating aggregates into a 0-100 score. Small
// samples are blended toward neutral so one rating cannot swing a URL to
// the extremes.
func communityScore(a domain.RatingAggregates) float64 {
	if a.RatingCount == 0 {
		return NeutralScore
	}

	score := ((a.AvgRating - 1) / 4) * 100
	score -= spamPenaltyWeight * a.SpamRatio()
	score -= misleadingPenaltyWeight * a.MisleadingRatio()
	score -= scamPenaltyWeight * a.ScamRatio()

	confidence := math.Min(1, float64(a.RatingCount)/fullConfidenceRatings)
	score = score*confidence + NeutralScore*(1-confidence)

	return clamp(score)
}

// domainScore applies the reputation deltas in their defined order. Nil
// signals are neutral. Expired or missing cache entries contribute nothing,
// but blacklist penalties and content-type modifiers always apply.
func domainScore(in Inputs) float64 {
	score := NeutralScore

	if in.Cache != nil && in.CacheValid {
		e := in.Cache

		if e.AgeDays != nil {
			days := *e.AgeDays
			// Whole elapsed years; a domain moves into the next band only
			// after its anniversary.
			years := days / 365
			switch {
			case years > 5:
				score += ageBonusOver5y
			case years > 2:
				score += ageBonusOver2y
			case years > 1:
				score += ageBonusOver1y
			case days < 30:
				score -= agePenaltyUnder30d
			}
		}

		if e.SSLValid != nil {
			if *e.SSLValid {
				score += sslBonus
			} else {
				score -= sslPenalty
			}
		}

		if e.HTTPStatus != nil && *e.HTTPStatus >= 400 {
			score -= httpErrorPenalty
		}

		if e.SafeBrowsing != nil {
			switch *e.SafeBrowsing {
			case domain.SafeBrowsingMalware:
				score -= sbMalwarePenalty
			case domain.SafeBrowsingPhishing:
				score -= sbPhishingPenalty
			case domain.SafeBrowsingUnwanted:
				score -= sbUnwantedPenalty
			}
		}

		if e.HybridAnalysis != nil {
			switch *e.HybridAnalysis {
			case domain.HybridMalicious:
				score -= haMaliciousPenalty
			case domain.HybridSuspicious:
				score -= haSuspiciousPenalty
			}
		}
	}

	score -= in.Blacklist.Penalty
	score += float64(in.Modifier)

	return clamp(score)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
