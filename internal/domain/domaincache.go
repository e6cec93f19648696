package domain

import (
	"time"
)

// DomainCacheTTL is how long a cache entry stays valid after a refresh.
const DomainCacheTTL = 7 * 24 * time.Hour

// SafeBrowsingStatus is the Google Safe Browsing verdict for a domain.
type SafeBrowsingStatus string

const (
	SafeBrowsingClean    SafeBrowsingStatus = "clean"
	SafeBrowsingMalware  SafeBrowsingStatus = "malware"
	SafeBrowsingPhishing SafeBrowsingStatus = "phishing"
	SafeBrowsingUnwanted SafeBrowsingStatus = "unwanted"
)

// HybridAnalysisStatus is the Hybrid Analysis verdict for a domain.
type HybridAnalysisStatus string

const (
	HybridClean      HybridAnalysisStatus = "clean"
	HybridSuspicious HybridAnalysisStatus = "suspicious"
	HybridMalicious  HybridAnalysisStatus = "malicious"
)

// DomainCacheEntry holds the reputation signals collected for one domain.
// Signal fields are pointers because any source may have failed; a nil
// signal is neutral for scoring.
type DomainCacheEntry struct {
	Domain         string                `json:"domain" db:"domain"`
	AgeDays        *int                  `json:"domain_age_days" db:"domain_age_days"`
	SSLValid       *bool                 `json:"ssl_valid" db:"ssl_valid"`
	HTTPStatus     *int                  `json:"http_status" db:"http_status"`
	SafeBrowsing   *SafeBrowsingStatus   `json:"google_safe_browsing_status" db:"google_safe_browsing_status"`
	HybridAnalysis *HybridAnalysisStatus `json:"hybrid_analysis_status" db:"hybrid_analysis_status"`
	WhoisData      []byte                `json:"whois_data,omitempty" db:"whois_data"`
	ThreatScore    *float64              `json:"threat_score" db:"threat_score"`
	LastChecked    time.Time             `json:"last_checked" db:"last_checked"`
	CacheExpiresAt time.Time             `json:"cache_expires_at" db:"cache_expires_at"`
}

// ValidAt reports whether the entry is still usable for scoring at the
// given instant.
func (e *DomainCacheEntry) ValidAt(now time.Time) bool {
	return e.CacheExpiresAt.After(now)
}

// HasAnySignal reports whether at least one source produced a value.
func (e *DomainCacheEntry) HasAnySignal() bool {
	return e.AgeDays != nil || e.SSLValid != nil || e.HTTPStatus != nil ||
		e.SafeBrowsing != nil || e.HybridAnalysis != nil
}

// CacheCheck is the existence/validity probe result for a domain.
type CacheCheck struct {
	Exists bool `json:"exists"`
	Valid  bool `json:"valid"`
}

// DomainCacheStats summarises the cache table for the admin surface.
type DomainCacheStats struct {
	Total      int        `json:"total"`
	Valid      int        `json:"valid"`
	Expired    int        `json:"expired"`
	OldestScan *time.Time `json:"oldest_scan,omitempty"`
	NewestScan *time.Time `json:"newest_scan,omitempty"`
}
