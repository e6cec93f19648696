package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sitetrust/scoring-engine/internal/domain"
)

// HybridAnalysisClient resolves a domain's Hybrid Analysis verdict.
type HybridAnalysisClient interface {
	Check(ctx context.Context, dom string) (domain.HybridAnalysisStatus, float64, error)
}

// HybridAnalysis queries the Hybrid Analysis quick-scan search API.
type HybridAnalysis struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHybridAnalysisClient creates a Hybrid Analysis client.
func NewHybridAnalysisClient(baseURL, apiKey string, timeout time.Duration) *HybridAnalysis {
	return &HybridAnalysis{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type haResponse struct {
	Result []struct {
		Verdict     string  `json:"verdict"`
		ThreatScore float64 `json:"threat_score"`
	} `json:"result"`
}

// Check searches prior scans of the domain. The worst verdict across
// results wins, together with the highest threat score seen.
func (h *HybridAnalysis) Check(ctx context.Context, dom string) (domain.HybridAnalysisStatus, float64, error) {
	form := url.Values{}
	form.Set("domain", dom)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		h.baseURL+"/search/terms", strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("hybrid-analysis request: %w", err)
	}
	req.Header.Set("api-key", h.apiKey)
	req.Header.Set("User-Agent", "Falcon Sandbox")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("hybrid-analysis check for %s: %w", dom, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("hybrid-analysis check for %s: status %d", dom, resp.StatusCode)
	}

	var out haResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, fmt.Errorf("hybrid-analysis decode: %w", err)
	}

	status := domain.HybridClean
	var worstScore float64
	for _, r := range out.Result {
		if r.ThreatScore > worstScore {
			worstScore = r.ThreatScore
		}
		switch strings.ToLower(r.Verdict) {
		case "malicious":
			status = domain.HybridMalicious
		case "suspicious":
			if status != domain.HybridMalicious {
				status = domain.HybridSuspicious
			}
		}
	}
	return status, worstScore, nil
}
