package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sitetrust/scoring-engine/internal/domain"
)

// SafeBrowsingClient resolves a domain's Google Safe Browsing verdict.
type SafeBrowsingClient interface {
	Check(ctx context.Context, dom string) (domain.SafeBrowsingStatus, error)
}

// GoogleSafeBrowsing calls the Safe Browsing v4 threatMatches endpoint.
type GoogleSafeBrowsing struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewSafeBrowsingClient creates a Safe Browsing client.
func NewSafeBrowsingClient(baseURL, apiKey string, timeout time.Duration) *GoogleSafeBrowsing {
	return &GoogleSafeBrowsing{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type sbRequest struct {
	Client struct {
		ClientID      string `json:"clientId"`
		ClientVersion string `json:"clientVersion"`
	} `json:"client"`
	ThreatInfo struct {
		ThreatTypes      []string `json:"threatTypes"`
		PlatformTypes    []string `json:"platformTypes"`
		ThreatEntryTypes []string `json:"threatEntryTypes"`
		ThreatEntries    []struct {
			URL string `json:"url"`
		} `json:"threatEntries"`
	} `json:"threatInfo"`
}

type sbResponse struct {
	Matches []struct {
		ThreatType string `json:"threatType"`
	} `json:"matches"`
}

// Check queries the domain against all threat lists. No matches means
// clean; the worst matched threat type wins otherwise.
func (g *GoogleSafeBrowsing) Check(ctx context.Context, dom string) (domain.SafeBrowsingStatus, error) {
	var req sbRequest
	req.Client.ClientID = "sitetrust-scoring-engine"
	req.Client.ClientVersion = "1.0"
	req.ThreatInfo.ThreatTypes = []string{
		"MALWARE", "SOCIAL_ENGINEERING", "UNWANTED_SOFTWARE", "POTENTIALLY_HARMFUL_APPLICATION",
	}
	req.ThreatInfo.PlatformTypes = []string{"ANY_PLATFORM"}
	req.ThreatInfo.ThreatEntryTypes = []string{"URL"}
	req.ThreatInfo.ThreatEntries = []struct {
		URL string `json:"url"`
	}{{URL: "http://" + dom + "/"}}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("safebrowsing marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"?key="+g.apiKey, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("safebrowsing request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("safebrowsing check for %s: %w", dom, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("safebrowsing check for %s: status %d", dom, resp.StatusCode)
	}

	var out sbResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("safebrowsing decode: %w", err)
	}
	return worstThreatType(out.Matches), nil
}

func worstThreatType(matches []struct {
	ThreatType string `json:"threatType"`
}) domain.SafeBrowsingStatus {
	status := domain.SafeBrowsingClean
	for _, m := range matches {
		switch m.ThreatType {
		case "MALWARE", "POTENTIALLY_HARMFUL_APPLICATION":
			return domain.SafeBrowsingMalware
		case "SOCIAL_ENGINEERING":
			status = domain.SafeBrowsingPhishing
		case "UNWANTED_SOFTWARE":
			if status == domain.SafeBrowsingClean {
				status = domain.SafeBrowsingUnwanted
			}
		}
	}
	return status
}
