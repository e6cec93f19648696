package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// WhoisClient resolves domain registration age through a WHOIS JSON API.
type WhoisClient interface {
	// AgeDays returns the days since registration and the raw record.
	AgeDays(ctx context.Context, domain string) (int, []byte, error)
}

// HTTPWhoisClient queries a WhoisXML-style JSON endpoint.
type HTTPWhoisClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewWhoisClient creates a WHOIS client against the given endpoint.
func NewWhoisClient(baseURL, apiKey string, timeout time.Duration) *HTTPWhoisClient {
	return &HTTPWhoisClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type whoisRecord struct {
	WhoisRecord struct {
		CreatedDate string `json:"createdDate"`
		Registrar   struct {
			Name string `json:"name"`
		} `json:"registrarName"`
	} `json:"WhoisRecord"`
}

// AgeDays fetches the WHOIS record and derives the registration age. The
// raw response body is returned for storage alongside the derived age.
func (c *HTTPWhoisClient) AgeDays(ctx context.Context, domain string) (int, []byte, error) {
	q := url.Values{}
	q.Set("domainName", domain)
	q.Set("outputFormat", "JSON")
	if c.apiKey != "" {
		q.Set("apiKey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return 0, nil, fmt.Errorf("whois request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("whois fetch for %s: %w", domain, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, nil, fmt.Errorf("whois fetch for %s: status %d", domain, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("whois read: %w", err)
	}

	var rec whoisRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return 0, nil, fmt.Errorf("whois parse for %s: %w", domain, err)
	}
	created, err := parseWhoisDate(rec.WhoisRecord.CreatedDate)
	if err != nil {
		return 0, body, fmt.Errorf("whois created date for %s: %w", domain, err)
	}

	days := int(time.Since(created).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return days, body, nil
}

// parseWhoisDate handles the date layouts WHOIS providers actually emit.
func parseWhoisDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z0700",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
