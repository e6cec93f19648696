package analysis

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Prober checks a domain's HTTP reachability and TLS certificate.
type Prober interface {
	// ProbeHTTP returns the status code of a GET against the domain root.
	ProbeHTTP(ctx context.Context, domain string) (int, error)

	// CheckSSL reports whether the domain presents a verifiable
	// certificate on port 443.
	CheckSSL(ctx context.Context, domain string) (bool, error)
}

// NetProber probes domains over the real network.
type NetProber struct {
	client  *http.Client
	timeout time.Duration
}

// NewProber creates a network prober. Redirects are followed so parked
// domains that bounce to https still report their landing status.
func NewProber(timeout time.Duration) *NetProber {
	return &NetProber{
		client: &http.Client{
			Timeout: timeout,
			// Probes never need bodies; HEAD-like behaviour via GET
			// keeps odd servers that reject HEAD from skewing status.
		},
		timeout: timeout,
	}
}

// ProbeHTTP fetches https://<domain>/ and falls back to plain http when TLS
// itself is broken, so an invalid certificate still yields a status signal.
func (p *NetProber) ProbeHTTP(ctx context.Context, domain string) (int, error) {
	status, err := p.get(ctx, "https://"+domain+"/")
	if err == nil {
		return status, nil
	}
	status, httpErr := p.get(ctx, "http://"+domain+"/")
	if httpErr != nil {
		return 0, fmt.Errorf("probe %s: %w", domain, err)
	}
	return status, nil
}

func (p *NetProber) get(ctx context.Context, u string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "sitetrust-analyzer/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// CheckSSL performs a TLS handshake with full verification. A refused
// connection is an error (signal stays null); a failed verification is a
// definitive false.
func (p *NetProber) CheckSSL(ctx context.Context, domain string) (bool, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: p.timeout},
		Config:    &tls.Config{ServerName: domain},
	}

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(domain, "443"))
	if err != nil {
		if _, ok := err.(*tls.CertificateVerificationError); ok {
			return false, nil
		}
		// Handshake-level failures also mean the cert chain is unusable.
		if _, ok := err.(tls.RecordHeaderError); ok {
			return false, nil
		}
		return false, fmt.Errorf("tls dial %s: %w", domain, err)
	}
	conn.Close()
	return true, nil
}
