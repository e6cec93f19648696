// Package urlkey canonicalises URLs and derives the stable keys the rest of
// the engine is built on: the SHA-256 fingerprint of the canonical URL and
// the registrable domain. Everything here is pure and deterministic.
package urlkey

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ErrInvalidURL is returned for anything that is not an absolute http or
// https URL with a host.
var ErrInvalidURL = errors.New("invalid url: must be absolute http or https")

// Key bundles everything derived from one URL.
type Key struct {
	Canonical   string
	Fingerprint string
	Domain      string
}

// Parse canonicalises the raw URL and returns its canonical form,
// fingerprint, and registrable domain.
func Parse(raw string) (Key, error) {
	canonical, err := Canonicalize(raw)
	if err != nil {
		return Key{}, err
	}
	domain, err := RegistrableDomain(canonical)
	if err != nil {
		return Key{}, err
	}
	return Key{
		Canonical:   canonical,
		Fingerprint: Fingerprint(canonical),
		Domain:      domain,
	}, nil
}

// Canonicalize normalises a URL: scheme and host are lowercased, a leading
// "www." is stripped, the fragment is dropped, the query is kept as-is.
// Canonicalize is idempotent.
func Canonicalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidURL
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", ErrInvalidURL
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", ErrInvalidURL
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", ErrInvalidURL
	}
	host = strings.TrimPrefix(host, "www.")

	u.Scheme = scheme
	u.Fragment = ""
	u.RawFragment = ""
	if port := u.Port(); port != "" {
		u.Host = host + ":" + port
	} else {
		u.Host = host
	}

	return u.String(), nil
}

// Fingerprint hashes a canonical URL into the hex key used by the rating
// and stats stores. Callers must pass the output of Canonicalize.
func Fingerprint(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// RegistrableDomain extracts the eTLD+1 of the URL's host (e.g.
// sub.shop.example.co.uk -> example.co.uk). IP hosts and single-label hosts
// that the public suffix list cannot split are returned as-is.
func RegistrableDomain(rawOrCanonical string) (string, error) {
	u, err := url.Parse(rawOrCanonical)
	if err != nil {
		return "", ErrInvalidURL
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", ErrInvalidURL
	}
	host = strings.TrimPrefix(host, "www.")

	// The public suffix list would split IP literals like domains.
	if net.ParseIP(host) != nil {
		return host, nil
	}

	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// Single-label hosts have no eTLD+1; use the host itself.
		return host, nil
	}
	return etld1, nil
}

// NormalizeDomain lowercases a bare domain string and strips a leading
// "www."; used when domains arrive from feeds or admin input rather than
// full URLs.
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "www.")
	return strings.TrimSuffix(d, ".")
}
