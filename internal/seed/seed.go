// Package seed bootstraps the blacklist, content-type rules, and runtime
// config from a YAML file. Applying the same file twice is a no-op; the
// underlying stores are idempotent on their natural keys.
package seed

import (
	"context"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sitetrust/scoring-engine/internal/domain"
	"github.com/sitetrust/scoring-engine/internal/store"
	"github.com/sitetrust/scoring-engine/internal/urlkey"
)

// File is the on-disk seed layout.
type File struct {
	Blacklist []BlacklistSeed `yaml:"blacklist"`
	Rules     []RuleSeed      `yaml:"content_rules"`
	Config    []ConfigSeed    `yaml:"trust_config"`
}

// BlacklistSeed is one blacklist pattern to install.
type BlacklistSeed struct {
	Pattern     string `yaml:"pattern"`
	Type        string `yaml:"type"`
	Severity    int    `yaml:"severity"`
	Description string `yaml:"description"`
}

// RuleSeed is one content-type rule to install.
type RuleSeed struct {
	Domain      string  `yaml:"domain"`
	ContentType string  `yaml:"content_type"`
	URLPattern  *string `yaml:"url_pattern"`
	Modifier    int     `yaml:"modifier"`
	MinRatings  int     `yaml:"min_ratings"`
	Description string  `yaml:"description"`
}

// ConfigSeed is one trust-config key to install.
type ConfigSeed struct {
	Key         string `yaml:"key"`
	Value       string `yaml:"value"`
	Description string `yaml:"description"`
}

// Load parses a seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &f, nil
}

// Apply installs every entry of the file. Invalid entries are skipped with
// a log line rather than aborting the bootstrap.
func Apply(ctx context.Context, f *File, rules store.RuleStore, trustcfg store.TrustConfigStore) (string, error) {
	blacklisted := 0
	for _, b := range f.Blacklist {
		if b.Pattern == "" {
			log.Printf("[Seed] skipping blacklist entry with empty pattern")
			continue
		}
		severity := b.Severity
		if severity < domain.MinSeverity || severity > domain.MaxSeverity {
			severity = 5
		}
		blType := b.Type
		if blType == "" {
			blType = "malware"
		}
		entry := &domain.BlacklistEntry{
			Pattern:     urlkey.NormalizeDomain(b.Pattern),
			Type:        blType,
			Severity:    severity,
			Description: b.Description,
			Active:      true,
		}
		if err := rules.InsertBlacklistEntry(ctx, entry); err != nil {
			return "", fmt.Errorf("seed blacklist %s: %w", b.Pattern, err)
		}
		blacklisted++
	}

	ruled := 0
	for _, r := range f.Rules {
		if r.Domain == "" || r.ContentType == "" {
			log.Printf("[Seed] skipping rule without domain or content type")
			continue
		}
		minRatings := r.MinRatings
		if minRatings == 0 {
			minRatings = 3
		}
		rule := &domain.ContentTypeRule{
			Domain:      urlkey.NormalizeDomain(r.Domain),
			ContentType: r.ContentType,
			URLPattern:  r.URLPattern,
			Modifier:    domain.ClampModifier(r.Modifier),
			MinRatings:  domain.ClampMinRatings(minRatings),
			Active:      true,
			Description: r.Description,
		}
		if err := rules.InsertRule(ctx, rule); err != nil {
			return "", fmt.Errorf("seed rule %s: %w", r.Domain, err)
		}
		ruled++
	}

	configured := 0
	for _, c := range f.Config {
		if c.Key == "" {
			log.Printf("[Seed] skipping config entry with empty key")
			continue
		}
		entry := &domain.TrustConfigEntry{
			Key:         c.Key,
			Value:       c.Value,
			Description: c.Description,
		}
		if err := trustcfg.Set(ctx, entry); err != nil {
			return "", fmt.Errorf("seed config %s: %w", c.Key, err)
		}
		configured++
	}

	return fmt.Sprintf("seeded %d blacklist entries, %d rules, %d config keys",
		blacklisted, ruled, configured), nil
}
