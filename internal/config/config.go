package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the scoring engine.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Analyzer  AnalyzerConfig  `yaml:"analyzer"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Feeds     []FeedConfig    `yaml:"feeds"`
	Seed      SeedConfig      `yaml:"seed"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port                  int    `yaml:"port"`
	Host                  string `yaml:"host"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

// GetHost returns the server host. Containers listen on all interfaces;
// SERVER_HOST overrides either way.
func (c ServerConfig) GetHost() string {
	if os.Getenv("CONTAINER") != "" || os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// RequestTimeout returns the per-request handler deadline.
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL                string `yaml:"url"`
	MaxOpenConns       int    `yaml:"max_open_conns"`
	MaxIdleConns       int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMin int    `yaml:"conn_max_lifetime_minutes"`
}

// ConnMaxLifetime returns the configured connection lifetime as a duration.
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMin) * time.Minute
}

// RedisConfig holds the optional Redis connection used for distributed
// locking. When disabled, schedulers fall back to Postgres advisory locks.
type RedisConfig struct {
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

// AuthConfig holds the bearer-token verification settings. Tokens are
// issued by an external identity provider; this service only verifies them.
type AuthConfig struct {
	JWTSecret  string `yaml:"jwt_secret"`
	AdminToken string `yaml:"admin_token"`
}

// AnalyzerConfig holds the external signal source settings for domain
// analysis.
type AnalyzerConfig struct {
	WhoisBaseURL          string `yaml:"whois_base_url"`
	WhoisAPIKey           string `yaml:"whois_api_key"`
	SafeBrowsingBaseURL   string `yaml:"safe_browsing_base_url"`
	SafeBrowsingAPIKey    string `yaml:"safe_browsing_api_key"`
	HybridAnalysisBaseURL string `yaml:"hybrid_analysis_base_url"`
	HybridAnalysisAPIKey  string `yaml:"hybrid_analysis_api_key"`
	TimeoutSeconds        int    `yaml:"timeout_seconds"`
	DailyQuota            int    `yaml:"daily_quota"`
}

// Timeout returns the per-source deadline for external calls.
func (c AnalyzerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SchedulerConfig holds the cron specs and caps for the background jobs.
// Specs use robfig/cron syntax ("@every 5m", "@daily", "0 3 * * *").
type SchedulerConfig struct {
	AggregateSpec     string `yaml:"aggregate_spec"`
	AggregateSoftCap  int    `yaml:"aggregate_soft_cap"`
	DomainRefreshSpec string `yaml:"domain_refresh_spec"`
	RuleLearnerSpec   string `yaml:"rule_learner_spec"`
	JanitorSpec       string `yaml:"janitor_spec"`
	FeedPollSpec      string `yaml:"feed_poll_spec"`
}

// RateLimitConfig holds per-IP request rate limiting for the public API.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// FeedConfig describes one threat feed the poller ingests into the
// blacklist.
type FeedConfig struct {
	URL           string `yaml:"url"`
	BlacklistType string `yaml:"blacklist_type"`
	Severity      int    `yaml:"severity"`
}

// SeedConfig points at the optional bootstrap file applied by cmd/migrate.
type SeedConfig struct {
	Path string `yaml:"path"`
}

// Load reads and parses the configuration file, filling defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.RequestTimeoutSeconds == 0 {
		cfg.Server.RequestTimeoutSeconds = 15
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMin == 0 {
		cfg.Database.ConnMaxLifetimeMin = 30
	}
	if cfg.Analyzer.TimeoutSeconds == 0 {
		cfg.Analyzer.TimeoutSeconds = 10
	}
	if cfg.Analyzer.DailyQuota == 0 {
		cfg.Analyzer.DailyQuota = 20
	}
	if cfg.Analyzer.WhoisBaseURL == "" {
		cfg.Analyzer.WhoisBaseURL = "https://www.whoisxmlapi.com/whoisserver/WhoisService"
	}
	if cfg.Analyzer.SafeBrowsingBaseURL == "" {
		cfg.Analyzer.SafeBrowsingBaseURL = "https://safebrowsing.googleapis.com/v4/threatMatches:find"
	}
	if cfg.Analyzer.HybridAnalysisBaseURL == "" {
		cfg.Analyzer.HybridAnalysisBaseURL = "https://www.hybrid-analysis.com/api/v2"
	}
	if cfg.Scheduler.AggregateSpec == "" {
		cfg.Scheduler.AggregateSpec = "@every 5m"
	}
	if cfg.Scheduler.AggregateSoftCap == 0 {
		cfg.Scheduler.AggregateSoftCap = 200
	}
	if cfg.Scheduler.DomainRefreshSpec == "" {
		cfg.Scheduler.DomainRefreshSpec = "@daily"
	}
	if cfg.Scheduler.RuleLearnerSpec == "" {
		cfg.Scheduler.RuleLearnerSpec = "@daily"
	}
	if cfg.Scheduler.JanitorSpec == "" {
		cfg.Scheduler.JanitorSpec = "@daily"
	}
	if cfg.Scheduler.FeedPollSpec == "" {
		cfg.Scheduler.FeedPollSpec = "@daily"
	}
	if cfg.RateLimit.RequestsPerMinute == 0 {
		cfg.RateLimit.RequestsPerMinute = 60
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		cfg.Auth.AdminToken = v
	}
	if v := os.Getenv("WHOIS_API_KEY"); v != "" {
		cfg.Analyzer.WhoisAPIKey = v
	}
	if v := os.Getenv("SAFE_BROWSING_API_KEY"); v != "" {
		cfg.Analyzer.SafeBrowsingAPIKey = v
	}
	if v := os.Getenv("HYBRID_ANALYSIS_API_KEY"); v != "" {
		cfg.Analyzer.HybridAnalysisAPIKey = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ANALYZER_DAILY_QUOTA"); v != "" {
		if quota, err := strconv.Atoi(v); err == nil && quota > 0 {
			cfg.Analyzer.DailyQuota = quota
		}
	}

	return cfg, nil
}
