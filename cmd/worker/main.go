// The worker binary runs the background jobs without the API listener,
// for deployments that scale the HTTP and batch tiers separately.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/sitetrust/scoring-engine/internal/analysis"
	"github.com/sitetrust/scoring-engine/internal/config"
	"github.com/sitetrust/scoring-engine/internal/scheduler"
	"github.com/sitetrust/scoring-engine/internal/scoring"
	"github.com/sitetrust/scoring-engine/internal/store/postgres"
	"github.com/sitetrust/scoring-engine/internal/worker"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.Println("[Worker] starting background jobs")

	db, err := openDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled && cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("parse redis url: %v", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	ratings := postgres.NewRatingRepo(db)
	stats := postgres.NewURLStatsRepo(db)
	cache := postgres.NewDomainCacheRepo(db)
	rules := postgres.NewRuleRepo(db)
	engine := scoring.NewEngine(ratings, stats, cache, rules)
	analyzer := buildAnalyzer(cfg.Analyzer, cache)

	sched := scheduler.New(redisClient, db)
	jobs := []struct {
		spec string
		job  scheduler.Job
	}{
		{cfg.Scheduler.AggregateSpec, worker.NewAggregator(ratings, engine, cfg.Scheduler.AggregateSoftCap)},
		{cfg.Scheduler.DomainRefreshSpec, worker.NewDomainRefresh(cache, analyzer, cfg.Analyzer.DailyQuota)},
		{cfg.Scheduler.RuleLearnerSpec, worker.NewRuleLearner(ratings, rules)},
		{cfg.Scheduler.JanitorSpec, worker.NewJanitor(ratings, stats, cache)},
		{cfg.Scheduler.FeedPollSpec, worker.NewFeedPoller(rules, cfg.Feeds, nil)},
	}
	for _, j := range jobs {
		if err := sched.Register(j.spec, j.job, 0); err != nil {
			log.Fatalf("register job: %v", err)
		}
	}
	sched.Start()
	log.Println("[Worker] running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("[Worker] received %s, shutting down", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sched.Stop(shutdownCtx)
	log.Println("[Worker] stopped")
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

func buildAnalyzer(cfg config.AnalyzerConfig, cache *postgres.DomainCacheRepo) *analysis.Analyzer {
	timeout := cfg.Timeout()

	var whois analysis.WhoisClient
	if cfg.WhoisAPIKey != "" {
		whois = analysis.NewWhoisClient(cfg.WhoisBaseURL, cfg.WhoisAPIKey, timeout)
	}
	var sb analysis.SafeBrowsingClient
	if cfg.SafeBrowsingAPIKey != "" {
		sb = analysis.NewSafeBrowsingClient(cfg.SafeBrowsingBaseURL, cfg.SafeBrowsingAPIKey, timeout)
	}
	var hybrid analysis.HybridAnalysisClient
	if cfg.HybridAnalysisAPIKey != "" {
		hybrid = analysis.NewHybridAnalysisClient(cfg.HybridAnalysisBaseURL, cfg.HybridAnalysisAPIKey, timeout)
	}

	return analysis.NewAnalyzer(cache, whois, analysis.NewProber(timeout), sb, hybrid, timeout, cfg.DailyQuota)
}
