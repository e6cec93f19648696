// Package scheduler drives the background jobs on cron schedules. Every
// run takes a distributed lock first, so multiple engine instances can
// share one database without doubling the work.
package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/sitetrust/scoring-engine/internal/pkg/distlock"
)

var (
	jobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scoring_job_runs_total",
		Help: "Background job runs by outcome.",
	}, []string{"job", "outcome"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scoring_job_duration_seconds",
		Help:    "Background job run duration.",
		Buckets: prometheus.ExponentialBuckets(0.1, 3, 8),
	}, []string{"job"})
)

// Job is one schedulable unit of background work. RunOnce returns a short
// human-readable summary for the logs.
type Job interface {
	Name() string
	RunOnce(ctx context.Context) (string, error)
}

// jobEntry tracks one registered job and its in-process running flag.
type jobEntry struct {
	job     Job
	spec    string
	timeout time.Duration
	running int32
}

// Scheduler owns the cron runner and the lock backends. Register all jobs
// before Start; the set is fixed afterwards.
type Scheduler struct {
	cron  *cron.Cron
	redis *redis.Client
	db    *sql.DB

	mu   sync.Mutex
	jobs map[string]*jobEntry
}

// New creates a scheduler. redisClient may be nil; locking then falls back
// to Postgres advisory locks on db.
func New(redisClient *redis.Client, db *sql.DB) *Scheduler {
	return &Scheduler{
		cron:  cron.New(),
		redis: redisClient,
		db:    db,
		jobs:  make(map[string]*jobEntry),
	}
}

// Register schedules a job. timeout bounds one run; zero means 10 minutes.
func (s *Scheduler) Register(spec string, job Job, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	entry := &jobEntry{job: job, spec: spec, timeout: timeout}

	s.mu.Lock()
	if _, dup := s.jobs[job.Name()]; dup {
		s.mu.Unlock()
		return fmt.Errorf("job %q already registered", job.Name())
	}
	s.jobs[job.Name()] = entry
	s.mu.Unlock()

	_, err := s.cron.AddFunc(spec, func() {
		s.runJob(context.Background(), entry)
	})
	if err != nil {
		return fmt.Errorf("schedule %q (%s): %w", job.Name(), spec, err)
	}
	return nil
}

// Start begins firing jobs on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.mu.Lock()
	n := len(s.jobs)
	s.mu.Unlock()
	log.Printf("[Scheduler] started with %d jobs", n)
}

// Stop halts the cron runner and waits for in-flight runs to finish, up to
// the context deadline.
func (s *Scheduler) Stop(ctx context.Context) {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		log.Printf("[Scheduler] stopped")
	case <-ctx.Done():
		log.Printf("[Scheduler] stop timed out with jobs still running")
	}
}

// Trigger runs a registered job immediately, outside its schedule. The
// admin API uses this. The run still takes the distributed lock and skips
// when an instance is already running the job.
func (s *Scheduler) Trigger(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	entry, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("unknown job %q", name)
	}
	return s.runJob(ctx, entry)
}

// JobNames lists the registered jobs, for the admin surface.
func (s *Scheduler) JobNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// runJob is the single execution path for scheduled and triggered runs:
// in-process overlap guard, then the distributed lock, then the job itself
// under its timeout.
func (s *Scheduler) runJob(ctx context.Context, entry *jobEntry) (string, error) {
	name := entry.job.Name()

	if !atomic.CompareAndSwapInt32(&entry.running, 0, 1) {
		jobRuns.WithLabelValues(name, "skipped").Inc()
		return "", fmt.Errorf("job %q is already running", name)
	}
	defer atomic.StoreInt32(&entry.running, 0)

	runCtx, cancel := context.WithTimeout(ctx, entry.timeout)
	defer cancel()

	lock := distlock.NewLock(s.redis, s.db, "job:"+name, entry.timeout)
	acquired, err := lock.Acquire(runCtx)
	if err != nil {
		jobRuns.WithLabelValues(name, "error").Inc()
		return "", fmt.Errorf("acquire lock for %q: %w", name, err)
	}
	if !acquired {
		jobRuns.WithLabelValues(name, "skipped").Inc()
		log.Printf("[Scheduler] %s skipped, another instance holds the lock", name)
		return "", fmt.Errorf("job %q is running on another instance", name)
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			log.Printf("[Scheduler] lock release failed for %s: %v", name, err)
		}
	}()

	start := time.Now()
	summary, err := entry.job.RunOnce(runCtx)
	jobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		jobRuns.WithLabelValues(name, "error").Inc()
		log.Printf("[Scheduler] %s failed after %s: %v", name, time.Since(start).Round(time.Millisecond), err)
		return summary, err
	}

	jobRuns.WithLabelValues(name, "ok").Inc()
	log.Printf("[Scheduler] %s: %s", name, summary)
	return summary, nil
}
