// Package lifecycle holds the background maintenance sweeps over the job
// collection: status expiration, duplicate marking and health telemetry.
// Every sweep is idempotent and safe to run concurrently with request
// traffic; the scheduler package decides when they run.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"jobmate/jobs-service/internal/cache"
	"jobmate/jobs-service/internal/logging"
	"jobmate/jobs-service/internal/model"
	"jobmate/jobs-service/internal/query"
	"jobmate/jobs-service/internal/store"
)

// Config tunes the sweeps.
type Config struct {
	// InactiveAfter is how long a job may go without an update before the
	// inactivity sweep moves it to InactiveStatus.
	InactiveAfter  time.Duration
	InactiveStatus model.Status
	// ExpireAfter is the maximum age by postedDate.
	ExpireAfter time.Duration
	// DedupNewestFirst keeps the most recently updated job of each
	// duplicate group; false keeps the oldest.
	DedupNewestFirst bool
	DedupChunkSize   int
	HealthWindow     time.Duration
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		InactiveAfter:    36 * time.Hour,
		InactiveStatus:   model.StatusExpired,
		ExpireAfter:      30 * 24 * time.Hour,
		DedupNewestFirst: true,
		DedupChunkSize:   1000,
		HealthWindow:     24 * time.Hour,
	}
}

// Validate rejects configurations the sweeps cannot run with.
func (c Config) Validate() error {
	if c.InactiveStatus != model.StatusExpired && c.InactiveStatus != model.StatusInactive {
		return fmt.Errorf("inactive status must be %q or %q, got %q",
			model.StatusExpired, model.StatusInactive, c.InactiveStatus)
	}
	if c.InactiveAfter <= 0 || c.ExpireAfter <= 0 || c.HealthWindow <= 0 {
		return fmt.Errorf("lifecycle durations must be positive")
	}
	if c.DedupChunkSize <= 0 {
		return fmt.Errorf("dedup chunk size must be positive")
	}
	return nil
}

// Invalidator drops cached reads derived from the job collection.
type Invalidator interface {
	InvalidateAll(ctx context.Context, namespaces ...cache.Namespace)
}

// Tasks runs the sweeps against a store.
type Tasks struct {
	store store.JobStore
	cache Invalidator
	cfg   Config
	log   *logging.Logger
	now   func() time.Time
}

// NewTasks validates cfg and returns the sweep set. now may be nil.
func NewTasks(st store.JobStore, c Invalidator, cfg Config, log *logging.Logger, now func() time.Time) (*Tasks, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Tasks{
		store: st,
		cache: c,
		cfg:   cfg,
		log:   log.With("component", "lifecycle"),
		now:   now,
	}, nil
}

// ExpireInactive moves jobs that have not been updated for InactiveAfter to
// the configured status. Jobs already expired or already at the target are
// left alone, so a second run changes nothing.
func (t *Tasks) ExpireInactive(ctx context.Context) (int64, error) {
	cutoff := t.now().UTC().Add(-t.cfg.InactiveAfter)
	where := []query.Predicate{
		query.Not(query.In(query.FieldJobStatus,
			string(model.StatusExpired), string(t.cfg.InactiveStatus))),
		query.Range(query.FieldUpdatedAt, query.OpLt, cutoff),
	}

	n, err := t.store.SetStatusWhere(ctx, where, t.cfg.InactiveStatus)
	if err != nil {
		return 0, fmt.Errorf("expire inactive: %w", err)
	}
	t.log.Info("inactive jobs swept", "changed", n, "status", t.cfg.InactiveStatus, "cutoff", cutoff)
	t.invalidate(ctx, n)
	return n, nil
}

// ExpireAged moves jobs posted more than ExpireAfter ago to expired.
func (t *Tasks) ExpireAged(ctx context.Context) (int64, error) {
	cutoff := t.now().UTC().Add(-t.cfg.ExpireAfter)
	where := []query.Predicate{
		query.Not(query.Equals(query.FieldJobStatus, string(model.StatusExpired))),
		query.Range(query.FieldPostedDate, query.OpLt, cutoff),
	}

	n, err := t.store.SetStatusWhere(ctx, where, model.StatusExpired)
	if err != nil {
		return 0, fmt.Errorf("expire aged: %w", err)
	}
	t.log.Info("aged jobs expired", "changed", n, "cutoff", cutoff)
	t.invalidate(ctx, n)
	return n, nil
}

// SweepDuplicates keeps the first job seen for every duplicate key and marks
// the rest duplicates. Ids are flushed in chunks while the scan runs so the
// pending set stays bounded.
func (t *Tasks) SweepDuplicates(ctx context.Context) (int64, error) {
	seen := make(map[string]struct{})
	pending := make([]string, 0, t.cfg.DedupChunkSize)
	var marked int64

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		n, err := t.store.MarkDuplicates(ctx, pending)
		if err != nil {
			return err
		}
		marked += n
		pending = pending[:0]
		return nil
	}

	err := t.store.ScanForDedup(ctx, t.cfg.DedupNewestFirst, func(j *model.Job) error {
		key := j.DuplicateKey()
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			return nil
		}
		pending = append(pending, j.ID)
		if len(pending) >= t.cfg.DedupChunkSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	// Chunks already flushed stay marked, so the cache goes either way.
	t.invalidate(ctx, marked)
	if err != nil {
		return marked, fmt.Errorf("sweep duplicates: %w", err)
	}

	t.log.Info("duplicate sweep finished", "groups", len(seen), "marked", marked)
	return marked, nil
}

// RecordHealth counts the trailing HealthWindow and appends a ScraperRun.
// A run is successful only when no broken link or IP block was seen.
func (t *Tasks) RecordHealth(ctx context.Context) (*model.ScraperRun, error) {
	start := t.now()
	since := start.UTC().Add(-t.cfg.HealthWindow)

	created, err := t.store.CountJobs(ctx, []query.Predicate{
		query.Range(query.FieldCreatedAt, query.OpGte, since),
	})
	if err != nil {
		return nil, fmt.Errorf("record health: created: %w", err)
	}
	broken, err := t.store.CountJobs(ctx, []query.Predicate{
		query.Equals(query.FieldBrokenLink, true),
		query.Range(query.FieldUpdatedAt, query.OpGte, since),
	})
	if err != nil {
		return nil, fmt.Errorf("record health: broken links: %w", err)
	}
	blocked, err := t.store.CountJobs(ctx, []query.Predicate{
		query.Equals(query.FieldIPBlocked, true),
		query.Range(query.FieldUpdatedAt, query.OpGte, since),
	})
	if err != nil {
		return nil, fmt.Errorf("record health: ip blocked: %w", err)
	}

	run := &model.ScraperRun{
		ID:             uuid.NewString(),
		TotalJobs:      created,
		BrokenLinks:    broken,
		IPBlockedCount: blocked,
		Successful:     broken == 0 && blocked == 0,
		DurationMs:     t.now().Sub(start).Milliseconds(),
		CreatedAt:      t.now().UTC(),
	}
	if err := t.store.InsertScraperRun(ctx, run); err != nil {
		return nil, fmt.Errorf("record health: insert: %w", err)
	}
	t.log.Info("health recorded", "created", created, "broken", broken, "ipBlocked", blocked)
	return run, nil
}

func (t *Tasks) invalidate(ctx context.Context, changed int64) {
	if changed == 0 || t.cache == nil {
		return
	}
	t.cache.InvalidateAll(ctx)
}
