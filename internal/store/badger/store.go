// Package badger is an embedded JobStore on badgerhold. It backs local
// development (STORE_DRIVER=badger) and the service-level tests.
//
// Badgerhold cannot express the compiled predicate tree (case-insensitive
// comparisons, set membership, NULL semantics), so filtering and ordering run
// in Go through query.MatchAll and the same sort rules Postgres applies.
package badger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"jobmate/jobs-service/internal/model"
	"jobmate/jobs-service/internal/query"
	"jobmate/jobs-service/internal/store"
)

// Options configures Open.
type Options struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
	// Now stamps createdAt / updatedAt. Defaults to time.Now.
	Now func() time.Time
}

// Store implements store.JobStore.
type Store struct {
	db  *badgerhold.Store
	now func() time.Time

	// mu serializes read-modify-write sequences.
	mu sync.Mutex
}

var _ store.JobStore = (*Store)(nil)

// Open opens (or creates) the store.
func Open(opts Options) (*Store, error) {
	options := badgerhold.DefaultOptions
	options.Logger = nil
	if opts.InMemory {
		options.InMemory = true
		options.Dir = ""
		options.ValueDir = ""
	} else {
		if err := os.MkdirAll(filepath.Clean(opts.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create badger directory: %w", err)
		}
		options.Dir = opts.Path
		options.ValueDir = opts.Path
	}

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{db: db, now: now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.db.Count(&model.Job{}, nil)
	return err
}

// all loads every job. Callers filter and order in memory.
func (s *Store) all() ([]model.Job, error) {
	var jobs []model.Job
	if err := s.db.Find(&jobs, badgerhold.Where("ID").Ne("")); err != nil {
		return nil, fmt.Errorf("scan jobs: %w", err)
	}
	return jobs, nil
}

func (s *Store) matching(where []query.Predicate) ([]model.Job, error) {
	jobs, err := s.all()
	if err != nil {
		return nil, err
	}
	out := jobs[:0]
	for i := range jobs {
		if query.MatchAll(where, &jobs[i]) {
			out = append(out, jobs[i])
		}
	}
	return out, nil
}

func (s *Store) CountJobs(ctx context.Context, where []query.Predicate) (int64, error) {
	jobs, err := s.matching(where)
	if err != nil {
		return 0, err
	}
	return int64(len(jobs)), nil
}

func (s *Store) FindJobs(ctx context.Context, q store.FindQuery) ([]model.Job, error) {
	jobs, err := s.matching(q.Where)
	if err != nil {
		return nil, err
	}
	sortJobs(jobs, q.Sort)

	start := min(max(q.Offset, 0), len(jobs))
	end := len(jobs)
	if q.Limit > 0 {
		end = min(start+q.Limit, len(jobs))
	}
	out := make([]model.Job, end-start)
	copy(out, jobs[start:end])
	return out, nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*model.Job, error) {
	var j model.Job
	if err := s.db.Get(id, &j); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return &j, nil
}

func (s *Store) CreateJob(ctx context.Context, j *model.Job) error {
	now := s.now().UTC()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	if j.UpdatedAt.IsZero() {
		j.UpdatedAt = j.CreatedAt
	}
	if j.PostedDate.IsZero() {
		j.PostedDate = j.CreatedAt
	}
	if j.JobStatus == "" {
		j.JobStatus = model.StatusActive
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Insert(j.ID, j); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return store.ErrConflict
		}
		return fmt.Errorf("insert job %s: %w", j.ID, err)
	}
	return nil
}

func (s *Store) UpdateJob(ctx context.Context, id string, patch model.JobPatch) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(j)
	j.UpdatedAt = s.now().UTC()
	if err := s.db.Update(id, j); err != nil {
		return nil, fmt.Errorf("update job %s: %w", id, err)
	}
	return j, nil
}

func (s *Store) DeleteJob(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.GetJob(ctx, id); err != nil {
		return err
	}
	if err := s.db.Delete(id, &model.Job{}); err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	return nil
}

func (s *Store) SetStatusWhere(ctx context.Context, where []query.Predicate, status model.Status) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs, err := s.matching(where)
	if err != nil {
		return 0, err
	}
	now := s.now().UTC()
	var n int64
	for i := range jobs {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		j := &jobs[i]
		j.JobStatus = status
		j.UpdatedAt = now
		if err := s.db.Update(j.ID, j); err != nil {
			return n, fmt.Errorf("update job %s: %w", j.ID, err)
		}
		n++
	}
	return n, nil
}

func (s *Store) ScanForDedup(ctx context.Context, newestFirst bool, fn func(j *model.Job) error) error {
	jobs, err := s.matching([]query.Predicate{
		query.Not(query.Equals(query.FieldJobStatus, string(model.StatusDuplicates))),
	})
	if err != nil {
		return err
	}
	sortJobs(jobs, []query.SortField{
		{Field: query.FieldUpdatedAt, Desc: newestFirst},
		{Field: query.FieldID},
	})
	for i := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(&jobs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) MarkDuplicates(ctx context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	var n int64
	for _, id := range ids {
		var j model.Job
		if err := s.db.Get(id, &j); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				continue
			}
			return n, fmt.Errorf("get job %s: %w", id, err)
		}
		if j.JobStatus == model.StatusDuplicates {
			continue
		}
		j.JobStatus = model.StatusDuplicates
		j.UpdatedAt = now
		if err := s.db.Update(id, &j); err != nil {
			return n, fmt.Errorf("update job %s: %w", id, err)
		}
		n++
	}
	return n, nil
}

func (s *Store) InsertScraperRun(ctx context.Context, r *model.ScraperRun) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	if err := s.db.Insert(r.ID, r); err != nil {
		return fmt.Errorf("insert scraper run: %w", err)
	}
	return nil
}

func (s *Store) ScraperRunsSince(ctx context.Context, since time.Time) ([]model.ScraperRun, error) {
	var runs []model.ScraperRun
	if err := s.db.Find(&runs, badgerhold.Where("ID").Ne("")); err != nil {
		return nil, fmt.Errorf("scan scraper runs: %w", err)
	}
	out := runs[:0]
	for _, r := range runs {
		if !r.CreatedAt.Before(since) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out, nil
}

func (s *Store) DailyCounts(ctx context.Context, from, to time.Time) ([]model.DailyCount, error) {
	days := store.DayRange(from, to)
	buckets := make(map[string]*model.DailyCount, len(days))
	out := make([]model.DailyCount, len(days))
	for i, d := range days {
		out[i].Date = d
		buckets[d] = &out[i]
	}

	jobs, err := s.all()
	if err != nil {
		return nil, err
	}
	for _, j := range jobs {
		b, ok := buckets[j.CreatedAt.UTC().Format(time.DateOnly)]
		if !ok {
			continue
		}
		b.Total++
		switch j.JobStatus {
		case model.StatusActive:
			b.Active++
		case model.StatusExpired:
			b.Expired++
		}
		if j.BrokenLink {
			b.Broken++
		}
	}
	return out, nil
}

// sortJobs orders jobs the way Postgres would for the same ORDER BY under the
// C collation. NULLs sort as the largest value.
func sortJobs(jobs []model.Job, order []query.SortField) {
	sort.SliceStable(jobs, func(a, b int) bool {
		for _, sf := range order {
			c := compareField(query.FieldValue(&jobs[a], sf.Field), query.FieldValue(&jobs[b], sf.Field))
			if c == 0 {
				continue
			}
			if sf.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareField(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	switch av := a.(type) {
	case string:
		return strings.Compare(av, b.(string))
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case time.Time:
		return av.Compare(b.(time.Time))
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		}
		return 1
	}
	return 0
}
