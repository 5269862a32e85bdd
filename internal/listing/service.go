// Package listing contains the job query pipeline and the job mutations.
//
// A listing read goes cache → compiler → retriever → ranking → paginator →
// cache write. Every mutation invalidates all cached listings. The package is
// transport-agnostic; handler.go adapts it to HTTP.
package listing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"jobmate/jobs-service/internal/cache"
	"jobmate/jobs-service/internal/logging"
	"jobmate/jobs-service/internal/model"
	"jobmate/jobs-service/internal/page"
	"jobmate/jobs-service/internal/query"
	"jobmate/jobs-service/internal/ranking"
	"jobmate/jobs-service/internal/store"
)

// ─── Errors ───────────────────────────────────────────────────────────────────

// ErrInvalidID is returned for a job id that is not a UUID. The store is not
// consulted.
var ErrInvalidID = errors.New("invalid job id")

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// ─── Configuration ────────────────────────────────────────────────────────────

// Config holds the pipeline knobs.
type Config struct {
	ListTTL      time.Duration
	RelatedTTL   time.Duration
	AnalyticsTTL time.Duration

	// The fuzzy path fetches min(CandidateLimit, max(MinCandidates,
	// limit*CandidateMultiplier)) rows before ranking.
	CandidateLimit      int
	CandidateMultiplier int
	MinCandidates       int

	RelatedLimit  int
	RelatedWindow time.Duration
}

// DefaultConfig returns the reference settings.
func DefaultConfig() Config {
	return Config{
		ListTTL:             60 * time.Second,
		RelatedTTL:          300 * time.Second,
		AnalyticsTTL:        60 * time.Second,
		CandidateLimit:      2000,
		CandidateMultiplier: 10,
		MinCandidates:       100,
		RelatedLimit:        10,
		RelatedWindow:       30 * 24 * time.Hour,
	}
}

// analyticsKey lives in the jobs namespace so mutations drop it too.
const analyticsKey = "jobs:analytics"

const analyticsDays = 30

// ─── Service ─────────────────────────────────────────────────────────────────

// Result is one page of a listing.
type Result struct {
	Jobs      []model.Job `json:"jobs"`
	TotalJobs int64       `json:"totalJobs"`
}

// Service runs listings and job mutations.
type Service struct {
	store    store.JobStore
	cache    *cache.Cache
	ranker   *ranking.Engine
	cfg      Config
	log      *logging.Logger
	now      func() time.Time
	validate *validator.Validate
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService returns a configured Service.
func NewService(st store.JobStore, c *cache.Cache, ranker *ranking.Engine, cfg Config, log *logging.Logger, opts ...Option) *Service {
	s := &Service{
		store:    st,
		cache:    c,
		ranker:   ranker,
		cfg:      cfg,
		log:      log.With("component", "listing"),
		now:      time.Now,
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ─── Listing ─────────────────────────────────────────────────────────────────

// List returns the page of jobs selected by params.
func (s *Service) List(ctx context.Context, params url.Values) (*Result, error) {
	key := cache.Key(cache.Jobs, params)

	var cached Result
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	f := query.Compile(params, s.now())

	var (
		res *Result
		err error
	)
	if f.Fuzzy {
		res, err = s.fuzzy(ctx, f)
	} else {
		res, err = s.exact(ctx, f)
	}
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, cache.Jobs, key, res, s.cfg.ListTTL)
	return res, nil
}

// exact pushes predicate, order and window to the store.
func (s *Service) exact(ctx context.Context, f query.Filter) (*Result, error) {
	total, err := s.store.CountJobs(ctx, f.Where)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	jobs, err := s.store.FindJobs(ctx, store.FindQuery{
		Where:  f.Where,
		Sort:   f.Sort,
		Offset: f.Window.Offset(),
		Limit:  f.Window.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("find jobs: %w", err)
	}
	return &Result{Jobs: jobs, TotalJobs: total}, nil
}

// fuzzy ranks a bounded candidate window in memory.
//
// TotalJobs is the number of ranked candidates, not the full matching
// population: once more than the candidate window matches, the count is
// capped. The exact path reports the true count.
func (s *Service) fuzzy(ctx context.Context, f query.Filter) (*Result, error) {
	candidates, err := s.store.FindJobs(ctx, store.FindQuery{
		Where: f.Where,
		Sort:  f.Sort,
		Limit: s.candidateWindow(f.Window),
	})
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}

	scored, err := s.ranker.Rank(candidates, f.Keyword, f.Location)
	if err != nil {
		return nil, fmt.Errorf("rank candidates: %w", err)
	}

	ranked := make([]model.Job, len(scored))
	for i := range scored {
		ranked[i] = scored[i].Job
	}
	return &Result{
		Jobs:      page.Slice(ranked, f.Window),
		TotalJobs: int64(len(ranked)),
	}, nil
}

func (s *Service) candidateWindow(w page.Window) int {
	return min(s.cfg.CandidateLimit, max(s.cfg.MinCandidates, w.Limit*s.cfg.CandidateMultiplier))
}

// ─── Single job ──────────────────────────────────────────────────────────────

// Get returns one job.
func (s *Service) Get(ctx context.Context, id string) (*model.Job, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}
	return s.store.GetJob(ctx, id)
}

// Create validates in, stores it as a new active job and invalidates the
// cache.
func (s *Service) Create(ctx context.Context, in model.JobInput) (*model.Job, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	if err := checkSalaryRange(in.MinSalary, in.MaxSalary); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	j := &model.Job{
		ID:              uuid.NewString(),
		Title:           in.Title,
		Description:     in.Description,
		CompanyName:     in.CompanyName,
		RoleCategory:    in.RoleCategory,
		ExperienceLevel: in.ExperienceLevel,
		JobType:         in.JobType,
		WorkSettings:    in.WorkSettings,
		Skills:          in.Skills,
		Country:         in.Country,
		State:           in.State,
		City:            in.City,
		MinSalary:       in.MinSalary,
		MaxSalary:       in.MaxSalary,
		ApplyURL:        in.ApplyURL,
		JobStatus:       model.StatusActive,
		PostedDate:      now,
		CreatedAt:       now,
		UpdatedAt:       now,
		BrokenLink:      in.BrokenLink,
		IPBlocked:       in.IPBlocked,
	}
	if in.PostedDate != nil {
		j.PostedDate = in.PostedDate.UTC()
	}

	if err := s.store.CreateJob(ctx, j); err != nil {
		return nil, err
	}
	s.cache.InvalidateAll(ctx)
	s.log.Info("job created", "id", j.ID)
	return j, nil
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id string, patch model.JobPatch) (*model.Job, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, &ValidationError{Msg: "no fields to update"}
	}
	if err := s.check(patch); err != nil {
		return nil, err
	}
	if err := s.checkPatchedSalary(ctx, id, patch); err != nil {
		return nil, err
	}

	j, err := s.store.UpdateJob(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateAll(ctx)
	return j, nil
}

// UpdateStatus is the administrative status change. Unlike the lifecycle
// sweeps it may move a job back to active.
func (s *Service) UpdateStatus(ctx context.Context, id, rawStatus string) (*model.Job, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}
	status, err := model.ParseStatus(rawStatus)
	if err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}

	j, err := s.store.UpdateJob(ctx, id, model.JobPatch{JobStatus: &status})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateAll(ctx)
	s.log.Info("job status updated", "id", id, "status", string(status))
	return j, nil
}

// Delete removes a job.
func (s *Service) Delete(ctx context.Context, id string) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteJob(ctx, id); err != nil {
		return err
	}
	s.cache.InvalidateAll(ctx)
	s.log.Info("job deleted", "id", id)
	return nil
}

// Related returns active jobs sharing the role category or a skill with the
// given job, newest first.
func (s *Service) Related(ctx context.Context, id string) ([]model.Job, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}
	key := cache.IDKey(cache.RelatedJobs, id)

	var cached []model.Job
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	src, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	var shared []query.Predicate
	if src.RoleCategory != "" {
		shared = append(shared, query.Equals(query.FieldRoleCategory, src.RoleCategory))
	}
	if len(src.Skills) > 0 {
		skills := make([]any, len(src.Skills))
		for i, sk := range src.Skills {
			skills[i] = sk
		}
		shared = append(shared, query.In(query.FieldSkills, skills...))
	}

	related := make([]model.Job, 0)
	if len(shared) > 0 {
		related, err = s.store.FindJobs(ctx, store.FindQuery{
			Where: []query.Predicate{
				query.AnyOf(shared...),
				query.Not(query.Equals(query.FieldID, src.ID)),
				query.Equals(query.FieldJobStatus, string(model.StatusActive)),
				query.Range(query.FieldPostedDate, query.OpGte, s.now().UTC().Add(-s.cfg.RelatedWindow)),
			},
			Sort: []query.SortField{
				{Field: query.FieldPostedDate, Desc: true},
				{Field: query.FieldID},
			},
			Limit: s.cfg.RelatedLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("find related jobs: %w", err)
		}
	}

	s.cache.Set(ctx, cache.RelatedJobs, key, related, s.cfg.RelatedTTL)
	return related, nil
}

// ─── Aggregates ──────────────────────────────────────────────────────────────

// ActiveCount returns the number of active jobs.
func (s *Service) ActiveCount(ctx context.Context) (int64, error) {
	n, err := s.store.CountJobs(ctx, []query.Predicate{
		query.Equals(query.FieldJobStatus, string(model.StatusActive)),
	})
	if err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return n, nil
}

// DayStats are the counts of jobs created on one UTC day.
type DayStats struct {
	Total   int64 `json:"total"`
	Active  int64 `json:"active"`
	Expired int64 `json:"expired"`
	Broken  int64 `json:"broken"`
}

// Analytics is the dashboard summary.
type Analytics struct {
	Today     DayStats           `json:"today"`
	Yesterday DayStats           `json:"yesterday"`
	ChartData []model.DailyCount `json:"chartData"`
}

// Analytics returns today's and yesterday's counts and a per-day chart of
// the trailing 30 days, all by createdAt.
func (s *Service) Analytics(ctx context.Context) (*Analytics, error) {
	var cached Analytics
	if s.cache.Get(ctx, analyticsKey, &cached) {
		return &cached, nil
	}

	now := s.now().UTC()
	chart, err := s.store.DailyCounts(ctx, now.AddDate(0, 0, -(analyticsDays-1)), now)
	if err != nil {
		return nil, fmt.Errorf("daily counts: %w", err)
	}

	a := &Analytics{ChartData: chart}
	if n := len(chart); n > 0 {
		a.Today = dayStats(chart[n-1])
		if n > 1 {
			a.Yesterday = dayStats(chart[n-2])
		}
	}

	s.cache.Set(ctx, cache.Jobs, analyticsKey, a, s.cfg.AnalyticsTTL)
	return a, nil
}

func dayStats(c model.DailyCount) DayStats {
	return DayStats{Total: c.Total, Active: c.Active, Expired: c.Expired, Broken: c.Broken}
}

// ScraperMetrics summarises the health runs of a trailing interval.
type ScraperMetrics struct {
	TotalRuns          int     `json:"totalRuns"`
	SuccessRate        float64 `json:"successRate"` // percent
	BrokenLinksLastRun int64   `json:"brokenLinksLastRun"`
	IPBlockedLastRun   int64   `json:"ipBlockedLastRun"`
}

// DefaultMetricsHours is the trailing interval used when none is given.
const DefaultMetricsHours = 24

// ScraperMetrics reports the health runs of the last hours.
func (s *Service) ScraperMetrics(ctx context.Context, hours int) (*ScraperMetrics, error) {
	if hours <= 0 {
		return nil, &ValidationError{Msg: "hours must be a positive integer"}
	}
	since := s.now().UTC().Add(-time.Duration(hours) * time.Hour)
	runs, err := s.store.ScraperRunsSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("scraper runs: %w", err)
	}

	m := &ScraperMetrics{TotalRuns: len(runs)}
	if len(runs) == 0 {
		return m, nil
	}
	succeeded := 0
	for _, r := range runs {
		if r.Successful {
			succeeded++
		}
	}
	last := runs[len(runs)-1]
	m.SuccessRate = float64(succeeded) / float64(len(runs)) * 100
	m.BrokenLinksLastRun = last.BrokenLinks
	m.IPBlockedLastRun = last.IPBlockedCount
	return m, nil
}

// ─── Validation helpers ──────────────────────────────────────────────────────

// normalizeID validates id and returns its canonical lower-case form.
func normalizeID(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", ErrInvalidID
	}
	return u.String(), nil
}

// checkPatchedSalary validates the salary range the job will have after
// patch. When the patch sets only one bound the other is read from the
// stored job.
func (s *Service) checkPatchedSalary(ctx context.Context, id string, patch model.JobPatch) error {
	minSalary, maxSalary := patch.MinSalary, patch.MaxSalary
	if (minSalary == nil) == (maxSalary == nil) {
		return checkSalaryRange(minSalary, maxSalary)
	}
	cur, err := s.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if minSalary == nil {
		minSalary = cur.MinSalary
	}
	if maxSalary == nil {
		maxSalary = cur.MaxSalary
	}
	return checkSalaryRange(minSalary, maxSalary)
}

func checkSalaryRange(minSalary, maxSalary *float64) error {
	if minSalary != nil && maxSalary != nil && *maxSalary < *minSalary {
		return &ValidationError{Msg: "maxSalary must not be below minSalary"}
	}
	return nil
}
