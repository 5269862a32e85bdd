package badger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/jobs-service/internal/model"
	"jobmate/jobs-service/internal/query"
	"jobmate/jobs-service/internal/store"
	"jobmate/jobs-service/internal/store/badger"
)

var base = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func openStore(t *testing.T) (*badger.Store, *time.Time) {
	t.Helper()
	clock := base
	s, err := badger.Open(badger.Options{Path: t.TempDir(), Now: func() time.Time { return clock }})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, &clock
}

func salary(v float64) *float64 { return &v }

func seed(t *testing.T, s *badger.Store, jobs ...model.Job) {
	t.Helper()
	for i := range jobs {
		require.NoError(t, s.CreateJob(context.Background(), &jobs[i]))
	}
}

func ids(jobs []model.Job) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.ID
	}
	return out
}

func TestCreateGetDelete(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	j := model.Job{ID: "a", Title: "Go Developer", CompanyName: "Acme"}
	require.NoError(t, s.CreateJob(ctx, &j))
	assert.Equal(t, model.StatusActive, j.JobStatus)
	assert.Equal(t, base, j.CreatedAt)
	assert.Equal(t, base, j.PostedDate)

	assert.ErrorIs(t, s.CreateJob(ctx, &model.Job{ID: "a"}), store.ErrConflict)

	got, err := s.GetJob(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Go Developer", got.Title)

	require.NoError(t, s.DeleteJob(ctx, "a"))
	_, err = s.GetJob(ctx, "a")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteJob(ctx, "a"), store.ErrNotFound)
}

func TestUpdateJob_AppliesPatchAndBumpsUpdatedAt(t *testing.T) {
	s, clock := openStore(t)
	ctx := context.Background()
	seed(t, s, model.Job{ID: "a", Title: "Old", CompanyName: "Acme"})

	*clock = base.Add(time.Hour)
	title := "New"
	got, err := s.UpdateJob(ctx, "a", model.JobPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "New", got.Title)
	assert.Equal(t, "Acme", got.CompanyName)
	assert.Equal(t, base.Add(time.Hour), got.UpdatedAt)

	_, err = s.UpdateJob(ctx, "missing", model.JobPatch{Title: &title})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFindJobs_FilterSortWindow(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()
	seed(t, s,
		model.Job{ID: "1", Title: "A", City: "Berlin", CreatedAt: base.Add(-1 * time.Hour), MinSalary: salary(50000)},
		model.Job{ID: "2", Title: "B", City: "berlin", CreatedAt: base.Add(-2 * time.Hour)},
		model.Job{ID: "3", Title: "C", City: "Munich", CreatedAt: base.Add(-3 * time.Hour)},
		model.Job{ID: "4", Title: "D", City: "Berlin", CreatedAt: base.Add(-1 * time.Hour), MinSalary: salary(70000)},
	)

	where := []query.Predicate{query.Equals(query.FieldCity, "BERLIN")}
	sortBy := []query.SortField{{Field: query.FieldCreatedAt, Desc: true}, {Field: query.FieldID}}

	n, err := s.CountJobs(ctx, where)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	all, err := s.FindJobs(ctx, store.FindQuery{Where: where, Sort: sortBy})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "4", "2"}, ids(all))

	page2, err := s.FindJobs(ctx, store.FindQuery{Where: where, Sort: sortBy, Offset: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids(page2))

	beyond, err := s.FindJobs(ctx, store.FindQuery{Where: where, Sort: sortBy, Offset: 10, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestFindJobs_NullSalarySortsLast(t *testing.T) {
	s, _ := openStore(t)
	seed(t, s,
		model.Job{ID: "none", Title: "x"},
		model.Job{ID: "high", Title: "x", MinSalary: salary(90000)},
		model.Job{ID: "low", Title: "x", MinSalary: salary(40000)},
	)

	got, err := s.FindJobs(context.Background(), store.FindQuery{
		Sort: []query.SortField{{Field: query.FieldMinSalary}, {Field: query.FieldID}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"low", "high", "none"}, ids(got))
}

func TestSetStatusWhere(t *testing.T) {
	s, clock := openStore(t)
	ctx := context.Background()
	seed(t, s,
		model.Job{ID: "stale", Title: "x", UpdatedAt: base.Add(-48 * time.Hour)},
		model.Job{ID: "fresh", Title: "x"},
	)

	*clock = base.Add(time.Minute)
	where := []query.Predicate{query.Range(query.FieldUpdatedAt, query.OpLt, base.Add(-36*time.Hour))}
	n, err := s.SetStatusWhere(ctx, where, model.StatusExpired)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.GetJob(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, got.JobStatus)
	assert.Equal(t, base.Add(time.Minute), got.UpdatedAt)

	got, err = s.GetJob(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, got.JobStatus)
}

func TestScanForDedup_OrderAndSkipsDuplicates(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()
	seed(t, s,
		model.Job{ID: "old", Title: "x", UpdatedAt: base.Add(-2 * time.Hour)},
		model.Job{ID: "new", Title: "x", UpdatedAt: base.Add(-1 * time.Hour)},
		model.Job{ID: "dup", Title: "x", UpdatedAt: base, JobStatus: model.StatusDuplicates},
	)

	var seen []string
	require.NoError(t, s.ScanForDedup(ctx, true, func(j *model.Job) error {
		seen = append(seen, j.ID)
		return nil
	}))
	assert.Equal(t, []string{"new", "old"}, seen)

	seen = nil
	require.NoError(t, s.ScanForDedup(ctx, false, func(j *model.Job) error {
		seen = append(seen, j.ID)
		return nil
	}))
	assert.Equal(t, []string{"old", "new"}, seen)
}

func TestMarkDuplicates_CountsOnlyChanges(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()
	seed(t, s,
		model.Job{ID: "a", Title: "x"},
		model.Job{ID: "b", Title: "x", JobStatus: model.StatusDuplicates},
	)

	n, err := s.MarkDuplicates(ctx, []string{"a", "b", "missing"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.GetJob(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDuplicates, got.JobStatus)
}

func TestScraperRunsSince(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()
	for i, at := range []time.Time{base.Add(-48 * time.Hour), base.Add(-2 * time.Hour), base.Add(-time.Hour)} {
		r := &model.ScraperRun{ID: string(rune('a' + i)), TotalJobs: int64(i), CreatedAt: at}
		require.NoError(t, s.InsertScraperRun(ctx, r))
	}

	runs, err := s.ScraperRunsSince(ctx, base.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].ID)
	assert.Equal(t, "c", runs[1].ID)
}

func TestDailyCounts_IncludesEmptyDays(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()
	yesterday := base.AddDate(0, 0, -1)
	seed(t, s,
		model.Job{ID: "1", Title: "x", CreatedAt: base},
		model.Job{ID: "2", Title: "x", CreatedAt: base, JobStatus: model.StatusExpired, BrokenLink: true},
		model.Job{ID: "3", Title: "x", CreatedAt: yesterday.AddDate(0, 0, -1)},
	)

	got, err := s.DailyCounts(ctx, yesterday, base)
	require.NoError(t, err)
	assert.Equal(t, []model.DailyCount{
		{Date: "2026-03-09"},
		{Date: "2026-03-10", Total: 2, Active: 1, Expired: 1, Broken: 1},
	}, got)
}
