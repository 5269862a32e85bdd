// Package store defines the persistence boundary of the jobs service. The
// query engine and the lifecycle sweeps only talk to JobStore; the postgres
// and badger packages provide the implementations.
package store

import (
	"context"
	"errors"
	"time"

	"jobmate/jobs-service/internal/model"
	"jobmate/jobs-service/internal/query"
)

// ErrNotFound is returned when a job does not exist.
var ErrNotFound = errors.New("job not found")

// ErrConflict is returned when creating a job whose id already exists.
var ErrConflict = errors.New("job already exists")

// FindQuery selects a page of jobs. A zero Limit means no limit.
type FindQuery struct {
	Where  []query.Predicate
	Sort   []query.SortField
	Offset int
	Limit  int
}

// JobStore is the queryable job collection plus the health-run log.
type JobStore interface {
	// CountJobs returns how many jobs satisfy every predicate.
	CountJobs(ctx context.Context, where []query.Predicate) (int64, error)
	// FindJobs returns the jobs satisfying q.Where, ordered by q.Sort and
	// windowed by q.Offset / q.Limit.
	FindJobs(ctx context.Context, q FindQuery) ([]model.Job, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
	CreateJob(ctx context.Context, j *model.Job) error
	// UpdateJob applies patch and bumps updatedAt.
	UpdateJob(ctx context.Context, id string, patch model.JobPatch) (*model.Job, error)
	DeleteJob(ctx context.Context, id string) error

	// SetStatusWhere moves every job matching where to status, bumping
	// updatedAt, and returns the number of jobs changed.
	SetStatusWhere(ctx context.Context, where []query.Predicate, status model.Status) (int64, error)
	// ScanForDedup streams every job not already marked duplicates, ordered
	// by updatedAt (newest first when newestFirst is set, id as tie-break).
	// Only the fields that make up the duplicate key are guaranteed to be
	// populated.
	ScanForDedup(ctx context.Context, newestFirst bool, fn func(j *model.Job) error) error
	// MarkDuplicates sets status duplicates on the given ids and returns how
	// many changed.
	MarkDuplicates(ctx context.Context, ids []string) (int64, error)

	InsertScraperRun(ctx context.Context, r *model.ScraperRun) error
	// ScraperRunsSince returns runs created at or after since, oldest first.
	ScraperRunsSince(ctx context.Context, since time.Time) ([]model.ScraperRun, error)
	// DailyCounts buckets jobs by UTC createdAt day over [from, to], one
	// entry per day including empty days, oldest first.
	DailyCounts(ctx context.Context, from, to time.Time) ([]model.DailyCount, error)

	Ping(ctx context.Context) error
	Close() error
}

// DayRange returns the UTC calendar days covering [from, to], formatted
// YYYY-MM-DD, oldest first.
func DayRange(from, to time.Time) []string {
	start := truncateDay(from)
	end := truncateDay(to)
	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(time.DateOnly))
	}
	return days
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
