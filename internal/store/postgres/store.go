// Package postgres is the production JobStore over a pgx pool. Compiled
// predicates are rendered into parameterized SQL by sqlBuilder.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobmate/jobs-service/internal/model"
	"jobmate/jobs-service/internal/query"
	"jobmate/jobs-service/internal/store"
)

//go:embed schema.sql
var schema string

const jobColumns = `id::text, title, description, company_name, role_category, experience_level,
	job_type, work_settings, skills, country, state, city, min_salary, max_salary,
	apply_url, job_status, posted_date, created_at, updated_at, broken_link, ip_blocked`

const uniqueViolation = "23505"

// Store implements store.JobStore.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.JobStore = (*Store)(nil)

// New returns a Store over pool. The Store owns the pool from then on.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the tables and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) CountJobs(ctx context.Context, where []query.Predicate) (int64, error) {
	var b sqlBuilder
	w, err := b.where(where)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM jobs`+w, b.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("countJobs: %w", err)
	}
	return n, nil
}

func (s *Store) FindJobs(ctx context.Context, q store.FindQuery) ([]model.Job, error) {
	sql, args, err := findSQL(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("findJobs query: %w", err)
	}
	defer rows.Close()

	jobs := make([]model.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("findJobs scan: %w", err)
		}
		jobs = append(jobs, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("findJobs rows: %w", err)
	}
	return jobs, nil
}

func findSQL(q store.FindQuery) (string, []any, error) {
	var b sqlBuilder
	w, err := b.where(q.Where)
	if err != nil {
		return "", nil, err
	}
	order, err := orderBy(q.Sort)
	if err != nil {
		return "", nil, err
	}
	return `SELECT ` + jobColumns + ` FROM jobs` + w + order + b.window(q.Offset, q.Limit), b.args, nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*model.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1::text::uuid`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getJob: %w", err)
	}
	return j, nil
}

func (s *Store) CreateJob(ctx context.Context, j *model.Job) error {
	now := time.Now().UTC()
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

	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, title, description, company_name, role_category, experience_level,
		                   job_type, work_settings, skills, country, state, city, min_salary, max_salary,
		                   apply_url, job_status, posted_date, created_at, updated_at, broken_link, ip_blocked)
		 VALUES ($1::text::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		         $15, $16, $17, $18, $19, $20, $21)`,
		j.ID, j.Title, j.Description, j.CompanyName, j.RoleCategory, j.ExperienceLevel,
		j.JobType, j.WorkSettings, nonNil(j.Skills), j.Country, j.State, j.City, j.MinSalary, j.MaxSalary,
		j.ApplyURL, string(j.JobStatus), j.PostedDate, j.CreatedAt, j.UpdatedAt, j.BrokenLink, j.IPBlocked,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return store.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("createJob: %w", err)
	}
	return nil
}

func (s *Store) UpdateJob(ctx context.Context, id string, patch model.JobPatch) (*model.Job, error) {
	var b sqlBuilder
	sets := append(b.patchAssignments(patch), "updated_at = NOW()")
	sql := `UPDATE jobs SET ` + strings.Join(sets, ", ") +
		` WHERE id = ` + b.bind(id) + `::text::uuid RETURNING ` + jobColumns

	j, err := scanJob(s.pool.QueryRow(ctx, sql, b.args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updateJob: %w", err)
	}
	return j, nil
}

func (s *Store) DeleteJob(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1::text::uuid`, id)
	if err != nil {
		return fmt.Errorf("deleteJob: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SetStatusWhere(ctx context.Context, where []query.Predicate, status model.Status) (int64, error) {
	var b sqlBuilder
	set := `UPDATE jobs SET job_status = ` + b.bind(string(status)) + `, updated_at = NOW()`
	w, err := b.where(where)
	if err != nil {
		return 0, err
	}
	tag, err := s.pool.Exec(ctx, set+w, b.args...)
	if err != nil {
		return 0, fmt.Errorf("setStatusWhere: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) ScanForDedup(ctx context.Context, newestFirst bool, fn func(j *model.Job) error) error {
	dir := "ASC"
	if newestFirst {
		dir = "DESC"
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, title, description, company_name, city, state, min_salary, max_salary, updated_at
		 FROM jobs
		 WHERE job_status <> 'duplicates'
		 ORDER BY updated_at `+dir+`, id ASC`)
	if err != nil {
		return fmt.Errorf("scanForDedup query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var j model.Job
		if err := rows.Scan(&j.ID, &j.Title, &j.Description, &j.CompanyName,
			&j.City, &j.State, &j.MinSalary, &j.MaxSalary, &j.UpdatedAt); err != nil {
			return fmt.Errorf("scanForDedup scan: %w", err)
		}
		if err := fn(&j); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) MarkDuplicates(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET job_status = 'duplicates', updated_at = NOW()
		 WHERE id = ANY($1::text[]::uuid[]) AND job_status <> 'duplicates'`, ids)
	if err != nil {
		return 0, fmt.Errorf("markDuplicates: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) InsertScraperRun(ctx context.Context, r *model.ScraperRun) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scraper_runs (id, total_jobs, broken_links, ip_blocked_count, successful, duration_ms, created_at)
		 VALUES ($1::text::uuid, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.TotalJobs, r.BrokenLinks, r.IPBlockedCount, r.Successful, r.DurationMs, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insertScraperRun: %w", err)
	}
	return nil
}

func (s *Store) ScraperRunsSince(ctx context.Context, since time.Time) ([]model.ScraperRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, total_jobs, broken_links, ip_blocked_count, successful, duration_ms, created_at
		 FROM scraper_runs
		 WHERE created_at >= $1
		 ORDER BY created_at ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("scraperRunsSince query: %w", err)
	}
	defer rows.Close()

	runs := make([]model.ScraperRun, 0)
	for rows.Next() {
		var r model.ScraperRun
		if err := rows.Scan(&r.ID, &r.TotalJobs, &r.BrokenLinks, &r.IPBlockedCount,
			&r.Successful, &r.DurationMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scraperRunsSince scan: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *Store) DailyCounts(ctx context.Context, from, to time.Time) ([]model.DailyCount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT to_char(d.day, 'YYYY-MM-DD'),
		        COUNT(j.id),
		        COUNT(j.id) FILTER (WHERE j.job_status = 'active'),
		        COUNT(j.id) FILTER (WHERE j.job_status = 'expired'),
		        COUNT(j.id) FILTER (WHERE j.broken_link)
		 FROM generate_series($1::text::date, $2::text::date, INTERVAL '1 day') AS d(day)
		 LEFT JOIN jobs j ON (j.created_at AT TIME ZONE 'UTC')::date = d.day::date
		 GROUP BY d.day
		 ORDER BY d.day`,
		from.UTC().Format(time.DateOnly), to.UTC().Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("dailyCounts query: %w", err)
	}
	defer rows.Close()

	out := make([]model.DailyCount, 0)
	for rows.Next() {
		var c model.DailyCount
		if err := rows.Scan(&c.Date, &c.Total, &c.Active, &c.Expired, &c.Broken); err != nil {
			return nil, fmt.Errorf("dailyCounts scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		j      model.Job
		status string
	)
	err := row.Scan(
		&j.ID, &j.Title, &j.Description, &j.CompanyName, &j.RoleCategory, &j.ExperienceLevel,
		&j.JobType, &j.WorkSettings, &j.Skills, &j.Country, &j.State, &j.City, &j.MinSalary, &j.MaxSalary,
		&j.ApplyURL, &status, &j.PostedDate, &j.CreatedAt, &j.UpdatedAt, &j.BrokenLink, &j.IPBlocked,
	)
	if err != nil {
		return nil, err
	}
	j.JobStatus = model.Status(status)
	j.PostedDate = j.PostedDate.UTC()
	j.CreatedAt = j.CreatedAt.UTC()
	j.UpdatedAt = j.UpdatedAt.UTC()
	return &j, nil
}
