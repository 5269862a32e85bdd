package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/jobs-service/internal/model"
	"jobmate/jobs-service/internal/query"
	"jobmate/jobs-service/internal/store"
)

func TestPredicateSQL(t *testing.T) {
	since := time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		pred     query.Predicate
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "string equality is case-insensitive",
			pred:     query.Equals(query.FieldCity, "Berlin"),
			wantSQL:  "lower(city) = lower($1)",
			wantArgs: []any{"Berlin"},
		},
		{
			name:     "set membership on scalar column",
			pred:     query.In(query.FieldJobType, "Remote", "hybrid"),
			wantSQL:  "lower(job_type) = ANY($1)",
			wantArgs: []any{[]string{"remote", "hybrid"}},
		},
		{
			name:     "set membership on skills array",
			pred:     query.In(query.FieldSkills, "Go"),
			wantSQL:  "EXISTS (SELECT 1 FROM unnest(skills) AS s WHERE lower(s) = ANY($1))",
			wantArgs: []any{[]string{"go"}},
		},
		{
			name:     "empty membership matches nothing",
			pred:     query.In(query.FieldJobType),
			wantSQL:  "FALSE",
			wantArgs: nil,
		},
		{
			name:     "numeric range",
			pred:     query.Range(query.FieldMinSalary, query.OpGte, 50000.0),
			wantSQL:  "min_salary >= $1",
			wantArgs: []any{50000.0},
		},
		{
			name:     "time range",
			pred:     query.Range(query.FieldPostedDate, query.OpGte, since),
			wantSQL:  "posted_date >= $1",
			wantArgs: []any{since},
		},
		{
			name:     "contains escapes wildcards",
			pred:     query.Contains(query.FieldTitle, "100%_go"),
			wantSQL:  "title ILIKE $1",
			wantArgs: []any{`%100\%\_go%`},
		},
		{
			name:     "negation treats null as not matched",
			pred:     query.Not(query.Equals(query.FieldJobStatus, "active")),
			wantSQL:  "NOT COALESCE((lower(job_status) = lower($1)), FALSE)",
			wantArgs: []any{"active"},
		},
		{
			name: "any of",
			pred: query.AnyOf(
				query.Contains(query.FieldCountry, "de"),
				query.Contains(query.FieldCity, "de"),
			),
			wantSQL:  "(country ILIKE $1 OR city ILIKE $2)",
			wantArgs: []any{"%de%", "%de%"},
		},
		{
			name:     "id compares as text",
			pred:     query.Equals(query.FieldID, "ABC"),
			wantSQL:  "lower(id::text) = lower($1)",
			wantArgs: []any{"ABC"},
		},
		{
			name:     "bool equality",
			pred:     query.Equals(query.FieldBrokenLink, true),
			wantSQL:  "broken_link = $1",
			wantArgs: []any{true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b sqlBuilder
			got, err := b.predicate(tt.pred)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, got)
			assert.Equal(t, tt.wantArgs, b.args)
		})
	}
}

func TestPredicateSQL_Rejects(t *testing.T) {
	bad := []query.Predicate{
		query.Equals("salary; DROP TABLE jobs", 1.0),
		query.Range(query.FieldSkills, query.OpGt, "go"),
		{Kind: query.KindNot},
	}
	for _, p := range bad {
		var b sqlBuilder
		_, err := b.predicate(p)
		assert.Error(t, err)
	}
}

func TestFindSQL_CompiledFilter(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	f := query.Compile(map[string][]string{
		"city":  {"Berlin"},
		"sort":  {"-postedDate"},
		"page":  {"3"},
		"limit": {"5"},
	}, now)

	sql, args, err := findSQL(store.FindQuery{
		Where:  f.Where,
		Sort:   f.Sort,
		Offset: f.Window.Offset(),
		Limit:  f.Window.Limit,
	})
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT "+jobColumns+" FROM jobs"+
			" WHERE lower(city) = lower($1) AND posted_date >= $2 AND lower(job_status) = lower($3)"+
			" ORDER BY posted_date DESC, id::text ASC OFFSET $4 LIMIT $5",
		sql)
	assert.Equal(t, []any{"Berlin", now.Add(-query.DefaultWindow), "active", 10, 5}, args)
}

func TestFindSQL_CompiledSkillsRangeIsDropped(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	f := query.Compile(map[string][]string{"skills[gt]": {"go"}}, now)

	sql, _, err := findSQL(store.FindQuery{Where: f.Where, Sort: f.Sort})
	require.NoError(t, err)
	assert.NotContains(t, sql, "unnest(skills)")
}

func TestFindSQL_HugePageOffset(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	f := query.Compile(map[string][]string{"page": {"922337203685477582"}, "limit": {"10"}}, now)
	require.Positive(t, f.Window.Offset())

	_, args, err := findSQL(store.FindQuery{
		Where:  f.Where,
		Sort:   f.Sort,
		Offset: f.Window.Offset(),
		Limit:  f.Window.Limit,
	})
	require.NoError(t, err)
	assert.Equal(t, f.Window.Offset(), args[len(args)-2])
}

func TestOrderBy_RejectsUnknown(t *testing.T) {
	_, err := orderBy([]query.SortField{{Field: "1; DROP TABLE jobs"}})
	assert.Error(t, err)

	got, err := orderBy(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPatchAssignments(t *testing.T) {
	title := "Senior Go Engineer"
	status := model.StatusExpired
	floor := 10.0

	var b sqlBuilder
	sets := b.patchAssignments(model.JobPatch{Title: &title, JobStatus: &status, MinSalary: &floor})

	assert.Equal(t, []string{"title = $1", "min_salary = $2", "job_status = $3"}, sets)
	assert.Equal(t, []any{"Senior Go Engineer", 10.0, "expired"}, b.args)
}
