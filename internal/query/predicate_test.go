package query_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"jobmate/jobs-service/internal/model"
	"jobmate/jobs-service/internal/query"
)

func salary(v float64) *float64 { return &v }

func sampleJob() *model.Job {
	return &model.Job{
		ID:          "7d6f2a0e-2a43-4e0c-a5ad-2f1c8f0f7c11",
		Title:       "Senior DevOps Engineer",
		CompanyName: "Acme GmbH",
		City:        "Berlin",
		Country:     "Germany",
		JobType:     "Remote",
		Skills:      []string{"Go", "Kubernetes"},
		MinSalary:   salary(60000),
		JobStatus:   model.StatusActive,
		PostedDate:  now.Add(-48 * time.Hour),
	}
}

func TestMatch_Variants(t *testing.T) {
	j := sampleJob()
	cases := []struct {
		name string
		p    query.Predicate
		want bool
	}{
		{"equals is case-insensitive", query.Equals(query.FieldCity, "berlin"), true},
		{"equals mismatch", query.Equals(query.FieldCity, "Paris"), false},
		{"in scalar", query.In(query.FieldJobType, "hybrid", "remote"), true},
		{"in set", query.In(query.FieldSkills, "rust", "kubernetes"), true},
		{"in set miss", query.In(query.FieldSkills, "rust"), false},
		{"range gte", query.Range(query.FieldMinSalary, query.OpGte, 60000.0), true},
		{"range gt", query.Range(query.FieldMinSalary, query.OpGt, 60000.0), false},
		{"range null", query.Range(query.FieldMaxSalary, query.OpLte, 1e9), false},
		{"range time", query.Range(query.FieldPostedDate, query.OpGte, now.Add(-72*time.Hour)), true},
		{"contains", query.Contains(query.FieldTitle, "devops"), true},
		{"not", query.Not(query.Equals(query.FieldCompanyName, "acme gmbh")), false},
		{"not on null", query.Not(query.Equals(query.FieldMaxSalary, 10.0)), true},
		{"any of", query.AnyOf(query.Contains(query.FieldTitle, "nurse"), query.Contains(query.FieldCity, "ber")), true},
		{"any of none", query.AnyOf(query.Contains(query.FieldTitle, "nurse")), false},
		{"bool", query.Equals(query.FieldBrokenLink, false), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, query.Match(c.p, j))
		})
	}
}

func TestMatchAll_ANDsPredicates(t *testing.T) {
	j := sampleJob()
	assert.True(t, query.MatchAll([]query.Predicate{
		query.Equals(query.FieldCity, "Berlin"),
		query.Equals(query.FieldJobStatus, "active"),
	}, j))
	assert.False(t, query.MatchAll([]query.Predicate{
		query.Equals(query.FieldCity, "Berlin"),
		query.Equals(query.FieldJobStatus, "expired"),
	}, j))
	assert.True(t, query.MatchAll(nil, j))
}

func TestParseValue(t *testing.T) {
	v, ok := query.ParseValue(query.FieldMinSalary, " 12.5 ")
	assert.True(t, ok)
	assert.Equal(t, 12.5, v)

	_, ok = query.ParseValue(query.FieldMinSalary, "abc")
	assert.False(t, ok)

	v, ok = query.ParseValue(query.FieldBrokenLink, "TRUE")
	assert.True(t, ok)
	assert.Equal(t, false, v)

	_, ok = query.ParseValue("unknown", "x")
	assert.False(t, ok)
}

func TestProject(t *testing.T) {
	j := sampleJob()
	got := query.Project(j, []string{"id", "title", "nope"})
	assert.Equal(t, map[string]any{"id": j.ID, "title": j.Title}, got)
	assert.Nil(t, query.Project(j, nil))
}
