// Package model defines the shared data structures for the jobs service.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Status values mirror the job_status column in PostgreSQL.
//
//	active ──► expired
//	   │  ──► inactive
//	   └────► duplicates
//
// Only the lifecycle sweeps and explicit administrative updates move a job
// out of active. No automated path moves a job back into active.
type Status string

const (
	StatusActive     Status = "active"
	StatusExpired    Status = "expired"
	StatusInactive   Status = "inactive"
	StatusDuplicates Status = "duplicates"
)

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values. Matching is case-insensitive.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusActive, StatusExpired, StatusInactive, StatusDuplicates:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// Job is a single job posting.
type Job struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	CompanyName     string    `json:"companyName"`
	RoleCategory    string    `json:"roleCategory"`
	ExperienceLevel string    `json:"experienceLevel"`
	JobType         string    `json:"jobType"`
	WorkSettings    string    `json:"workSettings"`
	Skills          []string  `json:"skills"`
	Country         string    `json:"country"`
	State           string    `json:"state"`
	City            string    `json:"city"`
	MinSalary       *float64  `json:"minSalary"`
	MaxSalary       *float64  `json:"maxSalary"`
	ApplyURL        string    `json:"applyUrl"`
	JobStatus       Status    `json:"jobStatus"`
	PostedDate      time.Time `json:"postedDate"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	BrokenLink      bool      `json:"brokenLink"`
	IPBlocked       bool      `json:"ipBlocked"`
}

// DuplicateKey returns the normalized composite used to detect near-identical
// postings. It is never persisted.
func (j *Job) DuplicateKey() string {
	parts := []string{
		normalize(j.Title),
		normalize(j.Description),
		normalize(j.CompanyName),
		normalize(j.City),
		normalize(j.State),
		salaryPart(j.MinSalary),
		salaryPart(j.MaxSalary),
	}
	return strings.Join(parts, "|")
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func salaryPart(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%g", *v)
}

// ScraperRun is one append-only health log entry.
type ScraperRun struct {
	ID             string    `json:"id"`
	TotalJobs      int64     `json:"totalJobs"`
	BrokenLinks    int64     `json:"brokenLinks"`
	IPBlockedCount int64     `json:"ipBlockedCount"`
	Successful     bool      `json:"successful"`
	DurationMs     int64     `json:"durationMs"`
	CreatedAt      time.Time `json:"createdAt"`
}

// DailyCount is one bucket of the analytics chart.
type DailyCount struct {
	Date    string `json:"date"` // YYYY-MM-DD, UTC
	Total   int64  `json:"total"`
	Active  int64  `json:"active"`
	Expired int64  `json:"expired"`
	Broken  int64  `json:"broken"`
}
