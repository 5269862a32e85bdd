package model

import "time"

// JobInput is the payload accepted when a collaborator creates a job.
type JobInput struct {
	Title           string     `json:"title" validate:"required,max=300"`
	Description     string     `json:"description" validate:"max=50000"`
	CompanyName     string     `json:"companyName" validate:"required,max=300"`
	RoleCategory    string     `json:"roleCategory" validate:"max=120"`
	ExperienceLevel string     `json:"experienceLevel" validate:"max=120"`
	JobType         string     `json:"jobType" validate:"max=120"`
	WorkSettings    string     `json:"workSettings" validate:"max=120"`
	Skills          []string   `json:"skills" validate:"max=100,dive,max=120"`
	Country         string     `json:"country" validate:"max=120"`
	State           string     `json:"state" validate:"max=120"`
	City            string     `json:"city" validate:"max=120"`
	MinSalary       *float64   `json:"minSalary" validate:"omitempty,gte=0"`
	MaxSalary       *float64   `json:"maxSalary" validate:"omitempty,gte=0"`
	ApplyURL        string     `json:"applyUrl" validate:"omitempty,url"`
	PostedDate      *time.Time `json:"postedDate"`
	BrokenLink      bool       `json:"brokenLink"`
	IPBlocked       bool       `json:"ipBlocked"`
}

// JobPatch carries a partial update. Nil fields are left untouched.
type JobPatch struct {
	Title           *string    `json:"title" validate:"omitempty,min=1,max=300"`
	Description     *string    `json:"description" validate:"omitempty,max=50000"`
	CompanyName     *string    `json:"companyName" validate:"omitempty,min=1,max=300"`
	RoleCategory    *string    `json:"roleCategory" validate:"omitempty,max=120"`
	ExperienceLevel *string    `json:"experienceLevel" validate:"omitempty,max=120"`
	JobType         *string    `json:"jobType" validate:"omitempty,max=120"`
	WorkSettings    *string    `json:"workSettings" validate:"omitempty,max=120"`
	Skills          *[]string  `json:"skills" validate:"omitempty,max=100,dive,max=120"`
	Country         *string    `json:"country" validate:"omitempty,max=120"`
	State           *string    `json:"state" validate:"omitempty,max=120"`
	City            *string    `json:"city" validate:"omitempty,max=120"`
	MinSalary       *float64   `json:"minSalary" validate:"omitempty,gte=0"`
	MaxSalary       *float64   `json:"maxSalary" validate:"omitempty,gte=0"`
	ApplyURL        *string    `json:"applyUrl" validate:"omitempty,url"`
	JobStatus       *Status    `json:"jobStatus" validate:"omitempty,oneof=active expired inactive duplicates"`
	PostedDate      *time.Time `json:"postedDate"`
	BrokenLink      *bool      `json:"brokenLink"`
	IPBlocked       *bool      `json:"ipBlocked"`
}

// IsEmpty reports whether the patch changes nothing.
func (p *JobPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.CompanyName == nil &&
		p.RoleCategory == nil && p.ExperienceLevel == nil && p.JobType == nil &&
		p.WorkSettings == nil && p.Skills == nil && p.Country == nil &&
		p.State == nil && p.City == nil && p.MinSalary == nil &&
		p.MaxSalary == nil && p.ApplyURL == nil && p.JobStatus == nil &&
		p.PostedDate == nil && p.BrokenLink == nil && p.IPBlocked == nil
}

// Apply copies every non-nil field of p onto j.
func (p *JobPatch) Apply(j *Job) {
	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setStr(&j.Title, p.Title)
	setStr(&j.Description, p.Description)
	setStr(&j.CompanyName, p.CompanyName)
	setStr(&j.RoleCategory, p.RoleCategory)
	setStr(&j.ExperienceLevel, p.ExperienceLevel)
	setStr(&j.JobType, p.JobType)
	setStr(&j.WorkSettings, p.WorkSettings)
	setStr(&j.Country, p.Country)
	setStr(&j.State, p.State)
	setStr(&j.City, p.City)
	setStr(&j.ApplyURL, p.ApplyURL)
	if p.Skills != nil {
		j.Skills = append([]string(nil), (*p.Skills)...)
	}
	if p.MinSalary != nil {
		v := *p.MinSalary
		j.MinSalary = &v
	}
	if p.MaxSalary != nil {
		v := *p.MaxSalary
		j.MaxSalary = &v
	}
	if p.JobStatus != nil {
		j.JobStatus = *p.JobStatus
	}
	if p.PostedDate != nil {
		j.PostedDate = p.PostedDate.UTC()
	}
	if p.BrokenLink != nil {
		j.BrokenLink = *p.BrokenLink
	}
	if p.IPBlocked != nil {
		j.IPBlocked = *p.IPBlocked
	}
}
