package query

import (
	"strconv"
	"strings"
	"time"

	"jobmate/jobs-service/internal/model"
)

// ValueType drives value coercion for a field.
type ValueType uint8

const (
	TypeString ValueType = iota
	TypeNumber
	TypeTime
	TypeBool
	TypeStringSet
)

// Field describes a filterable / sortable job attribute.
type Field struct {
	Name string
	Type ValueType
}

// Registered field names.
const (
	FieldID              = "id"
	FieldTitle           = "title"
	FieldDescription     = "description"
	FieldCompanyName     = "companyName"
	FieldRoleCategory    = "roleCategory"
	FieldExperienceLevel = "experienceLevel"
	FieldJobType         = "jobType"
	FieldWorkSettings    = "workSettings"
	FieldSkills          = "skills"
	FieldCountry         = "country"
	FieldState           = "state"
	FieldCity            = "city"
	FieldMinSalary       = "minSalary"
	FieldMaxSalary       = "maxSalary"
	FieldApplyURL        = "applyUrl"
	FieldJobStatus       = "jobStatus"
	FieldPostedDate      = "postedDate"
	FieldCreatedAt       = "createdAt"
	FieldUpdatedAt       = "updatedAt"
	FieldBrokenLink      = "brokenLink"
	FieldIPBlocked       = "ipBlocked"
)

var registry = map[string]Field{
	FieldID:              {FieldID, TypeString},
	FieldTitle:           {FieldTitle, TypeString},
	FieldDescription:     {FieldDescription, TypeString},
	FieldCompanyName:     {FieldCompanyName, TypeString},
	FieldRoleCategory:    {FieldRoleCategory, TypeString},
	FieldExperienceLevel: {FieldExperienceLevel, TypeString},
	FieldJobType:         {FieldJobType, TypeString},
	FieldWorkSettings:    {FieldWorkSettings, TypeString},
	FieldSkills:          {FieldSkills, TypeStringSet},
	FieldCountry:         {FieldCountry, TypeString},
	FieldState:           {FieldState, TypeString},
	FieldCity:            {FieldCity, TypeString},
	FieldMinSalary:       {FieldMinSalary, TypeNumber},
	FieldMaxSalary:       {FieldMaxSalary, TypeNumber},
	FieldApplyURL:        {FieldApplyURL, TypeString},
	FieldJobStatus:       {FieldJobStatus, TypeString},
	FieldPostedDate:      {FieldPostedDate, TypeTime},
	FieldCreatedAt:       {FieldCreatedAt, TypeTime},
	FieldUpdatedAt:       {FieldUpdatedAt, TypeTime},
	FieldBrokenLink:      {FieldBrokenLink, TypeBool},
	FieldIPBlocked:       {FieldIPBlocked, TypeBool},
}

// LookupField returns the registered field with the given name.
func LookupField(name string) (Field, bool) {
	f, ok := registry[name]
	return f, ok
}

// ParseValue coerces a raw parameter string to the Go type of the named
// field. It is the only place string → typed value conversion happens.
func ParseValue(field string, raw string) (any, bool) {
	f, ok := registry[field]
	if !ok {
		return nil, false
	}
	raw = strings.TrimSpace(raw)
	switch f.Type {
	case TypeNumber:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, false
		}
		return v, true
	case TypeBool:
		return raw == "true", true
	case TypeTime:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC(), true
			}
		}
		return nil, false
	default:
		if raw == "" {
			return nil, false
		}
		return raw, true
	}
}

// FieldValue reads the named attribute from a job. Unknown names yield nil.
// Nullable numbers come back as nil or float64.
func FieldValue(j *model.Job, name string) any {
	switch name {
	case FieldID:
		return j.ID
	case FieldTitle:
		return j.Title
	case FieldDescription:
		return j.Description
	case FieldCompanyName:
		return j.CompanyName
	case FieldRoleCategory:
		return j.RoleCategory
	case FieldExperienceLevel:
		return j.ExperienceLevel
	case FieldJobType:
		return j.JobType
	case FieldWorkSettings:
		return j.WorkSettings
	case FieldSkills:
		return j.Skills
	case FieldCountry:
		return j.Country
	case FieldState:
		return j.State
	case FieldCity:
		return j.City
	case FieldMinSalary:
		if j.MinSalary == nil {
			return nil
		}
		return *j.MinSalary
	case FieldMaxSalary:
		if j.MaxSalary == nil {
			return nil
		}
		return *j.MaxSalary
	case FieldApplyURL:
		return j.ApplyURL
	case FieldJobStatus:
		return string(j.JobStatus)
	case FieldPostedDate:
		return j.PostedDate
	case FieldCreatedAt:
		return j.CreatedAt
	case FieldUpdatedAt:
		return j.UpdatedAt
	case FieldBrokenLink:
		return j.BrokenLink
	case FieldIPBlocked:
		return j.IPBlocked
	}
	return nil
}
