package postgres

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"jobmate/jobs-service/internal/model"
	"jobmate/jobs-service/internal/query"
)

// columns maps every registered field to its SQL expression. The id column
// is a uuid and is compared as text.
var columns = map[string]string{
	query.FieldID:              "id::text",
	query.FieldTitle:           "title",
	query.FieldDescription:     "description",
	query.FieldCompanyName:     "company_name",
	query.FieldRoleCategory:    "role_category",
	query.FieldExperienceLevel: "experience_level",
	query.FieldJobType:         "job_type",
	query.FieldWorkSettings:    "work_settings",
	query.FieldSkills:          "skills",
	query.FieldCountry:         "country",
	query.FieldState:           "state",
	query.FieldCity:            "city",
	query.FieldMinSalary:       "min_salary",
	query.FieldMaxSalary:       "max_salary",
	query.FieldApplyURL:        "apply_url",
	query.FieldJobStatus:       "job_status",
	query.FieldPostedDate:      "posted_date",
	query.FieldCreatedAt:       "created_at",
	query.FieldUpdatedAt:       "updated_at",
	query.FieldBrokenLink:      "broken_link",
	query.FieldIPBlocked:       "ip_blocked",
}

var rangeOps = map[query.CompareOp]string{
	query.OpGt:  ">",
	query.OpGte: ">=",
	query.OpLt:  "<",
	query.OpLte: "<=",
}

// sqlBuilder renders predicates into a parameterized WHERE clause. Values
// are always bound, never interpolated.
type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) bind(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// where returns " WHERE p1 AND p2 ..." or "" for no predicates.
func (b *sqlBuilder) where(ps []query.Predicate) (string, error) {
	if len(ps) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		s, err := b.predicate(p)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}

func (b *sqlBuilder) predicate(p query.Predicate) (string, error) {
	switch p.Kind {
	case query.KindNot:
		if len(p.Inner) != 1 {
			return "", fmt.Errorf("not predicate needs exactly one operand")
		}
		inner, err := b.predicate(p.Inner[0])
		if err != nil {
			return "", err
		}
		// NULL inside the operand counts as "not matched".
		return "NOT COALESCE((" + inner + "), FALSE)", nil
	case query.KindAnyOf:
		if len(p.Inner) == 0 {
			return "FALSE", nil
		}
		parts := make([]string, 0, len(p.Inner))
		for _, inner := range p.Inner {
			s, err := b.predicate(inner)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return "(" + strings.Join(parts, " OR ") + ")", nil
	}

	col, ok := columns[p.Field]
	if !ok {
		return "", fmt.Errorf("unknown field %q", p.Field)
	}
	f, _ := query.LookupField(p.Field)

	switch p.Kind {
	case query.KindEquals:
		switch f.Type {
		case query.TypeStringSet:
			return "EXISTS (SELECT 1 FROM unnest(" + col + ") AS s WHERE lower(s) = lower(" + b.bind(stringValue(p.Value)) + "))", nil
		case query.TypeString:
			return "lower(" + col + ") = lower(" + b.bind(stringValue(p.Value)) + ")", nil
		}
		return col + " = " + b.bind(p.Value), nil

	case query.KindIn:
		if len(p.Values) == 0 {
			return "FALSE", nil
		}
		switch f.Type {
		case query.TypeStringSet:
			return "EXISTS (SELECT 1 FROM unnest(" + col + ") AS s WHERE lower(s) = ANY(" + b.bind(lowerStrings(p.Values)) + "))", nil
		case query.TypeString:
			return "lower(" + col + ") = ANY(" + b.bind(lowerStrings(p.Values)) + ")", nil
		}
		arr, err := typedArray(f.Type, p.Values)
		if err != nil {
			return "", fmt.Errorf("field %q: %w", p.Field, err)
		}
		return col + " = ANY(" + b.bind(arr) + ")", nil

	case query.KindRange:
		op, ok := rangeOps[p.Op]
		if !ok {
			return "", fmt.Errorf("unknown comparison %q", p.Op)
		}
		switch f.Type {
		case query.TypeStringSet:
			return "", fmt.Errorf("field %q does not support range comparison", p.Field)
		case query.TypeString:
			return "lower(" + col + ") " + op + " lower(" + b.bind(stringValue(p.Value)) + ")", nil
		}
		return col + " " + op + " " + b.bind(p.Value), nil

	case query.KindContains:
		pattern := "%" + escapeLike(stringValue(p.Value)) + "%"
		if f.Type == query.TypeStringSet {
			return "EXISTS (SELECT 1 FROM unnest(" + col + ") AS s WHERE s ILIKE " + b.bind(pattern) + ")", nil
		}
		return col + " ILIKE " + b.bind(pattern), nil
	}
	return "", fmt.Errorf("unknown predicate kind %d", p.Kind)
}

// orderBy renders an ORDER BY clause. Fields outside the column map are
// rejected, so the clause never carries client text.
func orderBy(fields []query.SortField) (string, error) {
	if len(fields) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(fields))
	for _, sf := range fields {
		col, ok := columns[sf.Field]
		if !ok || sf.Field == query.FieldSkills {
			return "", fmt.Errorf("cannot sort by %q", sf.Field)
		}
		dir := "ASC"
		if sf.Desc {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

// window renders OFFSET / LIMIT. A zero limit means no limit.
func (b *sqlBuilder) window(offset, limit int) string {
	var out string
	if offset > 0 {
		out += " OFFSET " + b.bind(offset)
	}
	if limit > 0 {
		out += " LIMIT " + b.bind(limit)
	}
	return out
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case model.Status:
		return string(s)
	}
	return fmt.Sprint(v)
}

func lowerStrings(vs []any) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = strings.ToLower(stringValue(v))
	}
	return out
}

func typedArray(t query.ValueType, vs []any) (any, error) {
	switch t {
	case query.TypeNumber:
		out := make([]float64, 0, len(vs))
		for _, v := range vs {
			f, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("expected number, got %T", v)
			}
			out = append(out, f)
		}
		return out, nil
	case query.TypeTime:
		out := make([]time.Time, 0, len(vs))
		for _, v := range vs {
			tv, ok := v.(time.Time)
			if !ok {
				return nil, fmt.Errorf("expected time, got %T", v)
			}
			out = append(out, tv)
		}
		return out, nil
	case query.TypeBool:
		out := make([]bool, 0, len(vs))
		for _, v := range vs {
			bv, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("expected bool, got %T", v)
			}
			out = append(out, bv)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported array type %d", t)
}

// patchAssignments renders the SET list for a partial update.
func (b *sqlBuilder) patchAssignments(p model.JobPatch) []string {
	var sets []string
	set := func(col string, v any) {
		sets = append(sets, col+" = "+b.bind(v))
	}
	setStr := func(col string, v *string) {
		if v != nil {
			set(col, *v)
		}
	}
	setStr("title", p.Title)
	setStr("description", p.Description)
	setStr("company_name", p.CompanyName)
	setStr("role_category", p.RoleCategory)
	setStr("experience_level", p.ExperienceLevel)
	setStr("job_type", p.JobType)
	setStr("work_settings", p.WorkSettings)
	setStr("country", p.Country)
	setStr("state", p.State)
	setStr("city", p.City)
	setStr("apply_url", p.ApplyURL)
	if p.Skills != nil {
		set("skills", nonNil(*p.Skills))
	}
	if p.MinSalary != nil {
		set("min_salary", *p.MinSalary)
	}
	if p.MaxSalary != nil {
		set("max_salary", *p.MaxSalary)
	}
	if p.JobStatus != nil {
		set("job_status", string(*p.JobStatus))
	}
	if p.PostedDate != nil {
		set("posted_date", p.PostedDate.UTC())
	}
	if p.BrokenLink != nil {
		set("broken_link", *p.BrokenLink)
	}
	if p.IPBlocked != nil {
		set("ip_blocked", *p.IPBlocked)
	}
	return sets
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
