// Package query compiles client-supplied listing parameters into a
// structured filter: a list of predicates ANDed together, a sort order, a
// projection, a pagination window and the free-text terms that switch
// retrieval onto the fuzzy ranking path.
//
// Compilation is permissive: unknown parameters and unparseable values are
// dropped rather than rejected.
package query

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"jobmate/jobs-service/internal/model"
	"jobmate/jobs-service/internal/page"
)

// Reserved parameter names handled outside the predicate list.
const (
	ParamPage       = "page"
	ParamLimit      = "limit"
	ParamSort       = "sort"
	ParamFields     = "fields"
	ParamKeyword    = "keyword"
	ParamLocation   = "location"
	ParamDatePosted = "datePosted"
	ParamIsActive   = "isActive"
)

// DefaultWindow is how far back postedDate reaches when the caller gives no
// datePosted.
const DefaultWindow = 30 * 24 * time.Hour

// datePostedWindows maps the named windows accepted in datePosted to their
// reach. "today" is handled separately (start of the current UTC day).
var datePostedWindows = map[string]time.Duration{
	"last_3_days":  3 * 24 * time.Hour,
	"last_7_days":  7 * 24 * time.Hour,
	"last_15_days": 15 * 24 * time.Hour,
}

// Set-membership parameters: one value, a comma list or repeated keys.
var membershipFields = map[string]bool{
	FieldSkills:       true,
	FieldJobType:      true,
	FieldWorkSettings: true,
}

var comparatorRe = regexp.MustCompile(`^(\w+)\[(gte|gt|lte|lt|ne)\]$`)

// SortField is one ORDER BY term.
type SortField struct {
	Field string
	Desc  bool
}

// Filter is the compiled form of a listing request.
type Filter struct {
	Where  []Predicate
	Sort   []SortField
	Fields []string
	Window page.Window

	// Fuzzy is set whenever keyword or location was supplied, even if
	// empty; Keyword and Location hold the trimmed raw terms.
	Fuzzy    bool
	Keyword  string
	Location string
}

// SearchText is the composite string the ranking engine scores against.
func (f Filter) SearchText() string {
	return strings.TrimSpace(f.Keyword + " " + f.Location)
}

// Compile turns params into a Filter. now anchors every relative date
// window so the result is deterministic for a given clock.
func Compile(params url.Values, now time.Time) Filter {
	now = now.UTC()
	f := Filter{
		Window: page.Parse(params.Get(ParamPage), params.Get(ParamLimit)),
		Sort:   compileSort(params.Get(ParamSort)),
		Fields: ParseFields(params.Get(ParamFields)),
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	statusConstrained := false
	datePostedGiven := false

	for _, key := range keys {
		raw := first(params[key])

		switch key {
		case ParamPage, ParamLimit, ParamSort, ParamFields:
			continue
		case ParamKeyword:
			f.Fuzzy = true
			f.Keyword = strings.TrimSpace(raw)
			if f.Keyword != "" {
				f.Where = append(f.Where, AnyOf(
					Contains(FieldTitle, f.Keyword),
					Contains(FieldDescription, f.Keyword),
					Contains(FieldCompanyName, f.Keyword),
				))
			}
			continue
		case ParamLocation:
			f.Fuzzy = true
			f.Location = strings.TrimSpace(raw)
			if f.Location != "" {
				f.Where = append(f.Where, AnyOf(
					Contains(FieldCountry, f.Location),
					Contains(FieldState, f.Location),
					Contains(FieldCity, f.Location),
				))
			}
			continue
		case ParamDatePosted:
			if since, ok := datePostedSince(raw, now); ok {
				datePostedGiven = true
				f.Where = append(f.Where, Range(FieldPostedDate, OpGte, since))
			}
			continue
		case ParamIsActive:
			statusConstrained = true
			active := Equals(FieldJobStatus, string(model.StatusActive))
			if strings.TrimSpace(raw) == "true" {
				f.Where = append(f.Where, active)
			} else {
				f.Where = append(f.Where, Not(active))
			}
			continue
		}

		if m := comparatorRe.FindStringSubmatch(key); m != nil {
			p, ok := compileComparator(m[1], m[2], raw)
			if !ok {
				continue
			}
			if m[1] == FieldJobStatus {
				statusConstrained = true
			}
			f.Where = append(f.Where, p)
			continue
		}

		if _, ok := LookupField(key); !ok {
			continue
		}

		if membershipFields[key] {
			values := splitList(params[key])
			if len(values) == 0 {
				continue
			}
			f.Where = append(f.Where, In(key, values...))
			continue
		}

		switch key {
		case FieldMinSalary:
			if v, ok := ParseValue(key, raw); ok {
				f.Where = append(f.Where, Range(FieldMinSalary, OpGte, v))
			}
			continue
		case FieldMaxSalary:
			if v, ok := ParseValue(key, raw); ok {
				f.Where = append(f.Where, Range(FieldMaxSalary, OpLte, v))
			}
			continue
		}

		v, ok := ParseValue(key, raw)
		if !ok {
			continue
		}
		if key == FieldJobStatus {
			statusConstrained = true
			v = strings.ToLower(v.(string))
		}
		f.Where = append(f.Where, Equals(key, v))
	}

	if !datePostedGiven {
		f.Where = append(f.Where, Range(FieldPostedDate, OpGte, now.Add(-DefaultWindow)))
	}
	if !statusConstrained {
		f.Where = append(f.Where, Equals(FieldJobStatus, string(model.StatusActive)))
	}

	return f
}

// compileComparator handles field[op]=value. Sets and booleans have no
// ordering, so only ne applies to them; other ops are dropped.
func compileComparator(field, op, raw string) (Predicate, bool) {
	spec, ok := LookupField(field)
	if !ok {
		return Predicate{}, false
	}
	if op != "ne" && (spec.Type == TypeStringSet || spec.Type == TypeBool) {
		return Predicate{}, false
	}
	v, ok := ParseValue(field, raw)
	if !ok {
		return Predicate{}, false
	}
	if op == "ne" {
		return Not(Equals(field, v)), true
	}
	return Range(field, CompareOp(op), v), true
}

func datePostedSince(raw string, now time.Time) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "today" {
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	}
	if d, ok := datePostedWindows[raw]; ok {
		return now.Add(-d), true
	}
	return time.Time{}, false
}

func compileSort(raw string) []SortField {
	var out []SortField
	hasID := false
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		desc := strings.HasPrefix(part, "-")
		name := strings.TrimPrefix(part, "-")
		if _, ok := LookupField(name); !ok || name == FieldSkills {
			continue
		}
		if name == FieldID {
			hasID = true
		}
		out = append(out, SortField{Field: name, Desc: desc})
	}
	if len(out) == 0 {
		out = []SortField{{Field: FieldCreatedAt, Desc: true}}
	}
	if !hasID {
		out = append(out, SortField{Field: FieldID})
	}
	return out
}

// ParseFields turns a comma-separated projection into registered field
// names, id first. An empty string means no projection.
func ParseFields(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	out := []string{FieldID}
	seen := map[string]bool{FieldID: true}
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if _, ok := LookupField(name); !ok || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func splitList(values []string) []any {
	var out []any
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
