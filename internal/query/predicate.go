package query

import (
	"strings"
	"time"

	"jobmate/jobs-service/internal/model"
)

// Kind tags a predicate variant.
type Kind uint8

const (
	KindEquals Kind = iota + 1
	KindIn
	KindRange
	KindContains
	KindNot
	KindAnyOf
)

// CompareOp is the bound used by a KindRange predicate.
type CompareOp string

const (
	OpGt  CompareOp = "gt"
	OpGte CompareOp = "gte"
	OpLt  CompareOp = "lt"
	OpLte CompareOp = "lte"
)

// Predicate is one node of a compiled filter. Which fields are meaningful
// depends on Kind:
//
//	Equals   Field, Value        (strings compare case-insensitively)
//	In       Field, Values       (has any of)
//	Range    Field, Op, Value
//	Contains Field, Value        (case-insensitive substring)
//	Not      Inner[0]
//	AnyOf    Inner               (logical OR)
type Predicate struct {
	Kind   Kind
	Field  string
	Op     CompareOp
	Value  any
	Values []any
	Inner  []Predicate
}

func Equals(field string, v any) Predicate {
	return Predicate{Kind: KindEquals, Field: field, Value: v}
}

func In(field string, vs ...any) Predicate {
	return Predicate{Kind: KindIn, Field: field, Values: vs}
}

func Range(field string, op CompareOp, v any) Predicate {
	return Predicate{Kind: KindRange, Field: field, Op: op, Value: v}
}

func Contains(field, substr string) Predicate {
	return Predicate{Kind: KindContains, Field: field, Value: substr}
}

func Not(p Predicate) Predicate {
	return Predicate{Kind: KindNot, Inner: []Predicate{p}}
}

func AnyOf(ps ...Predicate) Predicate {
	return Predicate{Kind: KindAnyOf, Inner: ps}
}

// MatchAll reports whether j satisfies every predicate.
func MatchAll(ps []Predicate, j *model.Job) bool {
	for _, p := range ps {
		if !Match(p, j) {
			return false
		}
	}
	return true
}

// Match evaluates p against j in memory. It mirrors the SQL the postgres
// store generates, including NULL handling for nullable salaries: a missing
// value never satisfies Equals, In, Range or Contains, and therefore always
// satisfies Not.
func Match(p Predicate, j *model.Job) bool {
	switch p.Kind {
	case KindNot:
		return len(p.Inner) == 1 && !Match(p.Inner[0], j)
	case KindAnyOf:
		for _, inner := range p.Inner {
			if Match(inner, j) {
				return true
			}
		}
		return false
	}

	actual := FieldValue(j, p.Field)
	if actual == nil {
		return false
	}

	switch p.Kind {
	case KindEquals:
		return equalValues(actual, p.Value)
	case KindIn:
		for _, v := range p.Values {
			if equalValues(actual, v) {
				return true
			}
		}
		return false
	case KindRange:
		c, ok := compareValues(actual, p.Value)
		if !ok {
			return false
		}
		switch p.Op {
		case OpGt:
			return c > 0
		case OpGte:
			return c >= 0
		case OpLt:
			return c < 0
		case OpLte:
			return c <= 0
		}
		return false
	case KindContains:
		needle := strings.ToLower(toString(p.Value))
		if set, ok := actual.([]string); ok {
			for _, s := range set {
				if strings.Contains(strings.ToLower(s), needle) {
					return true
				}
			}
			return false
		}
		s, ok := actual.(string)
		return ok && strings.Contains(strings.ToLower(s), needle)
	}
	return false
}

func equalValues(actual, want any) bool {
	switch a := actual.(type) {
	case []string:
		w := toString(want)
		for _, s := range a {
			if strings.EqualFold(s, w) {
				return true
			}
		}
		return false
	case string:
		return strings.EqualFold(a, toString(want))
	case float64:
		w, ok := want.(float64)
		return ok && a == w
	case bool:
		w, ok := want.(bool)
		return ok && a == w
	case time.Time:
		w, ok := want.(time.Time)
		return ok && a.Equal(w)
	}
	return false
}

func compareValues(actual, bound any) (int, bool) {
	switch a := actual.(type) {
	case float64:
		b, ok := bound.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case a < b:
			return -1, true
		case a > b:
			return 1, true
		}
		return 0, true
	case time.Time:
		b, ok := bound.(time.Time)
		if !ok {
			return 0, false
		}
		return a.Compare(b), true
	case string:
		b, ok := bound.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(strings.ToLower(a), strings.ToLower(b)), true
	}
	return 0, false
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case model.Status:
		return string(s)
	}
	return ""
}
