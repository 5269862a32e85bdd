// Package ranking scores job candidates against free-text search terms using
// token-level fuzzy similarity weighted per field.
//
// Scores run from 0 (perfect) to 1 (no similarity). A field matches when its
// score is within the threshold; a candidate with no matching field is
// dropped. The combined score of a candidate is the product of
// score^weight over its matching fields, so strong matches on heavily
// weighted fields dominate.
package ranking

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"jobmate/jobs-service/internal/model"
)

// ErrInvalidConfig is returned for a malformed ranking configuration.
var ErrInvalidConfig = errors.New("invalid ranking configuration")

// epsilon stands in for a perfect field score so that the weighted product
// still distinguishes between fields.
var epsilon = math.Nextafter(1, 2) - 1

// Config holds the threshold and per-field weights.
type Config struct {
	Threshold float64

	// Applied when a keyword is present.
	TitleWeight       float64
	DescriptionWeight float64
	CompanyWeight     float64

	// Applied when a location is present.
	CityWeight    float64
	StateWeight   float64
	CountryWeight float64
}

// DefaultConfig returns the reference weights and threshold.
func DefaultConfig() Config {
	return Config{
		Threshold:         0.45,
		TitleWeight:       0.6,
		DescriptionWeight: 0.3,
		CompanyWeight:     0.1,
		CityWeight:        0.35,
		StateWeight:       0.25,
		CountryWeight:     0.2,
	}
}

// Validate reports whether c can be used for ranking.
func (c Config) Validate() error {
	if math.IsNaN(c.Threshold) || c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("%w: threshold %v outside [0,1]", ErrInvalidConfig, c.Threshold)
	}
	weights := []float64{
		c.TitleWeight, c.DescriptionWeight, c.CompanyWeight,
		c.CityWeight, c.StateWeight, c.CountryWeight,
	}
	for _, w := range weights {
		if math.IsNaN(w) || w < 0 {
			return fmt.Errorf("%w: negative weight %v", ErrInvalidConfig, w)
		}
	}
	if c.TitleWeight+c.DescriptionWeight+c.CompanyWeight == 0 {
		return fmt.Errorf("%w: keyword weights are all zero", ErrInvalidConfig)
	}
	if c.CityWeight+c.StateWeight+c.CountryWeight == 0 {
		return fmt.Errorf("%w: location weights are all zero", ErrInvalidConfig)
	}
	return nil
}

// Scored is a ranked candidate.
type Scored struct {
	Job   model.Job
	Score float64
}

// Engine ranks candidates. It is stateless and safe for concurrent use.
type Engine struct {
	cfg Config
}

// New returns an Engine for cfg, or an error if cfg is malformed.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

type weightedField struct {
	weight float64
	term   *searchTerm
	text   func(j *model.Job) string
}

type searchTerm struct {
	needle string
	tokens []string
}

func newSearchTerm(s string) *searchTerm {
	return &searchTerm{needle: strings.ToLower(s), tokens: tokenize(s)}
}

// Rank scores candidates against keyword and location and orders them best
// first, newest postedDate first among equal scores. The sort is stable, so
// candidates equal on both keep their input order.
//
// Keyword fields are scored against the keyword and location fields against
// the location. When the composite string (keyword and location joined by a
// space) is empty every candidate gets the best score and the input order is
// kept untouched.
func (e *Engine) Rank(candidates []model.Job, keyword, location string) ([]Scored, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	keyword = strings.TrimSpace(keyword)
	location = strings.TrimSpace(location)
	search := strings.TrimSpace(keyword + " " + location)

	if search == "" {
		out := make([]Scored, len(candidates))
		for i := range candidates {
			out[i] = Scored{Job: candidates[i], Score: 0}
		}
		return out, nil
	}

	var fields []weightedField
	if keyword != "" {
		kw := newSearchTerm(keyword)
		fields = append(fields,
			weightedField{e.cfg.TitleWeight, kw, func(j *model.Job) string { return j.Title }},
			weightedField{e.cfg.DescriptionWeight, kw, func(j *model.Job) string { return j.Description }},
			weightedField{e.cfg.CompanyWeight, kw, func(j *model.Job) string { return j.CompanyName }},
		)
	}
	if location != "" {
		loc := newSearchTerm(location)
		fields = append(fields,
			weightedField{e.cfg.CityWeight, loc, func(j *model.Job) string { return j.City }},
			weightedField{e.cfg.StateWeight, loc, func(j *model.Job) string { return j.State }},
			weightedField{e.cfg.CountryWeight, loc, func(j *model.Job) string { return j.Country }},
		)
	}

	out := make([]Scored, 0, len(candidates))
	for i := range candidates {
		j := &candidates[i]
		matched := false
		total := 1.0
		for _, f := range fields {
			if f.weight == 0 {
				continue
			}
			s := fieldScore(f.term, f.text(j))
			if s > e.cfg.Threshold {
				continue
			}
			matched = true
			if s == 0 {
				s = epsilon
			}
			total *= math.Pow(s, f.weight)
		}
		if matched {
			out = append(out, Scored{Job: *j, Score: total})
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score < out[b].Score
		}
		return out[a].Job.PostedDate.After(out[b].Job.PostedDate)
	})
	return out, nil
}

// fieldScore is the mean, over the term's tokens, of each token's best
// normalized edit distance to any token of text. A text containing the whole
// term scores 0.
func fieldScore(term *searchTerm, text string) float64 {
	if text == "" || len(term.tokens) == 0 {
		return 1
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, term.needle) {
		return 0
	}
	textTokens := tokenize(lower)
	if len(textTokens) == 0 {
		return 1
	}

	sum := 0.0
	for _, q := range term.tokens {
		sum += bestTokenDistance(q, textTokens)
	}
	return sum / float64(len(term.tokens))
}

func bestTokenDistance(q string, tokens []string) float64 {
	best := 1.0
	ql := utf8.RuneCountInString(q)
	for _, t := range tokens {
		if strings.Contains(t, q) {
			return 0
		}
		tl := utf8.RuneCountInString(t)
		longest := max(ql, tl)
		// The length gap alone bounds the distance from below.
		if float64(abs(ql-tl))/float64(longest) >= best {
			continue
		}
		d := float64(levenshtein.ComputeDistance(q, t)) / float64(longest)
		if d < best {
			best = d
		}
	}
	return best
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
