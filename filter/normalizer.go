package filter

import (
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sweetpotato0/regrag/pkg/logging"
)

var (
	latestRe = regexp.MustCompile(`(?i)\b(latest|recent|newest|current|most\s+recent|up[-\s]?to[-\s]?date)\b`)
	fomcRe   = regexp.MustCompile(`(?i)\bFOMC\b|Federal Open Market Committee`)
	yearRe   = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
)

// Normalizer resolves raw extraction output against the controlled vocabulary.
type Normalizer struct {
	minYear int
	maxYear int
	logger  *slog.Logger
}

// Option customises a Normalizer.
type Option func(*Normalizer)

// WithYearRange bounds the supported year facet; values outside are dropped.
func WithYearRange(min, max int) Option {
	return func(n *Normalizer) {
		if min > 0 && max >= min {
			n.minYear = min
			n.maxYear = max
		}
	}
}

// WithLogger overrides the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Normalizer) {
		if l != nil {
			n.logger = l
		}
	}
}

// NewNormalizer creates a Normalizer with the default supported year range
// (1990 through next year).
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		minYear: 1990,
		maxYear: time.Now().Year() + 1,
		logger:  logging.WithComponent("filter"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize merges a raw extraction result (free-form facet guesses keyed by
// an inconsistent scheme) with query heuristics into a canonical Set. It
// never fails: malformed input degrades to no filter on that facet.
func (n *Normalizer) Normalize(query string, raw map[string]any) Set {
	base := n.Heuristic(query)
	if raw == nil {
		return base
	}

	out := Set{}

	out.Regulators = n.canonicalList(
		firstList(raw, "regulators", "regulator"),
		canonicalRegulator, "regulator")
	if len(out.Regulators) == 0 {
		out.Regulators = base.Regulators
	}

	out.Categories = n.canonicalList(
		firstList(raw, "categories", "category"),
		canonicalCategory, "category")

	out.DocTypes = n.canonicalList(
		firstList(raw, "doc_types", "types", "type", "doc_type"),
		canonicalDocType, "doc_type")

	out.Year = n.normalizeYear(firstValue(raw, "year"))
	if out.Year == 0 {
		out.Year = base.Year
	}

	if j, ok := firstValue(raw, "jurisdiction").(string); ok && strings.TrimSpace(j) != "" {
		out.Jurisdiction = strings.TrimSpace(j)
	} else {
		out.Jurisdiction = base.Jurisdiction
	}

	if s, ok := firstValue(raw, "sort").(string); ok && strings.EqualFold(strings.TrimSpace(s), string(SortLatest)) {
		out.Sort = SortLatest
	} else {
		out.Sort = base.Sort
	}

	n.applyQueryOverrides(query, &out)
	return out
}

// Heuristic derives a filter set from the query text alone. It is the
// fallback when the extraction provider is unavailable.
func (n *Normalizer) Heuristic(query string) Set {
	out := Set{}
	upper := strings.ToUpper(query)

	for alias, code := range regulatorAliases {
		if containsWord(upper, alias) && !contains(out.Regulators, code) {
			out.Regulators = append(out.Regulators, code)
		}
	}
	sort.Strings(out.Regulators)

	if m := yearRe.FindString(query); m != "" {
		out.Year = n.normalizeYear(m)
	}

	if latestRe.MatchString(query) {
		out.Sort = SortLatest
	}

	out.Jurisdiction = InferJurisdiction(out.Regulators)
	n.applyQueryOverrides(query, &out)
	return out
}

// applyQueryOverrides enforces query-level rules that trump extracted values:
// "latest" wording clears the year facet, and FOMC mentions pin the regulator
// to FED with US jurisdiction.
func (n *Normalizer) applyQueryOverrides(query string, s *Set) {
	if latestRe.MatchString(query) {
		s.Sort = SortLatest
		s.Year = 0
	}
	if fomcRe.MatchString(query) {
		s.Regulators = []string{"FED"}
		if s.Jurisdiction == "" {
			s.Jurisdiction = "US"
		}
		if s.Sort == SortNone && s.Year == 0 {
			s.Sort = SortLatest
		}
	}
	if s.Jurisdiction == "" {
		s.Jurisdiction = InferJurisdiction(s.Regulators)
	}
}

func (n *Normalizer) canonicalList(values []string, canon func(string) (string, bool), facet string) []string {
	var out []string
	for _, raw := range values {
		code, ok := canon(raw)
		if !ok {
			n.logger.Warn("dropping unknown facet value", "facet", facet, "value", raw)
			continue
		}
		if !contains(out, code) {
			out = append(out, code)
		}
	}
	return out
}

func (n *Normalizer) normalizeYear(v any) int {
	var year int
	switch t := v.(type) {
	case nil:
		return 0
	case int:
		year = t
	case float64:
		year = int(t)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			n.logger.Warn("dropping unparseable year", "value", t)
			return 0
		}
		year = parsed
	default:
		return 0
	}
	if year < n.minYear || year > n.maxYear {
		n.logger.Warn("dropping out-of-range year", "value", year, "min", n.minYear, "max", n.maxYear)
		return 0
	}
	return year
}

func firstValue(raw map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstList(raw map[string]any, keys ...string) []string {
	v := firstValue(raw, keys...)
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		return []string{t}
	default:
		return nil
	}
}

// containsWord reports whether word occurs in text on word boundaries,
// so "SEC" does not match inside "SECTION".
func containsWord(text, word string) bool {
	for idx := 0; ; {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordByte(text[start-1])
		afterOK := end == len(text) || !isWordByte(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
