// Package filter turns raw metadata extraction output into the canonical
// filter set understood by the document index. Values outside the index's
// controlled vocabulary never pass through: they are dropped with a logged
// diagnostic and the facet degrades to "unfiltered".
package filter

import (
	"strings"
)

// Sort directs result ordering after filtering.
type Sort string

const (
	// SortNone leaves ordering to relevance scoring.
	SortNone Sort = ""
	// SortLatest biases results toward the newest documents.
	SortLatest Sort = "latest"
)

// Controlled vocabulary of the retrieval index.
var (
	Regulators = []string{"BASEL", "SEC", "CFTC", "FED", "FINCEN", "FCA", "FDIC"}
	Categories = []string{"policy", "enforcement", "rulemaking", "other"}
	DocTypes   = []string{"publication", "press_release", "rule", "guidance", "speech", "minutes", "report"}
)

// Set is the canonical filter object applied as a hard pre-filter by the
// index. Empty slices and zero values mean "no filter on that facet".
type Set struct {
	Regulators   []string `json:"regulators,omitempty"`
	Categories   []string `json:"categories,omitempty"`
	DocTypes     []string `json:"doc_types,omitempty"`
	Year         int      `json:"year,omitempty"`
	Jurisdiction string   `json:"jurisdiction,omitempty"`
	Sort         Sort     `json:"sort,omitempty"`
}

// IsZero reports whether no facet is constrained.
func (s Set) IsZero() bool {
	return len(s.Regulators) == 0 && len(s.Categories) == 0 && len(s.DocTypes) == 0 &&
		s.Year == 0 && s.Jurisdiction == "" && s.Sort == SortNone
}

// HasStrongFacets reports whether the set constrains facets that signal a
// regulatory lookup (used by the router to prefer the retrieval path).
func (s Set) HasStrongFacets() bool {
	return len(s.Regulators) > 0 || len(s.DocTypes) > 0 || s.Year != 0 || s.Jurisdiction != ""
}

// Relaxed returns a broadened copy for repair retrieval: category, type and
// year constraints are lifted while regulator and jurisdiction are kept so a
// repaired search stays on-topic.
func (s Set) Relaxed() Set {
	return Set{
		Regulators:   append([]string(nil), s.Regulators...),
		Jurisdiction: s.Jurisdiction,
		Sort:         s.Sort,
	}
}

// Clone returns a deep copy of the set.
func (s Set) Clone() Set {
	out := s
	out.Regulators = append([]string(nil), s.Regulators...)
	out.Categories = append([]string(nil), s.Categories...)
	out.DocTypes = append([]string(nil), s.DocTypes...)
	return out
}

func vocabSet(values []string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

var (
	regulatorVocab = vocabSet(Regulators)
	categoryVocab  = vocabSet(Categories)
	docTypeVocab   = vocabSet(DocTypes)
)

// regulatorAliases maps real-world mentions to index regulator codes.
var regulatorAliases = map[string]string{
	"BASEL":                                  "BASEL",
	"BCBS":                                   "BASEL",
	"BASEL COMMITTEE":                        "BASEL",
	"BASEL COMMITTEE ON BANKING SUPERVISION": "BASEL",
	"FED":                                    "FED",
	"FEDERAL RESERVE":                        "FED",
	"BOARD OF GOVERNORS":                     "FED",
	"FOMC":                                   "FED",
	"FEDERAL OPEN MARKET COMMITTEE":          "FED",
	"SEC":                                    "SEC",
	"SECURITIES AND EXCHANGE COMMISSION":     "SEC",
	"CFTC":                                   "CFTC",
	"COMMODITY FUTURES TRADING COMMISSION":   "CFTC",
	"FCA":                                    "FCA",
	"FINANCIAL CONDUCT AUTHORITY":            "FCA",
	"FDIC":                                   "FDIC",
	"FEDERAL DEPOSIT INSURANCE CORPORATION":  "FDIC",
	"FINCEN":                                 "FINCEN",
	"FINANCIAL CRIMES ENFORCEMENT NETWORK":   "FINCEN",
}

var categoryAliases = map[string]string{
	"policy":       "policy",
	"policies":     "policy",
	"enforcement":  "enforcement",
	"enforcements": "enforcement",
	"rulemaking":   "rulemaking",
	"rule making":  "rulemaking",
	"rule-making":  "rulemaking",
	"other":        "other",
	"general":      "other",
}

var docTypeAliases = map[string]string{
	"publication":     "publication",
	"publications":    "publication",
	"paper":           "publication",
	"press_release":   "press_release",
	"press release":   "press_release",
	"press releases":  "press_release",
	"statement":       "press_release",
	"rule":            "rule",
	"rules":           "rule",
	"regulation":      "rule",
	"guidance":        "guidance",
	"guidelines":      "guidance",
	"speech":          "speech",
	"speeches":        "speech",
	"minutes":         "minutes",
	"meeting minutes": "minutes",
	"report":          "report",
	"reports":         "report",
}

// InferJurisdiction derives a jurisdiction from the regulator facet.
func InferJurisdiction(regulators []string) string {
	for _, r := range regulators {
		switch r {
		case "FED", "SEC", "CFTC", "FDIC", "FINCEN":
			return "US"
		}
	}
	for _, r := range regulators {
		if r == "FCA" {
			return "UK"
		}
	}
	for _, r := range regulators {
		if r == "BASEL" {
			return "Global"
		}
	}
	return ""
}

func canonicalRegulator(raw string) (string, bool) {
	code, ok := regulatorAliases[strings.ToUpper(strings.TrimSpace(raw))]
	if !ok {
		return "", false
	}
	_, known := regulatorVocab[code]
	return code, known
}

func canonicalCategory(raw string) (string, bool) {
	c, ok := categoryAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", false
	}
	_, known := categoryVocab[c]
	return c, known
}

func canonicalDocType(raw string) (string, bool) {
	t, ok := docTypeAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", false
	}
	_, known := docTypeVocab[t]
	return t, known
}
