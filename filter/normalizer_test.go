package filter

import (
	"reflect"
	"testing"
)

func TestNormalizeDropsUnknownValues(t *testing.T) {
	n := NewNormalizer()
	raw := map[string]any{
		"regulators": []any{"SEC", "Ministry of Silly Walks"},
		"categories": []any{"enforcement", "astrology"},
		"doc_types":  []any{"rule", "papyrus"},
	}
	out := n.Normalize("SEC enforcement actions", raw)

	if !reflect.DeepEqual(out.Regulators, []string{"SEC"}) {
		t.Errorf("regulators = %v", out.Regulators)
	}
	if !reflect.DeepEqual(out.Categories, []string{"enforcement"}) {
		t.Errorf("categories = %v", out.Categories)
	}
	if !reflect.DeepEqual(out.DocTypes, []string{"rule"}) {
		t.Errorf("doc types = %v", out.DocTypes)
	}
}

func TestNormalizeYearBounds(t *testing.T) {
	n := NewNormalizer(WithYearRange(1990, 2026))
	if got := n.Normalize("q", map[string]any{"year": 2023}).Year; got != 2023 {
		t.Errorf("year = %d, want 2023", got)
	}
	if got := n.Normalize("q", map[string]any{"year": 1850}).Year; got != 0 {
		t.Errorf("out-of-range year should be dropped, got %d", got)
	}
	if got := n.Normalize("q", map[string]any{"year": "2024"}).Year; got != 2024 {
		t.Errorf("string year = %d, want 2024", got)
	}
	if got := n.Normalize("q", map[string]any{"year": "twenty"}).Year; got != 0 {
		t.Errorf("unparseable year should be dropped, got %d", got)
	}
}

func TestLatestWordingClearsYear(t *testing.T) {
	n := NewNormalizer()
	out := n.Normalize("latest Basel capital rules", map[string]any{"year": 2019})
	if out.Year != 0 {
		t.Errorf("latest query should clear year, got %d", out.Year)
	}
	if out.Sort != SortLatest {
		t.Errorf("sort = %q, want latest", out.Sort)
	}
}

func TestFOMCOverridePinsFed(t *testing.T) {
	n := NewNormalizer()
	out := n.Normalize("what did the FOMC decide", map[string]any{
		"regulators": []any{"SEC"},
	})
	if !reflect.DeepEqual(out.Regulators, []string{"FED"}) {
		t.Errorf("FOMC query should pin FED, got %v", out.Regulators)
	}
	if out.Jurisdiction != "US" {
		t.Errorf("jurisdiction = %q, want US", out.Jurisdiction)
	}
	if out.Sort != SortLatest {
		t.Errorf("FOMC without year should default to latest, got %q", out.Sort)
	}
}

func TestHeuristicFindsRegulatorsAndYear(t *testing.T) {
	n := NewNormalizer()
	out := n.Heuristic("CFTC enforcement in 2022")
	if !reflect.DeepEqual(out.Regulators, []string{"CFTC"}) {
		t.Errorf("regulators = %v", out.Regulators)
	}
	if out.Year != 2022 {
		t.Errorf("year = %d", out.Year)
	}
	if out.Jurisdiction != "US" {
		t.Errorf("jurisdiction = %q", out.Jurisdiction)
	}
}

func TestHeuristicRespectsWordBoundaries(t *testing.T) {
	n := NewNormalizer()
	out := n.Heuristic("what does section 23A require")
	if len(out.Regulators) != 0 {
		t.Errorf("'section' must not match SEC, got %v", out.Regulators)
	}
}

func TestNormalizeNilRawFallsBackToHeuristic(t *testing.T) {
	n := NewNormalizer()
	out := n.Normalize("latest Federal Reserve guidance", nil)
	if !reflect.DeepEqual(out.Regulators, []string{"FED"}) {
		t.Errorf("regulators = %v", out.Regulators)
	}
	if out.Sort != SortLatest {
		t.Errorf("sort = %q", out.Sort)
	}
}
