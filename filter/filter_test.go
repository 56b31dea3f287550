package filter

import (
	"reflect"
	"testing"
)

func TestRelaxedKeepsRegulatorAndJurisdiction(t *testing.T) {
	s := Set{
		Regulators:   []string{"FED"},
		Categories:   []string{"policy"},
		DocTypes:     []string{"minutes"},
		Year:         2023,
		Jurisdiction: "US",
		Sort:         SortLatest,
	}
	relaxed := s.Relaxed()

	if !reflect.DeepEqual(relaxed.Regulators, []string{"FED"}) {
		t.Errorf("regulators not kept: %v", relaxed.Regulators)
	}
	if relaxed.Jurisdiction != "US" {
		t.Errorf("jurisdiction not kept: %q", relaxed.Jurisdiction)
	}
	if relaxed.Sort != SortLatest {
		t.Errorf("sort not kept: %q", relaxed.Sort)
	}
	if len(relaxed.Categories) != 0 || len(relaxed.DocTypes) != 0 || relaxed.Year != 0 {
		t.Errorf("soft facets not lifted: %+v", relaxed)
	}
}

func TestRelaxedCopiesRegulatorSlice(t *testing.T) {
	s := Set{Regulators: []string{"FED", "SEC"}}
	relaxed := s.Relaxed()
	relaxed.Regulators[0] = "FCA"
	if s.Regulators[0] != "FED" {
		t.Error("Relaxed shares the regulator slice with the original")
	}
}

func TestIsZeroAndStrongFacets(t *testing.T) {
	if !(Set{}).IsZero() {
		t.Error("empty set should be zero")
	}
	if (Set{Year: 2023}).IsZero() {
		t.Error("set with year should not be zero")
	}
	if (Set{Categories: []string{"policy"}}).HasStrongFacets() {
		t.Error("category alone is not a strong facet")
	}
	for _, s := range []Set{
		{Regulators: []string{"SEC"}},
		{DocTypes: []string{"rule"}},
		{Year: 2024},
		{Jurisdiction: "US"},
	} {
		if !s.HasStrongFacets() {
			t.Errorf("expected strong facets for %+v", s)
		}
	}
}

func TestInferJurisdiction(t *testing.T) {
	cases := []struct {
		regulators []string
		want       string
	}{
		{[]string{"FED"}, "US"},
		{[]string{"SEC", "BASEL"}, "US"},
		{[]string{"FCA"}, "UK"},
		{[]string{"BASEL"}, "Global"},
		{nil, ""},
	}
	for _, c := range cases {
		if got := InferJurisdiction(c.regulators); got != c.want {
			t.Errorf("InferJurisdiction(%v) = %q, want %q", c.regulators, got, c.want)
		}
	}
}

func TestCanonicalAliases(t *testing.T) {
	if code, ok := canonicalRegulator("federal reserve"); !ok || code != "FED" {
		t.Errorf("federal reserve -> %q, %v", code, ok)
	}
	if code, ok := canonicalRegulator("FOMC"); !ok || code != "FED" {
		t.Errorf("FOMC -> %q, %v", code, ok)
	}
	if _, ok := canonicalRegulator("ministry of magic"); ok {
		t.Error("unknown regulator should be rejected")
	}
	if c, ok := canonicalCategory("Policies"); !ok || c != "policy" {
		t.Errorf("Policies -> %q, %v", c, ok)
	}
	if d, ok := canonicalDocType("press releases"); !ok || d != "press_release" {
		t.Errorf("press releases -> %q, %v", d, ok)
	}
}
