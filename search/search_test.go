package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sweetpotato0/regrag/filter"
	"github.com/sweetpotato0/regrag/index"
)

// stubStore returns scripted rankings and records the filters it saw.
type stubStore struct {
	lexical []index.Passage
	vector  []index.Passage

	lexFilters []filter.Set
	vecFilters []filter.Set
	lexPools   []int
}

func (s *stubStore) Add(ctx context.Context, docs ...index.Document) error { return nil }

func (s *stubStore) SearchLexical(ctx context.Context, query string, f filter.Set, k int) ([]index.Passage, error) {
	s.lexFilters = append(s.lexFilters, f)
	s.lexPools = append(s.lexPools, k)
	return clip(s.lexical, k), nil
}

func (s *stubStore) SearchVector(ctx context.Context, queryVec []float32, f filter.Set, k int) ([]index.Passage, error) {
	s.vecFilters = append(s.vecFilters, f)
	return clip(s.vector, k), nil
}

func (s *stubStore) Document(id string) (index.Document, bool) { return index.Document{}, false }
func (s *stubStore) Count(ctx context.Context) (int, error)    { return len(s.lexical), nil }
func (s *stubStore) Clear(ctx context.Context) error           { return nil }

func clip(passages []index.Passage, k int) []index.Passage {
	if k > 0 && len(passages) > k {
		return passages[:k]
	}
	return passages
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (stubEmbedder) Dimension() int { return 2 }

type failingReranker struct{}

func (failingReranker) Rerank(ctx context.Context, query string, passages []index.Passage) ([]index.Passage, error) {
	return nil, errors.New("upstream unavailable")
}

func passage(id string) index.Passage {
	return index.Passage{ID: id, DocumentID: id, Content: id}
}

func TestFusionFavorsConsensus(t *testing.T) {
	// A leads lexical only, C leads vector only, B sits second in both.
	a, b, c := passage("A"), passage("B"), passage("C")
	store := &stubStore{
		lexical: []index.Passage{a, b},
		vector:  []index.Passage{c, b},
	}
	r := New(store, stubEmbedder{}, WithTopK(3))

	got, err := r.Search(context.Background(), "capital rules", filter.Set{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 fused passages, got %d", len(got))
	}
	if got[0].ID != "B" {
		t.Fatalf("expected B to outrank single-leg leaders, got %s", got[0].ID)
	}

	scores := map[string]float64{}
	for _, p := range got {
		scores[p.ID] = p.FusedScore
	}
	if scores["B"] <= scores["A"] || scores["B"] <= scores["C"] {
		t.Fatalf("fused scores wrong: %v", scores)
	}
}

func TestFusionTieBreaksByRecencyThenID(t *testing.T) {
	old := passage("old")
	old.Meta.Date = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := passage("recent")
	recent.Meta.Date = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	// identical ranks in the lexical leg only: equal fused scores
	store := &stubStore{lexical: []index.Passage{old}, vector: []index.Passage{recent}}
	r := New(store, stubEmbedder{}, WithTopK(2))

	got, err := r.Search(context.Background(), "q", filter.Set{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 || got[0].ID != "recent" {
		t.Fatalf("expected recency tie-break, got %v", ids(got))
	}
}

func TestLatestModeReordersByDate(t *testing.T) {
	older := passage("older")
	older.Meta.Date = time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	newer := passage("newer")
	newer.Meta.Date = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	// lexical strongly prefers the older passage
	store := &stubStore{
		lexical: []index.Passage{older, newer},
		vector:  []index.Passage{older, newer},
	}
	r := New(store, stubEmbedder{}, WithTopK(2))

	got, err := r.Search(context.Background(), "latest minutes", filter.Set{Sort: filter.SortLatest})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if got[0].ID != "newer" {
		t.Fatalf("latest mode should put newest first, got %v", ids(got))
	}
}

// promotingReranker moves the target passage to the front and records how
// many candidates it was given.
type promotingReranker struct {
	target string
	seen   int
}

func (p *promotingReranker) Rerank(ctx context.Context, query string, passages []index.Passage) ([]index.Passage, error) {
	p.seen = len(passages)
	out := make([]index.Passage, 0, len(passages))
	for _, ps := range passages {
		if ps.ID == p.target {
			out = append([]index.Passage{ps}, out...)
			continue
		}
		out = append(out, ps)
	}
	return out, nil
}

func TestRerankerSeesFullPoolBeforeTruncation(t *testing.T) {
	a, b, c := passage("A"), passage("B"), passage("C")
	store := &stubStore{
		lexical: []index.Passage{a, b, c},
		vector:  []index.Passage{a, b, c},
	}
	// C is fused rank 3; with TopK 2 only the reranker can surface it.
	rr := &promotingReranker{target: "C"}
	r := New(store, stubEmbedder{}, WithTopK(2), WithReranker(rr))

	got, err := r.Search(context.Background(), "q", filter.Set{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if rr.seen != 3 {
		t.Fatalf("reranker should score the whole fused pool, saw %d", rr.seen)
	}
	if len(got) != 2 || got[0].ID != "C" || got[1].ID != "A" {
		t.Fatalf("expected reranker promotion to survive truncation, got %v", ids(got))
	}
}

func TestLatestModeSurvivesReranking(t *testing.T) {
	older := passage("older")
	older.Meta.Date = time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)
	newer := passage("newer")
	newer.Meta.Date = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	store := &stubStore{
		lexical: []index.Passage{older, newer},
		vector:  []index.Passage{older, newer},
	}
	// the reranker prefers the older passage; latest mode still wins
	rr := &promotingReranker{target: "older"}
	r := New(store, stubEmbedder{}, WithTopK(2), WithReranker(rr))

	got, err := r.Search(context.Background(), "latest guidance", filter.Set{Sort: filter.SortLatest})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 || got[0].ID != "newer" {
		t.Fatalf("latest mode should order newest first after reranking, got %v", ids(got))
	}
}

func TestRerankFailureFallsBackToFusedOrder(t *testing.T) {
	a, b := passage("A"), passage("B")
	store := &stubStore{lexical: []index.Passage{a, b}, vector: []index.Passage{a, b}}
	r := New(store, stubEmbedder{}, WithTopK(2), WithReranker(failingReranker{}))

	got, err := r.Search(context.Background(), "q", filter.Set{})
	if err != nil {
		t.Fatalf("search should tolerate reranker failure: %v", err)
	}
	if len(got) != 2 || got[0].ID != "A" {
		t.Fatalf("expected fused order preserved, got %v", ids(got))
	}
}

func TestSearchRelaxedBroadensFilters(t *testing.T) {
	store := &stubStore{}
	r := New(store, stubEmbedder{}, WithTopK(3))

	strict := filter.Set{
		Regulators: []string{"FED"},
		Categories: []string{"policy"},
		DocTypes:   []string{"minutes"},
		Year:       2024,
	}
	if _, err := r.SearchRelaxed(context.Background(), "q", strict); err != nil {
		t.Fatalf("relaxed search: %v", err)
	}
	if len(store.lexFilters) != 1 {
		t.Fatalf("expected one lexical search, got %d", len(store.lexFilters))
	}
	seen := store.lexFilters[0]
	if len(seen.Regulators) != 1 || seen.Regulators[0] != "FED" {
		t.Fatalf("relaxation must keep regulators, got %v", seen.Regulators)
	}
	if len(seen.Categories) != 0 || len(seen.DocTypes) != 0 || seen.Year != 0 {
		t.Fatalf("relaxation must drop soft facets, got %+v", seen)
	}
}

func TestSearchRelaxedDoublesCandidateBudget(t *testing.T) {
	store := &stubStore{}
	r := New(store, stubEmbedder{}, WithTopK(3))

	if _, err := r.Search(context.Background(), "q", filter.Set{}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if _, err := r.SearchRelaxed(context.Background(), "q", filter.Set{}); err != nil {
		t.Fatalf("relaxed search: %v", err)
	}
	if len(store.lexPools) != 2 {
		t.Fatalf("expected two lexical searches, got %d", len(store.lexPools))
	}
	if store.lexPools[1] != store.lexPools[0]*2 {
		t.Fatalf("relaxed pool = %d, strict pool = %d; relaxed must double",
			store.lexPools[1], store.lexPools[0])
	}
}

func TestEmptyCorpusReturnsEmptySlice(t *testing.T) {
	store := &stubStore{}
	r := New(store, stubEmbedder{})

	got, err := r.Search(context.Background(), "anything", filter.Set{Regulators: []string{"FCA"}})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", got)
	}
}

func ids(passages []index.Passage) []string {
	out := make([]string, len(passages))
	for i, p := range passages {
		out[i] = p.ID
	}
	return out
}
