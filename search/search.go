// Package search implements hybrid retrieval: lexical and vector searches run
// over the hard-filtered corpus, their rankings are fused with reciprocal
// rank fusion, and an optional reranker refines the fused order.
package search

import (
	"context"
	"log/slog"
	"sort"

	"github.com/sweetpotato0/regrag/filter"
	"github.com/sweetpotato0/regrag/index"
	"github.com/sweetpotato0/regrag/pkg/logging"
	"github.com/sweetpotato0/regrag/rerank"
	"github.com/sweetpotato0/regrag/vector"
)

const (
	// rrfK is the standard reciprocal rank fusion constant.
	rrfK = 60
	// candidateMultiplier widens each leg's pool before fusion so documents
	// ranked well by only one leg still reach the fused list.
	candidateMultiplier = 4
)

// Config controls the hybrid retriever.
type Config struct {
	TopK     int
	Reranker rerank.Reranker
	Logger   *slog.Logger
}

// Option customizes the retriever.
type Option func(*Config)

// WithTopK sets how many passages each search returns.
func WithTopK(k int) Option {
	return func(cfg *Config) {
		if k > 0 {
			cfg.TopK = k
		}
	}
}

// WithReranker installs a reranker over the fused candidates.
func WithReranker(r rerank.Reranker) Option {
	return func(cfg *Config) {
		if r != nil {
			cfg.Reranker = r
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *Config) {
		if l != nil {
			cfg.Logger = l
		}
	}
}

// Retriever fuses lexical and vector search over a filtered store.
type Retriever struct {
	store    index.Store
	embedder vector.Embedder
	cfg      Config
}

// New creates a hybrid retriever over the given store and embedder.
func New(store index.Store, emb vector.Embedder, opts ...Option) *Retriever {
	cfg := Config{
		TopK:     6,
		Reranker: rerank.NewFusedOrder(),
		Logger:   logging.WithComponent("search"),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Retriever{store: store, embedder: emb, cfg: cfg}
}

// Search retrieves the top passages for the query under the given filters.
// Filters are enforced inside the store before scoring. An empty filtered
// corpus yields an empty slice and a nil error.
func (r *Retriever) Search(ctx context.Context, query string, f filter.Set) ([]index.Passage, error) {
	return r.search(ctx, query, f, r.cfg.TopK)
}

// SearchRelaxed retries retrieval with broadened filters and a doubled
// result budget. Used by the quality gate when the strict filter set
// starves the corpus.
func (r *Retriever) SearchRelaxed(ctx context.Context, query string, f filter.Set) ([]index.Passage, error) {
	return r.search(ctx, query, f.Relaxed(), r.cfg.TopK*2)
}

func (r *Retriever) search(ctx context.Context, query string, f filter.Set, topK int) ([]index.Passage, error) {
	pool := topK * candidateMultiplier

	lexHits, err := r.store.SearchLexical(ctx, query, f, pool)
	if err != nil {
		return nil, err
	}

	var vecHits []index.Passage
	if r.embedder != nil {
		queryVec, err := r.embedder.Embed(ctx, query)
		if err != nil {
			return nil, err
		}
		vecHits, err = r.store.SearchVector(ctx, queryVec, f, pool)
		if err != nil {
			return nil, err
		}
	}

	fused := fuse(lexHits, vecHits)
	if len(fused) == 0 {
		return []index.Passage{}, nil
	}

	// The reranker scores the whole fused pool so a passage ranked just
	// below the cut by fusion can still make the final list.
	if r.cfg.Reranker != nil {
		reranked, err := r.cfg.Reranker.Rerank(ctx, query, fused)
		if err != nil {
			// rerank is best-effort; fused order still satisfies the filters
			r.cfg.Logger.Warn("reranker failed, keeping fused order", "error", err)
		} else {
			fused = reranked
		}
	}
	if f.Sort == filter.SortLatest {
		sortByRecency(fused)
	}
	if len(fused) > topK {
		fused = fused[:topK]
	}
	return fused, nil
}

// fuse merges the two rankings with reciprocal rank fusion. Each passage
// scores sum(1/(rrfK+rank)) over the legs that ranked it, rank starting at 1.
// Ties break toward the more recent document, then the smaller ID.
func fuse(lexical, vectorHits []index.Passage) []index.Passage {
	merged := make(map[string]index.Passage)

	accumulate := func(hits []index.Passage) {
		for i, hit := range hits {
			entry, ok := merged[hit.ID]
			if !ok {
				entry = hit
			}
			if hit.LexScore != 0 {
				entry.LexScore = hit.LexScore
			}
			if hit.VecScore != 0 {
				entry.VecScore = hit.VecScore
			}
			entry.FusedScore += 1.0 / float64(rrfK+i+1)
			merged[hit.ID] = entry
		}
	}
	accumulate(lexical)
	accumulate(vectorHits)

	out := make([]index.Passage, 0, len(merged))
	for _, p := range merged {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		if !out[i].Meta.Date.Equal(out[j].Meta.Date) {
			return out[i].Meta.Date.After(out[j].Meta.Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// sortByRecency stably reorders fused results newest-first for latest-mode
// queries, keeping fused order inside each date.
func sortByRecency(passages []index.Passage) {
	sort.SliceStable(passages, func(i, j int) bool {
		di, dj := passages[i].Meta.Date, passages[j].Meta.Date
		if !di.Equal(dj) {
			return di.After(dj)
		}
		return passages[i].Meta.Year > passages[j].Meta.Year
	})
}
