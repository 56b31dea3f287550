// Package rerank reorders fused retrieval candidates before synthesis. The
// default implementation keeps the fused order; contrib/reranker/cohere calls
// a hosted cross-encoder and callers fall back to fused order on failure.
package rerank

import (
	"context"

	"github.com/sweetpotato0/regrag/index"
)

// Reranker reorders passages by relevance to the query. Implementations must
// not drop passages; limiting is the retriever's job.
type Reranker interface {
	Rerank(ctx context.Context, query string, passages []index.Passage) ([]index.Passage, error)
}

// FusedOrder keeps passages exactly as the fusion stage ordered them. It is
// the no-op fallback used when no external reranker is configured or the
// configured one fails.
type FusedOrder struct{}

// NewFusedOrder creates the pass-through reranker.
func NewFusedOrder() *FusedOrder {
	return &FusedOrder{}
}

// Rerank returns a copy of the input in its original order. The fused score
// doubles as the rerank score so downstream consumers see a uniform field.
func (FusedOrder) Rerank(ctx context.Context, query string, passages []index.Passage) ([]index.Passage, error) {
	out := make([]index.Passage, len(passages))
	copy(out, passages)
	for i := range out {
		out[i].RerankScore = out[i].FusedScore
	}
	return out, nil
}
