// Package index defines the document index the agent retrieves from: the
// passage/document model with controlled-vocabulary metadata, and the Store
// contract implemented by the in-memory index here and the Postgres index in
// contrib/index/pg. Filters are always applied as hard pre-filters inside the
// store, never as post-hoc reordering.
package index

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sweetpotato0/regrag/filter"
)

// Metadata carries the index's controlled-vocabulary facets for one document.
type Metadata struct {
	Regulator    string    `json:"regulator,omitempty"`
	Category     string    `json:"category,omitempty"`
	DocType      string    `json:"doc_type,omitempty"`
	Jurisdiction string    `json:"jurisdiction,omitempty"`
	Source       string    `json:"source,omitempty"`
	URL          string    `json:"url,omitempty"`
	Year         int       `json:"year,omitempty"`
	Date         time.Time `json:"date,omitempty"`
}

// Document is one regulatory text ingested into the index.
type Document struct {
	ID      string   `json:"id"`
	Title   string   `json:"title,omitempty"`
	Content string   `json:"content"`
	Meta    Metadata `json:"metadata"`
}

// Passage is the unit of retrieved evidence. Lexical and vector scores are
// populated by the store; fused and rerank scores by the hybrid retriever.
type Passage struct {
	ID          string   `json:"id"`
	DocumentID  string   `json:"document_id"`
	Content     string   `json:"content"`
	Ordinal     int      `json:"ordinal"`
	Meta        Metadata `json:"metadata"`
	LexScore    float64  `json:"lexical_score,omitempty"`
	VecScore    float64  `json:"vector_score,omitempty"`
	FusedScore  float64  `json:"fused_score,omitempty"`
	RerankScore float64  `json:"rerank_score,omitempty"`
}

// Citation returns the attribution string used in synthesized answers.
func (p Passage) Citation() string {
	if p.Meta.URL != "" {
		return p.Meta.URL
	}
	if p.Meta.Source != "" {
		return p.Meta.Source
	}
	return p.DocumentID
}

// Store is the document index contract. Filtered searches over an empty
// corpus return an empty slice and a nil error; callers handle zero evidence.
type Store interface {
	// Add ingests documents, chunking and embedding them as needed.
	Add(ctx context.Context, docs ...Document) error

	// SearchLexical runs term-frequency search over the filtered corpus.
	SearchLexical(ctx context.Context, query string, f filter.Set, k int) ([]Passage, error)

	// SearchVector runs similarity search over the filtered corpus.
	SearchVector(ctx context.Context, queryVec []float32, f filter.Set, k int) ([]Passage, error)

	// Document returns an ingested document by ID.
	Document(id string) (Document, bool)

	// Count returns the number of indexed passages.
	Count(ctx context.Context) (int, error)

	// Clear removes all indexed content.
	Clear(ctx context.Context) error
}

// MatchesFilter reports whether metadata satisfies every constrained facet.
func MatchesFilter(m Metadata, f filter.Set) bool {
	if len(f.Regulators) > 0 && !containsString(f.Regulators, m.Regulator) {
		return false
	}
	if len(f.Categories) > 0 && !containsString(f.Categories, m.Category) {
		return false
	}
	if len(f.DocTypes) > 0 && !containsString(f.DocTypes, m.DocType) {
		return false
	}
	if f.Year != 0 && m.Year != f.Year {
		return false
	}
	if f.Jurisdiction != "" && m.Jurisdiction != f.Jurisdiction {
		return false
	}
	return true
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

var (
	docCounter     atomic.Int64
	passageCounter atomic.Int64
)

// EnsureDocumentID makes sure every document has a stable identifier.
func EnsureDocumentID(doc *Document) {
	if doc == nil || doc.ID != "" {
		return
	}
	doc.ID = fmt.Sprintf("doc_%d", docCounter.Add(1))
}

// NextPassageID returns a unique passage identifier derived from document ID.
func NextPassageID(docID string) string {
	next := passageCounter.Add(1)
	if docID == "" {
		return fmt.Sprintf("passage_%d", next)
	}
	return fmt.Sprintf("%s_passage_%d", docID, next)
}
