package index

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/sweetpotato0/regrag/filter"
	"github.com/sweetpotato0/regrag/vector"
)

// MemoryStore is an in-process Store combining a BM25 lexical index with
// brute-force cosine search over embedded passages. Suitable for corpora up
// to a few hundred thousand passages; larger deployments use contrib/index/pg.
type MemoryStore struct {
	embedder vector.Embedder
	chunker  Chunker

	mu        sync.RWMutex
	documents map[string]Document
	passages  map[string]Passage
	vectors   map[string][]float32
	lexical   *bm25Index
}

// MemoryOption customizes the in-memory store.
type MemoryOption func(*MemoryStore)

// WithChunker overrides the default chunking strategy.
func WithChunker(c Chunker) MemoryOption {
	return func(s *MemoryStore) {
		if c != nil {
			s.chunker = c
		}
	}
}

// NewMemoryStore builds an in-memory index backed by the given embedder.
func NewMemoryStore(emb vector.Embedder, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		embedder:  emb,
		chunker:   NewSimpleChunker(),
		documents: make(map[string]Document),
		passages:  make(map[string]Passage),
		vectors:   make(map[string][]float32),
		lexical:   newBM25(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add chunks, embeds and indexes the given documents.
func (s *MemoryStore) Add(ctx context.Context, docs ...Document) error {
	for _, doc := range docs {
		EnsureDocumentID(&doc)
		doc.Content = Preprocess(doc.Content)

		chunks := s.chunker.Chunk(doc)
		texts := make([]string, len(chunks))
		for i, p := range chunks {
			texts[i] = p.Content
		}

		var vecs [][]float32
		if s.embedder != nil && len(texts) > 0 {
			var err error
			vecs, err = s.embedder.EmbedBatch(ctx, texts)
			if err != nil {
				return err
			}
		}

		s.mu.Lock()
		s.documents[doc.ID] = doc
		for i, p := range chunks {
			s.passages[p.ID] = p
			if vecs != nil {
				s.vectors[p.ID] = vecs[i]
			}
			s.lexical.add(p.ID, p.Content)
		}
		s.mu.Unlock()
	}
	return nil
}

// SearchLexical runs BM25 over passages surviving the metadata filter.
// Filters are applied before scoring, never as reordering afterwards.
func (s *MemoryStore) SearchLexical(ctx context.Context, query string, f filter.Set, k int) ([]Passage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := s.lexical.search(query, 0)
	out := make([]Passage, 0, k)
	for _, hit := range hits {
		p, ok := s.passages[hit.ID]
		if !ok || !MatchesFilter(p.Meta, f) {
			continue
		}
		p.LexScore = hit.Score
		out = append(out, p)
		if k > 0 && len(out) >= k {
			break
		}
	}
	return out, nil
}

// SearchVector runs cosine search over passages surviving the metadata filter.
func (s *MemoryStore) SearchVector(ctx context.Context, queryVec []float32, f filter.Set, k int) ([]Passage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	scored := make([]Passage, 0, len(s.vectors))
	for id, vec := range s.vectors {
		p, ok := s.passages[id]
		if !ok || !MatchesFilter(p.Meta, f) {
			continue
		}
		p.VecScore = float64(vector.CosineSimilarity(queryVec, vec))
		scored = append(scored, p)
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].VecScore != scored[j].VecScore {
			return scored[i].VecScore > scored[j].VecScore
		}
		return scored[i].ID < scored[j].ID
	})
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Document returns an ingested document by ID.
func (s *MemoryStore) Document(id string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	return doc, ok
}

// Count returns the number of indexed passages.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.passages), nil
}

// Clear removes all indexed state.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = make(map[string]Document)
	s.passages = make(map[string]Passage)
	s.vectors = make(map[string][]float32)
	s.lexical = newBM25()
	return nil
}

// --- BM25 implementation ---

type bm25Index struct {
	docFreq     map[string]int
	postings    map[string]map[string]int
	passageLen  map[string]int
	totalLength int
	docCount    int
	k1          float64
	b           float64
}

var bm25Regex = regexp.MustCompile(`\p{L}[\p{L}\p{M}]*|\p{N}+`)

func newBM25() *bm25Index {
	return &bm25Index{
		docFreq:    make(map[string]int),
		postings:   make(map[string]map[string]int),
		passageLen: make(map[string]int),
		k1:         1.6,
		b:          0.75,
	}
}

// add indexes one passage. Caller holds the store write lock.
func (b *bm25Index) add(id, content string) {
	terms := tokenize(content)
	if len(terms) == 0 {
		return
	}
	b.docCount++
	b.passageLen[id] = len(terms)
	b.totalLength += len(terms)

	seen := make(map[string]struct{})
	for _, term := range terms {
		if _, ok := b.postings[term]; !ok {
			b.postings[term] = make(map[string]int)
		}
		b.postings[term][id]++
		if _, exists := seen[term]; !exists {
			b.docFreq[term]++
			seen[term] = struct{}{}
		}
	}
}

type lexicalHit struct {
	ID    string
	Score float64
}

// search scores every passage containing a query term. Caller holds at least
// the store read lock. limit <= 0 returns all hits.
func (b *bm25Index) search(query string, limit int) []lexicalHit {
	terms := uniqueTerms(tokenize(query))
	if len(terms) == 0 || b.docCount == 0 {
		return nil
	}
	avgLen := float64(b.totalLength) / float64(b.docCount)
	scores := make(map[string]float64)
	for _, term := range terms {
		postings := b.postings[term]
		if len(postings) == 0 {
			continue
		}
		df := b.docFreq[term]
		idf := math.Log((float64(b.docCount)-float64(df)+0.5)/(float64(df)+0.5) + 1)
		for id, tf := range postings {
			docLen := float64(b.passageLen[id])
			numerator := float64(tf) * (b.k1 + 1)
			denominator := float64(tf) + b.k1*(1-b.b+b.b*(docLen/avgLen))
			scores[id] += idf * (numerator / denominator)
		}
	}
	hits := make([]lexicalHit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, lexicalHit{ID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func tokenize(content string) []string {
	return bm25Regex.FindAllString(strings.ToLower(content), -1)
}

func uniqueTerms(tokens []string) []string {
	if len(tokens) == 0 {
		return tokens
	}
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}
