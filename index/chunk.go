package index

import (
	"strings"
	"unicode/utf8"
)

// Chunker splits documents into passages that can be embedded and indexed.
type Chunker interface {
	Chunk(doc Document) []Passage
}

type chunkOptions struct {
	Size      int
	Overlap   int
	Separator string
}

// ChunkOption customizes the simple chunker.
type ChunkOption func(*chunkOptions)

// WithChunkSize overrides the default chunk size (characters).
func WithChunkSize(size int) ChunkOption {
	return func(o *chunkOptions) {
		if size > 0 {
			o.Size = size
		}
	}
}

// WithOverlap configures overlap (characters) between consecutive chunks.
func WithOverlap(overlap int) ChunkOption {
	return func(o *chunkOptions) {
		if overlap >= 0 {
			o.Overlap = overlap
		}
	}
}

// WithSeparator sets the logical separator used before windowing.
func WithSeparator(sep string) ChunkOption {
	return func(o *chunkOptions) {
		if sep != "" {
			o.Separator = sep
		}
	}
}

// SimpleChunker splits documents by separator and enforces max lengths.
type SimpleChunker struct {
	size    int
	overlap int
	sep     string
}

// NewSimpleChunker constructs a chunker with defaults suited to regulatory
// publications (long paragraphs, heavy boilerplate).
func NewSimpleChunker(opts ...ChunkOption) *SimpleChunker {
	cfg := &chunkOptions{
		Size:      900,
		Overlap:   150,
		Separator: "\n\n",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Overlap >= cfg.Size {
		cfg.Overlap = cfg.Size / 4
	}
	return &SimpleChunker{size: cfg.Size, overlap: cfg.Overlap, sep: cfg.Separator}
}

// Chunk splits the document into bounded passages carrying its metadata.
func (c *SimpleChunker) Chunk(doc Document) []Passage {
	EnsureDocumentID(&doc)

	parts := strings.Split(doc.Content, c.sep)
	passages := make([]Passage, 0, len(parts))
	ordinal := 0

	emit := func(content string) {
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		ordinal++
		passages = append(passages, Passage{
			ID:         NextPassageID(doc.ID),
			DocumentID: doc.ID,
			Content:    content,
			Ordinal:    ordinal,
			Meta:       doc.Meta,
		})
	}

	for _, part := range parts {
		for len(part) > c.size {
			cut := runeBoundary(part, c.size)
			if cut == 0 {
				break
			}
			emit(part[:cut])
			next := runeBoundary(part, cut-c.overlap)
			if next <= 0 {
				next = cut
			}
			part = part[next:]
		}
		emit(part)
	}

	if len(passages) == 0 {
		emit(doc.Content)
	}
	return passages
}

// runeBoundary backs idx up to the nearest rune start so byte windows never
// split a multibyte character.
func runeBoundary(s string, idx int) int {
	if idx < 0 {
		return 0
	}
	for idx > 0 && idx < len(s) && !utf8.RuneStart(s[idx]) {
		idx--
	}
	return idx
}
