// Package openai implements vector.Embedder over the OpenAI embeddings API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/sweetpotato0/regrag/vector"
)

const (
	defaultModel     = openaisdk.EmbeddingModelTextEmbedding3Small
	defaultDimension = 1536
)

// Embedder produces embeddings through the OpenAI API. Vectors are truncated
// or zero-padded to the configured dimension so the index schema stays fixed
// even if the model changes.
type Embedder struct {
	client    openaisdk.Client
	model     openaisdk.EmbeddingModel
	dimension int
}

// Option customises the embedder.
type Option func(*Embedder) []option.RequestOption

// WithModel selects the embedding model.
func WithModel(model openaisdk.EmbeddingModel) Option {
	return func(e *Embedder) []option.RequestOption {
		if model != "" {
			e.model = model
		}
		return nil
	}
}

// WithDimension fixes the output vector width.
func WithDimension(n int) Option {
	return func(e *Embedder) []option.RequestOption {
		if n > 0 {
			e.dimension = n
		}
		return nil
	}
}

// WithBaseURL points the client at a compatible alternative endpoint.
func WithBaseURL(url string) Option {
	return func(e *Embedder) []option.RequestOption {
		if strings.TrimSpace(url) == "" {
			return nil
		}
		return []option.RequestOption{option.WithBaseURL(url)}
	}
}

// New creates an Embedder with text-embedding-3-small defaults.
func New(apiKey string, opts ...Option) *Embedder {
	e := &Embedder{
		model:     defaultModel,
		dimension: defaultDimension,
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	for _, opt := range opts {
		reqOpts = append(reqOpts, opt(e)...)
	}
	e.client = openaisdk.NewClient(reqOpts...)
	return e
}

var _ vector.Embedder = (*Embedder)(nil)

// Dimension returns the configured vector width.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// Embed converts one text to a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return vectors[0], nil
}

// EmbedBatch converts multiple texts in one API call.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Model: e.model,
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(resp.Data))
	for i, emb := range resp.Data {
		out[i] = fitWidth(emb.Embedding, e.dimension)
	}
	return out, nil
}

func fitWidth(input []float64, width int) []float32 {
	vec := make([]float32, width)
	for i := 0; i < len(input) && i < width; i++ {
		vec[i] = float32(input[i])
	}
	return vec
}
