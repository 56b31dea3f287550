package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sweetpotato0/regrag/filter"
	"github.com/sweetpotato0/regrag/llm"
	"github.com/sweetpotato0/regrag/pkg/metrics"
)

// extractor pulls raw filter facets out of the query and hands them to the
// normalizer, which enforces the controlled vocabulary. Provider failures
// degrade to pure query heuristics; extraction never fails a turn.
type extractor struct {
	client     llm.Client
	normalizer *filter.Normalizer
	cfg        *Config
	logger     *slog.Logger
}

func newExtractor(client llm.Client, cfg *Config, logger *slog.Logger) *extractor {
	return &extractor{
		client:     client,
		normalizer: cfg.Normalizer,
		cfg:        cfg,
		logger:     logger.With("node", "filters"),
	}
}

var extractSchema = &llm.Schema{
	Name:        "filters",
	Description: "Retrieval filters present in the query",
	Properties: map[string]any{
		"regulators":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"categories":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"doc_types":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"year":         map[string]any{"type": "integer"},
		"jurisdiction": map[string]any{"type": "string"},
	},
}

func (e *extractor) Extract(ctx context.Context, query string) filter.Set {
	resp, err := e.client.Complete(ctx, &llm.Request{
		System:      e.cfg.ExtractPrompt,
		Prompt:      fmt.Sprintf("Question: %s", query),
		Schema:      extractSchema,
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		e.logger.Warn("filter extraction unavailable, using heuristics", "error", err)
		return e.normalizer.Normalize(query, nil)
	}
	metrics.RecordTokenUsage(resp.Model, "filters", resp.TokensUsed)

	raw, err := llm.DecodeJSON[map[string]any](resp.Text)
	if err != nil {
		e.logger.Warn("filter extraction unparseable, using heuristics", "error", err)
		return e.normalizer.Normalize(query, nil)
	}
	return e.normalizer.Normalize(query, *raw)
}
