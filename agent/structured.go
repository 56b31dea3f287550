package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sweetpotato0/regrag/llm"
	"github.com/sweetpotato0/regrag/pkg/metrics"
	"github.com/sweetpotato0/regrag/tool"
)

// structuredExtractor turns retrieved passages into structured facts
// (entities, totals, summary) recorded as a tool output for synthesis.
type structuredExtractor struct {
	client llm.Client
	cfg    *Config
	logger *slog.Logger
}

func newStructuredExtractor(client llm.Client, cfg *Config, logger *slog.Logger) *structuredExtractor {
	return &structuredExtractor{client: client, cfg: cfg, logger: logger.With("node", "structured")}
}

var structuredSchema = &llm.Schema{
	Name:        "structured_facts",
	Description: "Entities, totals and summary extracted from the documents",
	Properties: map[string]any{
		"entities":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"summary":     map[string]any{"type": "string"},
		"total_fines": map[string]any{"type": "number"},
	},
}

type structuredFacts struct {
	Entities   []string `json:"entities"`
	Summary    string   `json:"summary"`
	TotalFines float64  `json:"total_fines"`
}

// Extract returns structured facts as a tool output. Provider failures yield
// an empty output; synthesis still runs on the raw passages.
func (s *structuredExtractor) Extract(ctx context.Context, state State) tool.Output {
	resp, err := s.client.Complete(ctx, &llm.Request{
		System:      s.cfg.StructuredPrompt,
		Prompt:      fmt.Sprintf("Question: %s\n\n%s", state.Turn.Query, formatSources(state.Passages, s.cfg.MaxPassages)),
		Schema:      structuredSchema,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		s.logger.Warn("structured extraction unavailable", "error", err)
		return tool.Output{Tool: "structured_extraction", Text: ""}
	}
	metrics.RecordTokenUsage(resp.Model, "structured", resp.TokensUsed)

	facts, err := llm.DecodeJSON[structuredFacts](resp.Text)
	if err != nil {
		s.logger.Warn("structured extraction unparseable", "error", err)
		return tool.Output{Tool: "structured_extraction", Text: ""}
	}

	var parts []string
	if facts.Summary != "" {
		parts = append(parts, facts.Summary)
	}
	if len(facts.Entities) > 0 {
		parts = append(parts, "entities: "+strings.Join(facts.Entities, ", "))
	}
	if facts.TotalFines > 0 {
		parts = append(parts, fmt.Sprintf("total fines: %.0f", facts.TotalFines))
	}
	return tool.Output{
		Tool: "structured_extraction",
		Text: strings.Join(parts, "; "),
		Data: map[string]any{
			"entities":    facts.Entities,
			"summary":     facts.Summary,
			"total_fines": facts.TotalFines,
		},
	}
}

// directResponder answers greetings and out-of-domain queries without
// touching the index.
type directResponder struct {
	client llm.Client
	cfg    *Config
	logger *slog.Logger
}

func newDirectResponder(client llm.Client, cfg *Config, logger *slog.Logger) *directResponder {
	return &directResponder{client: client, cfg: cfg, logger: logger.With("node", "direct")}
}

func (d *directResponder) Respond(ctx context.Context, query string) string {
	resp, err := d.client.Complete(ctx, &llm.Request{
		System: d.cfg.DirectPrompt,
		Prompt: query,
	})
	if err != nil {
		d.logger.Warn("direct response unavailable, using greeting fallback", "error", err)
		return "Hello! I'm ready to help with your financial regulation questions. What's on your mind?"
	}
	metrics.RecordTokenUsage(resp.Model, "direct", resp.TokensUsed)
	return strings.TrimSpace(resp.Text)
}
