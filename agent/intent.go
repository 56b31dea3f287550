package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sweetpotato0/regrag/llm"
	"github.com/sweetpotato0/regrag/pkg/metrics"
)

// classifier resolves the intent category for a query. It asks the LLM for a
// structured classification and falls back to keyword heuristics when the
// provider is unavailable, so the turn always proceeds.
type classifier struct {
	client llm.Client
	cfg    *Config
	logger *slog.Logger
}

func newClassifier(client llm.Client, cfg *Config, logger *slog.Logger) *classifier {
	return &classifier{client: client, cfg: cfg, logger: logger.With("node", "intent")}
}

var intentSchema = &llm.Schema{
	Name:        "intent",
	Description: "Classified intent of the user query",
	Properties: map[string]any{
		"category": map[string]any{
			"type": "string",
			"enum": []string{"regulatory_lookup", "calculation", "reasoning", "structured", "other"},
		},
	},
	Required: []string{"category"},
}

type intentResult struct {
	Category string `json:"category"`
}

func (c *classifier) Classify(ctx context.Context, query string) Intent {
	fallback := heuristicIntent(query)

	resp, err := c.client.Complete(ctx, &llm.Request{
		System:      c.cfg.IntentPrompt,
		Prompt:      fmt.Sprintf("Question: %s", query),
		Schema:      intentSchema,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		c.logger.Warn("classification unavailable, using heuristic", "error", err, "fallback", fallback)
		return fallback
	}
	metrics.RecordTokenUsage(resp.Model, "intent", resp.TokensUsed)

	parsed, err := llm.DecodeJSON[intentResult](resp.Text)
	if err != nil {
		c.logger.Warn("classification unparseable, using heuristic", "error", err, "fallback", fallback)
		return fallback
	}
	switch Intent(parsed.Category) {
	case IntentRegulatoryLookup, IntentCalculation, IntentReasoning, IntentStructured, IntentOther:
		return Intent(parsed.Category)
	default:
		return fallback
	}
}

// heuristicIntent survives provider outages with keyword rules.
func heuristicIntent(query string) Intent {
	q := strings.ToLower(query)
	for _, word := range []string{"basel", "rule", "regulation", "section", "cftc", "sec ", "fomc", "document", "minutes"} {
		if strings.Contains(q, word) {
			return IntentRegulatoryLookup
		}
	}
	for _, word := range []string{"calculate", "how much", "yield", "ratio", "rate of"} {
		if strings.Contains(q, word) {
			return IntentCalculation
		}
	}
	for _, word := range []string{"why", "compare", "impact", "explain"} {
		if strings.Contains(q, word) {
			return IntentReasoning
		}
	}
	return IntentOther
}
