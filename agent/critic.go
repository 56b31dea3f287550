package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sweetpotato0/regrag/index"
	"github.com/sweetpotato0/regrag/llm"
	"github.com/sweetpotato0/regrag/pkg/metrics"
)

// critic validates the draft against its cited sources using structured
// output, not text pattern matching. On a retry turn the prompt relaxes the
// acceptance bar so near-correct answers can release instead of looping.
// The reason accompanying an invalid verdict feeds the next planner call.
type critic struct {
	client llm.Client
	cfg    *Config
	logger *slog.Logger
}

func newCritic(client llm.Client, cfg *Config, logger *slog.Logger) *critic {
	return &critic{client: client, cfg: cfg, logger: logger.With("node", "critic")}
}

var validationSchema = &llm.Schema{
	Name:        "validation",
	Description: "Whether the draft answer is supported by its sources",
	Properties: map[string]any{
		"valid":  map[string]any{"type": "boolean"},
		"reason": map[string]any{"type": "string"},
	},
	Required: []string{"valid", "reason"},
}

// Validate returns the verdict, or an error when the provider is unavailable
// after retries; the pipeline resolves that error to the safe message.
func (c *critic) Validate(ctx context.Context, state State) (*ValidationVerdict, error) {
	isRetry := state.Iterations > 0

	resp, err := c.client.Complete(ctx, &llm.Request{
		System:      c.cfg.CriticPrompt,
		Prompt:      c.buildPrompt(state, isRetry),
		Schema:      validationSchema,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("validation: %w", err)
	}
	metrics.RecordTokenUsage(resp.Model, "critic", resp.TokensUsed)

	parsed, err := llm.DecodeJSON[ValidationVerdict](resp.Text)
	if err != nil {
		return nil, fmt.Errorf("validation decode: %w", err)
	}
	if !parsed.Valid && strings.TrimSpace(parsed.Reason) == "" {
		parsed.Reason = "the draft answer could not be verified against the sources"
	}

	metrics.RecordValidationScore("critic", parsed.Valid)
	c.logger.Info("draft validated", "valid", parsed.Valid, "retry", isRetry, "reason", parsed.Reason)
	return parsed, nil
}

func (c *critic) buildPrompt(state State, isRetry bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nDraft answer:\n%s\n\n", state.Turn.Query, state.Draft)
	b.WriteString(formatSources(state.Passages, c.cfg.MaxPassages))
	if len(state.ToolOutputs) > 0 {
		b.WriteString("\n")
		b.WriteString(formatToolOutputs(state.ToolOutputs, nil))
	}
	if isRetry {
		fmt.Fprintf(&b, "\nThis is retry %d: accept the draft if it is substantially correct.\n", state.Iterations)
	}
	return b.String()
}

func formatSources(passages []index.Passage, limit int) string {
	if len(passages) == 0 {
		return "Sources: none (the answer must make no factual regulatory claims)."
	}
	if limit > 0 && len(passages) > limit {
		passages = passages[:limit]
	}
	var b strings.Builder
	b.WriteString("Sources:\n")
	for i, p := range passages {
		content := p.Content
		if len(content) > 800 {
			content = content[:800]
		}
		fmt.Fprintf(&b, "[%d] (%s) %s\n", i+1, p.Citation(), content)
	}
	return b.String()
}
