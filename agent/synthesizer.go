package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sweetpotato0/regrag/index"
	"github.com/sweetpotato0/regrag/llm"
	"github.com/sweetpotato0/regrag/pkg/metrics"
	"github.com/sweetpotato0/regrag/tool"
)

// synthesizer composes the draft answer from the query, the plan, the
// surviving passages and any tool outputs. With zero evidence on an
// evidence-requiring route it emits the safe message rather than inventing
// an answer. Evidence is packed under a token budget, dropping the
// lowest-ranked passages first.
type synthesizer struct {
	client llm.Client
	cfg    *Config
	logger *slog.Logger
}

func newSynthesizer(client llm.Client, cfg *Config, logger *slog.Logger) *synthesizer {
	return &synthesizer{client: client, cfg: cfg, logger: logger.With("node", "synthesis")}
}

func (s *synthesizer) Compose(ctx context.Context, state State) (string, error) {
	if state.Route != RouteDirect && len(state.Passages) == 0 && len(state.ToolOutputs) == 0 {
		s.logger.Warn("no evidence for synthesis, returning safe message")
		return SafeClarificationMessage, nil
	}

	prompt := s.buildPrompt(state)
	resp, err := s.client.Complete(ctx, &llm.Request{
		System:      s.cfg.SynthesisPrompt,
		Prompt:      prompt,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("synthesis: %w", err)
	}
	metrics.RecordTokenUsage(resp.Model, "synthesis", resp.TokensUsed)

	draft := strings.TrimSpace(resp.Text)
	if draft == "" {
		return SafeClarificationMessage, nil
	}
	return draft, nil
}

func (s *synthesizer) buildPrompt(state State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", state.Turn.Query)
	if state.Plan != nil && state.Plan.Strategy != "" {
		fmt.Fprintf(&b, "Plan: %s\n\n", state.Plan.Strategy)
	}
	b.WriteString(s.formatPassages(state.Passages))
	b.WriteString(formatToolOutputs(state.ToolOutputs, state.ToolErrors))
	return b.String()
}

// formatPassages numbers the evidence so citations like [1] resolve, and
// stops packing once the token budget is spent.
func (s *synthesizer) formatPassages(passages []index.Passage) string {
	if len(passages) == 0 {
		return "Documents: none available.\n\n"
	}
	var b strings.Builder
	b.WriteString("Documents:\n")
	budget := s.cfg.TokenBudget
	limit := s.cfg.MaxPassages
	if limit > len(passages) {
		limit = len(passages)
	}
	for i := 0; i < limit; i++ {
		p := passages[i]
		entry := fmt.Sprintf("[%d] (%s) %s\n", i+1, p.Citation(), p.Content)
		cost := s.cfg.Counter.Count(entry)
		if cost > budget && i > 0 {
			s.logger.Debug("token budget reached", "packed", i, "of", limit)
			break
		}
		budget -= cost
		b.WriteString(entry)
	}
	b.WriteString("\n")
	return b.String()
}

func formatToolOutputs(outputs []tool.Output, failures []tool.Error) string {
	if len(outputs) == 0 && len(failures) == 0 {
		return "Tool results: none.\n"
	}
	var b strings.Builder
	b.WriteString("Tool results:\n")
	for _, out := range outputs {
		fmt.Fprintf(&b, "- %s: %s\n", out.Tool, out.Text)
	}
	for _, f := range failures {
		fmt.Fprintf(&b, "- %s: unavailable (%s)\n", f.Tool, f.Message)
	}
	return b.String()
}
