package eval

import (
	"context"
	"fmt"
	"strings"

	"github.com/sweetpotato0/regrag/llm"
)

// GroundednessResult is the LLM judgement of whether an answer is
// supported by its source passages.
type GroundednessResult struct {
	Grounded bool    `json:"grounded"`
	Score    float64 `json:"score"`
	Reason   string  `json:"reason"`
}

var groundednessSchema = &llm.Schema{
	Name:        "groundedness",
	Description: "Judge whether the answer is supported by the sources.",
	Properties: map[string]any{
		"grounded": map[string]any{
			"type":        "boolean",
			"description": "True if every factual claim in the answer is supported by the sources.",
		},
		"score": map[string]any{
			"type":        "number",
			"description": "Fraction of the answer's claims supported by the sources, 0 to 1.",
		},
		"reason": map[string]any{
			"type":        "string",
			"description": "Short explanation, citing the unsupported claim if any.",
		},
	},
	Required: []string{"grounded", "score"},
}

const groundednessSystem = `You are a strict fact checker. Given an answer and the source passages it
was written from, decide whether every factual claim in the answer is
supported by the sources. Claims of ignorance and requests for
clarification count as grounded.`

// Groundedness asks the client whether answer is supported by sources.
// It is used by offline benchmarks; failures surface as errors rather
// than defaulting, since a benchmark should not silently pass.
func Groundedness(ctx context.Context, client llm.Client, answer string, sources []string) (*GroundednessResult, error) {
	if client == nil {
		return nil, fmt.Errorf("groundedness: nil client")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Answer:\n%s\n\nSources:\n", answer)
	if len(sources) == 0 {
		b.WriteString("(none)\n")
	}
	for i, src := range sources {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, src)
	}

	resp, err := client.Complete(ctx, &llm.Request{
		System:      groundednessSystem,
		Prompt:      b.String(),
		Schema:      groundednessSchema,
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("groundedness check: %w", err)
	}

	result, err := llm.DecodeJSON[GroundednessResult](resp.Text)
	if err != nil {
		return nil, fmt.Errorf("groundedness check: %w", err)
	}
	if result.Score < 0 {
		result.Score = 0
	}
	if result.Score > 1 {
		result.Score = 1
	}
	return result, nil
}
