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

// gate is the corrective retrieval evaluator. It grades each candidate
// passage for topical relevance independent of retrieval rank and aggregates
// the grades into a verdict:
//
//	correct   - enough top candidates are relevant; pass through unchanged
//	ambiguous - mixed relevance; decompose passages into relevant spans
//	incorrect - nothing clears the floor; repair retrieval or clarify
//
// Thresholds come from configuration, so identical (query, candidates) pairs
// always produce the same verdict. Grader outages fail open to "correct",
// matching the principle that gate failures must not block the turn.
type gate struct {
	client llm.Client
	cfg    *Config
	logger *slog.Logger
}

func newGate(client llm.Client, cfg *Config, logger *slog.Logger) *gate {
	return &gate{client: client, cfg: cfg, logger: logger.With("node", "gate")}
}

var gradeSchema = &llm.Schema{
	Name:        "relevance",
	Description: "Topical relevance of a passage to the question",
	Properties: map[string]any{
		"score": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
	},
	Required: []string{"score"},
}

type gradeResult struct {
	Score float64 `json:"score"`
}

// Assess grades the candidate set and returns the verdict.
func (g *gate) Assess(ctx context.Context, query string, passages []index.Passage) *RetrievalVerdict {
	if strings.TrimSpace(query) == "" || len(passages) == 0 {
		return &RetrievalVerdict{Confidence: RetrievalIncorrect}
	}

	graded := passages
	if len(graded) > g.cfg.MaxPassages {
		graded = graded[:g.cfg.MaxPassages]
	}

	relevant := 0
	var sum float64
	for _, p := range graded {
		score, err := g.grade(ctx, query, p.Content)
		if err != nil {
			g.logger.Warn("grader unavailable, failing open", "error", err)
			return &RetrievalVerdict{Confidence: RetrievalCorrect, Score: 1}
		}
		sum += score
		if score >= g.cfg.GradeThreshold {
			relevant++
		}
	}

	mean := sum / float64(len(graded))
	verdict := &RetrievalVerdict{Score: mean}
	switch {
	case relevant == 0:
		verdict.Confidence = RetrievalIncorrect
	case float64(relevant)/float64(len(graded)) >= g.cfg.CorrectRatio:
		verdict.Confidence = RetrievalCorrect
	default:
		verdict.Confidence = RetrievalAmbiguous
	}

	g.logger.Info("retrieval assessed",
		"confidence", string(verdict.Confidence),
		"relevant", relevant,
		"graded", len(graded),
		"mean_score", mean,
	)
	metrics.RecordRetrievalVerdict(string(verdict.Confidence))
	return verdict
}

func (g *gate) grade(ctx context.Context, query, content string) (float64, error) {
	preview := content
	if len(preview) > 1500 {
		preview = preview[:1500]
	}
	resp, err := g.client.Complete(ctx, &llm.Request{
		System:      g.cfg.GradePrompt,
		Prompt:      fmt.Sprintf("Question: %s\n\nPassage:\n%s", query, preview),
		Schema:      gradeSchema,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return 0, err
	}
	metrics.RecordTokenUsage(resp.Model, "gate", resp.TokensUsed)

	parsed, err := llm.DecodeJSON[gradeResult](resp.Text)
	if err != nil {
		return 0, err
	}
	score := parsed.Score
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, nil
}

// Refine is the decompose-then-recompose step for ambiguous retrievals: each
// passage is reduced to the spans relevant to the query; passages with no
// relevant content are dropped. Per-passage failures keep the original.
func (g *gate) Refine(ctx context.Context, query string, passages []index.Passage) []index.Passage {
	refined := make([]index.Passage, 0, len(passages))
	for _, p := range passages {
		if len(p.Content) < 100 {
			refined = append(refined, p)
			continue
		}
		content := p.Content
		if len(content) > 3000 {
			content = content[:3000]
		}
		resp, err := g.client.Complete(ctx, &llm.Request{
			System:      g.cfg.DecomposePrompt,
			Prompt:      fmt.Sprintf("Question: %s\n\nPassage:\n%s", query, content),
			Temperature: g.cfg.Temperature,
		})
		if err != nil {
			g.logger.Warn("decompose failed, keeping original passage", "passage", p.ID, "error", err)
			refined = append(refined, p)
			continue
		}
		metrics.RecordTokenUsage(resp.Model, "gate", resp.TokensUsed)

		text := strings.TrimSpace(resp.Text)
		if text == "" || strings.Contains(strings.ToLower(text), "no relevant content") {
			continue
		}
		p.Content = text
		refined = append(refined, p)
	}
	g.logger.Info("passages refined", "in", len(passages), "out", len(refined))
	return refined
}
