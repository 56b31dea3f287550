package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/sweetpotato0/regrag/llm"
	"github.com/sweetpotato0/regrag/pkg/metrics"
	"github.com/sweetpotato0/regrag/tool"
)

// planner produces the typed execution plan. Plans are validated against the
// tool registry at construction time: steps naming unregistered tools are
// downgraded to synthesis markers rather than failing or string-matching at
// execution time. With identical inputs and no feedback the plan is stable.
type planner struct {
	client   llm.Client
	registry *tool.Registry
	cfg      *Config
	logger   *slog.Logger
}

func newPlanner(client llm.Client, registry *tool.Registry, cfg *Config, logger *slog.Logger) *planner {
	return &planner{client: client, registry: registry, cfg: cfg, logger: logger.With("node", "plan")}
}

var planSchema = &llm.Schema{
	Name:        "plan",
	Description: "Ordered execution plan",
	Properties: map[string]any{
		"strategy": map[string]any{"type": "string"},
		"steps": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"kind": map[string]any{"type": "string", "enum": []string{"retrieval", "tool", "synthesis"}},
					"goal": map[string]any{"type": "string"},
					"tool": map[string]any{"type": "string"},
					"args": map[string]any{"type": "object"},
				},
				"required": []string{"kind"},
			},
		},
	},
	Required: []string{"steps"},
}

func (p *planner) Plan(ctx context.Context, query string, intent Intent, feedback string) *Plan {
	prompt := p.buildPrompt(query, intent, feedback)

	resp, err := p.client.Complete(ctx, &llm.Request{
		System:      p.cfg.PlannerPrompt,
		Prompt:      prompt,
		Schema:      planSchema,
		Temperature: p.cfg.Temperature,
	})
	if err != nil {
		p.logger.Warn("planner unavailable, using default plan", "error", err)
		return p.defaultPlan(intent)
	}
	metrics.RecordTokenUsage(resp.Model, "plan", resp.TokensUsed)

	parsed, err := llm.DecodeJSON[Plan](resp.Text)
	if err != nil || len(parsed.Steps) == 0 {
		p.logger.Warn("plan unparseable, using default plan", "error", err)
		return p.defaultPlan(intent)
	}
	return p.validate(parsed)
}

func (p *planner) buildPrompt(query string, intent Intent, feedback string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\nIntent: %s\n", query, intent)
	b.WriteString("Available tools:\n")
	tools := p.registry.List()
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}
	if feedback != "" {
		fmt.Fprintf(&b, "The previous answer failed validation: %s\nAdjust the plan to fix this.\n", feedback)
	}
	return b.String()
}

// validate enforces the closed-registry invariant and guarantees the plan
// ends with synthesis preceded by retrieval.
func (p *planner) validate(plan *Plan) *Plan {
	out := &Plan{Strategy: plan.Strategy}
	hasRetrieval := false
	hasSynthesis := false
	for _, step := range plan.Steps {
		switch step.Kind {
		case StepRetrieval:
			hasRetrieval = true
			out.Steps = append(out.Steps, Step{Kind: StepRetrieval, Goal: step.Goal})
		case StepSynthesis:
			hasSynthesis = true
			out.Steps = append(out.Steps, Step{Kind: StepSynthesis, Goal: step.Goal})
		case StepTool:
			if !p.registry.Has(step.Tool) {
				p.logger.Warn("plan referenced unknown tool, downgrading to synthesis", "tool", step.Tool)
				hasSynthesis = true
				out.Steps = append(out.Steps, Step{Kind: StepSynthesis, Goal: step.Goal})
				continue
			}
			out.Steps = append(out.Steps, step)
		default:
			p.logger.Warn("dropping step of unknown kind", "kind", string(step.Kind))
		}
	}
	if !hasRetrieval {
		out.Steps = append([]Step{{Kind: StepRetrieval, Goal: "gather regulatory evidence"}}, out.Steps...)
	}
	if !hasSynthesis {
		out.Steps = append(out.Steps, Step{Kind: StepSynthesis, Goal: "compose the answer"})
	}
	return out
}

// defaultPlan is the deterministic fallback when planning is unavailable.
func (p *planner) defaultPlan(intent Intent) *Plan {
	plan := &Plan{
		Strategy: "retrieve supporting documents, then synthesize",
		Steps: []Step{
			{Kind: StepRetrieval, Goal: "gather regulatory evidence"},
			{Kind: StepSynthesis, Goal: "compose the answer"},
		},
	}
	if intent == IntentCalculation && p.registry.Has("rate_lookup") {
		plan.Steps = []Step{
			{Kind: StepRetrieval, Goal: "gather regulatory evidence"},
			{Kind: StepTool, Tool: "rate_lookup", Args: map[string]any{"bank": "FED"}, Goal: "look up the policy rate"},
			{Kind: StepSynthesis, Goal: "compose the answer"},
		}
	}
	return plan
}
