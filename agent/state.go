// Package agent implements the orchestration pipeline: one user turn flows
// through intent classification, filter extraction, planning, conditional
// routing, hybrid retrieval with a corrective quality gate, tool execution,
// synthesis and critic validation, looping back to planning with feedback
// until the answer is released or the retry bound forces the safe message.
package agent

import (
	"strings"

	"github.com/sweetpotato0/regrag/filter"
	"github.com/sweetpotato0/regrag/index"
	"github.com/sweetpotato0/regrag/tool"
)

// Intent is the classified category of a user query.
type Intent string

const (
	IntentRegulatoryLookup Intent = "regulatory_lookup"
	IntentCalculation      Intent = "calculation"
	IntentReasoning        Intent = "reasoning"
	IntentStructured       Intent = "structured"
	IntentOther            Intent = "other"
)

// Route is the execution path chosen after planning.
type Route string

const (
	RouteRetrieval   Route = "retrieval"
	RouteStructured  Route = "structured"
	RouteCalculation Route = "calculation"
	RouteDirect      Route = "direct"
)

// StepKind tags a plan step.
type StepKind string

const (
	StepRetrieval StepKind = "retrieval"
	StepSynthesis StepKind = "synthesis"
	StepTool      StepKind = "tool"
)

// Step is one typed plan entry. Tool and Args are set only for tool steps.
type Step struct {
	Kind StepKind       `json:"kind"`
	Goal string         `json:"goal,omitempty"`
	Tool string         `json:"tool,omitempty"`
	Args map[string]any `json:"args,omitempty"`
}

// Plan is the ordered step list produced by the planner. It is regenerated
// from scratch on every planning invocation, initial or retry.
type Plan struct {
	Strategy string `json:"strategy,omitempty"`
	Steps    []Step `json:"steps"`
}

// ToolSteps returns the tool steps in plan order.
func (p *Plan) ToolSteps() []Step {
	if p == nil {
		return nil
	}
	var out []Step
	for _, s := range p.Steps {
		if s.Kind == StepTool {
			out = append(out, s)
		}
	}
	return out
}

// HasToolSteps reports whether any tool step survived plan validation.
func (p *Plan) HasToolSteps() bool {
	return len(p.ToolSteps()) > 0
}

// RetrievalConfidence is the CRAG gate's verdict category.
type RetrievalConfidence string

const (
	RetrievalCorrect   RetrievalConfidence = "correct"
	RetrievalAmbiguous RetrievalConfidence = "ambiguous"
	RetrievalIncorrect RetrievalConfidence = "incorrect"
)

// RetrievalVerdict is the CRAG gate output for one retrieval attempt.
type RetrievalVerdict struct {
	Confidence RetrievalConfidence `json:"confidence"`
	Score      float64             `json:"score"`
}

// ValidationVerdict is the critic's judgment of a draft answer.
type ValidationVerdict struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// Outcome is the terminal disposition of a turn.
type Outcome string

const (
	OutcomeRelease       Outcome = "release"
	OutcomeReleaseSafe   Outcome = "release_safe"
	OutcomeClarification Outcome = "clarification"
)

// Turn identifies one user request.
type Turn struct {
	ID        string
	SessionID string
	Query     string
}

// State is the record threaded through the orchestrator for one turn. Nodes
// receive it by value and return an updated copy; nothing outside the
// pipeline holds a reference to it, and it is discarded when the turn ends.
type State struct {
	Turn    Turn
	Intent  Intent
	Filters filter.Set
	Route   Route

	Plan     *Plan
	Feedback string

	Passages []index.Passage
	Verdict  *RetrievalVerdict
	Repaired bool

	ToolOutputs []tool.Output
	ToolErrors  []tool.Error

	Draft        string
	Validation   *ValidationVerdict
	CriticFailed bool
	Iterations   int

	Answer    string
	Citations []string
	Outcome   Outcome
}

// CitationsFrom collects unique citation strings from passages, in order.
func CitationsFrom(passages []index.Passage) []string {
	seen := make(map[string]struct{}, len(passages))
	var out []string
	for _, p := range passages {
		c := strings.TrimSpace(p.Citation())
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
