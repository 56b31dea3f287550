package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sweetpotato0/regrag/filter"
	"github.com/sweetpotato0/regrag/index"
	"github.com/sweetpotato0/regrag/llm"
	"github.com/sweetpotato0/regrag/pkg/logging"
	"github.com/sweetpotato0/regrag/tool"
)

// fixedClient returns the same text for every request.
type fixedClient struct {
	textOut string
	err     error
	calls   int
}

func (c *fixedClient) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &llm.Response{Text: c.textOut, Model: "test-model"}, nil
}

func TestPlannerValidateDowngradesUnknownTool(t *testing.T) {
	registry := tool.NewRegistry()
	client := &fixedClient{textOut: `{"steps":[{"kind":"tool","tool":"nonexistent","goal":"lookup"}]}`}
	p := newPlanner(client, registry, defaultConfig(), logging.WithComponent("test"))

	plan := p.Plan(context.Background(), "q", IntentRegulatoryLookup, "")

	if plan.HasToolSteps() {
		t.Errorf("unknown tool must be downgraded, got steps %+v", plan.Steps)
	}
	if plan.Steps[0].Kind != StepRetrieval {
		t.Errorf("plan must start with retrieval, got %s", plan.Steps[0].Kind)
	}
	if plan.Steps[len(plan.Steps)-1].Kind != StepSynthesis {
		t.Errorf("plan must end with synthesis, got %s", plan.Steps[len(plan.Steps)-1].Kind)
	}
}

func TestPlannerGuaranteesRetrievalBeforeSynthesis(t *testing.T) {
	registry := tool.NewRegistry()
	client := &fixedClient{textOut: `{"steps":[{"kind":"synthesis"}]}`}
	p := newPlanner(client, registry, defaultConfig(), logging.WithComponent("test"))

	plan := p.Plan(context.Background(), "q", IntentReasoning, "")

	if len(plan.Steps) != 2 {
		t.Fatalf("steps = %+v, want retrieval then synthesis", plan.Steps)
	}
	if plan.Steps[0].Kind != StepRetrieval || plan.Steps[1].Kind != StepSynthesis {
		t.Errorf("steps = %+v", plan.Steps)
	}
}

func TestPlannerFallsBackToDefaultPlan(t *testing.T) {
	registry := tool.NewRegistry()
	if err := registry.Register(&tool.Tool{
		Name:        "rate_lookup",
		Description: "policy rate lookup",
		Handler: func(ctx context.Context, in tool.Inputs) (tool.Output, error) {
			return tool.Output{Tool: "rate_lookup", Text: "5.25%"}, nil
		},
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	client := &fixedClient{err: errors.New("provider down")}
	p := newPlanner(client, registry, defaultConfig(), logging.WithComponent("test"))

	plan := p.Plan(context.Background(), "q", IntentCalculation, "")

	if len(plan.Steps) != 3 {
		t.Fatalf("steps = %+v", plan.Steps)
	}
	if plan.Steps[1].Kind != StepTool || plan.Steps[1].Tool != "rate_lookup" {
		t.Errorf("calculation fallback should include rate_lookup, got %+v", plan.Steps[1])
	}
}

func TestGateEmptyPassagesAreIncorrect(t *testing.T) {
	client := &fixedClient{textOut: `{"score": 1.0}`}
	g := newGate(client, defaultConfig(), logging.WithComponent("test"))

	v := g.Assess(context.Background(), "q", nil)
	if v.Confidence != RetrievalIncorrect {
		t.Errorf("confidence = %s, want incorrect", v.Confidence)
	}
	if client.calls != 0 {
		t.Errorf("empty candidate set must not be graded, calls = %d", client.calls)
	}
}

func TestGateFailsOpenWhenGraderUnavailable(t *testing.T) {
	client := &fixedClient{err: errors.New("grader down")}
	g := newGate(client, defaultConfig(), logging.WithComponent("test"))

	v := g.Assess(context.Background(), "q", []index.Passage{{ID: "p1", Content: "text"}})
	if v.Confidence != RetrievalCorrect {
		t.Errorf("grader outage must fail open, got %s", v.Confidence)
	}
	if v.Score != 1 {
		t.Errorf("fail-open score = %f, want 1", v.Score)
	}
}

func TestGateVerdictThresholds(t *testing.T) {
	passages := []index.Passage{
		{ID: "p1", Content: "relevant alpha"},
		{ID: "p2", Content: "noise beta"},
	}

	cases := []struct {
		name   string
		alpha  float64
		beta   float64
		expect RetrievalConfidence
	}{
		{"all relevant", 0.9, 0.9, RetrievalCorrect},
		{"half relevant", 0.9, 0.1, RetrievalAmbiguous},
		{"none relevant", 0.1, 0.1, RetrievalIncorrect},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newScriptedClient()
			client.gradeFn = func(prompt string) (float64, error) {
				if strings.Contains(prompt, "alpha") {
					return tc.alpha, nil
				}
				return tc.beta, nil
			}
			g := newGate(client, defaultConfig(), logging.WithComponent("test"))
			v := g.Assess(context.Background(), "q", passages)
			if v.Confidence != tc.expect {
				t.Errorf("confidence = %s, want %s", v.Confidence, tc.expect)
			}
		})
	}
}

func TestRefineKeepsShortAndUnrefinablePassages(t *testing.T) {
	client := &fixedClient{err: errors.New("decompose down")}
	g := newGate(client, defaultConfig(), logging.WithComponent("test"))

	long := strings.Repeat("regulatory text ", 20)
	passages := []index.Passage{
		{ID: "short", Content: "brief note"},
		{ID: "long", Content: long},
	}
	refined := g.Refine(context.Background(), "q", passages)

	if len(refined) != 2 {
		t.Fatalf("refined = %d passages, want 2", len(refined))
	}
	if refined[0].Content != "brief note" || refined[1].Content != long {
		t.Error("originals must survive when decomposition is unavailable")
	}
	if client.calls != 1 {
		t.Errorf("short passages must skip decomposition, calls = %d", client.calls)
	}
}

func TestRouterRoutes(t *testing.T) {
	r := newRouter(logging.WithComponent("test"))

	cases := []struct {
		intent  Intent
		filters filter.Set
		want    Route
	}{
		{IntentCalculation, filter.Set{}, RouteCalculation},
		{IntentStructured, filter.Set{}, RouteStructured},
		{IntentRegulatoryLookup, filter.Set{}, RouteRetrieval},
		{IntentReasoning, filter.Set{}, RouteRetrieval},
		{IntentOther, filter.Set{}, RouteDirect},
		{IntentOther, filter.Set{Regulators: []string{"SEC"}}, RouteRetrieval},
		{IntentOther, filter.Set{Year: 2024}, RouteRetrieval},
	}
	for _, tc := range cases {
		if got := r.Route(tc.intent, tc.filters); got != tc.want {
			t.Errorf("Route(%s, %+v) = %s, want %s", tc.intent, tc.filters, got, tc.want)
		}
	}
}

func TestRouterAfterRetrieval(t *testing.T) {
	r := newRouter(logging.WithComponent("test"))

	plain := &Plan{Steps: []Step{{Kind: StepRetrieval}, {Kind: StepSynthesis}}}
	withTool := &Plan{Steps: []Step{{Kind: StepRetrieval}, {Kind: StepTool, Tool: "rate_lookup"}, {Kind: StepSynthesis}}}

	if got := r.AfterRetrieval(RouteStructured, plain); got != "structured" {
		t.Errorf("structured route dispatched to %s", got)
	}
	if got := r.AfterRetrieval(RouteCalculation, plain); got != "calculation" {
		t.Errorf("calculation route dispatched to %s", got)
	}
	if got := r.AfterRetrieval(RouteRetrieval, withTool); got != "tools" {
		t.Errorf("tool plan dispatched to %s", got)
	}
	if got := r.AfterRetrieval(RouteRetrieval, plain); got != "synthesis" {
		t.Errorf("plain plan dispatched to %s", got)
	}
}

func TestSynthesizerZeroEvidenceReturnsSafeMessage(t *testing.T) {
	client := &fixedClient{textOut: "should never be asked"}
	s := newSynthesizer(client, defaultConfig(), logging.WithComponent("test"))

	draft, err := s.Compose(context.Background(), State{
		Turn:  Turn{Query: "What did the Fed rule?"},
		Route: RouteRetrieval,
	})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if draft != SafeClarificationMessage {
		t.Errorf("draft = %q", draft)
	}
	if client.calls != 0 {
		t.Errorf("zero evidence must not reach the model, calls = %d", client.calls)
	}
}

func TestSynthesizerPacksPassagesUnderTokenBudget(t *testing.T) {
	cfg := defaultConfig()
	cfg.TokenBudget = 40
	client := &fixedClient{textOut: "answer"}
	s := newSynthesizer(client, cfg, logging.WithComponent("test"))

	prompt := s.buildPrompt(State{
		Turn: Turn{Query: "q"},
		Passages: []index.Passage{
			{ID: "p1", DocumentID: "d1", Content: strings.Repeat("first ", 20)},
			{ID: "p2", DocumentID: "d2", Content: strings.Repeat("second ", 20)},
		},
	})

	if !strings.Contains(prompt, "[1]") {
		t.Error("top passage must always be packed")
	}
	if strings.Contains(prompt, "[2]") {
		t.Error("budget should have excluded the second passage")
	}
}

func TestHeuristicIntent(t *testing.T) {
	cases := []struct {
		query string
		want  Intent
	}{
		{"What did the FOMC decide?", IntentRegulatoryLookup},
		{"Show me the Basel III rule", IntentRegulatoryLookup},
		{"Calculate the bond yield for me", IntentCalculation},
		{"Why did the Fed tighten policy?", IntentReasoning},
		{"good morning", IntentOther},
	}
	for _, tc := range cases {
		if got := heuristicIntent(tc.query); got != tc.want {
			t.Errorf("heuristicIntent(%q) = %s, want %s", tc.query, got, tc.want)
		}
	}
}

func TestCitationsFromDeduplicates(t *testing.T) {
	passages := []index.Passage{
		{ID: "p1", DocumentID: "d1", Meta: index.Metadata{Source: "basel.pdf"}},
		{ID: "p2", DocumentID: "d1", Meta: index.Metadata{Source: "basel.pdf"}},
		{ID: "p3", DocumentID: "d2", Meta: index.Metadata{URL: "https://sec.gov/rule"}},
		{ID: "p4", DocumentID: "d3"},
	}
	got := CitationsFrom(passages)
	want := []string{"basel.pdf", "https://sec.gov/rule", "d3"}
	if len(got) != len(want) {
		t.Fatalf("citations = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("citations[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
