package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sweetpotato0/regrag/filter"
	"github.com/sweetpotato0/regrag/graph"
	"github.com/sweetpotato0/regrag/index"
	"github.com/sweetpotato0/regrag/llm"
	"github.com/sweetpotato0/regrag/pkg/logging"
	"github.com/sweetpotato0/regrag/pkg/metrics"
	"github.com/sweetpotato0/regrag/pkg/telemetry"
	"github.com/sweetpotato0/regrag/session"
	"github.com/sweetpotato0/regrag/tool"
)

// Retriever is the hybrid search contract the pipeline depends on.
// search.Retriever implements it; tests substitute stubs.
type Retriever interface {
	Search(ctx context.Context, query string, f filter.Set) ([]index.Passage, error)
	SearchRelaxed(ctx context.Context, query string, f filter.Set) ([]index.Passage, error)
}

// Clients groups the LLM clients used by the pipeline stages. Any stage
// without its own client falls back to Default.
type Clients struct {
	Default     llm.Client
	Planner     llm.Client
	Grader      llm.Client
	Synthesizer llm.Client
	Critic      llm.Client
}

func pickClient(primary, fallback llm.Client) llm.Client {
	if primary != nil {
		return primary
	}
	return fallback
}

// Result is the terminal output of one agent turn.
type Result struct {
	TurnID     string
	Answer     string
	Citations  []string
	Outcome    Outcome
	Intent     Intent
	Filters    filter.Set
	Verdict    *RetrievalVerdict
	Iterations int
	ToolErrors []tool.Error
}

// Pipeline owns the control flow for agent turns. Every node reads the state
// by value and returns an updated copy; the terminal nodes set the answer.
type Pipeline struct {
	cfg *Config

	classifier  *classifier
	extractor   *extractor
	planner     *planner
	router      *router
	gate        *gate
	executor    *executor
	structured  *structuredExtractor
	direct      *directResponder
	synthesizer *synthesizer
	critic      *critic

	retriever Retriever
	graph     *graph.Graph[State]
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewPipeline wires the orchestrator. The registry is the closed tool set
// plans are validated against.
func NewPipeline(clients Clients, retriever Retriever, registry *tool.Registry, opts ...Option) (*Pipeline, error) {
	if clients.Default == nil {
		return nil, fmt.Errorf("default LLM client is required")
	}
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if registry == nil {
		registry = tool.NewRegistry()
	}
	cfg := applyOptions(opts)
	logger := logging.WithComponent("agent").With("pipeline", cfg.Name)

	// Every stage client gets a per-call deadline and retries with backoff,
	// so one flaky provider call does not fail the whole turn.
	harden := func(c llm.Client) llm.Client {
		return llm.WithRetry(llm.WithTimeout(c, cfg.CallTimeout), cfg.CallRetries, cfg.RetryBackoff)
	}
	base := harden(clients.Default)

	p := &Pipeline{
		cfg:         cfg,
		classifier:  newClassifier(base, cfg, logger),
		extractor:   newExtractor(base, cfg, logger),
		planner:     newPlanner(harden(pickClient(clients.Planner, clients.Default)), registry, cfg, logger),
		router:      newRouter(logger),
		gate:        newGate(harden(pickClient(clients.Grader, clients.Default)), cfg, logger),
		executor:    newExecutor(registry, logger),
		structured:  newStructuredExtractor(base, cfg, logger),
		direct:      newDirectResponder(base, cfg, logger),
		synthesizer: newSynthesizer(harden(pickClient(clients.Synthesizer, clients.Default)), cfg, logger),
		critic:      newCritic(harden(pickClient(clients.Critic, clients.Default)), cfg, logger),
		retriever:   retriever,
		logger:      logger,
		tracer:      telemetry.Tracer("regrag/agent"),
	}
	p.graph = p.buildGraph()

	p.logger.Info("pipeline initialised",
		"max_iterations", cfg.MaxIterations,
		"turn_timeout", cfg.TurnTimeout,
		"tools", registry.Names(),
	)
	return p, nil
}

func (p *Pipeline) buildGraph() *graph.Graph[State] {
	b := graph.NewBuilder[State]().
		AddNode("intent", p.node("intent", p.intentNode), "filters").
		AddNode("filters", p.node("filters", p.filtersNode), "plan").
		AddNode("plan", p.node("plan", p.planNode), "route").
		AddConditionNode("route", nil, p.routeCondition, map[string]string{
			"retrieve": "retrieve",
			"direct":   "direct",
		}).
		AddConditionNode("retrieve", p.node("retrieve", p.retrieveNode), p.gateCondition, map[string]string{
			"correct":   "dispatch",
			"ambiguous": "refine",
			"incorrect": "repair",
		}).
		AddNode("refine", p.node("refine", p.refineNode), "dispatch").
		AddConditionNode("repair", p.node("repair", p.repairNode), p.repairCondition, map[string]string{
			"recovered": "dispatch",
			"failed":    "clarify",
		}).
		AddConditionNode("dispatch", nil, p.dispatchCondition, map[string]string{
			"structured":  "structured",
			"calculation": "calculation",
			"tools":       "tools",
			"synthesis":   "synthesis",
		}).
		AddNode("structured", p.node("structured", p.structuredNode), "synthesis").
		AddNode("calculation", p.node("calculation", p.toolsNode), "synthesis").
		AddNode("tools", p.node("tools", p.toolsNode), "synthesis").
		AddNode("synthesis", p.node("synthesis", p.synthesisNode), "critic").
		AddNode("direct", p.node("direct", p.directNode), "critic").
		AddConditionNode("critic", p.node("critic", p.criticNode), p.criticCondition, map[string]string{
			"release": "finalize",
			"retry":   "plan",
			"safe":    "safe",
		}).
		AddNode("finalize", p.node("finalize", p.finalizeNode), "").
		AddNode("safe", p.node("safe", p.safeNode), "").
		AddNode("clarify", p.node("clarify", p.clarifyNode), "").
		SetStart("intent")

	maxVisits := p.cfg.GraphMaxVisits
	if maxVisits < p.cfg.MaxIterations+2 {
		maxVisits = p.cfg.MaxIterations + 2
	}
	return b.SetMaxVisits(maxVisits).Build()
}

// Run executes one agent turn. Every turn terminates with a validated
// answer, a clarification, or the safe message; internal failures and the
// per-turn deadline resolve to the safe message rather than an error.
func (p *Pipeline) Run(ctx context.Context, sessionID, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	turn := Turn{ID: uuid.NewString(), SessionID: sessionID, Query: query}
	ctx, span := p.tracer.Start(ctx, "agent.turn", trace.WithAttributes(
		attribute.String("turn.id", turn.ID),
		attribute.String("session.id", sessionID),
	))
	defer span.End()

	if p.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.TurnTimeout)
		defer cancel()
	}

	p.logger.Info("turn started", "turn", turn.ID, "query", trimForLog(query, 120))

	final, err := p.graph.Execute(ctx, State{Turn: turn})
	if err != nil {
		// turn failures never surface raw; the safe message is the floor
		p.logger.Error("turn aborted, releasing safe message", "turn", turn.ID, "error", err)
		final.Answer = SafeClarificationMessage
		final.Citations = nil
		final.Outcome = OutcomeReleaseSafe
	}

	metrics.RecordTurnOutcome(string(final.Outcome))
	span.SetAttributes(
		attribute.String("turn.outcome", string(final.Outcome)),
		attribute.Int("turn.iterations", final.Iterations),
	)
	p.appendSession(ctx, final)

	p.logger.Info("turn completed",
		"turn", turn.ID,
		"outcome", string(final.Outcome),
		"iterations", final.Iterations,
		"citations", len(final.Citations),
	)
	return &Result{
		TurnID:     turn.ID,
		Answer:     final.Answer,
		Citations:  final.Citations,
		Outcome:    final.Outcome,
		Intent:     final.Intent,
		Filters:    final.Filters,
		Verdict:    final.Verdict,
		Iterations: final.Iterations,
		ToolErrors: final.ToolErrors,
	}, nil
}

func (p *Pipeline) appendSession(ctx context.Context, s State) {
	if p.cfg.Sessions == nil {
		return
	}
	err := p.cfg.Sessions.Append(context.WithoutCancel(ctx), session.Turn{
		ID:        s.Turn.ID,
		SessionID: s.Turn.SessionID,
		Query:     s.Turn.Query,
		Answer:    s.Answer,
		Citations: s.Citations,
		Outcome:   string(s.Outcome),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		p.logger.Warn("session append failed", "turn", s.Turn.ID, "error", err)
	}
}

// node wraps a state transform in a span.
func (p *Pipeline) node(name string, fn graph.NodeFunc[State]) graph.NodeFunc[State] {
	return func(ctx context.Context, s State) (State, error) {
		ctx, span := p.tracer.Start(ctx, "agent."+name)
		defer span.End()
		return fn(ctx, s)
	}
}

// --- nodes ---

func (p *Pipeline) intentNode(ctx context.Context, s State) (State, error) {
	s.Intent = p.classifier.Classify(ctx, s.Turn.Query)
	p.logger.Info("intent classified", "turn", s.Turn.ID, "intent", string(s.Intent))
	return s, nil
}

func (p *Pipeline) filtersNode(ctx context.Context, s State) (State, error) {
	s.Filters = p.extractor.Extract(ctx, s.Turn.Query)
	return s, nil
}

func (p *Pipeline) planNode(ctx context.Context, s State) (State, error) {
	if s.Feedback != "" {
		// Retry entry: tools run again under the revised plan, so stale
		// outputs and errors must not pile up in the evidence.
		s.ToolOutputs = nil
		s.ToolErrors = nil
	}
	s.Plan = p.planner.Plan(ctx, s.Turn.Query, s.Intent, s.Feedback)
	if s.Route == "" {
		s.Route = p.router.Route(s.Intent, s.Filters)
	}
	p.logger.Info("plan generated",
		"turn", s.Turn.ID,
		"steps", len(s.Plan.Steps),
		"route", string(s.Route),
		"retry", s.Feedback != "",
	)
	return s, nil
}

func (p *Pipeline) routeCondition(ctx context.Context, s State) (string, error) {
	// Route is sticky across retries; the first routing decision stands.
	if s.Route == "" {
		return "", fmt.Errorf("route not set before routing")
	}
	if s.Route == RouteDirect {
		return "direct", nil
	}
	return "retrieve", nil
}

func (p *Pipeline) retrieveNode(ctx context.Context, s State) (State, error) {
	passages, err := p.retriever.Search(ctx, s.Turn.Query, s.Filters)
	if err != nil {
		return s, fmt.Errorf("retrieval: %w", err)
	}
	s.Passages = passages
	s.Repaired = false
	s.Verdict = p.gate.Assess(ctx, s.Turn.Query, s.Passages)
	p.logger.Info("passages retrieved",
		"turn", s.Turn.ID,
		"count", len(passages),
		"confidence", string(s.Verdict.Confidence),
	)
	return s, nil
}

func (p *Pipeline) gateCondition(ctx context.Context, s State) (string, error) {
	return string(s.Verdict.Confidence), nil
}

func (p *Pipeline) refineNode(ctx context.Context, s State) (State, error) {
	s.Passages = p.gate.Refine(ctx, s.Turn.Query, s.Passages)
	return s, nil
}

// repairNode broadens the filters and retries retrieval once. The repaired
// set is re-assessed; ambiguous repairs are refined in place.
func (p *Pipeline) repairNode(ctx context.Context, s State) (State, error) {
	passages, err := p.retriever.SearchRelaxed(ctx, s.Turn.Query, s.Filters)
	if err != nil {
		return s, fmt.Errorf("repair retrieval: %w", err)
	}
	s.Passages = passages
	s.Repaired = true
	s.Verdict = p.gate.Assess(ctx, s.Turn.Query, s.Passages)
	if s.Verdict.Confidence == RetrievalAmbiguous {
		s.Passages = p.gate.Refine(ctx, s.Turn.Query, s.Passages)
	}
	p.logger.Info("repair retrieval finished",
		"turn", s.Turn.ID,
		"count", len(s.Passages),
		"confidence", string(s.Verdict.Confidence),
	)
	return s, nil
}

func (p *Pipeline) repairCondition(ctx context.Context, s State) (string, error) {
	if s.Verdict.Confidence == RetrievalIncorrect || len(s.Passages) == 0 {
		return "failed", nil
	}
	return "recovered", nil
}

func (p *Pipeline) dispatchCondition(ctx context.Context, s State) (string, error) {
	return p.router.AfterRetrieval(s.Route, s.Plan), nil
}

func (p *Pipeline) structuredNode(ctx context.Context, s State) (State, error) {
	s.ToolOutputs = append(s.ToolOutputs, p.structured.Extract(ctx, s))
	return s, nil
}

func (p *Pipeline) toolsNode(ctx context.Context, s State) (State, error) {
	outputs, failures := p.executor.Run(ctx, s)
	s.ToolOutputs = append(s.ToolOutputs, outputs...)
	s.ToolErrors = append(s.ToolErrors, failures...)
	return s, nil
}

func (p *Pipeline) synthesisNode(ctx context.Context, s State) (State, error) {
	draft, err := p.synthesizer.Compose(ctx, s)
	if err != nil {
		return s, err
	}
	s.Draft = draft
	return s, nil
}

func (p *Pipeline) directNode(ctx context.Context, s State) (State, error) {
	s.Draft = p.direct.Respond(ctx, s.Turn.Query)
	return s, nil
}

// criticNode validates the draft and advances the iteration counter. A
// provider failure marks the state so the loop resolves to the safe message.
func (p *Pipeline) criticNode(ctx context.Context, s State) (State, error) {
	verdict, err := p.critic.Validate(ctx, s)
	s.Iterations++
	if err != nil {
		p.logger.Error("critic unavailable", "turn", s.Turn.ID, "error", err)
		s.CriticFailed = true
		return s, nil
	}
	s.CriticFailed = false
	s.Validation = verdict
	if !verdict.Valid {
		s.Feedback = verdict.Reason
	}
	return s, nil
}

func (p *Pipeline) criticCondition(ctx context.Context, s State) (string, error) {
	if s.CriticFailed {
		return "safe", nil
	}
	if s.Validation != nil && s.Validation.Valid {
		return "release", nil
	}
	if s.Iterations >= p.cfg.MaxIterations {
		p.logger.Warn("validation retries exhausted, forcing safe release",
			"turn", s.Turn.ID, "iterations", s.Iterations)
		return "safe", nil
	}
	return "retry", nil
}

func (p *Pipeline) finalizeNode(ctx context.Context, s State) (State, error) {
	s.Answer = s.Draft
	s.Citations = CitationsFrom(s.Passages)
	s.Outcome = OutcomeRelease
	return s, nil
}

func (p *Pipeline) safeNode(ctx context.Context, s State) (State, error) {
	s.Answer = SafeClarificationMessage
	s.Citations = nil
	s.Outcome = OutcomeReleaseSafe
	return s, nil
}

// clarifyNode ends the turn when retrieval could not be repaired; asking
// the user to narrow the request beats fabricating an answer.
func (p *Pipeline) clarifyNode(ctx context.Context, s State) (State, error) {
	if strings.Contains(strings.ToLower(s.Turn.Query), "meeting") {
		s.Answer = SafeMeetingMessage
	} else {
		s.Answer = SafeClarificationMessage
	}
	s.Citations = nil
	s.Outcome = OutcomeClarification
	return s, nil
}

func trimForLog(text string, limit int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
