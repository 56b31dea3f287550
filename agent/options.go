package agent

import (
	"strings"
	"time"

	"github.com/sweetpotato0/regrag/filter"
	"github.com/sweetpotato0/regrag/session"
)

// SafeClarificationMessage is returned verbatim whenever evidence or
// validation is insufficient, instead of an unvalidated answer.
const SafeClarificationMessage = "I can't confirm that answer from the retrieved documents. " +
	"Please specify which regulator/meeting series you mean " +
	"(e.g., FOMC, Basel, CFTC, SEC), or add a keyword like 'FOMC minutes'."

// SafeMeetingMessage is the shorter variant used when the query mentions a
// meeting without naming the series.
const SafeMeetingMessage = "Which meeting series do you mean (e.g., FOMC, Basel Committee, CFTC, SEC)? " +
	"I can then pull the most recent related documents."

// TokenCounter estimates prompt token usage for evidence budgeting.
type TokenCounter interface {
	Count(text string) int
}

// estimateCounter approximates tokens as len/4, good enough when no real
// tokenizer is wired in.
type estimateCounter struct{}

func (estimateCounter) Count(text string) int { return len(text)/4 + 1 }

// Config controls the orchestrator. It groups loop bounds, gate thresholds
// and prompts so callers can construct reproducible agents from one struct.
type Config struct {
	Name           string        // Logical name for tracing/logging
	MaxIterations  int           // Validation loop bound; reaching it forces the safe message
	GraphMaxVisits int           // Safety guard for graph execution
	TurnTimeout    time.Duration // Overall per-turn deadline
	MaxPassages    int           // How many passages feed prompts
	TokenBudget    int           // Evidence token budget for synthesis
	Temperature    float64       // Sampling temperature for all structured calls

	GradeThreshold float64 // Per-passage relevance floor for the quality gate
	CorrectRatio   float64 // Fraction of relevant passages required for "correct"

	CallTimeout  time.Duration // Per-LLM-call deadline applied to every stage client
	CallRetries  int           // Attempts per LLM call before the stage sees the error
	RetryBackoff time.Duration // Initial backoff between attempts, doubling each retry

	IntentPrompt     string
	ExtractPrompt    string
	PlannerPrompt    string
	GradePrompt      string
	DecomposePrompt  string
	StructuredPrompt string
	SynthesisPrompt  string
	CriticPrompt     string
	DirectPrompt     string

	Normalizer *filter.Normalizer
	Counter    TokenCounter
	Sessions   session.Store
}

// Option customises the pipeline configuration.
type Option func(*Config)

// WithName sets the logical pipeline name used in logs and traces.
func WithName(name string) Option {
	return func(cfg *Config) {
		if strings.TrimSpace(name) != "" {
			cfg.Name = name
		}
	}
}

// WithMaxIterations bounds the validation retry loop.
func WithMaxIterations(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.MaxIterations = n
		}
	}
}

// WithTurnTimeout sets the overall per-turn deadline. Expiry yields the safe
// message.
func WithTurnTimeout(d time.Duration) Option {
	return func(cfg *Config) {
		if d > 0 {
			cfg.TurnTimeout = d
		}
	}
}

// WithMaxPassages caps how many passages reach the prompts.
func WithMaxPassages(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.MaxPassages = n
		}
	}
}

// WithTokenBudget caps the evidence tokens packed into synthesis prompts.
func WithTokenBudget(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.TokenBudget = n
		}
	}
}

// WithTokenCounter plugs in a real tokenizer for evidence budgeting.
func WithTokenCounter(c TokenCounter) Option {
	return func(cfg *Config) {
		if c != nil {
			cfg.Counter = c
		}
	}
}

// WithGradeThreshold sets the per-passage relevance floor for the gate.
func WithGradeThreshold(t float64) Option {
	return func(cfg *Config) {
		if t > 0 && t < 1 {
			cfg.GradeThreshold = t
		}
	}
}

// WithCorrectRatio sets the relevant-passage fraction required for "correct".
func WithCorrectRatio(r float64) Option {
	return func(cfg *Config) {
		if r > 0 && r <= 1 {
			cfg.CorrectRatio = r
		}
	}
}

// WithCallTimeout sets the per-LLM-call deadline for every stage client.
func WithCallTimeout(d time.Duration) Option {
	return func(cfg *Config) {
		if d > 0 {
			cfg.CallTimeout = d
		}
	}
}

// WithCallRetries sets how many attempts each LLM call gets before its
// stage sees the error.
func WithCallRetries(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.CallRetries = n
		}
	}
}

// WithGraphMaxVisits tweaks the safety guard for graph traversal.
func WithGraphMaxVisits(max int) Option {
	return func(cfg *Config) {
		if max > 0 {
			cfg.GraphMaxVisits = max
		}
	}
}

// WithNormalizer overrides the filter normalizer.
func WithNormalizer(n *filter.Normalizer) Option {
	return func(cfg *Config) {
		if n != nil {
			cfg.Normalizer = n
		}
	}
}

// WithSessionStore enables turn logging to the given store.
func WithSessionStore(s session.Store) Option {
	return func(cfg *Config) {
		if s != nil {
			cfg.Sessions = s
		}
	}
}

// WithPlannerPrompt sets the planner system prompt.
func WithPlannerPrompt(prompt string) Option {
	return func(cfg *Config) {
		if prompt != "" {
			cfg.PlannerPrompt = prompt
		}
	}
}

// WithSynthesisPrompt sets the synthesizer system prompt.
func WithSynthesisPrompt(prompt string) Option {
	return func(cfg *Config) {
		if prompt != "" {
			cfg.SynthesisPrompt = prompt
		}
	}
}

// WithCriticPrompt sets the critic system prompt.
func WithCriticPrompt(prompt string) Option {
	return func(cfg *Config) {
		if prompt != "" {
			cfg.CriticPrompt = prompt
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		Name:           "regrag",
		MaxIterations:  3,
		GraphMaxVisits: 20,
		TurnTimeout:    240 * time.Second,
		MaxPassages:    6,
		TokenBudget:    6000,
		Temperature:    0,
		GradeThreshold: 0.55,
		CorrectRatio:   0.7,

		CallTimeout:  60 * time.Second,
		CallRetries:  2,
		RetryBackoff: 500 * time.Millisecond,

		IntentPrompt: `You classify questions about financial regulation into exactly one category:
- regulatory_lookup: asking what a regulator said, published, ruled or enforced
- calculation: asking for a computed figure (rates, yields, ratios, arithmetic)
- reasoning: asking to compare, explain or analyze regulatory positions
- structured: asking for extracted entities, totals or tabulated facts
- other: greetings, small talk, anything outside financial regulation`,

		ExtractPrompt: `You extract retrieval filters from a question about financial regulation.
Report only facets the question states or strongly implies; omit everything else.
Regulators use canonical codes (BASEL, SEC, CFTC, FED, FINCEN, FCA, FDIC); FOMC means FED.
Categories: policy, enforcement, rulemaking, other.
Document types: publication, press_release, rule, guidance, speech, minutes, report.
Year must be a 4-digit year explicitly mentioned. Jurisdiction: US, UK or Global.`,

		PlannerPrompt: `You plan how to answer a question about financial regulation.
Produce an ordered list of steps. Step kinds:
- retrieval: search the regulatory document index
- tool: invoke one of the available tools by exact name, with arguments
- synthesis: compose the final answer from gathered evidence
Rules: always include a retrieval step before synthesis; only reference tools
from the provided list; keep the plan minimal; when prior feedback is given,
change the plan to address it explicitly.`,

		GradePrompt: `You grade whether a retrieved passage is topically relevant to a question
about financial regulation. Judge the passage text on its own merits,
ignoring how it was retrieved. Score 1.0 for directly on-topic, 0.0 for
unrelated, intermediate values for partial relevance.`,

		DecomposePrompt: `You extract the spans of a regulatory document passage that are relevant to
a question. Return only the relevant sentences, joined together. If nothing
in the passage is relevant, return the exact text: no relevant content.`,

		StructuredPrompt: `You extract structured facts from regulatory documents: named entities,
monetary totals (fines, penalties) and a one-sentence summary. Use only the
supplied documents; leave fields empty when the documents do not support them.`,

		SynthesisPrompt: `You write the final answer to a question about financial regulation.
Use only the supplied documents and tool results. Attribute every factual
statement to its source with a bracketed citation like [1] matching the
numbered documents. If the evidence cannot answer the question, say you
cannot confirm the answer from the available documents instead of guessing.`,

		CriticPrompt: `You are the validation critic. Check the draft answer against its sources:
(a) every attributed claim is supported by the cited source,
(b) no material claim lacks a citation,
(c) the answer addresses what the question actually asks.
When the draft has no sources because the question needed none (greetings,
meta questions), judge only (c). On a retry, accept answers that are
substantially correct even if imperfect. When invalid, the reason must name
the specific failing claim or gap so the planner can act on it.`,

		DirectPrompt: `You are a financial-regulation assistant. Answer the user's message
directly and briefly. Do not invent regulatory facts; for substantive
regulatory questions suggest the user name a regulator or document series.`,

		Normalizer: filter.NewNormalizer(),
		Counter:    estimateCounter{},
	}
}

func applyOptions(opts []Option) *Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
