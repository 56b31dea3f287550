// Package metrics exposes Prometheus instrumentation for the agent pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tokenUsage = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "regrag",
		Name:      "llm_tokens_total",
		Help:      "Total LLM tokens consumed, by model and pipeline component.",
	}, []string{"model", "component"})

	turnOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "regrag",
		Name:      "turn_outcomes_total",
		Help:      "Agent turns by terminal outcome (release, release_safe, clarification).",
	}, []string{"outcome"})

	retrievalVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "regrag",
		Name:      "retrieval_verdicts_total",
		Help:      "CRAG gate verdicts by category.",
	}, []string{"verdict"})

	toolFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "regrag",
		Name:      "tool_failures_total",
		Help:      "Tool invocations that returned an error, by tool name.",
	}, []string{"tool"})

	validationScores = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "regrag",
		Name:      "validation_score",
		Help:      "Critic validation outcomes (1 valid, 0 invalid).",
		Buckets:   []float64{0, 1},
	}, []string{"check"})
)

// RecordTokenUsage adds token consumption for a model/component pair.
func RecordTokenUsage(model, component string, tokens int) {
	if tokens <= 0 {
		return
	}
	tokenUsage.WithLabelValues(model, component).Add(float64(tokens))
}

// RecordTurnOutcome counts the terminal state of one agent turn.
func RecordTurnOutcome(outcome string) {
	turnOutcomes.WithLabelValues(outcome).Inc()
}

// RecordRetrievalVerdict counts a CRAG gate decision.
func RecordRetrievalVerdict(verdict string) {
	retrievalVerdicts.WithLabelValues(verdict).Inc()
}

// RecordToolFailure counts a failed tool invocation.
func RecordToolFailure(tool string) {
	toolFailures.WithLabelValues(tool).Inc()
}

// RecordValidationScore records a critic pass/fail as a score sample.
func RecordValidationScore(check string, valid bool) {
	score := 0.0
	if valid {
		score = 1.0
	}
	validationScores.WithLabelValues(check).Observe(score)
}
