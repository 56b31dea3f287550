package agent

import (
	"log/slog"

	"github.com/sweetpotato0/regrag/filter"
)

// router picks the execution path with pure logic, no LLM call. Strong
// filter facets boost otherwise-vague queries onto the retrieval path.
// The structured and calculation destinations still pass through retrieval
// first so their context is never empty; only the direct path skips it.
type router struct {
	logger *slog.Logger
}

func newRouter(logger *slog.Logger) *router {
	return &router{logger: logger.With("node", "route")}
}

func (r *router) Route(intent Intent, filters filter.Set) Route {
	switch intent {
	case IntentCalculation:
		return RouteCalculation
	case IntentStructured:
		return RouteStructured
	case IntentRegulatoryLookup, IntentReasoning:
		return RouteRetrieval
	}
	if filters.HasStrongFacets() {
		r.logger.Info("strong filters boost vague intent onto retrieval path")
		return RouteRetrieval
	}
	return RouteDirect
}

// AfterRetrieval picks the post-gate node: the structured and calculation
// routes go to their dedicated nodes; the plain retrieval route takes the
// tools edge only when the plan contains at least one tool step.
func (r *router) AfterRetrieval(route Route, plan *Plan) string {
	switch route {
	case RouteStructured:
		return "structured"
	case RouteCalculation:
		return "calculation"
	}
	if plan.HasToolSteps() {
		return "tools"
	}
	return "synthesis"
}
