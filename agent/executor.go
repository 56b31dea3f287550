package agent

import (
	"context"
	"log/slog"

	"github.com/sweetpotato0/regrag/pkg/metrics"
	"github.com/sweetpotato0/regrag/tool"
)

// executor runs the plan's tool steps in order. A failing tool is recorded
// as an annotation and execution continues; one tool failure never aborts
// the turn. Earlier outputs are visible to later steps through Prior.
type executor struct {
	registry *tool.Registry
	logger   *slog.Logger
}

func newExecutor(registry *tool.Registry, logger *slog.Logger) *executor {
	return &executor{registry: registry, logger: logger.With("node", "tools")}
}

func (e *executor) Run(ctx context.Context, state State) ([]tool.Output, []tool.Error) {
	steps := state.Plan.ToolSteps()
	outputs := make([]tool.Output, 0, len(steps))
	var failures []tool.Error
	prior := make(map[string]tool.Output, len(steps))

	for _, step := range steps {
		out, err := e.registry.Execute(ctx, step.Tool, tool.Inputs{
			Query:    state.Turn.Query,
			Passages: state.Passages,
			Args:     step.Args,
			Prior:    prior,
		})
		if err != nil {
			e.logger.Warn("tool step failed, continuing", "tool", step.Tool, "error", err)
			metrics.RecordToolFailure(step.Tool)
			failures = append(failures, tool.Error{Tool: step.Tool, Message: err.Error()})
			continue
		}
		outputs = append(outputs, out)
		prior[step.Tool] = out
	}
	return outputs, failures
}
