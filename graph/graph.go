// Package graph provides a typed state-machine engine for agent pipelines.
// A graph is a closed set of named nodes; each node transforms the state and
// hands off via a static edge or a condition over the updated state. Cycles
// are allowed and bounded by a per-node visit limit.
package graph

import (
	"context"
	"fmt"
)

// NodeFunc transforms the state at a node.
type NodeFunc[S any] func(context.Context, S) (S, error)

// ConditionFunc picks the outgoing edge label after a node runs.
type ConditionFunc[S any] func(context.Context, S) (string, error)

// Node is one state in the machine. After Run completes, the successor is
// resolved from Next, or from Condition via NextMap when Condition is set.
// A node with neither is terminal.
type Node[S any] struct {
	Name      string
	Run       NodeFunc[S]
	Next      string
	Condition ConditionFunc[S]
	NextMap   map[string]string
}

// Graph is an executable state machine over state type S.
type Graph[S any] struct {
	nodes     map[string]*Node[S]
	startNode string
	maxVisits int
}

// New creates an empty graph.
func New[S any]() *Graph[S] {
	return &Graph[S]{
		nodes:     make(map[string]*Node[S]),
		maxVisits: 10,
	}
}

// AddNode adds a node to the graph.
func (g *Graph[S]) AddNode(node *Node[S]) {
	if node.Name == "" {
		panic("node name cannot be empty")
	}
	if _, exists := g.nodes[node.Name]; exists {
		panic(fmt.Sprintf("node %s already exists", node.Name))
	}
	if node.Condition != nil && len(node.NextMap) == 0 {
		panic(fmt.Sprintf("condition node %s must have a NextMap", node.Name))
	}
	g.nodes[node.Name] = node
}

// SetStartNode sets the start node.
func (g *Graph[S]) SetStartNode(name string) {
	if _, exists := g.nodes[name]; !exists {
		panic(fmt.Sprintf("node %s not found", name))
	}
	g.startNode = name
}

// SetMaxVisits bounds how many times any single node may run per execution.
func (g *Graph[S]) SetMaxVisits(maxVisits int) {
	if maxVisits > 0 {
		g.maxVisits = maxVisits
	}
}

// Node returns a node by name.
func (g *Graph[S]) Node(name string) (*Node[S], error) {
	node, exists := g.nodes[name]
	if !exists {
		return nil, fmt.Errorf("node %s not found", name)
	}
	return node, nil
}

// Execute runs the machine from the start node until a terminal node
// finishes. Each node receives the state returned by its predecessor; the
// final node's output is the result. Revisiting a node more than maxVisits
// times aborts the run.
func (g *Graph[S]) Execute(ctx context.Context, initial S) (S, error) {
	state := initial
	if g.startNode == "" {
		return state, fmt.Errorf("start node not set")
	}

	visited := make(map[string]int)
	current := g.startNode

	for {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		node, exists := g.nodes[current]
		if !exists {
			return state, fmt.Errorf("node %s not found", current)
		}

		visited[current]++
		if visited[current] > g.maxVisits {
			return state, fmt.Errorf("visit limit exceeded at node %s", current)
		}

		if node.Run != nil {
			var err error
			state, err = node.Run(ctx, state)
			if err != nil {
				return state, fmt.Errorf("node %s: %w", current, err)
			}
		}

		next, err := g.resolveNext(ctx, node, state)
		if err != nil {
			return state, err
		}
		if next == "" {
			return state, nil
		}
		current = next
	}
}

func (g *Graph[S]) resolveNext(ctx context.Context, node *Node[S], state S) (string, error) {
	if node.Condition != nil {
		label, err := node.Condition(ctx, state)
		if err != nil {
			return "", fmt.Errorf("condition at node %s: %w", node.Name, err)
		}
		next, ok := node.NextMap[label]
		if !ok {
			return "", fmt.Errorf("node %s has no edge for %q", node.Name, label)
		}
		return next, nil
	}
	return node.Next, nil
}

// Builder helps build graphs fluently.
type Builder[S any] struct {
	graph *Graph[S]
}

// NewBuilder creates a new graph builder.
func NewBuilder[S any]() *Builder[S] {
	return &Builder[S]{graph: New[S]()}
}

// AddNode adds a node with a static successor. An empty next marks the node
// terminal.
func (b *Builder[S]) AddNode(name string, run NodeFunc[S], next string) *Builder[S] {
	b.graph.AddNode(&Node[S]{Name: name, Run: run, Next: next})
	return b
}

// AddConditionNode adds a node whose successor is picked by condition.
// run may be nil for pure routing nodes.
func (b *Builder[S]) AddConditionNode(name string, run NodeFunc[S], condition ConditionFunc[S], nextMap map[string]string) *Builder[S] {
	b.graph.AddNode(&Node[S]{Name: name, Run: run, Condition: condition, NextMap: nextMap})
	return b
}

// SetStart sets the start node.
func (b *Builder[S]) SetStart(name string) *Builder[S] {
	b.graph.SetStartNode(name)
	return b
}

// SetMaxVisits sets the per-node visit limit.
func (b *Builder[S]) SetMaxVisits(maxVisits int) *Builder[S] {
	b.graph.SetMaxVisits(maxVisits)
	return b
}

// Build returns the constructed graph.
func (b *Builder[S]) Build() *Graph[S] {
	return b.graph
}
