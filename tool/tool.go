// Package tool defines the closed registry of callable tools available to the
// planner. The plan may only reference registered tools; a tool failure is
// reported as an annotation on the turn, never as a turn-fatal error.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/sweetpotato0/regrag/errors"
	"github.com/sweetpotato0/regrag/index"
)

// Parameter defines a tool parameter
type Parameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"` // string, number, boolean, object, array
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
	Default     any      `json:"default,omitempty"`
}

// Inputs is everything a tool may draw on: the user query, the retrieved
// evidence, the planner-supplied arguments, and outputs of earlier steps.
type Inputs struct {
	Query    string
	Passages []index.Passage
	Args     map[string]any
	Prior    map[string]Output
}

// Output is a tool result. Text feeds synthesis directly; Data carries
// structured values for downstream steps.
type Output struct {
	Tool string         `json:"tool"`
	Text string         `json:"text"`
	Data map[string]any `json:"data,omitempty"`
}

// Error annotates a failed tool step. The pipeline records it and continues.
type Error struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
}

func (e Error) Error() string {
	return fmt.Sprintf("tool %s: %s", e.Tool, e.Message)
}

// Tool represents a callable tool/function
type Tool struct {
	Name        string                                        `json:"name"`
	Description string                                        `json:"description"`
	Parameters  []Parameter                                   `json:"parameters"`
	Handler     func(context.Context, Inputs) (Output, error) `json:"-"`
}

// Execute runs the tool with given inputs
func (t *Tool) Execute(ctx context.Context, in Inputs) (Output, error) {
	if t.Handler == nil {
		return Output{}, fmt.Errorf("tool %s has no handler", t.Name)
	}
	if err := t.ValidateArgs(in.Args); err != nil {
		return Output{}, fmt.Errorf("invalid arguments: %w", err)
	}
	out, err := t.Handler(ctx, in)
	if err != nil {
		return Output{}, err
	}
	out.Tool = t.Name
	return out, nil
}

// ValidateArgs validates the provided arguments against the tool's parameters
func (t *Tool) ValidateArgs(args map[string]any) error {
	for _, param := range t.Parameters {
		if param.Required {
			if _, ok := args[param.Name]; !ok {
				return fmt.Errorf("missing required parameter: %s", param.Name)
			}
		}
	}
	return nil
}

// ToJSONSchema returns the tool definition in JSON schema format for LLM
func (t *Tool) ToJSONSchema() map[string]any {
	properties := make(map[string]any)
	required := make([]string, 0)

	for _, param := range t.Parameters {
		prop := map[string]any{
			"type":        param.Type,
			"description": param.Description,
		}
		if len(param.Enum) > 0 {
			prop["enum"] = param.Enum
		}
		if param.Default != nil {
			prop["default"] = param.Default
		}
		properties[param.Name] = prop

		if param.Required {
			required = append(required, param.Name)
		}
	}

	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"parameters": map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		},
	}
}

// Registry manages the closed set of tools the planner may reference.
// All operations are thread-safe using RWMutex protection.
type Registry struct {
	mu    sync.RWMutex // Protects tools map
	tools map[string]*Tool
}

// NewRegistry creates a new tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool to the registry
func (r *Registry) Register(tool *Tool) error {
	if tool == nil || tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool %s already registered", tool.Name)
	}
	r.tools[tool.Name] = tool
	return nil
}

// Upsert adds or replaces a tool definition in the registry.
func (r *Registry) Upsert(tool *Tool) error {
	if tool == nil || tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tools == nil {
		r.tools = make(map[string]*Tool)
	}
	r.tools[tool.Name] = tool
	return nil
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool %s: %w", name, errors.ErrToolNotRegistered)
	}
	return tool, nil
}

// Has reports whether a tool name is registered. The planner uses this to
// downgrade steps referencing unknown tools.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Names returns the sorted registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all registered tools
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]*Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	return tools
}

// ToJSONSchemas returns all tools in JSON schema format
func (r *Registry) ToJSONSchemas() []map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]map[string]any, 0, len(r.tools))
	for _, tool := range r.tools {
		schemas = append(schemas, tool.ToJSONSchema())
	}
	return schemas
}

// Execute runs a tool by name with given inputs
func (r *Registry) Execute(ctx context.Context, name string, in Inputs) (Output, error) {
	tool, err := r.Get(name)
	if err != nil {
		return Output{}, err
	}
	return tool.Execute(ctx, in)
}

// MarshalJSON customizes JSON marshaling for Registry
func (r *Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToJSONSchemas())
}
