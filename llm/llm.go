// Package llm defines the contract between the agent pipeline and LLM
// completion providers. Call sites that need machine-readable output attach a
// Schema to the request; providers honour it through their native structured
// output mode where available.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Schema describes the JSON shape a structured completion must satisfy.
type Schema struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Properties  map[string]any `json:"properties"`
	Required    []string       `json:"required,omitempty"`
}

// Definition returns the schema as a plain JSON-schema object map.
func (s *Schema) Definition() map[string]any {
	def := map[string]any{
		"type":       "object",
		"properties": s.Properties,
	}
	if len(s.Required) > 0 {
		def["required"] = s.Required
	}
	return def
}

// Request bundles inputs for one completion call.
type Request struct {
	System      string
	Prompt      string
	Schema      *Schema // nil for free-text completions
	Temperature float64
	MaxTokens   int64
}

// Response captures the provider reply.
type Response struct {
	Text       string
	Model      string
	TokensUsed int
}

// Client is implemented by completion providers (see contrib/provider).
type Client interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// DecodeJSON unmarshals raw model output into T after stripping code fences.
func DecodeJSON[T any](raw string) (*T, error) {
	clean := sanitizeJSON(raw)
	var out T
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	return &out, nil
}

func sanitizeJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = trimmed[3:]
		trimmed = strings.TrimPrefix(trimmed, "json")
		trimmed = strings.TrimPrefix(trimmed, "JSON")
		if idx := strings.Index(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
	}
	return strings.TrimSpace(trimmed)
}
