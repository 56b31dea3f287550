package tool

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/sweetpotato0/regrag/errors"
)

func echoTool(name string) *Tool {
	return &Tool{
		Name:        name,
		Description: "echoes the query",
		Handler: func(ctx context.Context, in Inputs) (Output, error) {
			return Output{Text: in.Query}, nil
		},
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool("echo")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(echoTool("echo")); err == nil {
		t.Fatal("expected duplicate error")
	}
	if err := r.Upsert(echoTool("echo")); err != nil {
		t.Fatalf("upsert should replace: %v", err)
	}
}

func TestRegistryUnknownToolSentinel(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("nope")
	if !stderrors.Is(err, errors.ErrToolNotRegistered) {
		t.Fatalf("expected ErrToolNotRegistered, got %v", err)
	}
}

func TestExecuteAttributesOutput(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool("echo")); err != nil {
		t.Fatalf("register: %v", err)
	}
	out, err := r.Execute(context.Background(), "echo", Inputs{Query: "hello"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Tool != "echo" || out.Text != "hello" {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestValidateArgsRequired(t *testing.T) {
	tl := &Tool{
		Name:       "strict",
		Parameters: []Parameter{{Name: "symbol", Type: "string", Required: true}},
		Handler: func(ctx context.Context, in Inputs) (Output, error) {
			return Output{}, nil
		},
	}
	if _, err := tl.Execute(context.Background(), Inputs{}); err == nil {
		t.Fatal("expected missing-parameter error")
	}
	if _, err := tl.Execute(context.Background(), Inputs{Args: map[string]any{"symbol": "vix"}}); err != nil {
		t.Fatalf("execute: %v", err)
	}
}

func TestListReturnsAllRegisteredTools(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"alpha", "beta"} {
		if err := r.Register(echoTool(name)); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	tools := r.List()
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}
	seen := map[string]bool{}
	for _, tl := range tools {
		seen[tl.Name] = true
		if tl.Description == "" {
			t.Errorf("tool %s lost its description", tl.Name)
		}
	}
	if !seen["alpha"] || !seen["beta"] {
		t.Fatalf("missing tools in list: %v", seen)
	}
}

func TestRegistryMarshalsAsJSONSchemas(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&Tool{
		Name:        "rate_lookup",
		Description: "looks up a reference rate",
		Parameters:  []Parameter{{Name: "series", Type: "string", Required: true}},
		Handler: func(ctx context.Context, in Inputs) (Output, error) {
			return Output{}, nil
		},
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	schemas := r.ToJSONSchemas()
	if len(schemas) != 1 {
		t.Fatalf("expected 1 schema, got %d", len(schemas))
	}
	if schemas[0]["name"] != "rate_lookup" {
		t.Fatalf("schema name = %v", schemas[0]["name"])
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded) != 1 || decoded[0]["name"] != "rate_lookup" {
		t.Fatalf("registry JSON = %s", data)
	}
}
