package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Agent.MaxIterations != 3 {
		t.Errorf("expected default max_iterations 3, got %d", cfg.Agent.MaxIterations)
	}
	if cfg.Retrieval.GradeThreshold != 0.55 {
		t.Errorf("expected default grade_threshold 0.55, got %f", cfg.Retrieval.GradeThreshold)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
agent:
  max_iterations: 5
  turn_timeout: 60s
retrieval:
  top_k: 10
session:
  backend: redis
  redis:
    addr: "redis:6379"
    prefix: "test:"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Agent.MaxIterations != 5 {
		t.Errorf("expected max_iterations 5, got %d", cfg.Agent.MaxIterations)
	}
	if cfg.Agent.TurnTimeout != 60*time.Second {
		t.Errorf("expected turn_timeout 60s, got %s", cfg.Agent.TurnTimeout)
	}
	if cfg.Retrieval.TopK != 10 {
		t.Errorf("expected top_k 10, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Session.Backend != "redis" || cfg.Session.Redis.Addr != "redis:6379" {
		t.Errorf("redis session config not applied: %+v", cfg.Session)
	}
	// untouched fields keep defaults
	if cfg.Agent.Name != "regrag" {
		t.Errorf("expected default name preserved, got %q", cfg.Agent.Name)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("REGRAG_LLM_PROVIDER", "claude")
	t.Setenv("REGRAG_LLM_API_KEY", "key-from-env")
	t.Setenv("REGRAG_MAX_ITERATIONS", "2")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Provider != "claude" {
		t.Errorf("expected provider claude, got %q", cfg.LLM.Provider)
	}
	if cfg.LLM.APIKey != "key-from-env" {
		t.Errorf("expected api key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Agent.MaxIterations != 2 {
		t.Errorf("expected max_iterations 2, got %d", cfg.Agent.MaxIterations)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
llm:
  provider: unknown
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error for unknown provider")
	}
	if !strings.Contains(err.Error(), "llm.provider") {
		t.Errorf("expected error to name llm.provider, got: %v", err)
	}
}

func TestValidatorAccumulatesErrors(t *testing.T) {
	v := NewValidator()
	v.RequireNonEmpty("a", "").
		RequirePositive("b", 0).
		ValidateOneOf("c", "x", "y", "z")

	if !v.HasErrors() {
		t.Fatal("expected validation errors")
	}
	if len(v.Errors()) != 3 {
		t.Fatalf("expected 3 errors, got %d", len(v.Errors()))
	}
	err := v.Error()
	for _, field := range []string{"a", "b", "c"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("combined error missing field %q: %v", field, err)
		}
	}
}

func TestValidatorRanges(t *testing.T) {
	v := NewValidator()
	v.ValidatePort("port", 70000)
	v.ValidateDBNumber("db", 16)
	v.ValidateFloatRange("ratio", 1.5, 0, 1)
	if len(v.Errors()) != 3 {
		t.Fatalf("expected 3 range errors, got %d", len(v.Errors()))
	}

	v = NewValidator()
	v.ValidatePort("port", 8080)
	v.ValidateDBNumber("db", 0)
	v.ValidateFloatRange("ratio", 0.7, 0, 1)
	if v.HasErrors() {
		t.Fatalf("expected no errors, got %v", v.Errors())
	}
}
