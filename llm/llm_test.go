package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDecodeJSONStripsCodeFences(t *testing.T) {
	type verdict struct {
		Valid  bool   `json:"valid"`
		Reason string `json:"reason"`
	}

	cases := []string{
		`{"valid": true, "reason": "ok"}`,
		"```json\n{\"valid\": true, \"reason\": \"ok\"}\n```",
		"```\n{\"valid\": true, \"reason\": \"ok\"}\n```",
		"  {\"valid\": true, \"reason\": \"ok\"}  ",
	}
	for _, raw := range cases {
		out, err := DecodeJSON[verdict](raw)
		if err != nil {
			t.Fatalf("DecodeJSON(%q) failed: %v", raw, err)
		}
		if !out.Valid || out.Reason != "ok" {
			t.Errorf("DecodeJSON(%q) = %+v", raw, out)
		}
	}
}

func TestDecodeJSONRejectsGarbage(t *testing.T) {
	type verdict struct{}
	if _, err := DecodeJSON[verdict]("not json at all"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestSchemaDefinition(t *testing.T) {
	s := &Schema{
		Name: "test",
		Properties: map[string]any{
			"intent": map[string]any{"type": "string"},
		},
		Required: []string{"intent"},
	}
	def := s.Definition()
	if def["type"] != "object" {
		t.Errorf("type = %v", def["type"])
	}
	if _, ok := def["properties"].(map[string]any)["intent"]; !ok {
		t.Error("properties missing intent")
	}
	if req, ok := def["required"].([]string); !ok || len(req) != 1 {
		t.Errorf("required = %v", def["required"])
	}
}

type countingClient struct {
	calls    int
	failures int
	delay    time.Duration
}

func (c *countingClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	c.calls++
	if c.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.delay):
		}
	}
	if c.calls <= c.failures {
		return nil, errors.New("transient failure")
	}
	return &Response{Text: "ok"}, nil
}

func TestWithRetryRecoversFromTransientFailure(t *testing.T) {
	base := &countingClient{failures: 2}
	client := WithRetry(base, 3, time.Millisecond)

	resp, err := client.Complete(context.Background(), &Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Text != "ok" || base.calls != 3 {
		t.Errorf("unexpected result %+v after %d calls", resp, base.calls)
	}
}

func TestWithRetryReturnsLastError(t *testing.T) {
	base := &countingClient{failures: 10}
	client := WithRetry(base, 2, time.Millisecond)

	if _, err := client.Complete(context.Background(), &Request{Prompt: "hi"}); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if base.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", base.calls)
	}
}

func TestWithRetryStopsOnCancelledContext(t *testing.T) {
	base := &countingClient{failures: 10}
	client := WithRetry(base, 5, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Complete(ctx, &Request{Prompt: "hi"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if base.calls > 1 {
		t.Errorf("expected at most 1 attempt after cancellation, got %d", base.calls)
	}
}

func TestWithTimeoutBoundsSlowCalls(t *testing.T) {
	base := &countingClient{delay: 200 * time.Millisecond}
	client := WithTimeout(base, 10*time.Millisecond)

	_, err := client.Complete(context.Background(), &Request{Prompt: "hi"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
