package graph

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type counter struct {
	Steps []string
	N     int
}

func record(name string) NodeFunc[counter] {
	return func(ctx context.Context, s counter) (counter, error) {
		s.Steps = append(s.Steps, name)
		return s, nil
	}
}

func TestLinearExecution(t *testing.T) {
	g := NewBuilder[counter]().
		AddNode("a", record("a"), "b").
		AddNode("b", record("b"), "c").
		AddNode("c", record("c"), "").
		SetStart("a").
		Build()

	got, err := g.Execute(context.Background(), counter{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.Join(got.Steps, ",") != "a,b,c" {
		t.Fatalf("unexpected order: %v", got.Steps)
	}
}

func TestConditionalBranch(t *testing.T) {
	route := func(ctx context.Context, s counter) (string, error) {
		if s.N > 0 {
			return "high", nil
		}
		return "low", nil
	}
	g := NewBuilder[counter]().
		AddConditionNode("route", record("route"), route, map[string]string{
			"high": "high",
			"low":  "low",
		}).
		AddNode("high", record("high"), "").
		AddNode("low", record("low"), "").
		SetStart("route").
		Build()

	got, err := g.Execute(context.Background(), counter{N: 1})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got.Steps[len(got.Steps)-1] != "high" {
		t.Fatalf("expected high branch, got %v", got.Steps)
	}

	got, err = g.Execute(context.Background(), counter{N: 0})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got.Steps[len(got.Steps)-1] != "low" {
		t.Fatalf("expected low branch, got %v", got.Steps)
	}
}

func TestLoopWithExitCondition(t *testing.T) {
	inc := func(ctx context.Context, s counter) (counter, error) {
		s.N++
		return s, nil
	}
	done := func(ctx context.Context, s counter) (string, error) {
		if s.N >= 3 {
			return "done", nil
		}
		return "again", nil
	}
	g := NewBuilder[counter]().
		AddConditionNode("work", inc, done, map[string]string{
			"again": "work",
			"done":  "end",
		}).
		AddNode("end", record("end"), "").
		SetStart("work").
		SetMaxVisits(10).
		Build()

	got, err := g.Execute(context.Background(), counter{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got.N != 3 {
		t.Fatalf("expected 3 iterations, got %d", got.N)
	}
}

func TestVisitLimitAborts(t *testing.T) {
	g := NewBuilder[counter]().
		AddNode("spin", record("spin"), "spin").
		SetStart("spin").
		SetMaxVisits(4).
		Build()

	_, err := g.Execute(context.Background(), counter{})
	if err == nil || !strings.Contains(err.Error(), "visit limit") {
		t.Fatalf("expected visit limit error, got %v", err)
	}
}

func TestNodeErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	g := NewBuilder[counter]().
		AddNode("fail", func(ctx context.Context, s counter) (counter, error) {
			return s, boom
		}, "").
		SetStart("fail").
		Build()

	_, err := g.Execute(context.Background(), counter{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped node error, got %v", err)
	}
}

func TestMissingEdgeLabel(t *testing.T) {
	g := NewBuilder[counter]().
		AddConditionNode("route", nil, func(ctx context.Context, s counter) (string, error) {
			return "unmapped", nil
		}, map[string]string{"known": "end"}).
		AddNode("end", record("end"), "").
		SetStart("route").
		Build()

	_, err := g.Execute(context.Background(), counter{})
	if err == nil || !strings.Contains(err.Error(), "no edge") {
		t.Fatalf("expected missing edge error, got %v", err)
	}
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewBuilder[counter]().
		AddNode("a", record("a"), "").
		SetStart("a").
		Build()

	_, err := g.Execute(ctx, counter{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
