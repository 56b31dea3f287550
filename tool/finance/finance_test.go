package finance

import (
	"context"
	"strings"
	"testing"

	"github.com/sweetpotato0/regrag/tool"
)

func TestRegisterAddsAllTools(t *testing.T) {
	r := tool.NewRegistry()
	if err := Register(r); err != nil {
		t.Fatalf("register: %v", err)
	}
	for _, name := range []string{"rate_lookup", "treasury_yield", "bank_capital", "fed_balance_sheet", "market_data"} {
		if !r.Has(name) {
			t.Fatalf("missing tool %s", name)
		}
	}
}

func TestRateLookup(t *testing.T) {
	r := tool.NewRegistry()
	if err := Register(r); err != nil {
		t.Fatalf("register: %v", err)
	}

	out, err := r.Execute(context.Background(), "rate_lookup", tool.Inputs{Args: map[string]any{"bank": "fed"}})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Tool != "rate_lookup" {
		t.Fatalf("output not attributed: %+v", out)
	}
	if !strings.Contains(out.Text, "FED") {
		t.Fatalf("unexpected text: %q", out.Text)
	}
	if out.Data["rate_percent"].(float64) <= 0 {
		t.Fatalf("missing rate in data: %v", out.Data)
	}
}

func TestRateLookupRequiresBank(t *testing.T) {
	r := tool.NewRegistry()
	if err := Register(r); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := r.Execute(context.Background(), "rate_lookup", tool.Inputs{}); err == nil {
		t.Fatal("expected missing-parameter error")
	}
}

func TestTreasuryYieldUnknownTenor(t *testing.T) {
	r := tool.NewRegistry()
	if err := Register(r); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := r.Execute(context.Background(), "treasury_yield", tool.Inputs{Args: map[string]any{"tenor": "7y"}}); err == nil {
		t.Fatal("expected unknown-tenor error")
	}
}

func TestBankCapitalDefaultsGroup(t *testing.T) {
	r := tool.NewRegistry()
	if err := Register(r); err != nil {
		t.Fatalf("register: %v", err)
	}
	out, err := r.Execute(context.Background(), "bank_capital", tool.Inputs{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Data["group"] != "us_gsib" {
		t.Fatalf("expected default group, got %v", out.Data["group"])
	}
}

func TestFedBalanceSheetDeterministic(t *testing.T) {
	r := tool.NewRegistry()
	if err := Register(r); err != nil {
		t.Fatalf("register: %v", err)
	}
	first, err := r.Execute(context.Background(), "fed_balance_sheet", tool.Inputs{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	second, err := r.Execute(context.Background(), "fed_balance_sheet", tool.Inputs{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if first.Text != second.Text {
		t.Fatalf("output not deterministic:\n%q\n%q", first.Text, second.Text)
	}
}
