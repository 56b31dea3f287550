// Package finance holds the built-in deterministic tools: pure lookups over
// static reference tables. They stand in for market data feeds so the planner
// and executor can be exercised end to end without external services.
package finance

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sweetpotato0/regrag/tool"
)

// Register adds the built-in finance tools to the registry.
func Register(r *tool.Registry) error {
	for _, t := range []*tool.Tool{
		RateLookup(),
		TreasuryYield(),
		BankCapital(),
		FedBalanceSheet(),
		MarketData(),
	} {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// policyRates holds target policy rates by central bank, percent.
var policyRates = map[string]float64{
	"FED": 5.50,
	"ECB": 4.50,
	"BOE": 5.25,
	"BOJ": 0.10,
}

// RateLookup returns the policy rate for a central bank.
func RateLookup() *tool.Tool {
	return &tool.Tool{
		Name:        "rate_lookup",
		Description: "Looks up the current policy rate for a central bank.",
		Parameters: []tool.Parameter{
			{Name: "bank", Type: "string", Description: "Central bank code", Required: true, Enum: []string{"FED", "ECB", "BOE", "BOJ"}},
		},
		Handler: func(ctx context.Context, in tool.Inputs) (tool.Output, error) {
			bank := strings.ToUpper(stringArg(in.Args, "bank"))
			rate, ok := policyRates[bank]
			if !ok {
				return tool.Output{}, fmt.Errorf("unknown central bank %q", bank)
			}
			return tool.Output{
				Text: fmt.Sprintf("%s policy rate: %.2f%%", bank, rate),
				Data: map[string]any{"bank": bank, "rate_percent": rate},
			}, nil
		},
	}
}

// treasuryCurve holds constant-maturity Treasury yields, percent.
var treasuryCurve = map[string]float64{
	"3m": 5.38, "6m": 5.32, "1y": 5.05,
	"2y": 4.71, "5y": 4.30, "10y": 4.25, "30y": 4.39,
}

// TreasuryYield returns the yield for a Treasury tenor.
func TreasuryYield() *tool.Tool {
	return &tool.Tool{
		Name:        "treasury_yield",
		Description: "Returns the constant-maturity Treasury yield for a tenor.",
		Parameters: []tool.Parameter{
			{Name: "tenor", Type: "string", Description: "Maturity tenor", Required: true, Enum: []string{"3m", "6m", "1y", "2y", "5y", "10y", "30y"}},
		},
		Handler: func(ctx context.Context, in tool.Inputs) (tool.Output, error) {
			tenor := strings.ToLower(stringArg(in.Args, "tenor"))
			yield, ok := treasuryCurve[tenor]
			if !ok {
				return tool.Output{}, fmt.Errorf("unknown tenor %q", tenor)
			}
			return tool.Output{
				Text: fmt.Sprintf("%s Treasury yield: %.2f%%", tenor, yield),
				Data: map[string]any{"tenor": tenor, "yield_percent": yield},
			}, nil
		},
	}
}

// capitalRatios holds regulatory capital ratios by bank group, percent.
var capitalRatios = map[string]map[string]float64{
	"us_gsib":     {"cet1": 13.5, "tier1": 15.2, "total": 18.1},
	"us_regional": {"cet1": 10.8, "tier1": 12.1, "total": 14.0},
	"eu_gsib":     {"cet1": 14.2, "tier1": 16.0, "total": 18.9},
}

// BankCapital returns regulatory capital ratios for a bank group.
func BankCapital() *tool.Tool {
	return &tool.Tool{
		Name:        "bank_capital",
		Description: "Returns CET1, Tier 1 and total capital ratios for a bank group.",
		Parameters: []tool.Parameter{
			{Name: "group", Type: "string", Description: "Bank group", Required: false, Enum: []string{"us_gsib", "us_regional", "eu_gsib"}, Default: "us_gsib"},
		},
		Handler: func(ctx context.Context, in tool.Inputs) (tool.Output, error) {
			group := strings.ToLower(stringArg(in.Args, "group"))
			if group == "" {
				group = "us_gsib"
			}
			ratios, ok := capitalRatios[group]
			if !ok {
				return tool.Output{}, fmt.Errorf("unknown bank group %q", group)
			}
			return tool.Output{
				Text: fmt.Sprintf("%s capital ratios: CET1 %.1f%%, Tier 1 %.1f%%, total %.1f%%",
					group, ratios["cet1"], ratios["tier1"], ratios["total"]),
				Data: map[string]any{"group": group, "cet1": ratios["cet1"], "tier1": ratios["tier1"], "total": ratios["total"]},
			}, nil
		},
	}
}

// balanceSheet holds Federal Reserve balance sheet line items, USD billions.
var balanceSheet = map[string]float64{
	"total_assets":    7150.0,
	"treasuries":      4350.0,
	"mbs":             2270.0,
	"reserve_balance": 3250.0,
}

// FedBalanceSheet returns Federal Reserve balance sheet line items.
func FedBalanceSheet() *tool.Tool {
	return &tool.Tool{
		Name:        "fed_balance_sheet",
		Description: "Returns Federal Reserve balance sheet line items in USD billions.",
		Handler: func(ctx context.Context, in tool.Inputs) (tool.Output, error) {
			keys := make([]string, 0, len(balanceSheet))
			for k := range balanceSheet {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			lines := make([]string, 0, len(keys))
			data := make(map[string]any, len(keys))
			for _, k := range keys {
				lines = append(lines, fmt.Sprintf("%s: $%.0fB", k, balanceSheet[k]))
				data[k] = balanceSheet[k]
			}
			return tool.Output{Text: strings.Join(lines, "; "), Data: data}, nil
		},
	}
}

// indexLevels holds benchmark index levels.
var indexLevels = map[string]float64{
	"sp500":  5620.0,
	"nasdaq": 17740.0,
	"dow":    41250.0,
	"vix":    15.2,
}

// MarketData returns a benchmark index level.
func MarketData() *tool.Tool {
	return &tool.Tool{
		Name:        "market_data",
		Description: "Returns benchmark market index levels.",
		Parameters: []tool.Parameter{
			{Name: "symbol", Type: "string", Description: "Index symbol", Required: true, Enum: []string{"sp500", "nasdaq", "dow", "vix"}},
		},
		Handler: func(ctx context.Context, in tool.Inputs) (tool.Output, error) {
			symbol := strings.ToLower(stringArg(in.Args, "symbol"))
			level, ok := indexLevels[symbol]
			if !ok {
				return tool.Output{}, fmt.Errorf("unknown symbol %q", symbol)
			}
			return tool.Output{
				Text: fmt.Sprintf("%s: %.1f", symbol, level),
				Data: map[string]any{"symbol": symbol, "level": level},
			}, nil
		},
	}
}

func stringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}
