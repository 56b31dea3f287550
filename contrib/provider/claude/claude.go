// Package claude implements llm.Client over the official Anthropic SDK.
package claude

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/sweetpotato0/regrag/llm"
)

// Config holds Claude provider configuration.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// DefaultConfig returns default Claude configuration.
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:      apiKey,
		Model:       "claude-3-5-sonnet-20241022",
		MaxTokens:   4096,
		Temperature: 0,
	}
}

// Provider implements llm.Client for Claude.
type Provider struct {
	config *Config
	client anthropic.Client
}

// New creates a Claude provider using the official SDK.
func New(config *Config) *Provider {
	if config.Model == "" {
		config.Model = "claude-3-5-sonnet-20241022"
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	return &Provider{
		config: config,
		client: anthropic.NewClient(options...),
	}
}

// Complete implements llm.Client. The Anthropic API has no JSON schema
// response format, so schema requests inline the schema into the system
// prompt and instruct the model to reply with a single JSON object.
func (p *Provider) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("completion request cannot be nil")
	}

	system := req.System
	if req.Schema != nil {
		def, err := json.Marshal(req.Schema.Definition())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal schema: %w", err)
		}
		system = fmt.Sprintf(
			"%s\n\nRespond with a single JSON object matching this schema, and nothing else:\n%s",
			system, def)
	}

	maxTokens := p.config.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	temperature := p.config.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	if temperature > 0 {
		params.Temperature = param.NewOpt(temperature)
	}

	apiMessage, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("Claude API error: %w", err)
	}

	var text string
	for _, block := range apiMessage.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return &llm.Response{
		Text:       text,
		Model:      string(apiMessage.Model),
		TokensUsed: int(apiMessage.Usage.InputTokens + apiMessage.Usage.OutputTokens),
	}, nil
}
