// Package gemini implements llm.Client over the official Google
// generative AI SDK.
package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/sweetpotato0/regrag/llm"
)

// Config holds Gemini provider configuration.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int32
	Temperature float32
}

// DefaultConfig returns default Gemini configuration.
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:      apiKey,
		Model:       "gemini-1.5-flash",
		MaxTokens:   2048,
		Temperature: 0,
	}
}

// Provider implements llm.Client for Google Gemini.
type Provider struct {
	config *Config
	client *genai.Client
}

// New creates a Gemini provider. The caller owns the provider and must
// Close it when done.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig("")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key not configured")
	}
	if config.Model == "" {
		config.Model = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Provider{config: config, client: client}, nil
}

// Complete implements llm.Client. Schema requests use Gemini's native
// JSON response mode with a converted response schema.
func (p *Provider) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("completion request cannot be nil")
	}

	model := p.client.GenerativeModel(p.config.Model)

	temperature := p.config.Temperature
	if req.Temperature > 0 {
		temperature = float32(req.Temperature)
	}
	model.SetTemperature(temperature)

	maxTokens := p.config.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = int32(req.MaxTokens)
	}
	if maxTokens > 0 {
		model.SetMaxOutputTokens(maxTokens)
	}

	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	if req.Schema != nil {
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = convertSchema(req.Schema)
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no candidates returned from Gemini")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}

	out := &llm.Response{Text: text, Model: p.config.Model}
	if resp.UsageMetadata != nil {
		out.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}

// Close releases the underlying client.
func (p *Provider) Close() error {
	return p.client.Close()
}

// convertSchema maps the provider-neutral schema onto genai's typed
// schema. Unknown property types degrade to string.
func convertSchema(s *llm.Schema) *genai.Schema {
	out := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(s.Properties)),
		Required:   s.Required,
	}
	for name, raw := range s.Properties {
		out.Properties[name] = convertProperty(raw)
	}
	return out
}

func convertProperty(raw any) *genai.Schema {
	prop, ok := raw.(map[string]any)
	if !ok {
		return &genai.Schema{Type: genai.TypeString}
	}

	out := &genai.Schema{Type: convertType(prop["type"])}
	if desc, ok := prop["description"].(string); ok {
		out.Description = desc
	}
	if enum, ok := prop["enum"].([]string); ok {
		out.Enum = enum
	} else if enumAny, ok := prop["enum"].([]any); ok {
		for _, v := range enumAny {
			if s, ok := v.(string); ok {
				out.Enum = append(out.Enum, s)
			}
		}
	}
	if items, ok := prop["items"]; ok && out.Type == genai.TypeArray {
		out.Items = convertProperty(items)
	}
	if nested, ok := prop["properties"].(map[string]any); ok && out.Type == genai.TypeObject {
		out.Properties = make(map[string]*genai.Schema, len(nested))
		for name, sub := range nested {
			out.Properties[name] = convertProperty(sub)
		}
	}
	return out
}

func convertType(t any) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}
