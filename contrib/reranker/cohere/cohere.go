// Package cohere implements rerank.Reranker over Cohere's rerank API.
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sweetpotato0/regrag/index"
	"github.com/sweetpotato0/regrag/rerank"
)

const defaultEndpoint = "https://api.cohere.com/v1/rerank"

// Client reranks retrieved passages via Cohere's rerank API, falling
// back to the provided reranker when the API is unavailable.
type Client struct {
	apiKey     string
	model      string
	topN       int
	httpClient *http.Client
	endpoint   string
	fallback   rerank.Reranker
}

// Option customises the Cohere reranker client.
type Option func(*Client)

// WithModel overrides the default Cohere model (rerank-english-v3.0).
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTopN limits how many passages Cohere re-ranks per call.
func WithTopN(topN int) Option {
	return func(c *Client) {
		if topN > 0 {
			c.topN = topN
		}
	}
}

// WithHTTPClient swaps the HTTP client (useful for timeouts or proxies).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithEndpoint overrides the Cohere API endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithFallback specifies the reranker used when Cohere is unavailable.
func WithFallback(r rerank.Reranker) Option {
	return func(c *Client) {
		if r != nil {
			c.fallback = r
		}
	}
}

// New creates a Cohere-based reranker.
func New(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:     apiKey,
		model:      "rerank-english-v3.0",
		topN:       50,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		endpoint:   defaultEndpoint,
		fallback:   rerank.FusedOrder{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	} `json:"results"`
}

// Rerank implements rerank.Reranker.
func (c *Client) Rerank(ctx context.Context, query string, passages []index.Passage) ([]index.Passage, error) {
	if len(passages) == 0 {
		return nil, nil
	}
	if strings.TrimSpace(query) == "" || c.apiKey == "" {
		return c.runFallback(ctx, query, passages, nil)
	}

	limit := len(passages)
	if limit > c.topN {
		limit = c.topN
	}
	docTexts := make([]string, limit)
	for i := 0; i < limit; i++ {
		docTexts[i] = passages[i].Content
	}

	payload := rerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: docTexts,
		TopN:      limit,
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.runFallback(ctx, query, passages, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return c.runFallback(ctx, query, passages, fmt.Errorf("cohere rerank failed: status %d", resp.StatusCode))
	}

	var rr rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return c.runFallback(ctx, query, passages, err)
	}

	results := make([]index.Passage, 0, len(rr.Results))
	for _, res := range rr.Results {
		if res.Index < 0 || res.Index >= limit {
			continue
		}
		p := passages[res.Index]
		p.RerankScore = res.Score
		results = append(results, p)
	}
	if len(results) == 0 {
		return c.runFallback(ctx, query, passages, fmt.Errorf("cohere returned no results"))
	}
	// passages beyond the rerank window keep their fused order
	for i := limit; i < len(passages); i++ {
		results = append(results, passages[i])
	}
	return results, nil
}

func (c *Client) runFallback(ctx context.Context, query string, passages []index.Passage, cause error) ([]index.Passage, error) {
	results, err := c.fallback.Rerank(ctx, query, passages)
	if err != nil {
		return results, err
	}
	return results, cause
}
