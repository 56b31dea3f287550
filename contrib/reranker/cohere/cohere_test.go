package cohere

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sweetpotato0/regrag/index"
)

type stubReranker struct {
	called bool
}

func (s *stubReranker) Rerank(ctx context.Context, query string, passages []index.Passage) ([]index.Passage, error) {
	s.called = true
	return passages, nil
}

func TestCohereRerankerFallsBackWithoutAPIKey(t *testing.T) {
	fallback := &stubReranker{}
	client := New("", WithFallback(fallback))

	passages := []index.Passage{{ID: "p1", Content: "basel capital rules"}}
	results, err := client.Rerank(context.Background(), "capital requirements", passages)
	if err != nil {
		t.Fatalf("Rerank error: %v", err)
	}
	if len(results) != 1 || !fallback.called {
		t.Fatal("expected fallback path")
	}
}

func TestCohereRerankerReordersByAPIResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": 1, "score": 0.9},
				{"index": 0, "score": 0.2},
			},
		})
	}))
	defer server.Close()

	client := New("test-key", WithEndpoint(server.URL))
	passages := []index.Passage{
		{ID: "p1", Content: "liquidity coverage"},
		{ID: "p2", Content: "capital requirements"},
	}

	results, err := client.Rerank(context.Background(), "capital requirements", passages)
	if err != nil {
		t.Fatalf("Rerank error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "p2" {
		t.Errorf("expected p2 ranked first, got %s", results[0].ID)
	}
	if results[0].RerankScore != 0.9 {
		t.Errorf("expected rerank score 0.9, got %f", results[0].RerankScore)
	}
}

func TestCohereRerankerFallsBackOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	fallback := &stubReranker{}
	client := New("test-key", WithEndpoint(server.URL), WithFallback(fallback))
	passages := []index.Passage{{ID: "p1", Content: "basel"}}

	results, err := client.Rerank(context.Background(), "basel", passages)
	if err == nil {
		t.Fatal("expected cause error from failed API call")
	}
	if len(results) != 1 || !fallback.called {
		t.Fatal("expected fallback results despite API failure")
	}
}
