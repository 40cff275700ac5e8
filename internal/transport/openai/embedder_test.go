package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/docsift/docsift/internal/domain"
)

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
	Object    string    `json:"object"`
}

type embeddingAPIResponse struct {
	Object string          `json:"object"`
	Data   []embeddingData `json:"data"`
	Model  string          `json:"model"`
	Usage  struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

func newTestEmbedder(t *testing.T, handler http.HandlerFunc) *Embedder {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewEmbedder(&Config{
		APIKey:   "test-key",
		BaseURL:  srv.URL,
		Model:    "text-embedding-3-small",
		Provider: "openai",
		Logger:   zap.NewNop(),
	})
}

func embeddingsHandler(t *testing.T, data []embeddingData, promptTokens int) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		resp := embeddingAPIResponse{Object: "list", Data: data, Model: "text-embedding-3-small"}
		resp.Usage.PromptTokens = promptTokens
		resp.Usage.TotalTokens = promptTokens
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func TestEmbed(t *testing.T) {
	e := newTestEmbedder(t, embeddingsHandler(t, []embeddingData{
		{Embedding: []float32{0.1, 0.2, 0.3}, Index: 0, Object: "embedding"},
	}, 5))

	res, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if !reflect.DeepEqual(res.Embedding, []float32{0.1, 0.2, 0.3}) {
		t.Errorf("Embedding = %v", res.Embedding)
	}
	if res.TotalTokens != 5 {
		t.Errorf("TotalTokens = %d, want 5", res.TotalTokens)
	}
}

func TestEmbedEmptyResponse(t *testing.T) {
	e := newTestEmbedder(t, embeddingsHandler(t, []embeddingData{}, 0))

	if _, err := e.Embed(context.Background(), "hello"); !errors.Is(err, domain.ErrEmbeddingProvider) {
		t.Errorf("Embed() error = %v, want ErrEmbeddingProvider", err)
	}
}

func TestBatchEmbedReordersByIndex(t *testing.T) {
	// The provider returns vectors out of input order.
	e := newTestEmbedder(t, embeddingsHandler(t, []embeddingData{
		{Embedding: []float32{0, 1}, Index: 1, Object: "embedding"},
		{Embedding: []float32{1, 0}, Index: 0, Object: "embedding"},
	}, 10))

	res, err := e.BatchEmbed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("BatchEmbed() error = %v", err)
	}

	want := [][]float32{{1, 0}, {0, 1}}
	if !reflect.DeepEqual(res.Embeddings, want) {
		t.Errorf("Embeddings = %v, want %v", res.Embeddings, want)
	}
	if res.TotalTokens != 10 {
		t.Errorf("TotalTokens = %d, want 10", res.TotalTokens)
	}
}

func TestBatchEmbedEmptyInput(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no API call expected for empty input")
	})

	res, err := e.BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("BatchEmbed() error = %v", err)
	}
	if len(res.Embeddings) != 0 {
		t.Errorf("Embeddings = %v, want none", res.Embeddings)
	}
}

func TestBatchEmbedCountMismatch(t *testing.T) {
	e := newTestEmbedder(t, embeddingsHandler(t, []embeddingData{
		{Embedding: []float32{1}, Index: 0, Object: "embedding"},
	}, 5))

	_, err := e.BatchEmbed(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrEmbeddingProvider) {
		t.Errorf("BatchEmbed() error = %v, want ErrEmbeddingProvider", err)
	}
}

func TestEmbedAPIError(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"detail": "rate limit exceeded"}`))
	})

	_, err := e.Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrEmbeddingProvider) {
		t.Fatalf("Embed() error = %v, want ErrEmbeddingProvider", err)
	}
}
