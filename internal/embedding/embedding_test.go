package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPIProviderEmbed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		resp := apiResponse{
			Data: []apiEmbeddingData{
				{Embedding: []float32{0.1, 0.2, 0.3}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewAPIProvider(Config{
		Endpoint: srv.URL,
		Model:    "test-model",
	})

	vec, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("got dimension %d, want 3", len(vec))
	}
	if p.Dimension() != 3 {
		t.Errorf("got dimension %d, want 3", p.Dimension())
	}
}

func TestAPIProviderEmbed_EmptyResult(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiResponse{})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewAPIProvider(Config{Endpoint: srv.URL, Model: "test-model"})
	if _, err := p.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for empty embedding result")
	}
}

func TestAPIProviderDimension_Fallback(t *testing.T) {
	p := NewAPIProvider(Config{
		Endpoint:  "http://unused",
		Model:     "test-model",
		Dimension: 1536,
	})

	// Before any Embed call, Dimension should return the configured default.
	if d := p.Dimension(); d != 1536 {
		t.Errorf("got dimension %d, want configured default 1536", d)
	}
}

func TestLocalProviderEmbed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/embeddings", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(localResponse{Embedding: []float32{1, 2}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewLocalProvider(Config{Endpoint: srv.URL, Model: "test-model"})
	vec, err := p.Embed(context.Background(), "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 2 || p.Dimension() != 2 {
		t.Errorf("got vec %v dim %d, want len 2 dim 2", vec, p.Dimension())
	}
}
