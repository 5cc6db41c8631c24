package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// LocalProvider implements Provider using an Ollama-compatible embeddings API.
type LocalProvider struct {
	endpoint  string
	model     string
	dimension int
	client    *http.Client

	once    sync.Once
	dimSeen int
}

// NewLocalProvider creates a new LocalProvider from the given Config.
func NewLocalProvider(cfg Config) *LocalProvider {
	return &LocalProvider{
		endpoint:  cfg.Endpoint,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		client:    &http.Client{Timeout: cfg.timeout()},
	}
}

type localRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type localResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed sends the text to the Ollama-compatible endpoint and returns its embedding.
func (p *LocalProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(localRequest{
		Model:  p.model,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding: API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result localResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embedding: decode response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("embedding: empty result for model %s", p.model)
	}

	p.once.Do(func() {
		p.dimSeen = len(result.Embedding)
	})

	return result.Embedding, nil
}

// Dimension returns the embedding vector dimension: the cached value
// from the first result, or the configured default.
func (p *LocalProvider) Dimension() int {
	if p.dimSeen > 0 {
		return p.dimSeen
	}
	return p.dimension
}
