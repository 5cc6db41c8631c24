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

// APIProvider implements Provider using an OpenAI-compatible embeddings API.
type APIProvider struct {
	endpoint  string
	model     string
	apiKey    string
	dimension int
	client    *http.Client

	once    sync.Once
	dimSeen int
}

// NewAPIProvider creates a new APIProvider from the given Config.
func NewAPIProvider(cfg Config) *APIProvider {
	return &APIProvider{
		endpoint:  cfg.Endpoint,
		model:     cfg.Model,
		apiKey:    cfg.APIKey,
		dimension: cfg.Dimension,
		client:    &http.Client{Timeout: cfg.timeout()},
	}
}

type apiRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type apiEmbeddingData struct {
	Embedding []float32 `json:"embedding"`
}

type apiResponse struct {
	Data []apiEmbeddingData `json:"data"`
}

// Embed sends the text to the OpenAI-compatible endpoint and returns its embedding.
func (p *APIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(apiRequest{
		Model: p.model,
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding: API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embedding: decode response: %w", err)
	}
	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedding: empty result for model %s", p.model)
	}

	vec := result.Data[0].Embedding

	// Cache dimension from the first successful result.
	p.once.Do(func() {
		p.dimSeen = len(vec)
	})

	return vec, nil
}

// Dimension returns the embedding vector dimension: the cached value
// from the first result, or the configured default.
func (p *APIProvider) Dimension() int {
	if p.dimSeen > 0 {
		return p.dimSeen
	}
	return p.dimension
}
