package embedding

import (
	"context"
	"time"
)

// Provider turns one text into a fixed-length dense vector.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Config holds embedding provider configuration.
type Config struct {
	Provider  string `json:"provider"` // "api" or "local"
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	Dimension int    `json:"dimension"`
	TimeoutMS int    `json:"timeout_ms"`
}

// timeout returns the configured HTTP timeout, defaulting to 10s.
// Embedding calls are one of the two I/O edges of the engine and must
// never block a conversation indefinitely.
func (c Config) timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}
