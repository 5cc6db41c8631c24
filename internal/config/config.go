package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/lowtide/resonance/internal/embedding"
	"github.com/lowtide/resonance/internal/lifecycle"
	"github.com/lowtide/resonance/internal/vectorstore"
)

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig          `json:"server"`
	Database  DatabaseConfig        `json:"database"`
	Embedding embedding.Config      `json:"embedding"`
	Lifecycle lifecycle.SweepConfig `json:"lifecycle"`
	Search    SearchConfig          `json:"search"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig     `json:"postgres"`
	Redis    RedisConfig        `json:"redis"`
	Qdrant   vectorstore.Config `json:"qdrant"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type SearchConfig struct {
	DefaultLimit int `json:"default_limit"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Database.Postgres.DSN == "" {
		return fmt.Errorf("database.postgres.dsn is required")
	}
	if c.Database.Qdrant.Host == "" {
		return fmt.Errorf("database.qdrant.host is required")
	}
	if c.Embedding.Endpoint == "" {
		return fmt.Errorf("embedding.endpoint is required")
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	return nil
}
