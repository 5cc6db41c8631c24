package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"

	"github.com/testcontainers/testcontainers-go"
	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/lowtide/resonance/internal/store"
	"github.com/lowtide/resonance/internal/vectorstore"
)

const testEmbeddingDim = 16

// Package-level shared state — set by TestMain, used by all subtests.
var (
	testLogger   *zap.Logger
	testStore    *store.Store
	testIndex    *vectorstore.Client
	testRedisURL string
)

// startPostgres starts a PostgreSQL testcontainer, returns DSN + cleanup func.
func startPostgres(ctx context.Context) (string, func(), error) {
	container, err := tcpg.Run(ctx, "postgres:16-alpine",
		tcpg.WithDatabase("resonance_test"),
		tcpg.WithUsername("test"),
		tcpg.WithPassword("test"),
		tcpg.BasicWaitStrategies(),
	)
	if err != nil {
		return "", nil, fmt.Errorf("start postgres: %w", err)
	}
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return "", nil, fmt.Errorf("pg connection string: %w", err)
	}
	cleanup := func() { container.Terminate(ctx) }
	return dsn, cleanup, nil
}

// startRedis starts a Redis testcontainer, returns URL + cleanup func.
func startRedis(ctx context.Context) (string, func(), error) {
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return "", nil, fmt.Errorf("start redis: %w", err)
	}
	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		container.Terminate(ctx)
		return "", nil, fmt.Errorf("redis endpoint: %w", err)
	}
	url := "redis://" + endpoint
	cleanup := func() { container.Terminate(ctx) }
	return url, cleanup, nil
}

// startQdrant starts a Qdrant testcontainer and returns host, gRPC port
// and cleanup func.
func startQdrant(ctx context.Context) (string, int, func(), error) {
	req := testcontainers.ContainerRequest{
		Image:        "qdrant/qdrant:v1.12.4",
		ExposedPorts: []string{"6334/tcp"},
		WaitingFor:   wait.ForListeningPort("6334/tcp"),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", 0, nil, fmt.Errorf("start qdrant: %w", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx)
		return "", 0, nil, fmt.Errorf("qdrant host: %w", err)
	}
	mapped, err := container.MappedPort(ctx, "6334/tcp")
	if err != nil {
		container.Terminate(ctx)
		return "", 0, nil, fmt.Errorf("qdrant port: %w", err)
	}
	port, _ := strconv.Atoi(mapped.Port())
	cleanup := func() { container.Terminate(ctx) }
	return host, port, cleanup, nil
}

// startEmbeddingServer serves deterministic embeddings over the
// OpenAI-compatible wire shape so no real model is needed. Vectors for
// the same text are identical and vectors for different texts diverge.
func startEmbeddingServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type datum struct {
			Embedding []float32 `json:"embedding"`
		}
		resp := struct {
			Data []datum `json:"data"`
		}{}
		for _, text := range req.Input {
			resp.Data = append(resp.Data, datum{Embedding: deterministicVector(text)})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

// deterministicVector hashes the text into a unit-ish vector. Texts
// sharing words end up closer than unrelated ones because each word
// contributes to the same buckets regardless of position.
func deterministicVector(text string) []float32 {
	v := make([]float32, testEmbeddingDim)
	start := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == ' ' {
			if i > start {
				h := fnv.New32a()
				h.Write([]byte(text[start:i]))
				v[h.Sum32()%testEmbeddingDim] += 1
			}
			start = i + 1
		}
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range v {
			v[i] *= inv
		}
	}
	return v
}
