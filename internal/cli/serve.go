package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lowtide/resonance/internal/api"
	"github.com/lowtide/resonance/internal/embedding"
	"github.com/lowtide/resonance/internal/events"
	"github.com/lowtide/resonance/internal/lifecycle"
	"github.com/lowtide/resonance/internal/memory"
	"github.com/lowtide/resonance/internal/prosody"
	"github.com/lowtide/resonance/internal/relational"
	"github.com/lowtide/resonance/internal/vectorstore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the memory engine HTTP server",
		RunE:  runServe,
	}

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Server.LogLevel)
	defer logger.Sync()

	logger.Info("starting resonance", zap.String("config", getConfigPath()))

	st, err := openStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer st.Close()
	if err := st.Migrate(cmd.Context(), "migrations"); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	index, err := vectorstore.NewClient(cfg.Database.Qdrant)
	if err != nil {
		return fmt.Errorf("connect qdrant: %w", err)
	}
	defer index.Close()

	var embedder embedding.Provider
	switch cfg.Embedding.Provider {
	case "local":
		embedder = embedding.NewLocalProvider(cfg.Embedding)
	default:
		embedder = embedding.NewAPIProvider(cfg.Embedding)
	}

	if cfg.Embedding.Dimension > 0 {
		dim := uint64(cfg.Embedding.Dimension + prosody.Dimensions)
		if err := index.EnsureCollection(cmd.Context(), dim); err != nil {
			return fmt.Errorf("ensure collection: %w", err)
		}
	} else {
		logger.Warn("embedding.dimension not set, expecting the collection to already exist")
	}

	agg := relational.NewAggregator(st, logger)
	engine := memory.NewEngine(embedder, index, st, agg, logger)
	if cfg.Search.DefaultLimit > 0 {
		engine.SetDefaultSearchLimit(cfg.Search.DefaultLimit)
	}

	manager := lifecycle.NewManager(st, index, logger)
	engine.SetReinforcer(manager)

	sweeper, err := lifecycle.NewSweeper(manager, cfg.Lifecycle, logger)
	if err != nil {
		return fmt.Errorf("lifecycle sweeper: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	// The event stream is optional: the engine runs fine without Redis.
	var publisher *events.Publisher
	if cfg.Database.Redis.URL != "" {
		pub, pubErr := events.NewPublisher(cfg.Database.Redis.URL, logger)
		if pubErr != nil {
			logger.Warn("redis unavailable, running without event stream", zap.Error(pubErr))
		} else {
			publisher = pub
			engine.SetEventSink(publisher)
			defer publisher.Close()
		}
	}

	handler := api.NewHandler(engine, agg, manager, logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("resonance listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down resonance")
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	return nil
}
