// Package cli implements the resonance CLI commands.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/lowtide/resonance/internal/config"
	"github.com/lowtide/resonance/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "resonance",
	Short: "Emotion-weighted memory engine",
	Long:  "Stores conversational moments with emotional weight, retrieves them by blended semantic and emotional similarity, and tracks per-person relational context.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config path (default: $CONFIG_PATH or configs/resonance.json)")
}

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return "configs/resonance.json"
}

func loadConfig() (*config.Config, error) {
	return config.Load(getConfigPath())
}

func newLogger(level string) *zap.Logger {
	var logger *zap.Logger
	switch level {
	case "debug":
		logger, _ = zap.NewDevelopment()
	default:
		logger, _ = zap.NewProduction()
	}
	return logger
}

func openStore(cfg *config.Config, logger *zap.Logger) (*store.Store, error) {
	return store.New(cfg.Database.Postgres.DSN, logger)
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
