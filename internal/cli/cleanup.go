package cli

import (
	"fmt"

	"github.com/lowtide/resonance/internal/lifecycle"
	"github.com/lowtide/resonance/internal/vectorstore"
	"github.com/spf13/cobra"
)

func init() {
	var (
		dryRun bool
		grace  float64
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Hard-delete memories aged past their retention grace period",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig()
			if err != nil {
				exitErr("load config", err)
			}
			logger := newLogger(cfg.Server.LogLevel)
			defer logger.Sync()

			st, err := openStore(cfg, logger)
			if err != nil {
				exitErr("connect postgres", err)
			}
			defer st.Close()

			index, err := vectorstore.NewClient(cfg.Database.Qdrant)
			if err != nil {
				exitErr("connect qdrant", err)
			}
			defer index.Close()

			m := lifecycle.NewManager(st, index, logger)
			removed, err := m.Cleanup(cmd.Context(), grace, dryRun)
			if err != nil {
				exitErr("cleanup", err)
			}
			fmt.Printf("removed %d records (dry_run=%v)\n", removed, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Count affected records without deleting")
	cmd.Flags().Float64Var(&grace, "grace", lifecycle.DefaultGraceMultiplier, "TTL multiplier before a record is eligible for deletion")

	RootCmd.AddCommand(cmd)
}
