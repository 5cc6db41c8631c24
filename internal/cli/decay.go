package cli

import (
	"fmt"

	"github.com/lowtide/resonance/internal/lifecycle"
	"github.com/spf13/cobra"
)

func init() {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "decay",
		Short: "Run one decay sweep over stored memories",
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

			m := lifecycle.NewManager(st, nil, logger)
			touched, skipped, err := m.Decay(cmd.Context(), dryRun)
			if err != nil {
				exitErr("decay", err)
			}
			fmt.Printf("decayed %d records (%d skipped, dry_run=%v)\n", touched, skipped, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Count affected records without persisting")

	RootCmd.AddCommand(cmd)
}
