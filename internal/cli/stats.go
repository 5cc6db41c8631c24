package cli

import (
	"encoding/json"
	"fmt"

	"github.com/lowtide/resonance/internal/lifecycle"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stored memory statistics",
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
			stats, err := m.Stats(cmd.Context())
			if err != nil {
				exitErr("stats", err)
			}

			b, _ := json.MarshalIndent(stats, "", "  ")
			fmt.Println(string(b))
		},
	}

	RootCmd.AddCommand(cmd)
}
