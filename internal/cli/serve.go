package cli

import (
	"github.com/spf13/cobra"

	"shiftscheduler/config"
	"shiftscheduler/internal/syncserver"
	"shiftscheduler/pkg/logger"
)

// serve runs the sync replica in the foreground; it never wires the engine.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the self-hosted sync server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			log, err := logger.NewLogger(&cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			return syncserver.Run(cfg, log)
		},
	}
}
