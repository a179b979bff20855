package commands

import (
	"github.com/spf13/cobra"

	"github.com/backkem/v2g/internal/config"
)

var (
	configPath string
	logLevel   string
	lax        bool

	appCfg config.Config
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "v2g",
		Short:         "Vehicle-to-grid session tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				level, err := config.ParseLevel(logLevel)
				if err != nil {
					return err
				}
				cfg.LogLevel = level
			}
			if lax {
				cfg.Lax = true
			}
			appCfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "TOML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (error, warn, info, debug, trace)")
	root.PersistentFlags().BoolVar(&lax, "lax", false, "skip child order and occurrence checks")

	root.AddCommand(encodeCmd(), decodeCmd(), schemasCmd(), stationCmd(), evCmd())
	return root
}
