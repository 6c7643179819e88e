package cmd

import (
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/hybridrag"
	"github.com/brunobiangulo/hybridrag/internal/bootstrap"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP orchestrator server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := hybridrag.NewConfigFromEnv()
			if err != nil {
				return err
			}
			if configPath != "" {
				cfg, err = cfg.LoadYAMLOverrides(configPath)
				if err != nil {
					return err
				}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return bootstrap.RunServer(cmd.Context(), cfg, log)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Optional YAML config file overlaid on top of environment-derived defaults")
	return cmd
}
