package main

import (
	"github.com/cyberfolio/folio-core/config"
	"github.com/cyberfolio/folio-core/env"
	"github.com/cyberfolio/folio-core/logger"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "folio",
		Short:         "Portfolio backend: live price board and contact relay",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to a YAML config file (env FOLIO_CONFIG)")
	root.PersistentFlags().String("log-level", "", "trace, debug, info, warn or error (env FOLIO_LOG_LEVEL)")
	root.PersistentFlags().String("log-format", "", "console or json (env FOLIO_LOG_FORMAT)")

	root.AddCommand(newServeCommand(), newPricesCommand(), newContactCommand())
	return root
}

// setup loads configuration and the logger every subcommand starts from.
func setup(cmd *cobra.Command) (config.Config, logger.Logger, error) {
	log := env.NewLogger(cmd)
	cfg, err := config.Load(env.FlagOrEnv(cmd, "config", env.Prefix+"CONFIG", ""))
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}
