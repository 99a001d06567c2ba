package main

import (
	"fmt"
	"os"

	"civicboard/api/internal/config"
	"civicboard/api/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const programName = "civicboard-api"

var envFiles []string

// loadRuntime reads env files and the environment, then builds the logger.
func loadRuntime() (config.Config, *zap.Logger, error) {
	if _, err := config.LoadDotEnv(envFiles...); err != nil {
		return config.Config{}, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.Env)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Governance approval API for board motions, minutes and packets",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveRun(cmd)
		},
	}
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "env file to load before reading the environment (repeatable, default .env)")

	rootCmd.AddCommand(
		serveCommand(),
		migrateCommand(),
		tokenCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
		os.Exit(1)
	}
}
