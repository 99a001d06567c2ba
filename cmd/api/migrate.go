package main

import (
	"fmt"
	"os"

	"civicboard/api/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCommand() *cobra.Command {
	var (
		down  bool
		steps int
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations, or revert applied ones with --down",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			db, err := store.Open(ctx, cfg.DatabaseURL, store.DefaultPoolOptions())
			if err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			defer db.Close()

			migrations := os.DirFS(cfg.MigrationsDir)
			if down {
				reverted, err := store.RevertMigrations(ctx, db, migrations, steps)
				if err != nil {
					return err
				}
				logger.Info("migrations reverted", zap.Strings("files", reverted))
				return nil
			}
			applied, err := store.ApplyMigrations(ctx, db, migrations)
			if err != nil {
				return err
			}
			logger.Info("migrations applied", zap.Strings("files", applied))
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "revert migrations instead of applying them")
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to revert with --down (0 reverts all)")
	return cmd
}
