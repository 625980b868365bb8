package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"guardians-shop/internal/config"
	"guardians-shop/internal/database"
)

func migrateCmd(configPath *string) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long: `Apply the orders and products schema to the configured postgres database.

Every statement is idempotent, so migrate can run on each deploy.
With --seed the launch catalog is inserted; existing skus are left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.Database.Driver != config.DriverPostgres {
				return fmt.Errorf("migrate needs DB_DRIVER=%s, got %q", config.DriverPostgres, a.cfg.Database.Driver)
			}

			if err := database.Migrate(ctx, a.db); err != nil {
				return err
			}
			a.log.Info("schema applied")

			if !seed {
				return nil
			}
			n, err := database.SeedProducts(ctx, a.db, database.DefaultProducts)
			if err != nil {
				return err
			}
			a.log.Info("catalog seeded", slog.Int("inserted", n), slog.Int("catalog", len(database.DefaultProducts)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "insert the default product catalog")
	return cmd
}
