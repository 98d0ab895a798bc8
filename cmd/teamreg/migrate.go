package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"teamreg/internal/platform/config"
	"teamreg/internal/platform/database"
)

var migrateDown bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply (or with --down, revert) the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMigrate(cmd.Context(), cfg.Database, migrateDown, cmd.OutOrStdout())
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "revert every migration (postgres only)")
}

func runMigrate(ctx context.Context, dbCfg config.DatabaseConfig, down bool, out io.Writer) error {
	if dbCfg.Driver == database.DriverMemory {
		return errors.New("the memory driver has no schema; set database.driver to postgres or sqlite")
	}
	db, err := openDB(ctx, dbCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if !database.IsPostgres(dbCfg.Driver) {
		// Opening SQLite already applied its idempotent schema.
		if down {
			return errors.New("--down is only supported for postgres")
		}
		_, err = fmt.Fprintf(out, "sqlite schema ready at %s\n", dbCfg.SQLitePath)
		return err
	}

	if down {
		if err := database.RollbackPostgres(db); err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, "postgres schema reverted")
		return err
	}
	version, err := database.MigratePostgres(db)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "postgres schema at version %d\n", version)
	return err
}
