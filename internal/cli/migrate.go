package cli

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"droneSurveyManagement/internal/config"
	"droneSurveyManagement/internal/db"
)

// MigrateCmd manages the schema. Opening the store already applies pending
// migrations, so "up" only reports the resulting version.
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, inspect or roll back schema migrations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: withDB(func(cmd *cobra.Command, d *sql.DB) error {
			v, err := db.CurrentVersion(d)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %04d\n", v)
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return rollback(cmd, cfg)
		},
	})
	return cmd
}

// rollback opens the database without migrating so the newest script can be undone.
func rollback(cmd *cobra.Command, cfg *config.Config) error {
	d, err := db.OpenRaw(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer d.Close()
	v, err := db.RollbackLast(d)
	if err != nil {
		return err
	}
	if v == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rolled back migration %04d\n", v)
	return nil
}

// withDB opens the store for the duration of fn.
func withDB(fn func(cmd *cobra.Command, d *sql.DB) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		_, d, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer d.Close()
		return fn(cmd, d)
	}
}
