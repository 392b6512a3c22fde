// Package cli holds the survey-server subcommands.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"droneSurveyManagement/internal/config"
	"droneSurveyManagement/internal/db"
	"droneSurveyManagement/internal/logger"
)

// AddGlobalFlags registers the flags every subcommand reads through loadConfig.
func AddGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().String("config", "", "YAML config file (overrides SURVEY_CONFIG)")
	root.PersistentFlags().Bool("dev", false, "fill missing secrets with development defaults")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := os.Setenv("SURVEY_CONFIG", path); err != nil {
			return nil, err
		}
	}
	if dev, _ := cmd.Flags().GetBool("dev"); dev {
		return config.LoadWithDefaults()
	}
	return config.Load()
}

// openStore loads the config and opens the migrated database.
func openStore(cmd *cobra.Command) (*config.Config, *sql.DB, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Log.Level)
	d, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open db: %w", err)
	}
	return cfg, d, log, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
