package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"droneSurveyManagement/internal/cli"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "survey-server",
		Short: "Drone survey mission coordination server",
		Long: `survey-server assigns drones to scheduled survey missions, tracks their
execution over real-time gRPC streams and records a report for every finished run.

Configuration comes from an optional YAML file (--config or SURVEY_CONFIG) and
environment variables such as DB_PATH, GRPC_ADDRESS, HTTP_ADDRESS, JWT_SECRET
and ROOM_SECRET.`,
		SilenceUsage: true,
	}
	cli.AddGlobalFlags(rootCmd)

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.MigrateCmd())

	// Seeding and inspection
	rootCmd.AddCommand(cli.UserCmd())
	rootCmd.AddCommand(cli.DroneCmd())
	rootCmd.AddCommand(cli.MissionCmd())
	rootCmd.AddCommand(cli.TokenCmd())
	rootCmd.AddCommand(cli.WatchCmd())
	return rootCmd
}
