package cli

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"droneSurveyManagement/internal/auth"
	"droneSurveyManagement/models"
	"droneSurveyManagement/repository"
)

// UserCmd manages operators.
func UserCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage operators"}
	add := &cobra.Command{
		Use:   "add <name> <email>",
		Short: "Register an operator",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(cmd *cobra.Command, d *sql.DB) error {
				u, err := repository.NewUserRepository(d).Create(commandContext(cmd), args[0], args[1])
				if err != nil {
					return fmt.Errorf("create user: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Created operator %s (%s)\n", u.ID, u.Email)
				return nil
			})(cmd, args)
		},
	}
	cmd.AddCommand(add)
	return cmd
}

// DroneCmd manages the fleet.
func DroneCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "drone", Short: "Manage survey drones"}

	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a drone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			location, _ := cmd.Flags().GetString("location")
			battery, _ := cmd.Flags().GetFloat64("battery")
			inactive, _ := cmd.Flags().GetBool("inactive")
			return withDB(func(cmd *cobra.Command, d *sql.DB) error {
				dr, err := repository.NewDroneRepository(d).Create(commandContext(cmd), &models.Drone{
					Name:         args[0],
					Location:     location,
					BatteryLevel: battery,
					IsActive:     !inactive,
				})
				if err != nil {
					return fmt.Errorf("create drone: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Created drone %s (%s)\n", dr.ID, dr.Name)
				return nil
			})(cmd, args)
		},
	}
	add.Flags().String("location", "hangar", "base location")
	add.Flags().Float64("battery", 100, "battery level (0-100)")
	add.Flags().Bool("inactive", false, "register the drone as inactive")

	list := &cobra.Command{
		Use:   "list",
		Short: "List drones",
		RunE: withDB(func(cmd *cobra.Command, d *sql.DB) error {
			p := repository.ListDronesParams{}
			if s, _ := cmd.Flags().GetString("status"); s != "" {
				st := models.DroneStatus(s)
				if !st.Valid() {
					return fmt.Errorf("unknown drone status %q", s)
				}
				p.Status = &st
			}
			drones, err := repository.NewDroneRepository(d).List(commandContext(cmd), p)
			if err != nil {
				return err
			}
			for _, dr := range drones {
				mission := "-"
				if dr.CurrentMissionID != nil {
					mission = *dr.CurrentMissionID
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%.0f%%\tactive=%t\tmission=%s\n", dr.ID, dr.Name, dr.Status, dr.BatteryLevel, dr.IsActive, mission)
			}
			return nil
		}),
	}
	list.Flags().String("status", "", "filter by status (available, in-mission, maintenance)")

	cmd.AddCommand(add, list)
	return cmd
}

// missionFile is the YAML layout accepted by "mission add" and "mission update".
type missionFile struct {
	Name                    string            `yaml:"name"`
	Location                string            `yaml:"location"`
	Pattern                 string            `yaml:"pattern"`
	Sensors                 []string          `yaml:"sensors"`
	Altitude                float64           `yaml:"altitude"`
	Overlap                 float64           `yaml:"overlap"`
	DataCollectionFrequency float64           `yaml:"dataCollectionFrequency"`
	CreatedBy               string            `yaml:"createdBy"`
	FlightPath              []models.Waypoint `yaml:"flightPath"`
	Schedule                struct {
		Type string     `yaml:"type"`
		Date *time.Time `yaml:"date"`
		Cron string     `yaml:"cron"`
	} `yaml:"schedule"`
}

func (f *missionFile) toMission() *models.Mission {
	m := &models.Mission{
		Name:                    f.Name,
		Location:                f.Location,
		Pattern:                 models.Pattern(f.Pattern),
		Sensors:                 f.Sensors,
		Altitude:                f.Altitude,
		Overlap:                 f.Overlap,
		DataCollectionFrequency: f.DataCollectionFrequency,
		FlightPath:              f.FlightPath,
		Schedule: models.Schedule{
			Type: models.ScheduleType(f.Schedule.Type),
			Date: f.Schedule.Date,
			Cron: f.Schedule.Cron,
		},
	}
	if f.CreatedBy != "" {
		owner := f.CreatedBy
		m.CreatedBy = &owner
	}
	return m
}

func readMissionFile(path string) (*models.Mission, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f missionFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f.toMission(), nil
}

// MissionCmd manages mission definitions.
func MissionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "mission", Short: "Manage survey missions"}

	add := &cobra.Command{
		Use:   "add",
		Short: "Create a mission from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			if path == "" {
				return errors.New("--file is required")
			}
			m, err := readMissionFile(path)
			if err != nil {
				return err
			}
			return withDB(func(cmd *cobra.Command, d *sql.DB) error {
				created, err := repository.NewMissionRepository(d).Create(commandContext(cmd), m)
				if err != nil {
					return fmt.Errorf("create mission: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Created mission %s (%s, %s)\n", created.ID, created.Name, created.Schedule.Type)
				return nil
			})(cmd, args)
		},
	}
	add.Flags().StringP("file", "f", "", "mission definition (YAML)")

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace a mission definition owned by an operator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			owner, _ := cmd.Flags().GetString("owner")
			if path == "" || owner == "" {
				return errors.New("--file and --owner are required")
			}
			m, err := readMissionFile(path)
			if err != nil {
				return err
			}
			m.ID = args[0]
			return withDB(func(cmd *cobra.Command, d *sql.DB) error {
				ok, err := repository.NewMissionRepository(d).UpdateByOwner(commandContext(cmd), owner, m)
				if err != nil {
					return fmt.Errorf("update mission: %w", err)
				}
				if !ok {
					return fmt.Errorf("mission %s not found or not owned by %s", m.ID, owner)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Updated mission %s (%s, %s)\n", m.ID, m.Name, m.Schedule.Type)
				return nil
			})(cmd, args)
		},
	}
	update.Flags().StringP("file", "f", "", "mission definition (YAML)")
	update.Flags().String("owner", "", "operator that created the mission")

	list := &cobra.Command{
		Use:   "list",
		Short: "List missions with their live status",
		RunE: withDB(func(cmd *cobra.Command, d *sql.DB) error {
			ctx := commandContext(cmd)
			missions, err := repository.NewMissionRepository(d).List(ctx, 100, 0)
			if err != nil {
				return err
			}
			statuses := repository.NewMissionStatusRepository(d)
			for _, m := range missions {
				st, err := statuses.GetByMissionID(ctx, m.ID)
				if err != nil {
					return err
				}
				state, progress := "-", 0.0
				if st != nil {
					state, progress = string(st.State), st.Progress
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%.0f%%\n", m.ID, m.Name, m.Schedule.Type, state, progress)
			}
			return nil
		}),
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a mission and release its drone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(cmd *cobra.Command, d *sql.DB) error {
				ok, err := repository.NewMissionRepository(d).Delete(commandContext(cmd), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("mission %s not found", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted mission %s\n", args[0])
				return nil
			})(cmd, args)
		},
	}

	show := &cobra.Command{
		Use:   "reports <id>",
		Short: "Print the survey reports of a mission as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(cmd *cobra.Command, d *sql.DB) error {
				reps, err := repository.NewReportRepository(d).ListByMission(commandContext(cmd), args[0])
				if err != nil {
					return err
				}
				if reps == nil {
					reps = []*models.SurveyReport{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(reps)
			})(cmd, args)
		},
	}

	cmd.AddCommand(add, update, list, del, show)
	return cmd
}

// TokenCmd mints a bearer token for a drone or operator.
func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a bearer token for the real-time API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, _ := cmd.Flags().GetString("kind")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			tok, err := auth.IssueToken(cfg.Auth.JWTSecret, args[0], kind, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().String("kind", auth.KindOperator, "principal kind (drone or operator)")
	cmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime; 0 for none")
	return cmd
}
