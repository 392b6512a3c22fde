package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"droneSurveyManagement/internal/assign"
	"droneSurveyManagement/internal/config"
	grpcserver "droneSurveyManagement/internal/grpc"
	"droneSurveyManagement/internal/httpapi"
	"droneSurveyManagement/internal/mission"
	"droneSurveyManagement/internal/realtime"
	"droneSurveyManagement/internal/room"
	"droneSurveyManagement/internal/scheduler"
	"droneSurveyManagement/repository"
)

const shutdownTimeout = 10 * time.Second

// ServeCmd runs the coordination server until SIGINT or SIGTERM.
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the real-time server, scheduler and ops HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, d, log, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() {
				if err := d.Close(); err != nil {
					log.Error("close db", "err", err)
				}
			}()
			log.Info("configuration loaded", "config", cfg.String())

			ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, d, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, d *sql.DB, log *slog.Logger) error {
	rooms, err := room.NewAddresser(cfg.Auth.RoomSecret)
	if err != nil {
		return err
	}
	users := repository.NewUserRepository(d)
	missions := repository.NewMissionRepository(d)
	drones := repository.NewDroneRepository(d)
	statuses := repository.NewMissionStatusRepository(d)
	reports := repository.NewReportRepository(d)

	hub := realtime.NewHub(log)
	engine := assign.NewEngine(drones, statuses, hub, rooms, log)
	machine := mission.NewMachine(statuses, drones, mission.NewReporter(reports, missions, log), hub, rooms, log)
	rt := realtime.NewServer(hub, machine, rooms, users, realtime.Options{
		RateLimit:  cfg.GRPC.RateLimit,
		RateBurst:  cfg.GRPC.RateBurst,
		SendBuffer: cfg.GRPC.SendBuffer,
	}, log)

	gs, err := grpcserver.StartGRPC(cfg, rt, log)
	if err != nil {
		return fmt.Errorf("start grpc: %w", err)
	}

	sched := scheduler.New(statuses, engine, scheduler.Options{
		OneTimeInterval:       cfg.Scheduler.OneTimeInterval,
		RecurringPollInterval: cfg.Scheduler.RecurringPollInterval,
	}, log)
	if err := sched.Start(); err != nil {
		shutdownGRPC(gs, log)
		return err
	}

	var hs *http.Server
	httpErr := make(chan error, 1)
	if cfg.HTTP.Address != "" {
		hs = &http.Server{
			Addr: cfg.HTTP.Address,
			Handler: httpapi.NewRouter(httpapi.Stores{
				DB:       d,
				Missions: missions,
				Drones:   drones,
				Statuses: statuses,
				Reports:  reports,
			}, sched, log),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("http server listening", "addr", cfg.HTTP.Address)
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				httpErr <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case runErr = <-httpErr:
		log.Error("http server failed", "err", runErr)
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if hs != nil {
		if err := hs.Shutdown(sctx); err != nil {
			log.Error("http shutdown", "err", err)
		}
	}
	if err := sched.Stop(sctx); err != nil {
		log.Error("scheduler stop", "err", err)
	}
	if err := gs.Shutdown(sctx); err != nil {
		log.Error("grpc shutdown", "err", err)
	}
	return runErr
}

func shutdownGRPC(gs *grpcserver.Server, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := gs.Shutdown(ctx); err != nil {
		log.Error("grpc shutdown", "err", err)
	}
}
