package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"droneSurveyManagement/internal/realtime"
	"droneSurveyManagement/internal/room"
)

// WatchCmd joins rooms on a running server and prints every event it receives.
func WatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream real-time events for drones or missions",
		Long: `Connects to a running server, joins the given rooms and prints each
event as one JSON line. Use --drone for the drone namespace and --mission
for the mission namespace.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			token, _ := cmd.Flags().GetString("token")
			drones, _ := cmd.Flags().GetStringSlice("drone")
			missions, _ := cmd.Flags().GetStringSlice("mission")
			if token == "" {
				return errors.New("--token is required")
			}
			if (len(drones) == 0) == (len(missions) == 0) {
				return errors.New("pass either --drone or --mission")
			}

			ns, join, key, ids := room.NamespaceDrone, realtime.EventJoinDroneRoom, "droneId", drones
			if len(missions) > 0 {
				ns, join, key, ids = room.NamespaceMission, realtime.EventJoinMission, "missionId", missions
			}

			cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return fmt.Errorf("dial %s: %w", addr, err)
			}
			defer cc.Close()

			ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
			return watch(ctx, cc, ns, join, key, ids, cmd.OutOrStdout())
		},
	}
	cmd.Flags().String("addr", "localhost:50051", "gRPC server address")
	cmd.Flags().String("token", "", "bearer token (see the token command)")
	cmd.Flags().StringSlice("drone", nil, "drone ids to follow")
	cmd.Flags().StringSlice("mission", nil, "mission ids to follow")
	return cmd
}

func watch(ctx context.Context, cc grpc.ClientConnInterface, ns room.Namespace, join, key string, ids []string, out io.Writer) error {
	cs, err := realtime.Open(ctx, cc, ns)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := cs.Send(join, map[string]any{key: id}); err != nil {
			return fmt.Errorf("join %s: %w", id, err)
		}
	}
	enc := json.NewEncoder(out)
	for {
		event, data, err := cs.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := enc.Encode(map[string]any{"event": event, "data": data}); err != nil {
			return err
		}
	}
}
