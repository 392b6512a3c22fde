package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"

	"droneSurveyManagement/internal/auth"
	"droneSurveyManagement/internal/config"
	"droneSurveyManagement/internal/logger"
	"droneSurveyManagement/internal/mission"
	"droneSurveyManagement/internal/realtime"
	"droneSurveyManagement/internal/room"
	"droneSurveyManagement/internal/testutil"
	"droneSurveyManagement/repository"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "survey.db")
	t.Setenv("SURVEY_CONFIG", "")
	t.Setenv("DB_PATH", dbPath)
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("ROOM_SECRET", "cli-room-secret")
	return dbPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "survey-server", SilenceUsage: true, SilenceErrors: true}
	AddGlobalFlags(root)
	root.AddCommand(MigrateCmd(), UserCmd(), DroneCmd(), MissionCmd(), TokenCmd(), WatchCmd())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out
}

const missionYAML = `name: North field
location: north
pattern: crosshatch
sensors: [rgb, lidar]
altitude: 40
overlap: 70
dataCollectionFrequency: 2
flightPath:
  - {lat: 0, lng: 0, altitude: 40}
  - {lat: 0.01, lng: 0, altitude: 40}
schedule:
  type: recurring
  cron: "*/5 * * * *"
`

func TestMissionLifecycleCommands(t *testing.T) {
	setupEnv(t)
	file := filepath.Join(t.TempDir(), "mission.yaml")
	if err := os.WriteFile(file, []byte(missionYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	out := mustRun(t, "mission", "add", "-f", file)
	if !strings.HasPrefix(out, "✓ Created mission ") || !strings.Contains(out, "recurring") {
		t.Fatalf("unexpected add output %q", out)
	}
	id := strings.Fields(out)[3]

	out = mustRun(t, "mission", "list")
	if !strings.Contains(out, id) || !strings.Contains(out, "not_started") {
		t.Fatalf("list output %q", out)
	}

	out = mustRun(t, "mission", "reports", id)
	if strings.TrimSpace(out) != "[]" {
		t.Fatalf("reports output %q", out)
	}

	mustRun(t, "mission", "delete", id)
	if _, err := run(t, "mission", "delete", id); err == nil {
		t.Fatal("expected error deleting a missing mission")
	}
}

func TestMissionUpdate_OwnerOnly(t *testing.T) {
	setupEnv(t)
	owner := strings.Fields(mustRun(t, "user", "add", "Grace", "grace@example.com"))[3]
	other := strings.Fields(mustRun(t, "user", "add", "Linus", "linus@example.com"))[3]

	dir := t.TempDir()
	file := filepath.Join(dir, "mission.yaml")
	if err := os.WriteFile(file, []byte(missionYAML+"createdBy: "+owner+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	id := strings.Fields(mustRun(t, "mission", "add", "-f", file))[3]

	edited := filepath.Join(dir, "edited.yaml")
	if err := os.WriteFile(edited, []byte(strings.Replace(missionYAML, "name: North field", "name: South field", 1)), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "mission", "update", id, "-f", edited, "--owner", other); err == nil {
		t.Fatal("expected error updating another operator's mission")
	}
	if _, err := run(t, "mission", "update", id, "-f", edited); err == nil {
		t.Fatal("expected error without --owner")
	}
	out := mustRun(t, "mission", "update", id, "-f", edited, "--owner", owner)
	if !strings.HasPrefix(out, "✓ Updated mission "+id) {
		t.Fatalf("unexpected update output %q", out)
	}
	if out := mustRun(t, "mission", "list"); !strings.Contains(out, "South field") || strings.Contains(out, "North field") {
		t.Fatalf("list after update %q", out)
	}
}

func TestMissionAdd_Invalid(t *testing.T) {
	setupEnv(t)
	if _, err := run(t, "mission", "add"); err == nil {
		t.Fatal("expected error without --file")
	}
	file := filepath.Join(t.TempDir(), "bad.yaml")
	_ = os.WriteFile(file, []byte(strings.Replace(missionYAML, "overlap: 70", "overlap: 150", 1)), 0o600)
	if _, err := run(t, "mission", "add", "-f", file); err == nil {
		t.Fatal("expected validation error for overlap out of range")
	}
}

func TestDroneAndUserCommands(t *testing.T) {
	setupEnv(t)
	out := mustRun(t, "user", "add", "Ada", "ada@example.com")
	if !strings.Contains(out, "ada@example.com") {
		t.Fatalf("user add output %q", out)
	}

	mustRun(t, "drone", "add", "alpha", "--battery", "80")
	mustRun(t, "drone", "add", "bravo", "--battery", "30", "--inactive")

	out = mustRun(t, "drone", "list")
	if !strings.Contains(out, "alpha") || !strings.Contains(out, "bravo") {
		t.Fatalf("drone list output %q", out)
	}
	out = mustRun(t, "drone", "list", "--status", "maintenance")
	if strings.TrimSpace(out) != "" {
		t.Fatalf("expected no maintenance drones, got %q", out)
	}
	if _, err := run(t, "drone", "list", "--status", "flying"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestTokenCommand(t *testing.T) {
	setupEnv(t)
	out := mustRun(t, "token", "drone-1", "--kind", "drone")
	tok := strings.TrimSpace(out)
	p, err := auth.ParseFromMD(testutil.CtxWithBearer(context.Background(), tok), "cli-secret")
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if p.Subject != "drone-1" || p.Kind != auth.KindDrone {
		t.Fatalf("principal = %+v", p)
	}
	if _, err := run(t, "token", "x", "--kind", "admin"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestTokenCommand_RequiresSecretUnlessDev(t *testing.T) {
	setupEnv(t)
	t.Setenv("JWT_SECRET", "")
	if _, err := run(t, "token", "op-1"); err == nil {
		t.Fatal("expected missing secret error")
	}
	if _, err := run(t, "--dev", "token", "op-1"); err != nil {
		t.Fatalf("dev token: %v", err)
	}
}

func TestConfigFlag(t *testing.T) {
	setupEnv(t)
	if err := os.Unsetenv("DB_PATH"); err != nil {
		t.Fatal(err)
	}
	dbPath := filepath.Join(t.TempDir(), "from-file.db")
	file := filepath.Join(t.TempDir(), "survey.yaml")
	_ = os.WriteFile(file, []byte("database:\n  path: "+dbPath+"\n"), 0o600)

	mustRun(t, "--config", file, "migrate", "up")
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected database at config path: %v", err)
	}
}

func TestMigrateUpAndDown(t *testing.T) {
	setupEnv(t)
	out := mustRun(t, "migrate", "up")
	if !strings.Contains(out, "schema at version 0002") {
		t.Fatalf("migrate up output %q", out)
	}
	out = mustRun(t, "migrate", "down")
	if !strings.Contains(out, "rolled back migration 0002") {
		t.Fatalf("migrate down output %q", out)
	}
	out = mustRun(t, "migrate", "down")
	if !strings.Contains(out, "rolled back migration 0001") {
		t.Fatalf("second migrate down output %q", out)
	}
	out = mustRun(t, "migrate", "down")
	if !strings.Contains(out, "nothing to roll back") {
		t.Fatalf("empty rollback output %q", out)
	}
}

func TestWatch_RequiresOneNamespace(t *testing.T) {
	setupEnv(t)
	if _, err := run(t, "watch"); err == nil {
		t.Fatal("expected error without token")
	}
	if _, err := run(t, "watch", "--token", "t"); err == nil {
		t.Fatal("expected error without rooms")
	}
	if _, err := run(t, "watch", "--token", "t", "--drone", "a", "--mission", "b"); err == nil {
		t.Fatal("expected error with both namespaces")
	}
}

func TestWatch_PrintsRoomEvents(t *testing.T) {
	d := testutil.OpenInMemoryDB(t)
	log := logger.Discard()
	rooms, _ := room.NewAddresser("room-secret")
	hub := realtime.NewHub(log)
	statuses := repository.NewMissionStatusRepository(d)
	drones := repository.NewDroneRepository(d)
	reporter := mission.NewReporter(repository.NewReportRepository(d), repository.NewMissionRepository(d), log)
	machine := mission.NewMachine(statuses, drones, reporter, hub, rooms, log)
	users := repository.NewUserRepository(d)
	op, err := users.Create(context.Background(), "Ops", "ops@example.com")
	if err != nil {
		t.Fatal(err)
	}

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer(grpc.StreamInterceptor(auth.NewStreamAuthInterceptor("jwt")))
	realtime.RegisterWith(gs, realtime.NewServer(hub, machine, rooms, users, realtime.Options{}, log))
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)
	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = cc.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+testutil.GenerateJWTHS256(t, "jwt", op.ID, auth.KindOperator))

	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, cc, room.NamespaceMission, realtime.EventJoinMission, "missionId", []string{"m-1"}, pw)
		_ = pw.Close()
	}()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Members(rooms.Mission("m-1")) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("watcher never joined the mission room")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := hub.Publish(rooms.Mission("m-1"), "flight_update", map[string]any{"missionId": "m-1", "alt": 40}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	line, err := bufio.NewReader(pr).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("decode %q: %v", line, err)
	}
	if got.Event != "flight_update" || got.Data["missionId"] != "m-1" {
		t.Fatalf("got %+v", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop on cancel")
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	d := testutil.OpenInMemoryDB(t)
	cfg := &config.Config{}
	cfg.GRPC.Address = "127.0.0.1:0"
	cfg.HTTP.Address = "127.0.0.1:0"
	cfg.Auth.JWTSecret = "jwt"
	cfg.Auth.RoomSecret = "room"
	cfg.Scheduler.OneTimeInterval = time.Hour
	cfg.Scheduler.RecurringPollInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, d, logger.Discard()) }()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestServe_RejectsEmptyRoomSecret(t *testing.T) {
	d := testutil.OpenInMemoryDB(t)
	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "jwt"
	if err := serve(context.Background(), cfg, d, logger.Discard()); err == nil {
		t.Fatal("expected error for empty room secret")
	}
}
