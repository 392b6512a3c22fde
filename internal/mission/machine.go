// Package mission applies telemetry and control actions to the live mission
// status and broadcasts the outcome to the affected rooms.
//
// Handlers never answer the sender directly. A sender learns that its event
// was applied by receiving the broadcast back in the room it joined.
package mission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"droneSurveyManagement/models"
	"droneSurveyManagement/repository"
)

// StatusStore is the subset of the mission status repository the machine uses.
type StatusStore interface {
	GetByMissionID(ctx context.Context, missionID string) (*models.MissionStatus, error)
	Upsert(ctx context.Context, missionID string, p repository.StatusPatch) (*models.MissionStatus, error)
	FinishExecution(ctx context.Context, missionID, droneID string, state models.MissionState, progress float64, eta *float64) (*models.MissionStatus, error)
	Reset(ctx context.Context, missionID string) (*models.MissionStatus, error)
	Transition(ctx context.Context, missionID string, droneID *string, from, to models.MissionState) (*models.MissionStatus, error)
}

// DroneStore is the subset of the drone repository the machine uses.
type DroneStore interface {
	ApplyUpdate(ctx context.Context, id string, p repository.DronePatch) (before, after *models.Drone, err error)
	Release(ctx context.Context, droneID, missionID string) (bool, error)
}

// Publisher delivers an event to every connection in a room.
type Publisher interface {
	Publish(room, event string, data any) error
}

// Rooms maps entities to their rooms.
type Rooms interface {
	Drone(droneID string) string
	Mission(missionID string) string
}

// Machine handles inbound real-time events. It keeps no state between calls.
type Machine struct {
	statuses StatusStore
	drones   DroneStore
	reporter *Reporter
	pub      Publisher
	rooms    Rooms
	log      *slog.Logger
}

// NewMachine wires the machine to its stores and the room publisher.
func NewMachine(statuses StatusStore, drones DroneStore, reporter *Reporter, pub Publisher, rooms Rooms, log *slog.Logger) *Machine {
	return &Machine{statuses: statuses, drones: drones, reporter: reporter, pub: pub, rooms: rooms, log: log.With("component", "mission")}
}

// HandleProgress applies drone telemetry. A terminal status carrying the drone,
// duration, distance and a non-zero progress finalizes the execution into a
// report and resets the mission for its next run; a repeated terminal frame for
// a mission that was already reset is ignored.
func (m *Machine) HandleProgress(ctx context.Context, p ProgressUpdate) error {
	if err := check(p); err != nil {
		return err
	}
	progress := *p.Progress
	reportable := p.DroneID != "" && p.Duration != nil && p.Distance != nil && progress != 0

	switch {
	case p.Status.Terminal() && reportable:
		done, err := m.finish(ctx, p)
		if err != nil || !done {
			return err
		}
	default:
		if p.Status.Terminal() {
			m.log.Warn("terminal telemetry without report data; report skipped",
				"mission_id", p.MissionID, "status", p.Status)
		}
		patch := repository.StatusPatch{State: &p.Status, Progress: p.Progress, ETA: p.ETA}
		if p.DroneID != "" {
			patch.DroneID = &p.DroneID
		}
		if _, err := m.statuses.Upsert(ctx, p.MissionID, patch); err != nil {
			return m.storeErr("persist progress", p.MissionID, err)
		}
	}

	out := MissionProgressOutbound{
		MissionID: p.MissionID,
		Progress:  progress,
		Duration:  p.Duration,
		Distance:  p.Distance,
		ETA:       p.ETA,
		Status:    p.Status,
	}
	if p.DroneID != "" {
		m.publish(m.rooms.Drone(p.DroneID), EventMissionProgressUpdate, out)
	}
	m.publish(m.rooms.Mission(p.MissionID), EventProgressUpdate, out)
	return nil
}

// finish claims the execution, writes the report, resets the mission and
// releases the drone. It reports false when the frame was a repeat (or named
// a drone the mission is not bound to) and nothing was done.
func (m *Machine) finish(ctx context.Context, p ProgressUpdate) (bool, error) {
	st, err := m.statuses.FinishExecution(ctx, p.MissionID, p.DroneID, p.Status, *p.Progress, p.ETA)
	if err != nil {
		return false, m.storeErr("record terminal status", p.MissionID, err)
	}
	if st == nil {
		cur, err := m.statuses.GetByMissionID(ctx, p.MissionID)
		if err != nil {
			return false, m.storeErr("read mission status", p.MissionID, err)
		}
		if cur == nil {
			m.log.Warn("telemetry for unknown mission", "mission_id", p.MissionID)
			return false, fmt.Errorf("mission %s: %w", p.MissionID, ErrNotFound)
		}
		m.log.Info("terminal telemetry ignored; execution already finalized or bound elsewhere",
			"mission_id", p.MissionID, "drone_id", p.DroneID, "status", cur.State)
		return false, nil
	}

	if _, err := m.reporter.Generate(ctx, ReportInput{
		MissionID: p.MissionID,
		DroneID:   p.DroneID,
		Duration:  *p.Duration,
		Distance:  *p.Distance,
		Progress:  *p.Progress,
	}); err != nil {
		// Hand the execution back to the drone so a resent frame retries the report.
		if _, rerr := m.statuses.Upsert(context.WithoutCancel(ctx), p.MissionID, repository.StatusPatch{DroneID: &p.DroneID}); rerr != nil {
			m.log.Error("restore drone after report failure", "mission_id", p.MissionID, "err", rerr)
		}
		return false, m.storeErr("generate report", p.MissionID, err)
	}
	if _, err := m.statuses.Reset(ctx, p.MissionID); err != nil {
		return false, m.storeErr("reset mission status", p.MissionID, err)
	}
	m.release(ctx, p.DroneID, p.MissionID)
	return true, nil
}

// release frees the drone of a finalized execution. A drone that already
// moved on to another mission is left alone.
func (m *Machine) release(ctx context.Context, droneID, missionID string) {
	released, err := m.drones.Release(ctx, droneID, missionID)
	if err != nil {
		m.log.Error("release drone", "drone_id", droneID, "mission_id", missionID, "err", err)
		return
	}
	if !released {
		return
	}
	m.log.Info("drone released", "drone_id", droneID, "mission_id", missionID)
	m.publish(m.rooms.Drone(droneID), EventMissionUnlinked, MissionUnlinked{
		DroneID:           droneID,
		PreviousMissionID: missionID,
	})
}

// HandleMissionProgress applies a mission-namespace progress report.
func (m *Machine) HandleMissionProgress(ctx context.Context, p MissionProgress) error {
	if err := check(p); err != nil {
		return err
	}
	if _, err := m.statuses.Upsert(ctx, p.MissionID, repository.StatusPatch{Progress: p.Progress, ETA: p.ETA}); err != nil {
		return m.storeErr("persist progress", p.MissionID, err)
	}
	m.publish(m.rooms.Mission(p.MissionID), EventProgressUpdate, p)
	return nil
}

// HandleStatusUpdate applies a mission-namespace status report as given.
// Reports are only produced from drone telemetry.
func (m *Machine) HandleStatusUpdate(ctx context.Context, p StatusUpdate) error {
	if err := check(p); err != nil {
		return err
	}
	if p.Status.Terminal() {
		m.log.Warn("terminal status without telemetry; no report will be generated",
			"mission_id", p.MissionID, "status", p.Status)
	}
	if _, err := m.statuses.Upsert(ctx, p.MissionID, repository.StatusPatch{State: &p.Status}); err != nil {
		return m.storeErr("persist status", p.MissionID, err)
	}
	m.publish(m.rooms.Mission(p.MissionID), EventStatusUpdate, p)
	return nil
}

// ActionScope selects which rooms hear about an applied action.
type ActionScope int

const (
	// ScopeDrone broadcasts to the drone room of the request's drone.
	ScopeDrone ActionScope = iota
	// ScopeMission broadcasts to the mission room.
	ScopeMission
)

// HandleAction applies a control action after checking it against the
// transition table. The write is conditional on the state that was read and,
// when a drone is named, on that drone being bound, so a concurrent writer
// makes it fail instead of being overwritten.
func (m *Machine) HandleAction(ctx context.Context, req ActionRequest, scope ActionScope) (*models.MissionStatus, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	action, err := ActionFor(req.Action)
	if err != nil {
		return nil, err
	}
	cur, err := m.statuses.GetByMissionID(ctx, req.MissionID)
	if err != nil {
		return nil, m.storeErr("read mission status", req.MissionID, err)
	}
	if cur == nil {
		m.log.Warn("action for unknown mission", "mission_id", req.MissionID, "action", action)
		return nil, fmt.Errorf("mission %s: %w", req.MissionID, ErrNotFound)
	}
	next, err := Transition(cur.State, action)
	if err != nil {
		m.log.Warn("action rejected", "mission_id", req.MissionID, "action", action, "status", cur.State)
		return nil, err
	}

	var droneID *string
	if req.DroneID != "" {
		droneID = &req.DroneID
	}
	st, err := m.statuses.Transition(ctx, req.MissionID, droneID, cur.State, next)
	if err != nil {
		return nil, m.storeErr("apply action", req.MissionID, err)
	}
	if st == nil {
		m.log.Warn("no mission status matched action", "mission_id", req.MissionID, "drone_id", req.DroneID, "action", action)
		return nil, fmt.Errorf("mission %s with drone %q in %s: %w", req.MissionID, req.DroneID, cur.State, ErrNotFound)
	}
	m.log.Info("mission action applied", "mission_id", req.MissionID, "action", action, "status", st.State)

	out := ActionOutbound{MissionID: st.MissionID, DroneID: st.DroneID, Action: action, Status: st.State}
	switch scope {
	case ScopeDrone:
		if req.DroneID != "" {
			m.publish(m.rooms.Drone(req.DroneID), EventMissionAction, out)
		}
	case ScopeMission:
		m.publish(m.rooms.Mission(req.MissionID), EventMissionAction, out)
	}
	return st, nil
}

func (m *Machine) publish(room, event string, data any) {
	if err := m.pub.Publish(room, event, data); err != nil {
		m.log.Warn("publish failed", "event", event, "err", err)
	}
}

func (m *Machine) storeErr(op, missionID string, err error) error {
	if errors.Is(err, repository.ErrMissionNotFound) {
		m.log.Warn(op+": mission not found", "mission_id", missionID)
		return fmt.Errorf("%s: mission %s: %w", op, missionID, ErrNotFound)
	}
	m.log.Error(op+" failed", "mission_id", missionID, "err", err)
	return fmt.Errorf("%s: %w", op, err)
}
