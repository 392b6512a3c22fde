// Package assign binds eligible drones to due missions.
//
// A bind touches two records. The mission status is claimed first with a
// conditional update, then the drone. If the drone side does not apply the
// mission status is reverted, so no observer is left with a mission that is
// starting without the drone agreeing to it.
package assign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"droneSurveyManagement/models"
)

var (
	// ErrNoEligibleDrone means no drone currently satisfies the eligibility predicate.
	ErrNoEligibleDrone = errors.New("no eligible drone")
	// ErrMissionNotDue means the mission was bound or moved on by another writer.
	ErrMissionNotDue = errors.New("mission is no longer waiting for a drone")
	// ErrDroneUnavailable means the chosen drone was taken or changed before it could be claimed.
	ErrDroneUnavailable = errors.New("drone no longer available")
)

// EventStartMission is published to the drone room after a successful bind.
const EventStartMission = "start_mission"

// DroneStore is the drone side of a bind.
type DroneStore interface {
	FindEligible(ctx context.Context) (*models.Drone, error)
	Claim(ctx context.Context, droneID, missionID string) (bool, error)
}

// StatusStore is the mission status side of a bind.
type StatusStore interface {
	MarkStarting(ctx context.Context, missionID, droneID string) (*models.MissionStatus, error)
	Revert(ctx context.Context, missionID, droneID string) (bool, error)
}

// Publisher delivers an event to every connection in a room.
type Publisher interface {
	Publish(room, event string, data any) error
}

// RoomResolver maps a drone to its room.
type RoomResolver interface {
	Drone(droneID string) string
}

// StartMission is the start_mission payload.
type StartMission struct {
	MissionID              string              `json:"missionId"`
	Status                 models.MissionState `json:"status"`
	Progress               float64             `json:"progress"`
	EstimatedTimeRemaining *float64            `json:"estimatedTimeRemaining"`
}

// Result describes a successful bind.
type Result struct {
	MissionID string
	DroneID   string
	Status    *models.MissionStatus
}

// Engine performs binds. It holds no per-mission state and is safe for
// concurrent use; exclusivity comes from the conditional store writes.
type Engine struct {
	drones   DroneStore
	statuses StatusStore
	pub      Publisher
	rooms    RoomResolver
	log      *slog.Logger
}

// NewEngine wires the assignment engine to its stores and publisher.
func NewEngine(drones DroneStore, statuses StatusStore, pub Publisher, rooms RoomResolver, log *slog.Logger) *Engine {
	return &Engine{drones: drones, statuses: statuses, pub: pub, rooms: rooms, log: log.With("component", "assign")}
}

// Assign binds one eligible drone to missionID and notifies the drone.
// It returns ErrNoEligibleDrone, ErrMissionNotDue or ErrDroneUnavailable when
// the bind could not happen; in every such case the store is unchanged.
func (e *Engine) Assign(ctx context.Context, missionID string) (*Result, error) {
	drone, err := e.drones.FindEligible(ctx)
	if err != nil {
		return nil, fmt.Errorf("find eligible drone: %w", err)
	}
	if drone == nil {
		return nil, ErrNoEligibleDrone
	}

	st, err := e.statuses.MarkStarting(ctx, missionID, drone.ID)
	if err != nil {
		return nil, fmt.Errorf("mark mission %s starting: %w", missionID, err)
	}
	if st == nil {
		return nil, ErrMissionNotDue
	}

	won, err := e.drones.Claim(ctx, drone.ID, missionID)
	if err != nil || !won {
		e.revert(ctx, missionID, drone.ID)
		if err != nil {
			return nil, fmt.Errorf("claim drone %s: %w", drone.ID, errors.Join(ErrDroneUnavailable, err))
		}
		return nil, ErrDroneUnavailable
	}

	e.log.Info("drone bound to mission", "mission_id", missionID, "drone_id", drone.ID)
	payload := StartMission{
		MissionID:              missionID,
		Status:                 st.State,
		Progress:               st.Progress,
		EstimatedTimeRemaining: st.EstimatedTimeRemaining,
	}
	if err := e.pub.Publish(e.rooms.Drone(drone.ID), EventStartMission, payload); err != nil {
		// State is already durable, so the bind stands.
		e.log.Warn("publish start_mission failed", "mission_id", missionID, "drone_id", drone.ID, "err", err)
	}
	return &Result{MissionID: missionID, DroneID: drone.ID, Status: st}, nil
}

// revert runs on a context that survives the caller's cancellation so a
// half-bound mission is not left behind.
func (e *Engine) revert(ctx context.Context, missionID, droneID string) {
	ok, err := e.statuses.Revert(context.WithoutCancel(ctx), missionID, droneID)
	switch {
	case err != nil:
		e.log.Error("revert mission status failed", "mission_id", missionID, "drone_id", droneID, "err", err)
	case !ok:
		e.log.Warn("revert found mission already moved on", "mission_id", missionID, "drone_id", droneID)
	default:
		e.log.Info("mission status reverted after failed drone claim", "mission_id", missionID, "drone_id", droneID)
	}
}
