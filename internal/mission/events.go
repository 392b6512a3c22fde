package mission

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"droneSurveyManagement/models"
)

var (
	// ErrInvalidPayload marks a malformed inbound event. The event is dropped.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrNotFound marks an event that references a mission or drone that does not exist,
	// or a status record that no longer matches.
	ErrNotFound = errors.New("not found")
)

// Outbound event names.
const (
	EventDroneUpdate           = "drone_update"
	EventMissionUnlinked       = "mission_unlinked"
	EventDroneCoordinate       = "drone_coordinate"
	EventMissionProgressUpdate = "mission_progress_update"
	EventMissionAction         = "mission_action"
	EventFlightUpdate          = "flight_update"
	EventProgressUpdate        = "progress_update"
	EventStatusUpdate          = "status_update"
)

var validate = validator.New()

func check(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// ProgressUpdate is drone telemetry. DroneID, Duration and Distance are only
// needed to produce a report on a terminal status.
type ProgressUpdate struct {
	MissionID string              `json:"missionId" validate:"required"`
	Progress  *float64            `json:"progress" validate:"required,gte=0,lte=100"`
	ETA       *float64            `json:"eta" validate:"required,gte=0"`
	Status    models.MissionState `json:"status" validate:"required,oneof=not_started starting in_progress paused completed aborted"`
	DroneID   string              `json:"droneId"`
	Duration  *float64            `json:"duration" validate:"omitempty,gt=0"`
	Distance  *float64            `json:"distance" validate:"omitempty,gt=0"`
}

// MissionProgressOutbound is broadcast after telemetry is persisted.
type MissionProgressOutbound struct {
	MissionID string              `json:"missionId"`
	Progress  float64             `json:"progress"`
	Duration  *float64            `json:"duration"`
	Distance  *float64            `json:"distance"`
	ETA       *float64            `json:"eta"`
	Status    models.MissionState `json:"status"`
}

// MissionProgress is a mission-namespace progress report.
type MissionProgress struct {
	MissionID string   `json:"missionId" validate:"required"`
	Progress  *float64 `json:"progress" validate:"required,gte=0,lte=100"`
	ETA       *float64 `json:"eta" validate:"omitempty,gte=0"`
}

// StatusUpdate is a mission-namespace status report.
type StatusUpdate struct {
	MissionID string              `json:"missionId" validate:"required"`
	Status    models.MissionState `json:"status" validate:"required,oneof=not_started starting in_progress paused completed aborted"`
}

// ActionRequest is a client control action. DroneID scopes the update to
// the bound drone when present.
type ActionRequest struct {
	DroneID   string `json:"droneId"`
	MissionID string `json:"missionId" validate:"required"`
	Action    string `json:"action" validate:"required"`
}

// ActionOutbound confirms an applied action.
type ActionOutbound struct {
	MissionID string              `json:"missionId"`
	DroneID   *string             `json:"droneId"`
	Action    Action              `json:"action"`
	Status    models.MissionState `json:"status"`
}

// DroneUpdate is drone self-reported state. CurrentMissionID keeps the raw
// JSON so an explicit null can be told apart from an absent field.
type DroneUpdate struct {
	DroneID          string              `json:"droneId" validate:"required"`
	Location         *string             `json:"location"`
	Status           *models.DroneStatus `json:"status" validate:"omitempty,oneof=available in-mission maintenance"`
	BatteryLevel     *float64            `json:"batteryLevel" validate:"omitempty,gte=0,lte=100"`
	IsActive         *bool               `json:"isActive"`
	CurrentMissionID json.RawMessage     `json:"currentMissionId"`
}

// currentMission decodes CurrentMissionID. set is false when the field was absent.
func (u DroneUpdate) currentMission() (id *string, set bool, err error) {
	if len(u.CurrentMissionID) == 0 {
		return nil, false, nil
	}
	if string(u.CurrentMissionID) == "null" {
		return nil, true, nil
	}
	var s string
	if err := json.Unmarshal(u.CurrentMissionID, &s); err != nil || s == "" {
		return nil, false, fmt.Errorf("%w: currentMissionId must be a string or null", ErrInvalidPayload)
	}
	return &s, true, nil
}

// DroneUpdateOutbound is the drone state broadcast after an update.
type DroneUpdateOutbound struct {
	DroneID          string             `json:"droneId"`
	Location         string             `json:"location"`
	Status           models.DroneStatus `json:"status"`
	BatteryLevel     float64            `json:"batteryLevel"`
	IsActive         bool               `json:"isActive"`
	CurrentMissionID *string            `json:"currentMissionId"`
}

// MissionUnlinked announces that a drone dropped its mission.
type MissionUnlinked struct {
	DroneID           string  `json:"droneId"`
	PreviousMissionID string  `json:"previousMissionId"`
	CurrentMissionID  *string `json:"currentMissionId"`
}

// DroneCoordinate is relayed to the drone room without interpretation.
type DroneCoordinate struct {
	DroneID    string `json:"droneId" validate:"required"`
	Coordinate any    `json:"coordinate" validate:"required"`
}
