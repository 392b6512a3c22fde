package models

import "time"

// MissionState is the live execution state of a mission.
type MissionState string

const (
	MissionNotStarted MissionState = "not_started"
	MissionStarting   MissionState = "starting"
	MissionInProgress MissionState = "in_progress"
	MissionPaused     MissionState = "paused"
	MissionCompleted  MissionState = "completed"
	MissionAborted    MissionState = "aborted"
)

// Terminal reports whether the state ends an execution.
func (s MissionState) Terminal() bool {
	return s == MissionCompleted || s == MissionAborted
}

// MissionStatus is the single mutable record of what is happening to a mission now.
// There is exactly one per mission. DroneID is set iff State is not not_started/completed.
type MissionStatus struct {
	ID                     string       `db:"id" json:"id"`
	MissionID              string       `db:"mission_id" json:"missionId"`
	DroneID                *string      `db:"drone_id" json:"droneId"`
	State                  MissionState `db:"status" json:"status"`
	Progress               float64      `db:"progress" json:"progress"`
	EstimatedTimeRemaining *float64     `db:"estimated_time_remaining" json:"estimatedTimeRemaining"`
	LastUpdated            time.Time    `db:"last_updated" json:"lastUpdated"`

	// Mission is populated by joined queries (due/idle listings).
	Mission *Mission `db:"-" json:"mission,omitempty"`
}
