package models

import "time"

// DroneStatus represents the operational status of a survey drone.
type DroneStatus string

const (
	DroneStatusAvailable   DroneStatus = "available"
	DroneStatusInMission   DroneStatus = "in-mission"
	DroneStatusMaintenance DroneStatus = "maintenance"
)

// Valid reports whether s is one of the known drone statuses.
func (s DroneStatus) Valid() bool {
	switch s {
	case DroneStatusAvailable, DroneStatusInMission, DroneStatusMaintenance:
		return true
	}
	return false
}

// MinAssignableBattery is the battery level a drone must exceed to be assigned a mission.
const MinAssignableBattery = 50

// Drone represents a survey drone.
// CurrentMissionID is non-nil iff Status is in-mission.
type Drone struct {
	ID               string      `db:"id" json:"id"`
	Name             string      `db:"name" json:"name"`
	Location         string      `db:"location" json:"location"`
	Status           DroneStatus `db:"status" json:"status"`
	BatteryLevel     float64     `db:"battery_level" json:"batteryLevel"`
	IsActive         bool        `db:"is_active" json:"isActive"`
	CurrentMissionID *string     `db:"current_mission_id" json:"currentMissionId"`
	CreatedAt        time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updatedAt"`
}

// Eligible reports whether the drone may be bound to a new mission.
func (d *Drone) Eligible() bool {
	return d != nil &&
		d.Status == DroneStatusAvailable &&
		d.BatteryLevel > MinAssignableBattery &&
		d.IsActive &&
		d.CurrentMissionID == nil
}
