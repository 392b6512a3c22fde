package mission

import (
	"context"
	"fmt"

	"droneSurveyManagement/repository"
)

// HandleDroneUpdate applies a partial drone update and broadcasts the new
// drone state. When the update explicitly clears the current mission of a
// drone that had one, mission_unlinked is broadcast as well.
func (m *Machine) HandleDroneUpdate(ctx context.Context, u DroneUpdate) error {
	if err := check(u); err != nil {
		return err
	}
	current, set, err := u.currentMission()
	if err != nil {
		return err
	}
	patch := repository.DronePatch{
		Status:            u.Status,
		BatteryLevel:      u.BatteryLevel,
		IsActive:          u.IsActive,
		CurrentMissionSet: set,
		CurrentMissionID:  current,
	}
	if u.Location != nil && *u.Location != "" {
		patch.Location = u.Location
	}

	before, after, err := m.drones.ApplyUpdate(ctx, u.DroneID, patch)
	if err != nil {
		m.log.Error("drone update failed", "drone_id", u.DroneID, "err", err)
		return fmt.Errorf("update drone %s: %w", u.DroneID, err)
	}
	if after == nil {
		m.log.Warn("update for unknown drone", "drone_id", u.DroneID)
		return fmt.Errorf("drone %s: %w", u.DroneID, ErrNotFound)
	}

	room := m.rooms.Drone(u.DroneID)
	m.publish(room, EventDroneUpdate, DroneUpdateOutbound{
		DroneID:          after.ID,
		Location:         after.Location,
		Status:           after.Status,
		BatteryLevel:     after.BatteryLevel,
		IsActive:         after.IsActive,
		CurrentMissionID: after.CurrentMissionID,
	})
	if set && current == nil && before.CurrentMissionID != nil {
		m.log.Info("drone unlinked from mission", "drone_id", u.DroneID, "previous_mission_id", *before.CurrentMissionID)
		m.publish(room, EventMissionUnlinked, MissionUnlinked{
			DroneID:           after.ID,
			PreviousMissionID: *before.CurrentMissionID,
		})
	}
	return nil
}

// RelayCoordinate forwards a drone position to its room unchanged.
func (m *Machine) RelayCoordinate(c DroneCoordinate) error {
	if err := check(c); err != nil {
		return err
	}
	m.publish(m.rooms.Drone(c.DroneID), EventDroneCoordinate, c.Coordinate)
	return nil
}

// RelayFlight forwards an opaque flight update to the mission room named by
// its missionId field.
func (m *Machine) RelayFlight(data map[string]any) error {
	id, _ := data["missionId"].(string)
	if id == "" {
		return fmt.Errorf("%w: flight_update requires missionId", ErrInvalidPayload)
	}
	m.publish(m.rooms.Mission(id), EventFlightUpdate, data)
	return nil
}
