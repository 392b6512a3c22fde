package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"droneSurveyManagement/models"
)

func seedMission(t *testing.T, d *sql.DB, mutate func(m *models.Mission)) *models.Mission {
	t.Helper()
	due := time.Now().Add(-time.Minute).UTC()
	m := &models.Mission{
		Name:                    "survey " + t.Name(),
		Location:                "field",
		FlightPath:              []models.Waypoint{{Lat: 10, Lng: 10, Altitude: 40}, {Lat: 10.01, Lng: 10, Altitude: 40}},
		Pattern:                 models.PatternPerimeter,
		Sensors:                 []string{"rgb", "thermal"},
		Altitude:                40,
		Overlap:                 60,
		DataCollectionFrequency: 2,
		Schedule:                models.Schedule{Type: models.ScheduleOneTime, Date: &due},
	}
	if mutate != nil {
		mutate(m)
	}
	created, err := NewMissionRepository(d).Create(context.Background(), m)
	if err != nil {
		t.Fatalf("create mission: %v", err)
	}
	return created
}

func seedDrone(t *testing.T, d *sql.DB, name string, battery float64, active bool, status models.DroneStatus) *models.Drone {
	t.Helper()
	dr, err := NewDroneRepository(d).Create(context.Background(), &models.Drone{
		Name: name, Location: "hangar", Status: status, BatteryLevel: battery, IsActive: active,
	})
	if err != nil {
		t.Fatalf("create drone %s: %v", name, err)
	}
	return dr
}
