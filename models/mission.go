package models

import (
	"time"

	"droneSurveyManagement/internal/geo"
)

// Pattern is the survey flight pattern.
type Pattern string

const (
	PatternCrosshatch Pattern = "crosshatch"
	PatternPerimeter  Pattern = "perimeter"
	PatternCustom     Pattern = "custom"
)

// ScheduleType distinguishes one-time from recurring missions.
type ScheduleType string

const (
	ScheduleOneTime   ScheduleType = "one-time"
	ScheduleRecurring ScheduleType = "recurring"
)

// Waypoint is a single point of a mission flight path.
type Waypoint struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Altitude float64 `json:"altitude"`
}

// Schedule describes when a mission runs.
// Date is set for one-time missions, Cron for recurring ones.
type Schedule struct {
	Type ScheduleType `json:"type"`
	Date *time.Time   `json:"date,omitempty"`
	Cron string       `json:"cron,omitempty"`
}

// Mission is the static definition of a survey mission.
type Mission struct {
	ID                      string     `db:"id" json:"id"`
	Name                    string     `db:"name" json:"name"`
	Location                string     `db:"location" json:"location"`
	FlightPath              []Waypoint `db:"flight_path" json:"flightPath"`
	Pattern                 Pattern    `db:"pattern" json:"pattern"`
	Sensors                 []string   `db:"sensors" json:"sensors"`
	Altitude                float64    `db:"altitude" json:"altitude"`
	Overlap                 float64    `db:"overlap" json:"overlap"`
	DataCollectionFrequency float64    `db:"data_collection_frequency" json:"dataCollectionFrequency"` // minutes
	Schedule                Schedule   `db:"schedule" json:"schedule"`
	CreatedBy               *string    `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt               time.Time  `db:"created_at" json:"createdAt"`
}

// PlannedDistance returns the length of the flight path in meters.
func (m *Mission) PlannedDistance() float64 {
	if m == nil || len(m.FlightPath) < 2 {
		return 0
	}
	total := 0.0
	for i := 1; i < len(m.FlightPath); i++ {
		a, b := m.FlightPath[i-1], m.FlightPath[i]
		total += geo.HaversineMeters(a.Lat, a.Lng, b.Lat, b.Lng)
	}
	return total
}
