package models

import "time"

// ReportOutcome classifies a finished survey execution.
type ReportOutcome string

const (
	ReportCompleted ReportOutcome = "completed"
	ReportFailed    ReportOutcome = "failed"
)

// SurveyReport is an immutable record of one finished execution.
type SurveyReport struct {
	ID              string        `db:"id" json:"id"`
	MissionID       string        `db:"mission_id" json:"missionId"`
	DroneID         string        `db:"drone_id" json:"droneId"`
	Duration        float64       `db:"duration" json:"duration"`
	Distance        float64       `db:"distance" json:"distance"`
	PlannedDistance float64       `db:"planned_distance" json:"plannedDistance"`
	Coverage        float64       `db:"coverage" json:"coverage"`
	Status          ReportOutcome `db:"status" json:"status"`
	GeneratedAt     time.Time     `db:"generated_at" json:"generatedAt"`
}
