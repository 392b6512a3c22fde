package mission

import (
	"context"
	"log/slog"

	"droneSurveyManagement/models"
)

// CompletionThreshold is the minimum final progress for a completed report.
const CompletionThreshold = 85

// Classify maps final progress to a report outcome. The terminal status that
// triggered the report does not matter.
func Classify(progress float64) models.ReportOutcome {
	if progress >= CompletionThreshold {
		return models.ReportCompleted
	}
	return models.ReportFailed
}

// ReportStore persists reports.
type ReportStore interface {
	Create(ctx context.Context, rep *models.SurveyReport) (*models.SurveyReport, error)
}

// MissionLookup resolves mission definitions.
type MissionLookup interface {
	GetByID(ctx context.Context, id string) (*models.Mission, error)
}

// ReportInput is the final telemetry of an execution.
type ReportInput struct {
	MissionID string
	DroneID   string
	Duration  float64
	Distance  float64
	Progress  float64
}

// Reporter turns final telemetry into a stored SurveyReport.
type Reporter struct {
	reports  ReportStore
	missions MissionLookup
	log      *slog.Logger
}

// NewReporter creates a Reporter. missions may be nil, in which case planned distance is left at zero.
func NewReporter(reports ReportStore, missions MissionLookup, log *slog.Logger) *Reporter {
	return &Reporter{reports: reports, missions: missions, log: log.With("component", "reporter")}
}

// Generate classifies and stores the report. The planned distance of the
// mission's flight path is recorded alongside the flown distance when the
// mission can be read.
func (r *Reporter) Generate(ctx context.Context, in ReportInput) (*models.SurveyReport, error) {
	rep := &models.SurveyReport{
		MissionID: in.MissionID,
		DroneID:   in.DroneID,
		Duration:  in.Duration,
		Distance:  in.Distance,
		Coverage:  in.Progress,
		Status:    Classify(in.Progress),
	}
	if r.missions != nil {
		m, err := r.missions.GetByID(ctx, in.MissionID)
		switch {
		case err != nil:
			r.log.Warn("planned distance unavailable", "mission_id", in.MissionID, "err", err)
		case m != nil:
			rep.PlannedDistance = m.PlannedDistance()
		}
	}
	saved, err := r.reports.Create(ctx, rep)
	if err != nil {
		return nil, err
	}
	r.log.Info("survey report generated", "mission_id", saved.MissionID, "drone_id", saved.DroneID,
		"report_id", saved.ID, "status", saved.Status, "coverage", saved.Coverage)
	return saved, nil
}
