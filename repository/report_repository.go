package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"droneSurveyManagement/models"
)

// ReportRepository stores survey reports. Reports are append-only.
type ReportRepository struct {
	db *sql.DB
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = `id, mission_id, drone_id, duration, distance, planned_distance, coverage, status, generated_at`

// Create inserts a report, assigning its ID and generation time when unset.
func (r *ReportRepository) Create(ctx context.Context, rep *models.SurveyReport) (*models.SurveyReport, error) {
	if rep == nil {
		return nil, errors.New("report is nil")
	}
	if rep.MissionID == "" || rep.DroneID == "" {
		return nil, errors.New("report requires mission and drone")
	}
	if rep.ID == "" {
		rep.ID = uuid.NewString()
	}
	if rep.GeneratedAt.IsZero() {
		rep.GeneratedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `INSERT INTO survey_reports (`+reportColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		rep.ID, rep.MissionID, rep.DroneID, rep.Duration, rep.Distance, rep.PlannedDistance, rep.Coverage, string(rep.Status), toMillis(rep.GeneratedAt))
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// GetByID fetches a report, or nil, nil.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.SurveyReport, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rep, err := scanReport(r.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM survey_reports WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rep, err
}

// ListByMission returns the reports of a mission, newest first.
func (r *ReportRepository) ListByMission(ctx context.Context, missionID string) ([]*models.SurveyReport, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT `+reportColumns+` FROM survey_reports WHERE mission_id = ? ORDER BY generated_at DESC, id DESC`, missionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.SurveyReport
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func scanReport(row rowScanner) (*models.SurveyReport, error) {
	var rep models.SurveyReport
	var status string
	var generatedAt int64
	if err := row.Scan(&rep.ID, &rep.MissionID, &rep.DroneID, &rep.Duration, &rep.Distance, &rep.PlannedDistance, &rep.Coverage, &status, &generatedAt); err != nil {
		return nil, err
	}
	rep.Status = models.ReportOutcome(status)
	rep.GeneratedAt = fromMillis(generatedAt)
	return &rep, nil
}
