package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"droneSurveyManagement/models"
)

// MissionRepository stores mission definitions.
type MissionRepository struct {
	db *sql.DB
}

// NewMissionRepository creates a new MissionRepository.
func NewMissionRepository(db *sql.DB) *MissionRepository {
	return &MissionRepository{db: db}
}

const missionColumns = `m.id, m.name, m.location, m.flight_path, m.pattern, m.sensors, m.altitude, m.overlap,
       m.data_collection_frequency, m.schedule_type, m.schedule_date, m.schedule_cron, m.created_by, m.created_at`

// Create validates and inserts a mission together with its not_started status record.
func (r *MissionRepository) Create(ctx context.Context, m *models.Mission) (*models.Mission, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	path, sensors, err := encodeMissionLists(m)
	if err != nil {
		return nil, err
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	truncateSchedule(m)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO missions (id, name, location, flight_path, pattern, sensors, altitude, overlap,
        data_collection_frequency, schedule_type, schedule_date, schedule_cron, created_by, created_at)
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.Name, m.Location, path, string(m.Pattern), sensors, m.Altitude, m.Overlap,
		m.DataCollectionFrequency, string(m.Schedule.Type), scheduleDate(m.Schedule), nullCron(m.Schedule), nullString(m.CreatedBy), toMillis(m.CreatedAt))
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO mission_status (id, mission_id, status, progress, last_updated) VALUES (?,?,?,0,?)`,
		uuid.NewString(), m.ID, string(models.MissionNotStarted), toMillis(m.CreatedAt))
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return m, nil
}

// GetByID fetches a mission by its ID. It returns nil, nil when absent.
func (r *MissionRepository) GetByID(ctx context.Context, id string) (*models.Mission, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	m, err := scanMission(r.db.QueryRowContext(ctx, `SELECT `+missionColumns+` FROM missions m WHERE m.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// List returns missions ordered by creation time.
func (r *MissionRepository) List(ctx context.Context, limit, offset int) ([]*models.Mission, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT `+missionColumns+` FROM missions m ORDER BY m.created_at ASC, m.id ASC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateByOwner replaces the mission definition if ownerID created it.
// It reports false when the mission does not exist or belongs to someone else.
func (r *MissionRepository) UpdateByOwner(ctx context.Context, ownerID string, m *models.Mission) (bool, error) {
	if err := m.Validate(); err != nil {
		return false, err
	}
	path, sensors, err := encodeMissionLists(m)
	if err != nil {
		return false, err
	}
	truncateSchedule(m)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `UPDATE missions SET name = ?, location = ?, flight_path = ?, pattern = ?, sensors = ?, altitude = ?,
        overlap = ?, data_collection_frequency = ?, schedule_type = ?, schedule_date = ?, schedule_cron = ?
        WHERE id = ? AND created_by = ?`,
		m.Name, m.Location, path, string(m.Pattern), sensors, m.Altitude, m.Overlap, m.DataCollectionFrequency,
		string(m.Schedule.Type), scheduleDate(m.Schedule), nullCron(m.Schedule), m.ID, ownerID)
	if err != nil {
		return false, err
	}
	return rowsApplied(res)
}

// Delete removes a mission and its status record, releasing any drone still bound to it.
// It reports whether the mission existed.
func (r *MissionRepository) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE drones SET current_mission_id = NULL, status = ?, updated_at = ? WHERE current_mission_id = ?`,
		string(models.DroneStatusAvailable), toMillis(time.Now()), id); err != nil {
		_ = tx.Rollback()
		return false, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM missions WHERE id = ?`, id)
	if err != nil {
		_ = tx.Rollback()
		return false, err
	}
	ok, err := rowsApplied(res)
	if err != nil {
		_ = tx.Rollback()
		return false, err
	}
	return ok, tx.Commit()
}

func encodeMissionLists(m *models.Mission) (string, string, error) {
	path, err := json.Marshal(m.FlightPath)
	if err != nil {
		return "", "", fmt.Errorf("encode flight path: %w", err)
	}
	sensors, err := json.Marshal(m.Sensors)
	if err != nil {
		return "", "", fmt.Errorf("encode sensors: %w", err)
	}
	return string(path), string(sensors), nil
}

// truncateSchedule drops sub-millisecond precision so the stored date reads back unchanged.
func truncateSchedule(m *models.Mission) {
	if m.Schedule.Date != nil {
		d := m.Schedule.Date.UTC().Truncate(time.Millisecond)
		m.Schedule.Date = &d
	}
}

func scheduleDate(s models.Schedule) any {
	if s.Type != models.ScheduleOneTime || s.Date == nil {
		return nil
	}
	return toMillis(*s.Date)
}

func nullCron(s models.Schedule) any {
	if s.Cron == "" {
		return nil
	}
	return s.Cron
}

// scanMission reads the columns listed in missionColumns.
func scanMission(row rowScanner) (*models.Mission, error) {
	var (
		m                    models.Mission
		path, sensors        string
		pattern, schedType   string
		schedDate            sql.NullInt64
		schedCron, createdBy sql.NullString
		createdAt            int64
	)
	if err := row.Scan(&m.ID, &m.Name, &m.Location, &path, &pattern, &sensors, &m.Altitude, &m.Overlap,
		&m.DataCollectionFrequency, &schedType, &schedDate, &schedCron, &createdBy, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(path), &m.FlightPath); err != nil {
		return nil, fmt.Errorf("decode flight path of %s: %w", m.ID, err)
	}
	if err := json.Unmarshal([]byte(sensors), &m.Sensors); err != nil {
		return nil, fmt.Errorf("decode sensors of %s: %w", m.ID, err)
	}
	m.Pattern = models.Pattern(pattern)
	m.Schedule.Type = models.ScheduleType(schedType)
	if schedDate.Valid {
		d := fromMillis(schedDate.Int64)
		m.Schedule.Date = &d
	}
	m.Schedule.Cron = schedCron.String
	m.CreatedBy = stringPtr(createdBy)
	m.CreatedAt = fromMillis(createdAt)
	return &m, nil
}
