package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"droneSurveyManagement/models"
)

// DroneRepository stores survey drones. Every mutation that touches the
// status/current-mission pairing is a single conditional statement or runs
// inside one transaction.
type DroneRepository struct {
	db *sql.DB
}

// NewDroneRepository creates a new DroneRepository.
func NewDroneRepository(db *sql.DB) *DroneRepository {
	return &DroneRepository{db: db}
}

const droneColumns = `id, name, location, status, battery_level, is_active, current_mission_id, created_at, updated_at`

// eligibleDrone is the predicate a drone must satisfy to be bound to a mission.
const eligibleDrone = `status = 'available' AND battery_level > 50 AND is_active = 1 AND current_mission_id IS NULL`

// Create validates and inserts a new drone. Status defaults to available.
func (r *DroneRepository) Create(ctx context.Context, d *models.Drone) (*models.Drone, error) {
	if d == nil {
		return nil, errors.New("drone is nil")
	}
	if d.Status == "" {
		d.Status = models.DroneStatusAvailable
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	d.CreatedAt, d.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx, `INSERT INTO drones (`+droneColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		d.ID, d.Name, d.Location, string(d.Status), d.BatteryLevel, d.IsActive, nullString(d.CurrentMissionID), toMillis(now), toMillis(now))
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetByID fetches a drone. It returns nil, nil when absent.
func (r *DroneRepository) GetByID(ctx context.Context, id string) (*models.Drone, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	d, err := scanDrone(r.db.QueryRowContext(ctx, `SELECT `+droneColumns+` FROM drones WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

// ListDronesParams filters List.
type ListDronesParams struct {
	Status   *models.DroneStatus
	PageSize int
	Offset   int
}

// List returns drones ordered by creation time, then id.
func (r *DroneRepository) List(ctx context.Context, p ListDronesParams) ([]*models.Drone, error) {
	if p.PageSize <= 0 || p.PageSize > 100 {
		p.PageSize = 100
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `SELECT ` + droneColumns + ` FROM drones`
	args := []any{}
	if p.Status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*p.Status))
	}
	query += ` ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`
	args = append(args, p.PageSize, p.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Drone
	for rows.Next() {
		d, err := scanDrone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// FindEligible returns the first drone that may be bound to a mission, in
// creation order. It returns nil, nil when none qualifies.
func (r *DroneRepository) FindEligible(ctx context.Context) (*models.Drone, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	d, err := scanDrone(r.db.QueryRowContext(ctx, `SELECT `+droneColumns+` FROM drones WHERE `+eligibleDrone+` ORDER BY created_at ASC, id ASC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

// Claim binds the drone to missionID and moves it in-mission, but only while
// the drone is still eligible. It reports false when another writer got there
// first or the drone no longer exists.
func (r *DroneRepository) Claim(ctx context.Context, droneID, missionID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `UPDATE drones SET current_mission_id = ?, status = ?, updated_at = ? WHERE id = ? AND `+eligibleDrone,
		missionID, string(models.DroneStatusInMission), toMillis(time.Now()), droneID)
	if err != nil {
		return false, err
	}
	return rowsApplied(res)
}

// Release unbinds the drone from missionID and makes it available again.
// Nothing happens if the drone is bound to a different mission.
func (r *DroneRepository) Release(ctx context.Context, droneID, missionID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `UPDATE drones SET current_mission_id = NULL, status = ?, updated_at = ? WHERE id = ? AND current_mission_id = ?`,
		string(models.DroneStatusAvailable), toMillis(time.Now()), droneID, missionID)
	if err != nil {
		return false, err
	}
	return rowsApplied(res)
}

// DronePatch is a partial drone update. Nil fields are left untouched.
// CurrentMissionSet distinguishes "set to null" from "not provided".
type DronePatch struct {
	Location          *string
	Status            *models.DroneStatus
	BatteryLevel      *float64
	IsActive          *bool
	CurrentMissionSet bool
	CurrentMissionID  *string
}

// ApplyUpdate applies a partial update and returns the drone before and after.
// When only one half of the status/current-mission pair is given the other is
// derived so the pairing invariant holds. It returns nil, nil, nil when the
// drone does not exist.
func (r *DroneRepository) ApplyUpdate(ctx context.Context, id string, p DronePatch) (before, after *models.Drone, err error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	before, err = scanDrone(tx.QueryRowContext(ctx, `SELECT `+droneColumns+` FROM drones WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		_ = tx.Rollback()
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	next := *before
	if p.Location != nil {
		next.Location = *p.Location
	}
	if p.BatteryLevel != nil {
		next.BatteryLevel = *p.BatteryLevel
	}
	if p.IsActive != nil {
		next.IsActive = *p.IsActive
	}
	if p.Status != nil {
		next.Status = *p.Status
	}
	if p.CurrentMissionSet {
		next.CurrentMissionID = p.CurrentMissionID
	}
	switch {
	case p.CurrentMissionSet && p.Status == nil:
		if next.CurrentMissionID == nil && next.Status == models.DroneStatusInMission {
			next.Status = models.DroneStatusAvailable
		} else if next.CurrentMissionID != nil {
			next.Status = models.DroneStatusInMission
		}
	case p.Status != nil && !p.CurrentMissionSet && next.Status != models.DroneStatusInMission:
		next.CurrentMissionID = nil
	}
	if err = next.Validate(); err != nil {
		return nil, nil, err
	}
	next.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)

	_, err = tx.ExecContext(ctx, `UPDATE drones SET location = ?, status = ?, battery_level = ?, is_active = ?, current_mission_id = ?, updated_at = ? WHERE id = ?`,
		next.Location, string(next.Status), next.BatteryLevel, next.IsActive, nullString(next.CurrentMissionID), toMillis(next.UpdatedAt), id)
	if err != nil {
		return nil, nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, nil, err
	}
	return before, &next, nil
}

// Delete removes a drone.
func (r *DroneRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `DELETE FROM drones WHERE id = ?`, id)
	return err
}

func scanDrone(row rowScanner) (*models.Drone, error) {
	var (
		d                    models.Drone
		status               string
		current              sql.NullString
		createdAt, updatedAt int64
	)
	if err := row.Scan(&d.ID, &d.Name, &d.Location, &status, &d.BatteryLevel, &d.IsActive, &current, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	d.Status = models.DroneStatus(status)
	d.CurrentMissionID = stringPtr(current)
	d.CreatedAt = fromMillis(createdAt)
	d.UpdatedAt = fromMillis(updatedAt)
	return &d, nil
}
