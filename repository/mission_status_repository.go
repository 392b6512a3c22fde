package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"droneSurveyManagement/models"
)

// MissionStatusRepository stores the live status record of each mission.
// Writes are single conditional statements; callers learn whether a write
// applied from a nil record or a false result.
type MissionStatusRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewMissionStatusRepository creates a new MissionStatusRepository.
func NewMissionStatusRepository(db *sql.DB) *MissionStatusRepository {
	return &MissionStatusRepository{db: db, now: time.Now}
}

const statusColumns = `s.id, s.mission_id, s.drone_id, s.status, s.progress, s.estimated_time_remaining, s.last_updated`

const statusReturning = ` RETURNING id, mission_id, drone_id, status, progress, estimated_time_remaining, last_updated`

// GetByMissionID returns the status record of a mission, or nil, nil.
func (r *MissionStatusRepository) GetByMissionID(ctx context.Context, missionID string) (*models.MissionStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.one(r.db.QueryRowContext(ctx, `SELECT `+statusColumns+` FROM mission_status s WHERE s.mission_id = ?`, missionID))
}

// StatusPatch is a partial status write. Nil fields are left untouched on
// update and take their defaults on insert. DroneID only fills an empty slot.
type StatusPatch struct {
	State    *models.MissionState
	Progress *float64
	ETA      *float64
	DroneID  *string
}

// Upsert writes the patch, creating the record if the mission has none yet.
// It returns ErrMissionNotFound when the mission itself does not exist.
func (r *MissionStatusRepository) Upsert(ctx context.Context, missionID string, p StatusPatch) (*models.MissionStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	state := models.MissionNotStarted
	if p.State != nil {
		state = *p.State
	}
	progress := 0.0
	if p.Progress != nil {
		progress = *p.Progress
	}
	sets := []string{"last_updated = excluded.last_updated"}
	if p.State != nil {
		sets = append(sets, "status = excluded.status")
	}
	if p.Progress != nil {
		sets = append(sets, "progress = excluded.progress")
	}
	if p.ETA != nil {
		sets = append(sets, "estimated_time_remaining = excluded.estimated_time_remaining")
	}
	if p.DroneID != nil {
		sets = append(sets, "drone_id = COALESCE(mission_status.drone_id, excluded.drone_id)")
	}
	query := `INSERT INTO mission_status (id, mission_id, drone_id, status, progress, estimated_time_remaining, last_updated)
        VALUES (?,?,?,?,?,?,?)
        ON CONFLICT(mission_id) DO UPDATE SET ` + strings.Join(sets, ", ") + statusReturning

	st, err := r.one(r.db.QueryRowContext(ctx, query, uuid.NewString(), missionID, nullString(p.DroneID), string(state), progress, nullFloat(p.ETA), toMillis(r.now())))
	if isForeignKeyViolation(err) {
		return nil, ErrMissionNotFound
	}
	return st, err
}

// MarkStarting binds droneID to a mission that is still not_started with no
// drone. It returns nil, nil when the mission is no longer in that state.
func (r *MissionStatusRepository) MarkStarting(ctx context.Context, missionID, droneID string) (*models.MissionStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.one(r.db.QueryRowContext(ctx, `UPDATE mission_status SET drone_id = ?, status = ?, last_updated = ?
        WHERE mission_id = ? AND status = ? AND drone_id IS NULL`+statusReturning,
		droneID, string(models.MissionStarting), toMillis(r.now()), missionID, string(models.MissionNotStarted)))
}

// Revert undoes MarkStarting for droneID. It only touches a record that is
// still starting with that drone, so it never clobbers a newer write.
func (r *MissionStatusRepository) Revert(ctx context.Context, missionID, droneID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `UPDATE mission_status SET drone_id = NULL, status = ?, last_updated = ?
        WHERE mission_id = ? AND drone_id = ? AND status = ?`,
		string(models.MissionNotStarted), toMillis(r.now()), missionID, droneID, string(models.MissionStarting))
	if err != nil {
		return false, err
	}
	return rowsApplied(res)
}

// FinishExecution claims the running execution of droneID and records its
// terminal frame. The drone slot is cleared in the same statement, so of
// several frames for one execution only the first matches; the rest, and
// frames for a mission that is not_started or bound to another drone, get
// nil, nil.
func (r *MissionStatusRepository) FinishExecution(ctx context.Context, missionID, droneID string, state models.MissionState, progress float64, eta *float64) (*models.MissionStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.one(r.db.QueryRowContext(ctx, `UPDATE mission_status SET drone_id = NULL, status = ?, progress = ?, estimated_time_remaining = ?, last_updated = ?
        WHERE mission_id = ? AND drone_id = ? AND status <> ?`+statusReturning,
		string(state), progress, nullFloat(eta), toMillis(r.now()), missionID, droneID, string(models.MissionNotStarted)))
}

// Reset returns a mission to not_started with no drone, progress 0 and no ETA
// so it can run again.
func (r *MissionStatusRepository) Reset(ctx context.Context, missionID string) (*models.MissionStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.one(r.db.QueryRowContext(ctx, `UPDATE mission_status SET drone_id = NULL, progress = 0, estimated_time_remaining = NULL, status = ?, last_updated = ?
        WHERE mission_id = ?`+statusReturning,
		string(models.MissionNotStarted), toMillis(r.now()), missionID))
}

// Transition moves a mission from one state to another, optionally scoped to
// the bound drone. It returns nil, nil when the record is not in state from
// (or not bound to droneID), so concurrent writers cannot both win.
func (r *MissionStatusRepository) Transition(ctx context.Context, missionID string, droneID *string, from, to models.MissionState) (*models.MissionStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	query := `UPDATE mission_status SET status = ?, last_updated = ? WHERE mission_id = ? AND status = ?`
	args := []any{string(to), toMillis(r.now()), missionID, string(from)}
	if droneID != nil {
		query += ` AND drone_id = ?`
		args = append(args, *droneID)
	}
	return r.one(r.db.QueryRowContext(ctx, query+statusReturning, args...))
}

// ListDueOneTime returns not_started one-time missions whose date is at or
// before now and that have not produced a report yet, oldest due date first,
// with the mission attached.
func (r *MissionStatusRepository) ListDueOneTime(ctx context.Context, now time.Time) ([]*models.MissionStatus, error) {
	return r.listJoined(ctx, `m.schedule_type = ? AND s.status = ? AND m.schedule_date IS NOT NULL AND m.schedule_date <= ?
        AND NOT EXISTS (SELECT 1 FROM survey_reports r WHERE r.mission_id = m.id)
        ORDER BY m.schedule_date ASC, m.id ASC`,
		string(models.ScheduleOneTime), string(models.MissionNotStarted), toMillis(now))
}

// ListRecurringIdle returns not_started recurring missions with the mission attached.
func (r *MissionStatusRepository) ListRecurringIdle(ctx context.Context) ([]*models.MissionStatus, error) {
	return r.listJoined(ctx, `m.schedule_type = ? AND s.status = ? ORDER BY m.created_at ASC, m.id ASC`,
		string(models.ScheduleRecurring), string(models.MissionNotStarted))
}

func (r *MissionStatusRepository) listJoined(ctx context.Context, where string, args ...any) ([]*models.MissionStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT `+statusColumns+`, `+missionColumns+`
        FROM mission_status s
        JOIN missions m ON m.id = s.mission_id
        WHERE `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.MissionStatus
	for rows.Next() {
		st, err := scanStatusWithMission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *MissionStatusRepository) one(row *sql.Row) (*models.MissionStatus, error) {
	st, err := scanStatus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return st, err
}

type statusFields struct {
	droneID     sql.NullString
	state       string
	eta         sql.NullFloat64
	lastUpdated int64
}

func (f *statusFields) targets(st *models.MissionStatus) []any {
	return []any{&st.ID, &st.MissionID, &f.droneID, &f.state, &st.Progress, &f.eta, &f.lastUpdated}
}

func (f *statusFields) apply(st *models.MissionStatus) {
	st.DroneID = stringPtr(f.droneID)
	st.State = models.MissionState(f.state)
	st.EstimatedTimeRemaining = floatPtr(f.eta)
	st.LastUpdated = fromMillis(f.lastUpdated)
}

func scanStatus(row rowScanner) (*models.MissionStatus, error) {
	var st models.MissionStatus
	var f statusFields
	if err := row.Scan(f.targets(&st)...); err != nil {
		return nil, err
	}
	f.apply(&st)
	return &st, nil
}

// scanStatusWithMission reads statusColumns followed by missionColumns.
func scanStatusWithMission(rows *sql.Rows) (*models.MissionStatus, error) {
	var st models.MissionStatus
	var f statusFields
	var mission *models.Mission
	err := scanInto(rows, f.targets(&st), func(rest rowScanner) error {
		m, err := scanMission(rest)
		mission = m
		return err
	})
	if err != nil {
		return nil, err
	}
	f.apply(&st)
	st.Mission = mission
	return &st, nil
}

// scanInto lets two scanners share one physical row: the head targets are
// prepended to whatever the tail scanner asks for.
func scanInto(row rowScanner, head []any, tail func(rowScanner) error) error {
	return tail(scanFunc(func(dest ...any) error {
		return row.Scan(append(append([]any{}, head...), dest...)...)
	}))
}

type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }
