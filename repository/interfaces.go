package repository

import (
	"context"
	"time"

	"droneSurveyManagement/models"
)

// MissionRepositoryI defines operations on Mission entities.
type MissionRepositoryI interface {
	Create(ctx context.Context, m *models.Mission) (*models.Mission, error)
	GetByID(ctx context.Context, id string) (*models.Mission, error)
	List(ctx context.Context, limit, offset int) ([]*models.Mission, error)
	UpdateByOwner(ctx context.Context, ownerID string, m *models.Mission) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// DroneRepositoryI defines operations on Drone entities.
type DroneRepositoryI interface {
	GetByID(ctx context.Context, id string) (*models.Drone, error)
	FindEligible(ctx context.Context) (*models.Drone, error)
	Claim(ctx context.Context, droneID, missionID string) (bool, error)
	Release(ctx context.Context, droneID, missionID string) (bool, error)
	ApplyUpdate(ctx context.Context, id string, p DronePatch) (before, after *models.Drone, err error)
}

// MissionStatusRepositoryI defines operations on MissionStatus entities.
type MissionStatusRepositoryI interface {
	GetByMissionID(ctx context.Context, missionID string) (*models.MissionStatus, error)
	Upsert(ctx context.Context, missionID string, p StatusPatch) (*models.MissionStatus, error)
	MarkStarting(ctx context.Context, missionID, droneID string) (*models.MissionStatus, error)
	Revert(ctx context.Context, missionID, droneID string) (bool, error)
	FinishExecution(ctx context.Context, missionID, droneID string, state models.MissionState, progress float64, eta *float64) (*models.MissionStatus, error)
	Reset(ctx context.Context, missionID string) (*models.MissionStatus, error)
	Transition(ctx context.Context, missionID string, droneID *string, from, to models.MissionState) (*models.MissionStatus, error)
	ListDueOneTime(ctx context.Context, now time.Time) ([]*models.MissionStatus, error)
	ListRecurringIdle(ctx context.Context) ([]*models.MissionStatus, error)
}

// ReportRepositoryI defines operations on SurveyReport entities.
type ReportRepositoryI interface {
	Create(ctx context.Context, rep *models.SurveyReport) (*models.SurveyReport, error)
	GetByID(ctx context.Context, id string) (*models.SurveyReport, error)
	ListByMission(ctx context.Context, missionID string) ([]*models.SurveyReport, error)
}

var (
	_ MissionRepositoryI       = (*MissionRepository)(nil)
	_ DroneRepositoryI         = (*DroneRepository)(nil)
	_ MissionStatusRepositoryI = (*MissionStatusRepository)(nil)
	_ ReportRepositoryI        = (*ReportRepository)(nil)
)
