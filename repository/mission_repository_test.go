package repository

import (
	"context"
	"testing"
	"time"

	"droneSurveyManagement/internal/testutil"
	"droneSurveyManagement/models"
)

func TestMissionRepository_CreateStoresDefinitionAndStatus(t *testing.T) {
	d := testutil.OpenInMemoryDB(t)
	ctx := context.Background()

	due := time.Date(2030, 5, 1, 9, 30, 0, 123456789, time.UTC)
	m := seedMission(t, d, func(m *models.Mission) { m.Schedule.Date = &due })

	got, err := NewMissionRepository(d).GetByID(ctx, m.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: %+v, %v", got, err)
	}
	if len(got.FlightPath) != 2 || got.FlightPath[1].Lat != 10.01 || len(got.Sensors) != 2 {
		t.Fatalf("lists not round-tripped: %+v", got)
	}
	if got.Schedule.Type != models.ScheduleOneTime || got.Schedule.Date == nil || !got.Schedule.Date.Equal(*m.Schedule.Date) {
		t.Fatalf("schedule not round-tripped: %+v", got.Schedule)
	}
	if m.Schedule.Date.Nanosecond()%int(time.Millisecond) != 0 {
		t.Fatalf("Create returned an untruncated schedule date: %v", m.Schedule.Date)
	}

	st, err := NewMissionStatusRepository(d).GetByMissionID(ctx, m.ID)
	if err != nil || st == nil {
		t.Fatalf("status record missing: %+v, %v", st, err)
	}
	if st.State != models.MissionNotStarted || st.DroneID != nil || st.Progress != 0 {
		t.Fatalf("unexpected initial status: %+v", st)
	}
}

func TestMissionRepository_CreateRejectsInvalid(t *testing.T) {
	d := testutil.OpenInMemoryDB(t)
	_, err := NewMissionRepository(d).Create(context.Background(), &models.Mission{Name: "x"})
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestMissionRepository_UpdateByOwner(t *testing.T) {
	d := testutil.OpenInMemoryDB(t)
	ctx := context.Background()
	users := NewUserRepository(d)
	missions := NewMissionRepository(d)

	owner, err := users.Create(ctx, "Olive", "Olive@Example.com")
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	other, err := users.Create(ctx, "Otto", "otto@example.com")
	if err != nil {
		t.Fatalf("create other: %v", err)
	}
	if got, _ := users.GetByEmail(ctx, "olive@example.com"); got == nil || got.ID != owner.ID {
		t.Fatalf("GetByEmail = %+v", got)
	}

	m := seedMission(t, d, func(m *models.Mission) { m.CreatedBy = &owner.ID })
	m.Name = "renamed survey"
	moved := time.Date(2031, 1, 2, 3, 4, 5, 987654321, time.UTC)
	m.Schedule.Date = &moved

	if ok, err := missions.UpdateByOwner(ctx, other.ID, m); err != nil || ok {
		t.Fatalf("non-owner update = %v, %v; want false", ok, err)
	}
	if ok, err := missions.UpdateByOwner(ctx, owner.ID, m); err != nil || !ok {
		t.Fatalf("owner update = %v, %v; want true", ok, err)
	}
	got, _ := missions.GetByID(ctx, m.ID)
	if got.Name != "renamed survey" {
		t.Fatalf("name not updated: %q", got.Name)
	}
	if !got.Schedule.Date.Equal(*m.Schedule.Date) || m.Schedule.Date.Nanosecond() != 987000000 {
		t.Fatalf("schedule date = %v, caller holds %v", got.Schedule.Date, m.Schedule.Date)
	}
}

func TestMissionRepository_DeleteReleasesDrone(t *testing.T) {
	d := testutil.OpenInMemoryDB(t)
	ctx := context.Background()
	missions := NewMissionRepository(d)
	drones := NewDroneRepository(d)

	m := seedMission(t, d, nil)
	dr := seedDrone(t, d, "charlie", 90, true, models.DroneStatusAvailable)
	if won, err := drones.Claim(ctx, dr.ID, m.ID); err != nil || !won {
		t.Fatalf("claim: %v %v", won, err)
	}

	ok, err := missions.Delete(ctx, m.ID)
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	if got, _ := missions.GetByID(ctx, m.ID); got != nil {
		t.Fatalf("mission still present")
	}
	if st, _ := NewMissionStatusRepository(d).GetByMissionID(ctx, m.ID); st != nil {
		t.Fatalf("status record should cascade: %+v", st)
	}
	got, _ := drones.GetByID(ctx, dr.ID)
	if !got.Eligible() {
		t.Fatalf("drone should be released: %+v", got)
	}

	if ok, _ := missions.Delete(ctx, m.ID); ok {
		t.Fatalf("second delete should report false")
	}
}
