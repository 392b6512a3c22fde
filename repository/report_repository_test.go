package repository

import (
	"context"
	"testing"
	"time"

	"droneSurveyManagement/internal/testutil"
	"droneSurveyManagement/models"
)

func TestReportRepository_CreateAndList(t *testing.T) {
	d := testutil.OpenInMemoryDB(t)
	reports := NewReportRepository(d)
	ctx := context.Background()

	first, err := reports.Create(ctx, &models.SurveyReport{MissionID: "m1", DroneID: "d1", Duration: 60, Distance: 200, Coverage: 40, Status: models.ReportFailed,
		GeneratedAt: time.Now().Add(-time.Hour)})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := reports.Create(ctx, &models.SurveyReport{MissionID: "m1", DroneID: "d1", Duration: 120, Distance: 500, Coverage: 90, Status: models.ReportCompleted})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if _, err := reports.Create(ctx, &models.SurveyReport{MissionID: "m1"}); err == nil {
		t.Fatalf("expected error for report without drone")
	}

	list, err := reports.ListByMission(ctx, "m1")
	if err != nil {
		t.Fatalf("ListByMission: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("ListByMission order = %+v", list)
	}

	got, err := reports.GetByID(ctx, first.ID)
	if err != nil || got == nil || got.Status != models.ReportFailed || got.Coverage != 40 {
		t.Fatalf("GetByID = %+v, %v", got, err)
	}
	if missing, _ := reports.GetByID(ctx, "nope"); missing != nil {
		t.Fatalf("expected nil for missing report")
	}
}
