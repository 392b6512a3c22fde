package mission

import (
	"errors"
	"testing"

	"droneSurveyManagement/models"
)

func TestTransition_Table(t *testing.T) {
	all := []models.MissionState{
		models.MissionNotStarted, models.MissionStarting, models.MissionInProgress,
		models.MissionPaused, models.MissionCompleted, models.MissionAborted,
	}
	allowed := map[Action]map[models.MissionState]models.MissionState{
		ActionPause:  {models.MissionStarting: models.MissionPaused, models.MissionInProgress: models.MissionPaused},
		ActionResume: {models.MissionPaused: models.MissionInProgress},
		ActionAbort: {
			models.MissionStarting:   models.MissionAborted,
			models.MissionInProgress: models.MissionAborted,
			models.MissionPaused:     models.MissionAborted,
		},
	}
	for action, ok := range allowed {
		for _, from := range all {
			got, err := Transition(from, action)
			want, legal := ok[from]
			if legal {
				if err != nil || got != want {
					t.Errorf("%s from %s = %s, %v; want %s", action, from, got, err, want)
				}
				continue
			}
			if !errors.Is(err, ErrIllegalTransition) || got != from {
				t.Errorf("%s from %s = %s, %v; want rejection", action, from, got, err)
			}
		}
	}
}

func TestActionFor(t *testing.T) {
	for s, want := range map[string]models.MissionState{
		"pause":  models.MissionPaused,
		"resume": models.MissionInProgress,
		"abort":  models.MissionAborted,
	} {
		a, err := ActionFor(s)
		if err != nil || a.Target() != want {
			t.Errorf("ActionFor(%q) = %v, %v; target %s", s, a, err, a.Target())
		}
	}
	if _, err := ActionFor("land"); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("ActionFor(land) err = %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := map[float64]models.ReportOutcome{
		100:  models.ReportCompleted,
		90:   models.ReportCompleted,
		85:   models.ReportCompleted,
		84.9: models.ReportFailed,
		40:   models.ReportFailed,
	}
	for progress, want := range cases {
		if got := Classify(progress); got != want {
			t.Errorf("Classify(%v) = %s, want %s", progress, got, want)
		}
	}
}
