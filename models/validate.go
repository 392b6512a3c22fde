package models

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"droneSurveyManagement/internal/geo"
)

// CronParser parses the standard 5-field recurrence expressions missions use.
// Descriptors such as "@daily" are accepted as well.
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("cronexpr", func(fl validator.FieldLevel) bool {
		expr := fl.Field().String()
		if expr == "" {
			return true
		}
		_, err := CronParser.Parse(expr)
		return err == nil
	})
	return v
}

type missionRules struct {
	Name                    string   `validate:"min=3"`
	Location                string   `validate:"required"`
	FlightPath              int      `validate:"min=1"`
	Pattern                 Pattern  `validate:"oneof=crosshatch perimeter custom"`
	Sensors                 []string `validate:"min=1,dive,required"`
	Altitude                float64  `validate:"gte=10"`
	Overlap                 float64  `validate:"gte=0,lte=100"`
	DataCollectionFrequency float64  `validate:"gte=1"`
	ScheduleType            string   `validate:"oneof=one-time recurring"`
	Cron                    string   `validate:"cronexpr"`
}

// Validate checks the mission definition before it is stored.
func (m *Mission) Validate() error {
	if m == nil {
		return errors.New("mission is nil")
	}
	rules := missionRules{
		Name:                    m.Name,
		Location:                m.Location,
		FlightPath:              len(m.FlightPath),
		Pattern:                 m.Pattern,
		Sensors:                 m.Sensors,
		Altitude:                m.Altitude,
		Overlap:                 m.Overlap,
		DataCollectionFrequency: m.DataCollectionFrequency,
		ScheduleType:            string(m.Schedule.Type),
		Cron:                    m.Schedule.Cron,
	}
	if err := validate.Struct(rules); err != nil {
		return fmt.Errorf("invalid mission: %w", err)
	}
	for i, wp := range m.FlightPath {
		if !geo.ValidCoordinate(wp.Lat, wp.Lng) {
			return fmt.Errorf("invalid mission: waypoint %d out of range (%v,%v)", i, wp.Lat, wp.Lng)
		}
	}
	switch m.Schedule.Type {
	case ScheduleOneTime:
		if m.Schedule.Date == nil {
			return errors.New("invalid mission: one-time schedule requires a date")
		}
	case ScheduleRecurring:
		if m.Schedule.Cron == "" {
			return errors.New("invalid mission: recurring schedule requires a cron expression")
		}
	}
	return nil
}

type droneRules struct {
	Name         string  `validate:"required"`
	Location     string  `validate:"required"`
	Status       string  `validate:"omitempty,oneof=available in-mission maintenance"`
	BatteryLevel float64 `validate:"gte=0,lte=100"`
}

// Validate checks the drone definition before it is stored.
func (d *Drone) Validate() error {
	if d == nil {
		return errors.New("drone is nil")
	}
	if err := validate.Struct(droneRules{Name: d.Name, Location: d.Location, Status: string(d.Status), BatteryLevel: d.BatteryLevel}); err != nil {
		return fmt.Errorf("invalid drone: %w", err)
	}
	if (d.CurrentMissionID != nil) != (d.Status == DroneStatusInMission) {
		return errors.New("invalid drone: current mission must be set exactly when status is in-mission")
	}
	return nil
}
