package mission

import (
	"errors"
	"fmt"

	"droneSurveyManagement/models"
)

// ErrIllegalTransition is returned when an action does not apply to the current state.
var ErrIllegalTransition = errors.New("illegal mission transition")

// Action is a client control action.
type Action string

const (
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
	ActionAbort  Action = "abort"
)

// ActionFor parses a wire action name.
func ActionFor(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionPause, ActionResume, ActionAbort:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrInvalidPayload, s)
}

// Target is the state an action moves a mission to.
func (a Action) Target() models.MissionState {
	switch a {
	case ActionPause:
		return models.MissionPaused
	case ActionResume:
		return models.MissionInProgress
	case ActionAbort:
		return models.MissionAborted
	}
	return ""
}

// legal lists, per action, the states it may be applied from.
var legal = map[Action]map[models.MissionState]bool{
	ActionPause:  {models.MissionStarting: true, models.MissionInProgress: true},
	ActionResume: {models.MissionPaused: true},
	ActionAbort:  {models.MissionStarting: true, models.MissionInProgress: true, models.MissionPaused: true},
}

// Transition returns the state that applying action to current yields.
func Transition(current models.MissionState, action Action) (models.MissionState, error) {
	if !legal[action][current] {
		return current, fmt.Errorf("%w: %s from %s", ErrIllegalTransition, action, current)
	}
	return action.Target(), nil
}
