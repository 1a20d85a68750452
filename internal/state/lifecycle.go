package state

import (
	"shiftscheduler/internal/action"
	"shiftscheduler/pkg/apperr"
)

// LifecycleState tracks startup progress and calendar access.
type LifecycleState struct {
	Started            bool
	CalendarAuthorized bool
	AccessError        *apperr.Error
}

func reduceLifecycle(s LifecycleState, a action.Action) LifecycleState {
	switch a := a.(type) {
	case action.AppStarted:
		s.Started = true

	case action.CalendarAccessGranted:
		s.CalendarAuthorized = true
		s.AccessError = nil

	case action.CalendarAccessDenied:
		s.CalendarAuthorized = false
		s.AccessError = a.Err
	}
	return s
}
