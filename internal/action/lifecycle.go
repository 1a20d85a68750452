package action

import "shiftscheduler/pkg/apperr"

// AppStarted kicks off the startup sequence: stack restoration first, then
// calendar access, the initial extended load, and the retention purge.
type AppStarted struct{}

// CalendarAccessGranted reports a usable calendar store.
type CalendarAccessGranted struct{}

// CalendarAccessDenied reports that calendar access could not be obtained.
type CalendarAccessDenied struct {
	Err *apperr.Error
}

func (AppStarted) isAction()            {}
func (CalendarAccessGranted) isAction() {}
func (CalendarAccessDenied) isAction()  {}
