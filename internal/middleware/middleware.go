// Package middleware hosts the effectful half of the engine. Each middleware
// watches every dispatched action together with the pre/post reduction
// snapshots, performs the matching external calls, and answers with follow-up
// actions. Errors never escape a handler: every failure is converted into a
// typed failure action before it crosses back into state.
package middleware

import (
	"time"

	"github.com/google/uuid"

	"shiftscheduler/internal/action"
	"shiftscheduler/internal/model"
	"shiftscheduler/internal/state"
)

// Dispatcher re-enters actions into the store. Follow-ups are queued, never
// run inline, so a handler may dispatch freely without re-entering itself.
type Dispatcher interface {
	Dispatch(a action.Action)
}

// newLogEntry stamps a change-log record for one reversible edit, authored by
// the identity in the loaded settings. Timestamps are UTC so cutoff
// comparisons survive timezone changes.
func newLogEntry(st state.State, kind model.ChangeKind, date time.Time, old, newSnap *model.ShiftSnapshot, reason string) model.ChangeLogEntry {
	s := st.Settings.Settings
	return model.ChangeLogEntry{
		EntryID:   uuid.NewString(),
		Timestamp: time.Now().UTC(),
		UserID:    s.UserID,
		UserName:  s.UserName,
		Kind:      kind,
		Date:      model.Midnight(date),
		Old:       old,
		New:       newSnap,
		Reason:    reason,
	}
}

// reloadPivot picks the month a window reload should center on: the displayed
// month when the user has navigated, otherwise the current month.
func reloadPivot(st state.State) time.Time {
	if !st.Schedule.DisplayedMonth.IsZero() {
		return st.Schedule.DisplayedMonth
	}
	return time.Now()
}
