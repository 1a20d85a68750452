package apperr

import (
	"errors"
	"strings"
	"time"
)

// Kind classifies every failure the engine can surface. The reducer never
// sidechannels Go errors; middleware converts each external failure into one
// of these kinds before it crosses back into state.
type Kind string

const (
	KindCalendarAccessDenied  Kind = "calendar_access_denied"
	KindEventCreationFailed   Kind = "calendar_event_creation_failed"
	KindEventDeletionFailed   Kind = "calendar_event_deletion_failed"
	KindDuplicateShift        Kind = "duplicate_shift"
	KindShiftNotFound         Kind = "shift_not_found"
	KindOverlappingShifts     Kind = "overlapping_shifts"
	KindPersistenceFailed     Kind = "persistence_failed"
	KindUndoStackEmpty        Kind = "undo_stack_empty"
	KindRedoStackEmpty        Kind = "redo_stack_empty"
	KindInvalidShiftData      Kind = "invalid_shift_data"
	KindStackRestorationFailed Kind = "stack_restoration_failed"
	KindShiftSwitchFailed     Kind = "shift_switch_failed"
	KindSyncFailed            Kind = "sync_failed"
)

// Error is the one error type that crosses the middleware/state boundary.
// Date and Titles are set only by the kinds that carry them.
type Error struct {
	Kind   Kind
	Reason string
	Date   time.Time
	Titles []string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if !e.Date.IsZero() {
		b.WriteString(" on " + e.Date.Format("2006-01-02"))
	}
	if len(e.Titles) > 0 {
		b.WriteString(": " + strings.Join(e.Titles, ", "))
	}
	if e.Reason != "" {
		b.WriteString(": " + e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two *Errors on Kind alone, so callers can compare against the
// bare constructors: errors.Is(err, apperr.UndoStackEmpty()).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf returns the Kind carried by err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ── constructors ──

func CalendarAccessDenied(err error) *Error {
	return &Error{Kind: KindCalendarAccessDenied, Err: err}
}

func EventCreationFailed(err error) *Error {
	return &Error{Kind: KindEventCreationFailed, Err: err}
}

func EventDeletionFailed(err error) *Error {
	return &Error{Kind: KindEventDeletionFailed, Err: err}
}

func DuplicateShift(date time.Time) *Error {
	return &Error{Kind: KindDuplicateShift, Date: date}
}

func ShiftNotFound() *Error {
	return &Error{Kind: KindShiftNotFound}
}

// OverlappingShifts names the date under conflict and the titles of the
// entries already occupying it.
func OverlappingShifts(date time.Time, titles ...string) *Error {
	return &Error{Kind: KindOverlappingShifts, Date: date, Titles: titles}
}

func PersistenceFailed(err error) *Error {
	return &Error{Kind: KindPersistenceFailed, Err: err}
}

func UndoStackEmpty() *Error { return &Error{Kind: KindUndoStackEmpty} }

func RedoStackEmpty() *Error { return &Error{Kind: KindRedoStackEmpty} }

func InvalidShiftData(reason string) *Error {
	return &Error{Kind: KindInvalidShiftData, Reason: reason}
}

func StackRestorationFailed(err error) *Error {
	return &Error{Kind: KindStackRestorationFailed, Err: err}
}

func ShiftSwitchFailed(err error) *Error {
	return &Error{Kind: KindShiftSwitchFailed, Err: err}
}

func SyncFailed(err error) *Error {
	return &Error{Kind: KindSyncFailed, Err: err}
}

// Wrap converts an arbitrary error into *Error, passing through values that
// already carry a kind and defaulting everything else to fallback.
func Wrap(err error, fallback Kind) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: fallback, Err: err}
}
