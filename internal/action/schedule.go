package action

import (
	"time"

	"shiftscheduler/internal/model"
	"shiftscheduler/pkg/apperr"
)

// ── window loading ──

// LoadWindow asks for a wholesale reload of the calendar window centered on
// Pivot, spanning Offset months to each side.
type LoadWindow struct {
	Pivot  time.Time
	Offset int
}

// WindowLoaded replaces the loaded entry set and range.
type WindowLoaded struct {
	Entries []model.ScheduledEntry
	Range   model.LoadedRange
}

// WindowLoadFailed reports a failed window reload.
type WindowLoadFailed struct {
	Err *apperr.Error
}

// DisplayedMonthChanged tracks calendar navigation; crossing the loaded
// range's edge months triggers a re-centered reload.
type DisplayedMonthChanged struct {
	Month time.Time
}

// ── single-entry edits ──

// CreateShift schedules a shift type on a date.
type CreateShift struct {
	Date        time.Time
	ShiftTypeID string
	Notes       string
}

// ShiftCreated confirms a create that survived post-create validation.
type ShiftCreated struct {
	Entry model.ScheduledEntry
}

// CreateShiftFailed reports a rejected or failed create.
type CreateShiftFailed struct {
	Err *apperr.Error
}

// SwitchShift replaces the shift type on an occupied date.
type SwitchShift struct {
	Date        time.Time
	ShiftTypeID string
	Reason      string
}

// ShiftSwitched confirms a switch.
type ShiftSwitched struct {
	Date time.Time
}

// SwitchShiftFailed reports a failed switch.
type SwitchShiftFailed struct {
	Err *apperr.Error
}

// DeleteShift removes the entry on a date.
type DeleteShift struct {
	Date   time.Time
	Reason string
}

// ShiftDeleted confirms a delete.
type ShiftDeleted struct {
	Date time.Time
}

// DeleteShiftFailed reports a failed delete.
type DeleteShiftFailed struct {
	Err *apperr.Error
}

// ── bulk operations ──

// DateAssignment pairs one target date with the shift type to place on it.
type DateAssignment struct {
	Date        time.Time
	ShiftTypeID string
}

// BulkAdd schedules one shift type across many dates.
type BulkAdd struct {
	Dates       []time.Time
	ShiftTypeID string
	Notes       string
}

// BulkAddDistinct schedules a distinct shift type per date.
type BulkAddDistinct struct {
	Assignments []DateAssignment
}

// BulkAddCompleted confirms a fully applied batch.
type BulkAddCompleted struct {
	Created int
}

// BulkAddFailed reports a rejected batch; any partially created entries have
// been compensated away before this is dispatched.
type BulkAddFailed struct {
	Err *apperr.Error
}

// BulkDelete removes the entries with the given identities. Unknown ids are
// ignored, so an all-unknown batch completes with Deleted == 0.
type BulkDelete struct {
	EntryIDs []string
}

// BulkDeleteCompleted confirms a bulk delete.
type BulkDeleteCompleted struct {
	Deleted int
}

// BulkDeleteFailed reports a failed bulk delete.
type BulkDeleteFailed struct {
	Err *apperr.Error
}

// ── overlap guard ──

// OverlapDetected surfaces the first overlapping pair found by the advisory
// post-load scan. Date is the earlier of the two entries' dates.
type OverlapDetected struct {
	First  model.ScheduledEntry
	Second model.ScheduledEntry
	Date   time.Time
}

// ResolveOverlap keeps one entry of a detected overlap and deletes the rest.
type ResolveOverlap struct {
	KeepEntryID string
}

// OverlapResolved confirms a resolution.
type OverlapResolved struct {
	Deleted int
}

// ResolveOverlapFailed reports a failed resolution.
type ResolveOverlapFailed struct {
	Err *apperr.Error
}

// ClearScheduleError dismisses the schedule feature's error display.
type ClearScheduleError struct{}

func (LoadWindow) isAction()            {}
func (WindowLoaded) isAction()          {}
func (WindowLoadFailed) isAction()      {}
func (DisplayedMonthChanged) isAction() {}
func (CreateShift) isAction()           {}
func (ShiftCreated) isAction()          {}
func (CreateShiftFailed) isAction()     {}
func (SwitchShift) isAction()           {}
func (ShiftSwitched) isAction()         {}
func (SwitchShiftFailed) isAction()     {}
func (DeleteShift) isAction()           {}
func (ShiftDeleted) isAction()          {}
func (DeleteShiftFailed) isAction()     {}
func (BulkAdd) isAction()               {}
func (BulkAddDistinct) isAction()       {}
func (BulkAddCompleted) isAction()      {}
func (BulkAddFailed) isAction()         {}
func (BulkDelete) isAction()            {}
func (BulkDeleteCompleted) isAction()   {}
func (BulkDeleteFailed) isAction()      {}
func (OverlapDetected) isAction()       {}
func (ResolveOverlap) isAction()        {}
func (OverlapResolved) isAction()       {}
func (ResolveOverlapFailed) isAction()  {}
func (ClearScheduleError) isAction()    {}
