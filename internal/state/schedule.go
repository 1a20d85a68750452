package state

import (
	"sort"
	"strconv"
	"time"

	"shiftscheduler/internal/action"
	"shiftscheduler/internal/model"
	"shiftscheduler/pkg/apperr"
)

// OverlapAlert is a detected-but-unresolved overlap surfaced by the advisory
// post-load scan.
type OverlapAlert struct {
	First  model.ScheduledEntry
	Second model.ScheduledEntry
	Date   time.Time
}

// ScheduleState is the calendar-window branch. Entries always hold the full
// loaded window, sorted by start instant, and are replaced wholesale on every
// reload.
type ScheduleState struct {
	Entries        []model.ScheduledEntry
	Range          *model.LoadedRange
	DisplayedMonth time.Time
	Loading        bool
	Overlap        *OverlapAlert
	Notice         string
	LastError      *apperr.Error
}

// EntryOn returns the first loaded entry whose date falls on day.
func (s *ScheduleState) EntryOn(day time.Time) (model.ScheduledEntry, bool) {
	for _, e := range s.Entries {
		if model.SameDay(e.Date, day) {
			return e, true
		}
	}
	return model.ScheduledEntry{}, false
}

// EntryByID returns the loaded entry with the given identity.
func (s *ScheduleState) EntryByID(id string) (model.ScheduledEntry, bool) {
	for _, e := range s.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return model.ScheduledEntry{}, false
}

func reduceSchedule(s ScheduleState, a action.Action) ScheduleState {
	switch a := a.(type) {
	case action.LoadWindow:
		s.Loading = true

	case action.WindowLoaded:
		entries := append([]model.ScheduledEntry(nil), a.Entries...)
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].StartsAt.Before(entries[j].StartsAt)
		})
		rng := a.Range
		s.Entries = entries
		s.Range = &rng
		s.Loading = false
		s.Overlap = nil

	case action.WindowLoadFailed:
		s.Loading = false
		s.LastError = a.Err

	case action.DisplayedMonthChanged:
		s.DisplayedMonth = model.MonthStart(a.Month)

	case action.ShiftCreated:
		s.Notice = "added " + a.Entry.Title + " on " + a.Entry.Date.Format("2006-01-02")
		s.LastError = nil

	case action.CreateShiftFailed:
		s.LastError = a.Err

	case action.ShiftSwitched:
		s.Notice = "switched shift on " + a.Date.Format("2006-01-02")
		s.LastError = nil

	case action.SwitchShiftFailed:
		s.LastError = a.Err

	case action.ShiftDeleted:
		s.Notice = "deleted shift on " + a.Date.Format("2006-01-02")
		s.LastError = nil

	case action.DeleteShiftFailed:
		s.LastError = a.Err

	case action.BulkAddCompleted:
		s.Notice = "added " + strconv.Itoa(a.Created) + " shifts"
		s.LastError = nil

	case action.BulkAddFailed:
		s.LastError = a.Err

	case action.BulkDeleteCompleted:
		s.Notice = "deleted " + strconv.Itoa(a.Deleted) + " shifts"
		s.LastError = nil

	case action.BulkDeleteFailed:
		s.LastError = a.Err

	case action.OverlapDetected:
		s.Overlap = &OverlapAlert{First: a.First, Second: a.Second, Date: a.Date}

	case action.OverlapResolved:
		s.Overlap = nil
		s.Notice = "resolved overlapping shifts"
		s.LastError = nil

	case action.ResolveOverlapFailed:
		s.LastError = a.Err

	case action.ClearScheduleError:
		s.LastError = nil
		s.Notice = ""
	}
	return s
}
