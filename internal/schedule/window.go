// Package schedule holds the pure scheduling algorithms: sliding-window
// bounds, edge-fault detection, and the overlap guard. The schedule
// middleware wires them to the calendar collaborator.
package schedule

import (
	"time"

	"shiftscheduler/internal/model"
)

// DefaultMonthOffset is the half-width used when a window reload is not given
// an explicit offset.
const DefaultMonthOffset = 6

// WindowBounds returns the month-aligned half-open range a reload around the
// pivot month materializes. offset=6 around 2025-06 yields
// [2025-01-01, 2025-12-01): eleven covered months, five either side of the
// pivot.
func WindowBounds(pivot time.Time, offset int) (start, end time.Time) {
	if offset < 1 {
		offset = 1
	}
	m := model.MonthStart(pivot)
	return m.AddDate(0, -(offset - 1), 0), m.AddDate(0, offset, 0)
}

// NeedsReload reports whether displaying the given month faults the loaded
// window. A nil range is the initial-load case and never faults here.
func NeedsReload(r *model.LoadedRange, displayed time.Time) bool {
	if r == nil {
		return false
	}
	return !r.Contains(displayed)
}
