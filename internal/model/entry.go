package model

import "time"

// ScheduledEntry is one calendar-backed occurrence of a shift. It is never
// persisted locally — the calendar collaborator is its system of record — so
// it carries no gorm mapping.
type ScheduledEntry struct {
	ID          string    `json:"id"`
	EventID     string    `json:"event_id"`
	ShiftTypeID string    `json:"shift_type_id,omitempty"`
	Title       string    `json:"title"`
	Date        time.Time `json:"date"`
	Notes       string    `json:"notes,omitempty"`
	AllDay      bool      `json:"all_day"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
}

// Interval returns the half-open [start, end) occupied by the entry.
func (e *ScheduledEntry) Interval() (time.Time, time.Time) {
	return e.StartsAt, e.EndsAt
}

// Overlaps reports whether two entries' intervals intersect.
func (e *ScheduledEntry) Overlaps(other *ScheduledEntry) bool {
	aStart, aEnd := e.Interval()
	bStart, bEnd := other.Interval()
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// EntryInterval derives the concrete instant pair for a shift type on a
// calendar date. An end time-of-day at or before the start spills into the
// following day; all-day covers [date 00:00, next day 00:00).
func EntryInterval(date time.Time, t *ShiftType) (time.Time, time.Time) {
	day := Midnight(date)
	if t.AllDay {
		return day, day.AddDate(0, 0, 1)
	}
	start := day.Add(time.Duration(t.StartMinute) * time.Minute)
	end := day.Add(time.Duration(t.EndMinute) * time.Minute)
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end
}

// Midnight truncates an instant to 00:00 of its calendar day, keeping the
// location.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// MonthStart truncates an instant to the first day of its month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether two instants fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// LoadedRange is the currently materialized calendar window. It is replaced
// wholesale on every reload, never patched.
type LoadedRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether the month of t lies strictly between the first and
// last covered months. Displaying either edge month already counts as outside:
// the window refills before the user can walk off loaded data.
func (r *LoadedRange) Contains(t time.Time) bool {
	m := MonthStart(t)
	first := MonthStart(r.Start)
	last := MonthStart(r.End.AddDate(0, 0, -1)) // End is exclusive
	return m.After(first) && m.Before(last)
}
