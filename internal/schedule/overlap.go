package schedule

import (
	"sort"
	"time"

	"shiftscheduler/internal/model"
)

// SortByStart orders entries by start instant, ties broken by id so scans are
// deterministic.
func SortByStart(entries []model.ScheduledEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].StartsAt.Equal(entries[j].StartsAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].StartsAt.Before(entries[j].StartsAt)
	})
}

// FindFirstOverlap scans entries (sorted by start) for the lowest-indexed
// overlapping pair. Overnight entries spill past midnight, so a pair can
// collide across a day boundary; the half-open intervals make back-to-back
// shifts legal.
func FindFirstOverlap(entries []model.ScheduledEntry) (first, second model.ScheduledEntry, found bool) {
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			if !entries[j].StartsAt.Before(entries[i].EndsAt) {
				break // sorted: no later entry can reach back into i
			}
			if entries[i].Overlaps(&entries[j]) {
				return entries[i], entries[j], true
			}
		}
	}
	return model.ScheduledEntry{}, model.ScheduledEntry{}, false
}

// Conflicting returns every loaded entry whose interval intersects target,
// excluding target itself. Used by the strict post-create check.
func Conflicting(entries []model.ScheduledEntry, target model.ScheduledEntry) []model.ScheduledEntry {
	var hits []model.ScheduledEntry
	for i := range entries {
		if entries[i].ID == target.ID {
			continue
		}
		if entries[i].Overlaps(&target) {
			hits = append(hits, entries[i])
		}
	}
	return hits
}

// OccupiedDates returns, in chronological order, the batch dates that cannot
// be written: days already carrying a loaded entry and days listed more than
// once in the batch itself. Days compare by calendar date, not instant.
func OccupiedDates(entries []model.ScheduledEntry, dates []time.Time) []time.Time {
	taken := make(map[string]bool, len(entries))
	for i := range entries {
		taken[dayKey(entries[i].Date)] = true
	}

	var clashes []time.Time
	seen := make(map[string]bool, len(dates))
	for _, d := range dates {
		key := dayKey(d)
		if taken[key] || seen[key] {
			clashes = append(clashes, model.Midnight(d))
		}
		seen[key] = true
	}
	sort.Slice(clashes, func(i, j int) bool { return clashes[i].Before(clashes[j]) })
	return clashes
}

func dayKey(t time.Time) string { return t.Format("2006-01-02") }

// EarlierDate returns the earlier of two entry dates, for overlap reporting.
func EarlierDate(a, b model.ScheduledEntry) time.Time {
	if b.Date.Before(a.Date) {
		return b.Date
	}
	return a.Date
}
