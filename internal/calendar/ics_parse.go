package calendar

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"shiftscheduler/internal/model"
)

// ── ICS event parsing ───────────────────────────────────────
//
// Responsibility: turn the VEVENTs of one iCalendar (RFC 5545) file into
// concrete ScheduledEntry occurrences inside a half-open range.
//
// Design decisions:
//   - DTSTART/DTEND parsed with layout fallbacks + TZID, not the library
//     helpers, so date-only (all-day) values keep their calendar day
//   - events written by this tool are single VEVENTs; RRULE handling exists
//     for merged-in foreign calendars and expands through rrule-go
//   - EXDATE removes single occurrences from a series
//   - a recurring occurrence is identified as "<uid>@<start-stamp-utc>",
//     a single event as its bare UID
// ────────────────────────────────────────────────────────────

const (
	stampLayoutUTC   = "20060102T150405Z"
	stampLayoutLocal = "20060102T150405"
	stampLayoutDate  = "20060102"

	occurrenceSep = "@"

	// Safety cap so a malformed unbounded RRULE cannot blow up a load.
	maxOccurrencesPerEvent = 5000

	// X-property binding an event to the shift type that produced it.
	propShiftType = "X-SHIFTSCHED-TYPE"
)

// parsedShift is the normalized intermediate form of one VEVENT.
type parsedShift struct {
	UID         string
	Summary     string
	Description string
	Location    string
	ShiftTypeID string

	Start   time.Time
	End     time.Time
	AllDay  bool
	RawRule string
	ExDates []time.Time
}

// parseShiftEvents parses every VEVENT, skipping the unparsable ones, and
// reports how many were skipped.
func parseShiftEvents(cal *ics.Calendar, loc *time.Location) ([]parsedShift, int) {
	var (
		out     []parsedShift
		skipped int
	)
	for _, evt := range cal.Events() {
		ev, err := parseShiftEvent(evt, loc)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, ev)
	}
	return out, skipped
}

func parseShiftEvent(evt *ics.VEvent, loc *time.Location) (parsedShift, error) {
	var out parsedShift

	uid := evt.GetProperty(ics.ComponentPropertyUniqueId)
	if uid == nil || strings.TrimSpace(uid.Value) == "" {
		return out, fmt.Errorf("missing UID")
	}
	out.UID = strings.TrimSpace(uid.Value)

	if p := evt.GetProperty(ics.ComponentPropertySummary); p != nil {
		out.Summary = strings.TrimSpace(p.Value)
	}
	if p := evt.GetProperty(ics.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := evt.GetProperty(ics.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}
	if p := evt.GetProperty(ics.ComponentProperty(propShiftType)); p != nil {
		out.ShiftTypeID = strings.TrimSpace(p.Value)
	}

	start, startDateOnly, err := parseEventTime(evt, ics.ComponentPropertyDtStart, loc)
	if err != nil {
		return out, err
	}
	out.AllDay = startDateOnly

	end, _, err := parseEventTime(evt, ics.ComponentPropertyDtEnd, loc)
	if err != nil {
		if startDateOnly {
			end = start.AddDate(0, 0, 1)
		} else {
			return out, err
		}
	}
	if startDateOnly {
		start = model.Midnight(start)
		end = model.Midnight(end)
		if !end.After(start) {
			end = start.AddDate(0, 0, 1)
		}
	}
	if !end.After(start) {
		return out, fmt.Errorf("event %s has a non-positive duration", out.UID)
	}
	out.Start = start
	out.End = end

	if p := evt.GetProperty(ics.ComponentPropertyRrule); p != nil {
		out.RawRule = p.Value
	}
	out.ExDates = parseExDates(evt, loc)

	return out, nil
}

// parseEventTime parses a date/date-time property with layout fallbacks,
// honoring TZID and reporting whether the value was date-only.
func parseEventTime(evt *ics.VEvent, name ics.ComponentProperty, loc *time.Location) (time.Time, bool, error) {
	prop := evt.GetProperty(name)
	if prop == nil {
		return time.Time{}, false, fmt.Errorf("missing property %s", name)
	}
	val := strings.TrimSpace(prop.Value)

	dateOnly := !strings.Contains(val, "T")
	for key, vals := range prop.ICalParameters {
		if strings.EqualFold(key, "VALUE") && len(vals) > 0 && strings.EqualFold(vals[0], "DATE") {
			dateOnly = true
		}
	}

	tzid := ""
	for key, vals := range prop.ICalParameters {
		if strings.EqualFold(key, "TZID") && len(vals) > 0 {
			tzid = vals[0]
		}
	}

	if t, err := time.Parse(stampLayoutUTC, val); err == nil {
		return t.In(loc), dateOnly, nil
	}
	for _, layout := range []string{stampLayoutLocal, stampLayoutDate} {
		t, err := time.Parse(layout, val)
		if err != nil {
			continue
		}
		if tzid != "" {
			if tzLoc, lerr := time.LoadLocation(tzid); lerr == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, tzLoc).In(loc), dateOnly, nil
			}
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), dateOnly, nil
	}
	return time.Time{}, false, fmt.Errorf("unparsable time %q", val)
}

// parseExDates collects every EXDATE of an event. A single property value may
// carry a comma-separated list.
func parseExDates(evt *ics.VEvent, loc *time.Location) []time.Time {
	var out []time.Time
	for _, prop := range evt.Properties {
		if prop.IANAToken != string(ics.ComponentPropertyExdate) {
			continue
		}
		for _, part := range strings.Split(prop.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := time.Parse(stampLayoutUTC, part); err == nil {
				out = append(out, t)
				continue
			}
			if t, err := time.ParseInLocation(stampLayoutLocal, part, loc); err == nil {
				out = append(out, t)
				continue
			}
			if t, err := time.ParseInLocation(stampLayoutDate, part, loc); err == nil {
				out = append(out, t)
			}
		}
	}
	return out
}

// expandBetween turns one parsed event into its occurrences intersecting the
// half-open [start, end), all expressed in loc.
func expandBetween(ev parsedShift, start, end time.Time, loc *time.Location) ([]model.ScheduledEntry, error) {
	if ev.RawRule == "" {
		if ev.Start.Before(end) && start.Before(ev.End) {
			return []model.ScheduledEntry{makeEntry(ev, ev.UID, ev.Start, ev.End, loc)}, nil
		}
		return nil, nil
	}

	rule, err := rrule.StrToRRule(ev.RawRule)
	if err != nil {
		return nil, fmt.Errorf("event %s: bad RRULE %q: %w", ev.UID, ev.RawRule, err)
	}
	rule.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Look back one duration so an occurrence spilling across the range
	// start (an overnight shift at the window edge) is still found.
	duration := ev.End.Sub(ev.Start)
	lookback := start.Add(-duration)
	starts := set.Between(lookback.In(ev.Start.Location()), end.In(ev.Start.Location()), true)
	if len(starts) > maxOccurrencesPerEvent {
		starts = starts[:maxOccurrencesPerEvent]
	}

	var out []model.ScheduledEntry
	for _, occStart := range starts {
		occEnd := occStart.Add(duration)
		if ev.AllDay {
			day := model.Midnight(occStart.In(loc))
			occStart, occEnd = day, day.AddDate(0, 0, 1)
		}
		if !occStart.Before(end) || !start.Before(occEnd) {
			continue
		}
		id := ev.UID + occurrenceSep + occStart.UTC().Format(stampLayoutUTC)
		out = append(out, makeEntry(ev, id, occStart, occEnd, loc))
	}
	return out, nil
}

func makeEntry(ev parsedShift, id string, start, end time.Time, loc *time.Location) model.ScheduledEntry {
	s := start.In(loc)
	e := end.In(loc)
	return model.ScheduledEntry{
		ID:          id,
		EventID:     ev.UID,
		ShiftTypeID: ev.ShiftTypeID,
		Title:       ev.Summary,
		Date:        model.Midnight(s),
		Notes:       ev.Description,
		AllDay:      ev.AllDay,
		StartsAt:    s,
		EndsAt:      e,
	}
}

// splitOccurrenceID separates "<uid>@<stamp>" ids; plain UIDs return an empty
// stamp.
func splitOccurrenceID(id string) (uid, stamp string) {
	if i := strings.LastIndex(id, occurrenceSep); i >= 0 {
		return id[:i], id[i+1:]
	}
	return id, ""
}
