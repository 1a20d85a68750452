package calendar

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"shiftscheduler/internal/model"
	"shiftscheduler/internal/schedule"
)

// extendedMonthOffset is the half-width of the wide startup window.
const extendedMonthOffset = 12

// FileStore implements Service over a single iCalendar file. Mutations
// rewrite the whole file and swap it in with an atomic rename; a process
// mutex serializes concurrent middleware against the same file.
type FileStore struct {
	mu     sync.Mutex
	path   string
	loc    *time.Location
	logger *zap.Logger
}

var _ Service = (*FileStore)(nil)

// NewFileStore builds a store over the ICS file at path. Times surface in
// loc; nil means the system location.
func NewFileStore(path string, loc *time.Location, logger *zap.Logger) *FileStore {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: path, loc: loc, logger: logger}
}

// IsAuthorized reports whether the calendar file exists and is readable.
func (f *FileStore) IsAuthorized() bool {
	fd, err := os.Open(f.path)
	if err != nil {
		return false
	}
	fd.Close()
	return true
}

// RequestAccess creates the calendar file (and its directory) when missing.
func (f *FileStore) RequestAccess(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return false, fmt.Errorf("create calendar directory: %w", err)
	}
	if _, err := os.Stat(f.path); err == nil {
		return true, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat calendar: %w", err)
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	if err := f.writeCalendar(cal); err != nil {
		return false, err
	}
	f.logger.Info("calendar file created", zap.String("path", f.path))
	return true, nil
}

// ── loads ──

func (f *FileStore) LoadExtendedRange(ctx context.Context) ([]model.ScheduledEntry, model.LoadedRange, error) {
	return f.LoadAroundMonth(ctx, time.Now().In(f.loc), extendedMonthOffset)
}

func (f *FileStore) LoadAroundMonth(ctx context.Context, pivot time.Time, offset int) ([]model.ScheduledEntry, model.LoadedRange, error) {
	start, end := schedule.WindowBounds(pivot.In(f.loc), offset)
	entries, err := f.LoadBetween(ctx, start, end)
	if err != nil {
		return nil, model.LoadedRange{}, err
	}
	return entries, model.LoadedRange{Start: start, End: end}, nil
}

func (f *FileStore) LoadBetween(ctx context.Context, start, end time.Time) ([]model.ScheduledEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cal, err := f.readCalendar()
	if err != nil {
		return nil, err
	}
	events, skipped := parseShiftEvents(cal, f.loc)
	if skipped > 0 {
		f.logger.Warn("skipped unparsable calendar events", zap.Int("count", skipped))
	}

	var entries []model.ScheduledEntry
	for _, ev := range events {
		occ, err := expandBetween(ev, start, end, f.loc)
		if err != nil {
			f.logger.Warn("skipped event with bad recurrence", zap.String("uid", ev.UID), zap.Error(err))
			continue
		}
		entries = append(entries, occ...)
	}
	schedule.SortByStart(entries)
	return entries, nil
}

// ── writes ──

func (f *FileStore) Create(ctx context.Context, date time.Time, t model.ShiftType, notes string) (model.ScheduledEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return model.ScheduledEntry{}, err
	}

	cal, err := f.readCalendar()
	if err != nil {
		return model.ScheduledEntry{}, err
	}

	day := model.Midnight(date.In(f.loc))
	start, end := model.EntryInterval(day, &t)
	uid := uuid.NewString()
	appendShiftEvent(cal, uid, &t, start, end, notes)
	if err := f.writeCalendar(cal); err != nil {
		return model.ScheduledEntry{}, err
	}

	f.logger.Info("calendar event created",
		zap.String("uid", uid),
		zap.String("shift_type", t.ShiftTypeID),
		zap.Time("date", day))
	return model.ScheduledEntry{
		ID:          uid,
		EventID:     uid,
		ShiftTypeID: t.ShiftTypeID,
		Title:       t.Title,
		Date:        day,
		Notes:       notes,
		AllDay:      t.AllDay,
		StartsAt:    start,
		EndsAt:      end,
	}, nil
}

func (f *FileStore) Update(ctx context.Context, id string, t model.ShiftType, date time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	uid, stamp := splitOccurrenceID(id)
	if stamp != "" {
		return ErrForeignEvent
	}

	cal, err := f.readCalendar()
	if err != nil {
		return err
	}
	evt := findEvent(cal, uid)
	if evt == nil {
		return ErrEventNotFound
	}
	if evt.GetProperty(ics.ComponentPropertyRrule) != nil {
		return ErrForeignEvent
	}

	// Rebuild the event under the same UID instead of patching properties,
	// so a switch between all-day and timed leaves no stale parameters.
	notes := ""
	if p := evt.GetProperty(ics.ComponentPropertyDescription); p != nil {
		notes = p.Value
	}
	day := model.Midnight(date.In(f.loc))
	start, end := model.EntryInterval(day, &t)
	removeEvent(cal, uid)
	appendShiftEvent(cal, uid, &t, start, end, notes)
	if err := f.writeCalendar(cal); err != nil {
		return err
	}

	f.logger.Info("calendar event rewritten",
		zap.String("uid", uid),
		zap.String("shift_type", t.ShiftTypeID),
		zap.Time("date", day))
	return nil
}

func (f *FileStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	cal, err := f.readCalendar()
	if err != nil {
		return err
	}
	if err := deleteOne(cal, id); err != nil {
		return err
	}
	if err := f.writeCalendar(cal); err != nil {
		return err
	}
	f.logger.Info("calendar event deleted", zap.String("id", id))
	return nil
}

func (f *FileStore) DeleteMany(ctx context.Context, ids []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	cal, err := f.readCalendar()
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, id := range ids {
		if err := deleteOne(cal, id); err != nil {
			continue // unknown ids are not an error for a batch
		}
		deleted++
	}
	if deleted == 0 {
		return 0, nil
	}
	if err := f.writeCalendar(cal); err != nil {
		return 0, err
	}
	f.logger.Info("calendar events deleted", zap.Int("count", deleted))
	return deleted, nil
}

func (f *FileStore) CascadeShiftTypeUpdate(ctx context.Context, t model.ShiftType) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	cal, err := f.readCalendar()
	if err != nil {
		return 0, err
	}
	var targets []parsedShift
	for _, ev := range f.parseBound(cal) {
		if ev.ShiftTypeID == t.ShiftTypeID && ev.RawRule == "" {
			targets = append(targets, ev)
		}
	}
	for _, ev := range targets {
		rewriteEvent(cal, ev, &t, f.loc)
	}
	if len(targets) == 0 {
		return 0, nil
	}
	if err := f.writeCalendar(cal); err != nil {
		return 0, err
	}
	f.logger.Info("cascaded shift type into calendar",
		zap.String("shift_type", t.ShiftTypeID),
		zap.Int("events", len(targets)))
	return len(targets), nil
}

func (f *FileStore) ResyncAll(ctx context.Context, types []model.ShiftType) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	byID := make(map[string]model.ShiftType, len(types))
	for _, t := range types {
		byID[t.ShiftTypeID] = t
	}

	cal, err := f.readCalendar()
	if err != nil {
		return 0, err
	}
	var drifted []parsedShift
	for _, ev := range f.parseBound(cal) {
		t, ok := byID[ev.ShiftTypeID]
		if !ok || ev.RawRule != "" {
			continue
		}
		wantStart, wantEnd := model.EntryInterval(model.Midnight(ev.Start), &t)
		if ev.Summary != t.Title || ev.AllDay != t.AllDay ||
			!ev.Start.Equal(wantStart) || !ev.End.Equal(wantEnd) {
			drifted = append(drifted, ev)
		}
	}
	for _, ev := range drifted {
		t := byID[ev.ShiftTypeID]
		rewriteEvent(cal, ev, &t, f.loc)
	}
	if len(drifted) == 0 {
		return 0, nil
	}
	if err := f.writeCalendar(cal); err != nil {
		return 0, err
	}
	f.logger.Info("resynced calendar against shift types", zap.Int("events", len(drifted)))
	return len(drifted), nil
}

// ── file plumbing ──

func (f *FileStore) readCalendar() (*ics.Calendar, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotAuthorized
		}
		return nil, fmt.Errorf("read calendar: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return ics.NewCalendar(), nil
	}
	cal, err := ics.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}
	return cal, nil
}

func (f *FileStore) writeCalendar(cal *ics.Calendar) error {
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(cal.Serialize()), 0o644); err != nil {
		return fmt.Errorf("write calendar: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace calendar: %w", err)
	}
	return nil
}

// parseBound returns the parsed form of every event bound to a shift type.
func (f *FileStore) parseBound(cal *ics.Calendar) []parsedShift {
	events, _ := parseShiftEvents(cal, f.loc)
	var bound []parsedShift
	for _, ev := range events {
		if ev.ShiftTypeID != "" {
			bound = append(bound, ev)
		}
	}
	return bound
}

// ── event plumbing ──

func appendShiftEvent(cal *ics.Calendar, uid string, t *model.ShiftType, start, end time.Time, notes string) {
	now := time.Now()
	evt := cal.AddEvent(uid)
	evt.SetDtStampTime(now)
	evt.SetCreatedTime(now)
	evt.SetModifiedAt(now)
	if t.AllDay {
		evt.SetAllDayStartAt(start)
		evt.SetAllDayEndAt(end)
	} else {
		evt.SetStartAt(start)
		evt.SetEndAt(end)
	}
	evt.SetSummary(t.Title)
	if notes != "" {
		evt.SetDescription(notes)
	}
	if t.Location != nil && t.Location.Name != "" {
		evt.SetLocation(t.Location.Name)
	}
	evt.SetProperty(ics.ComponentProperty(propShiftType), t.ShiftTypeID)
}

func rewriteEvent(cal *ics.Calendar, ev parsedShift, t *model.ShiftType, loc *time.Location) {
	day := model.Midnight(ev.Start.In(loc))
	start, end := model.EntryInterval(day, t)
	removeEvent(cal, ev.UID)
	appendShiftEvent(cal, ev.UID, t, start, end, ev.Description)
}

// deleteOne removes a single event, or excludes one occurrence of a
// recurring series via EXDATE.
func deleteOne(cal *ics.Calendar, id string) error {
	uid, stamp := splitOccurrenceID(id)
	evt := findEvent(cal, uid)
	if evt == nil {
		return ErrEventNotFound
	}
	if stamp != "" && evt.GetProperty(ics.ComponentPropertyRrule) != nil {
		inst, err := time.Parse(stampLayoutUTC, stamp)
		if err != nil {
			return fmt.Errorf("bad occurrence id %q: %w", id, err)
		}
		evt.AddProperty(ics.ComponentPropertyExdate, inst.UTC().Format(stampLayoutUTC))
		return nil
	}
	removeEvent(cal, uid)
	return nil
}

func findEvent(cal *ics.Calendar, uid string) *ics.VEvent {
	for _, evt := range cal.Events() {
		if eventUID(evt) == uid {
			return evt
		}
	}
	return nil
}

func removeEvent(cal *ics.Calendar, uid string) bool {
	kept := cal.Components[:0]
	removed := false
	for _, comp := range cal.Components {
		if evt, ok := comp.(*ics.VEvent); ok && eventUID(evt) == uid {
			removed = true
			continue
		}
		kept = append(kept, comp)
	}
	cal.Components = kept
	return removed
}

func eventUID(evt *ics.VEvent) string {
	if p := evt.GetProperty(ics.ComponentPropertyUniqueId); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}
