package calendar

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"shiftscheduler/internal/model"
)

func writeFixture(path, body string) error {
	return os.WriteFile(path, []byte(body), 0o644)
}

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	f := NewFileStore(filepath.Join(t.TempDir(), "schedule.ics"), time.UTC, zap.NewNop())
	ok, err := f.RequestAccess(context.Background())
	if err != nil || !ok {
		t.Fatalf("request access: ok=%v err=%v", ok, err)
	}
	return f
}

func dayType() model.ShiftType {
	return model.ShiftType{ShiftTypeID: "day", Symbol: "D", Title: "Day shift", StartMinute: 9 * 60, EndMinute: 17 * 60}
}

func nightType() model.ShiftType {
	return model.ShiftType{ShiftTypeID: "night", Symbol: "N", Title: "Night shift", StartMinute: 22 * 60, EndMinute: 6 * 60}
}

func utcDay(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRequestAccessCreatesFile(t *testing.T) {
	f := NewFileStore(filepath.Join(t.TempDir(), "nested", "schedule.ics"), time.UTC, zap.NewNop())
	if f.IsAuthorized() {
		t.Fatal("store must not report authorized before access is granted")
	}
	ok, err := f.RequestAccess(context.Background())
	if err != nil || !ok {
		t.Fatalf("request access: ok=%v err=%v", ok, err)
	}
	if !f.IsAuthorized() {
		t.Fatal("store must report authorized once the file exists")
	}
}

func TestCreateAndLoadRoundTrip(t *testing.T) {
	f := newTestStore(t)
	ctx := context.Background()
	date := utcDay(2025, time.March, 10)

	entry, err := f.Create(ctx, date, dayType(), "cover for alex")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if entry.ID == "" || entry.ID != entry.EventID {
		t.Fatalf("single event must use its UID as id, got %q/%q", entry.ID, entry.EventID)
	}

	loaded, err := f.LoadBetween(ctx, date, date.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("loaded %d entries, want 1", len(loaded))
	}
	got := loaded[0]
	if got.Title != "Day shift" || got.ShiftTypeID != "day" || got.Notes != "cover for alex" {
		t.Errorf("round-trip lost fields: %+v", got)
	}
	wantStart := date.Add(9 * time.Hour)
	wantEnd := date.Add(17 * time.Hour)
	if !got.StartsAt.Equal(wantStart) || !got.EndsAt.Equal(wantEnd) {
		t.Errorf("interval = [%v, %v), want [%v, %v)", got.StartsAt, got.EndsAt, wantStart, wantEnd)
	}
}

func TestCreateOvernightSpillsIntoNextDay(t *testing.T) {
	f := newTestStore(t)
	date := utcDay(2025, time.March, 10)

	entry, err := f.Create(context.Background(), date, nightType(), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	wantEnd := utcDay(2025, time.March, 11).Add(6 * time.Hour)
	if !entry.EndsAt.Equal(wantEnd) {
		t.Fatalf("overnight end = %v, want %v", entry.EndsAt, wantEnd)
	}
}

func TestCreateAllDay(t *testing.T) {
	f := newTestStore(t)
	ctx := context.Background()
	date := utcDay(2025, time.April, 1)
	allDay := model.ShiftType{ShiftTypeID: "off", Symbol: "O", Title: "Day off", AllDay: true}

	if _, err := f.Create(ctx, date, allDay, ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	loaded, err := f.LoadBetween(ctx, date, date.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 || !loaded[0].AllDay {
		t.Fatalf("all-day flag lost: %+v", loaded)
	}
	if !loaded[0].StartsAt.Equal(date) || !loaded[0].EndsAt.Equal(date.AddDate(0, 0, 1)) {
		t.Errorf("all-day interval = [%v, %v)", loaded[0].StartsAt, loaded[0].EndsAt)
	}
}

func TestLoadAroundMonthRange(t *testing.T) {
	f := newTestStore(t)
	pivot := time.Date(2025, time.June, 20, 13, 0, 0, 0, time.UTC)

	_, r, err := f.LoadAroundMonth(context.Background(), pivot, 6)
	if err != nil {
		t.Fatalf("load around month: %v", err)
	}
	if !r.Start.Equal(utcDay(2025, time.January, 1)) || !r.End.Equal(utcDay(2025, time.December, 1)) {
		t.Fatalf("range = [%v, %v), want [2025-01-01, 2025-12-01)", r.Start, r.End)
	}
}

func TestUpdateSwitchesShiftKeepingIdentity(t *testing.T) {
	f := newTestStore(t)
	ctx := context.Background()
	date := utcDay(2025, time.March, 10)

	entry, err := f.Create(ctx, date, dayType(), "note stays")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.Update(ctx, entry.ID, nightType(), date); err != nil {
		t.Fatalf("update: %v", err)
	}

	loaded, err := f.LoadBetween(ctx, date, date.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("loaded %d entries, want 1", len(loaded))
	}
	got := loaded[0]
	if got.EventID != entry.EventID {
		t.Errorf("update must keep the event identity, got %q want %q", got.EventID, entry.EventID)
	}
	if got.Title != "Night shift" || got.ShiftTypeID != "night" {
		t.Errorf("switch not applied: %+v", got)
	}
	if got.Notes != "note stays" {
		t.Errorf("notes lost on switch: %q", got.Notes)
	}
}

func TestDeleteUnknownEvent(t *testing.T) {
	f := newTestStore(t)
	if err := f.Delete(context.Background(), "no-such-uid"); err != ErrEventNotFound {
		t.Fatalf("err = %v, want ErrEventNotFound", err)
	}
}

func TestDeleteManySkipsUnknownIDs(t *testing.T) {
	f := newTestStore(t)
	ctx := context.Background()
	a, _ := f.Create(ctx, utcDay(2025, time.March, 10), dayType(), "")
	b, _ := f.Create(ctx, utcDay(2025, time.March, 11), dayType(), "")

	n, err := f.DeleteMany(ctx, []string{a.ID, "ghost", b.ID})
	if err != nil {
		t.Fatalf("delete many: %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted = %d, want 2", n)
	}
	loaded, err := f.LoadBetween(ctx, utcDay(2025, time.March, 1), utcDay(2025, time.April, 1))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("entries remained after batch delete: %v", loaded)
	}
}

func TestCascadeShiftTypeUpdate(t *testing.T) {
	f := newTestStore(t)
	ctx := context.Background()
	f.Create(ctx, utcDay(2025, time.March, 10), dayType(), "")
	f.Create(ctx, utcDay(2025, time.March, 12), dayType(), "")
	f.Create(ctx, utcDay(2025, time.March, 11), nightType(), "")

	renamed := dayType()
	renamed.Title = "Core hours"
	renamed.StartMinute = 8 * 60
	renamed.EndMinute = 16 * 60

	n, err := f.CascadeShiftTypeUpdate(ctx, renamed)
	if err != nil {
		t.Fatalf("cascade: %v", err)
	}
	if n != 2 {
		t.Fatalf("rewrote %d events, want 2", n)
	}

	loaded, _ := f.LoadBetween(ctx, utcDay(2025, time.March, 1), utcDay(2025, time.April, 1))
	for _, e := range loaded {
		if e.ShiftTypeID == "day" {
			if e.Title != "Core hours" {
				t.Errorf("cascade missed title for %s: %q", e.ID, e.Title)
			}
			if e.StartsAt.Hour() != 8 || e.EndsAt.Hour() != 16 {
				t.Errorf("cascade missed times for %s: %v-%v", e.ID, e.StartsAt, e.EndsAt)
			}
		}
		if e.ShiftTypeID == "night" && e.Title != "Night shift" {
			t.Errorf("cascade touched an unrelated type: %+v", e)
		}
	}
}

func TestResyncAllRewritesOnlyDriftedEvents(t *testing.T) {
	f := newTestStore(t)
	ctx := context.Background()
	f.Create(ctx, utcDay(2025, time.March, 10), dayType(), "")
	f.Create(ctx, utcDay(2025, time.March, 11), nightType(), "")

	catalog := []model.ShiftType{dayType(), nightType()}
	n, err := f.ResyncAll(ctx, catalog)
	if err != nil {
		t.Fatalf("resync: %v", err)
	}
	if n != 0 {
		t.Fatalf("resync of an in-sync calendar rewrote %d events, want 0", n)
	}

	changed := dayType()
	changed.Title = "First half"
	n, err = f.ResyncAll(ctx, []model.ShiftType{changed, nightType()})
	if err != nil {
		t.Fatalf("resync: %v", err)
	}
	if n != 1 {
		t.Fatalf("resync rewrote %d events, want just the drifted one", n)
	}
}

// ── foreign recurring events ──

func recurringFixture() string {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//fixture//EN",
		"BEGIN:VEVENT",
		"UID:rotation-1",
		"DTSTAMP:20250101T000000Z",
		"DTSTART:20250106T220000Z",
		"DTEND:20250107T060000Z",
		"RRULE:FREQ=WEEKLY;COUNT=4",
		"SUMMARY:Night rotation",
		"END:VEVENT",
		"END:VCALENDAR",
	}
	return strings.Join(lines, "\r\n") + "\r\n"
}

func newRecurringStore(t *testing.T) *FileStore {
	t.Helper()
	f := newTestStore(t)
	if err := writeFixture(f.path, recurringFixture()); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return f
}

func TestRecurringEventExpands(t *testing.T) {
	f := newRecurringStore(t)

	loaded, err := f.LoadBetween(context.Background(), utcDay(2025, time.January, 1), utcDay(2025, time.February, 1))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 4 {
		t.Fatalf("expanded %d occurrences, want 4", len(loaded))
	}
	for i, e := range loaded {
		wantStart := time.Date(2025, time.January, 6+7*i, 22, 0, 0, 0, time.UTC)
		if !e.StartsAt.Equal(wantStart) {
			t.Errorf("occurrence %d starts %v, want %v", i, e.StartsAt, wantStart)
		}
		if e.EventID != "rotation-1" {
			t.Errorf("occurrence %d event id = %q", i, e.EventID)
		}
		if e.ID == e.EventID {
			t.Errorf("occurrence %d id must carry its start stamp, got %q", i, e.ID)
		}
	}
}

func TestDeleteOccurrenceAddsExclusion(t *testing.T) {
	f := newRecurringStore(t)
	ctx := context.Background()
	window := func() []model.ScheduledEntry {
		loaded, err := f.LoadBetween(ctx, utcDay(2025, time.January, 1), utcDay(2025, time.February, 1))
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		return loaded
	}

	before := window()
	if len(before) != 4 {
		t.Fatalf("fixture expanded to %d, want 4", len(before))
	}

	// Remove the second occurrence only.
	if err := f.Delete(ctx, before[1].ID); err != nil {
		t.Fatalf("delete occurrence: %v", err)
	}

	after := window()
	if len(after) != 3 {
		t.Fatalf("after exclusion %d occurrences remain, want 3", len(after))
	}
	for _, e := range after {
		if e.StartsAt.Equal(before[1].StartsAt) {
			t.Fatalf("excluded occurrence still present: %+v", e)
		}
	}
}

func TestUpdateRejectsRecurringOccurrence(t *testing.T) {
	f := newRecurringStore(t)
	loaded, err := f.LoadBetween(context.Background(), utcDay(2025, time.January, 1), utcDay(2025, time.February, 1))
	if err != nil || len(loaded) == 0 {
		t.Fatalf("load: %v (%d entries)", err, len(loaded))
	}
	if err := f.Update(context.Background(), loaded[0].ID, dayType(), loaded[0].Date); err != ErrForeignEvent {
		t.Fatalf("err = %v, want ErrForeignEvent", err)
	}
}
