package middleware_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"shiftscheduler/internal/action"
	"shiftscheduler/internal/model"
	"shiftscheduler/pkg/apperr"
)

func TestSaveShiftTypeRejectsInvalidDuration(t *testing.T) {
	e := newEnv(t)

	e.store.Dispatch(action.SaveShiftType{ShiftType: model.ShiftType{
		ShiftTypeID: uuid.NewString(),
		Symbol:      "X",
		Title:       "Exactly 24h",
		StartMinute: 8 * 60,
		EndMinute:   8 * 60,
	}})
	e.drain(t)

	if k := apperr.KindOf(e.store.State().ShiftTypes.LastError); k != apperr.KindInvalidShiftData {
		t.Fatalf("LastError kind = %q, want invalid_shift_data", k)
	}
	types, _ := e.types.List(context.Background())
	if len(types) != 0 {
		t.Error("invalid type reached persistence")
	}
}

func TestSaveShiftTypeCascadesIntoCalendar(t *testing.T) {
	e := newEnv(t)
	dayType := e.seedType("Day", 9*60, 17*60)
	target := day(2025, time.June, 3)

	e.store.Dispatch(action.CreateShift{Date: target, ShiftTypeID: dayType.ShiftTypeID})
	e.store.Dispatch(action.DisplayedMonthChanged{Month: target})
	e.drain(t)

	renamed := dayType
	renamed.Title = "Day (front desk)"
	e.store.Dispatch(action.SaveShiftType{ShiftType: renamed})
	e.drain(t)

	st := e.store.State()
	if st.ShiftTypes.LastError != nil {
		t.Fatalf("unexpected error: %v", st.ShiftTypes.LastError)
	}
	// the cascade rewrote the scheduled event and the window reloaded
	entry, ok := st.Schedule.EntryOn(target)
	if !ok || entry.Title != "Day (front desk)" {
		t.Fatalf("entry after cascade = %+v, want renamed title", entry)
	}
	// catalog edits mark the row dirty and fire an upload-only pass
	saved, err := e.types.GetByID(context.Background(), dayType.ShiftTypeID)
	if err != nil {
		t.Fatal(err)
	}
	if saved.RemoteRev == 0 {
		t.Error("opportunistic upload did not run")
	}
}

func TestSaveLocationCascadesThroughItsShiftTypes(t *testing.T) {
	e := newEnv(t)
	loc := model.Location{LocationID: uuid.NewString(), Name: "Main ward"}
	if err := e.locs.Save(context.Background(), &loc); err != nil {
		t.Fatal(err)
	}
	boundType := model.ShiftType{
		ShiftTypeID: uuid.NewString(),
		Symbol:      "D",
		Title:       "Day",
		StartMinute: 9 * 60,
		EndMinute:   17 * 60,
		LocationID:  &loc.LocationID,
	}
	e.types.put(boundType)
	target := day(2025, time.June, 3)

	e.store.Dispatch(action.CreateShift{Date: target, ShiftTypeID: boundType.ShiftTypeID})
	e.store.Dispatch(action.DisplayedMonthChanged{Month: target})
	e.drain(t)

	loc.Name = "East wing"
	e.store.Dispatch(action.SaveLocation{Location: loc})
	e.drain(t)

	st := e.store.State()
	if st.Locations.LastError != nil {
		t.Fatalf("unexpected error: %v", st.Locations.LastError)
	}
	got := st.Locations.ByID(loc.LocationID)
	if got == nil || got.Name != "East wing" {
		t.Fatalf("location in state = %+v, want East wing", got)
	}
	// the cascade touched the bound type's events, so the window reloaded
	if _, ok := st.Schedule.EntryOn(target); !ok {
		t.Error("scheduled entry lost across the cascade")
	}
}

func TestSaveLocationRequiresName(t *testing.T) {
	e := newEnv(t)

	e.store.Dispatch(action.SaveLocation{Location: model.Location{LocationID: uuid.NewString()}})
	e.drain(t)

	if k := apperr.KindOf(e.store.State().Locations.LastError); k != apperr.KindInvalidShiftData {
		t.Fatalf("LastError kind = %q, want invalid_shift_data", k)
	}
}

func TestDeleteShiftTypeKeepsScheduledEntries(t *testing.T) {
	e := newEnv(t)
	dayType := e.seedType("Day", 9*60, 17*60)
	target := day(2025, time.June, 3)

	e.store.Dispatch(action.CreateShift{Date: target, ShiftTypeID: dayType.ShiftTypeID})
	e.drain(t)
	e.store.Dispatch(action.DeleteShiftType{ShiftTypeID: dayType.ShiftTypeID})
	e.drain(t)

	st := e.store.State()
	if st.ShiftTypes.ByID(dayType.ShiftTypeID) != nil {
		t.Error("deleted type still in state")
	}
	// already scheduled entries survive the catalog delete
	if e.cal.count() != 1 {
		t.Errorf("calendar entries = %d, want 1", e.cal.count())
	}
}

func TestSettingsSeededOnFirstLoad(t *testing.T) {
	e := newEnv(t)

	e.store.Dispatch(action.LoadSettings{})
	e.drain(t)

	st := e.store.State()
	if !st.Settings.Loaded {
		t.Fatal("settings not loaded")
	}
	if st.Settings.Settings.UserID == "" || st.Settings.Settings.UserName != "tester" {
		t.Errorf("seeded settings = %+v", st.Settings.Settings)
	}
	// the seed is persisted, so the identity is stable across loads
	row, err := e.settings.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if row.UserID != st.Settings.Settings.UserID {
		t.Error("persisted seed differs from state")
	}
}

func TestSaveSettingsRejectsNegativeRetention(t *testing.T) {
	e := newEnv(t)

	e.store.Dispatch(action.SaveSettings{Settings: model.Settings{UserID: uuid.NewString(), RetentionDays: -1}})
	e.drain(t)

	if k := apperr.KindOf(e.store.State().Settings.LastError); k != apperr.KindInvalidShiftData {
		t.Fatalf("LastError kind = %q, want invalid_shift_data", k)
	}
}
