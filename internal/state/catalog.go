package state

import (
	"shiftscheduler/internal/action"
	"shiftscheduler/internal/model"
	"shiftscheduler/pkg/apperr"
)

// ── locations ──

// LocationsState holds the location catalog.
type LocationsState struct {
	Items     []model.Location
	LastError *apperr.Error
}

// ByID returns the location with the given id, or nil.
func (s *LocationsState) ByID(id string) *model.Location {
	for i := range s.Items {
		if s.Items[i].LocationID == id {
			return &s.Items[i]
		}
	}
	return nil
}

func reduceLocations(s LocationsState, a action.Action) LocationsState {
	switch a := a.(type) {
	case action.LocationsLoaded:
		s.Items = append([]model.Location(nil), a.Items...)
		s.LastError = nil

	case action.LocationSaved:
		items := append([]model.Location(nil), s.Items...)
		replaced := false
		for i := range items {
			if items[i].LocationID == a.Location.LocationID {
				items[i] = a.Location
				replaced = true
				break
			}
		}
		if !replaced {
			items = append(items, a.Location)
		}
		s.Items = items
		s.LastError = nil

	case action.LocationDeleted:
		items := make([]model.Location, 0, len(s.Items))
		for _, l := range s.Items {
			if l.LocationID != a.LocationID {
				items = append(items, l)
			}
		}
		s.Items = items
		s.LastError = nil

	case action.LocationOpFailed:
		s.LastError = a.Err
	}
	return s
}

// ── shift types ──

// ShiftTypesState holds the shift-type catalog.
type ShiftTypesState struct {
	Items     []model.ShiftType
	LastError *apperr.Error
}

// ByID returns the shift type with the given id, or nil.
func (s *ShiftTypesState) ByID(id string) *model.ShiftType {
	for i := range s.Items {
		if s.Items[i].ShiftTypeID == id {
			return &s.Items[i]
		}
	}
	return nil
}

// BySymbol returns the shift type carrying the given symbol, or nil.
func (s *ShiftTypesState) BySymbol(symbol string) *model.ShiftType {
	for i := range s.Items {
		if s.Items[i].Symbol == symbol {
			return &s.Items[i]
		}
	}
	return nil
}

func reduceShiftTypes(s ShiftTypesState, a action.Action) ShiftTypesState {
	switch a := a.(type) {
	case action.ShiftTypesLoaded:
		s.Items = append([]model.ShiftType(nil), a.Items...)
		s.LastError = nil

	case action.ShiftTypeSaved:
		items := append([]model.ShiftType(nil), s.Items...)
		replaced := false
		for i := range items {
			if items[i].ShiftTypeID == a.ShiftType.ShiftTypeID {
				items[i] = a.ShiftType
				replaced = true
				break
			}
		}
		if !replaced {
			items = append(items, a.ShiftType)
		}
		s.Items = items
		s.LastError = nil

	case action.ShiftTypeDeleted:
		items := make([]model.ShiftType, 0, len(s.Items))
		for _, t := range s.Items {
			if t.ShiftTypeID != a.ShiftTypeID {
				items = append(items, t)
			}
		}
		s.Items = items
		s.LastError = nil

	case action.ShiftTypeOpFailed:
		s.LastError = a.Err
	}
	return s
}

// ── settings ──

// SettingsState holds the singleton settings row once loaded.
type SettingsState struct {
	Settings  model.Settings
	Loaded    bool
	LastError *apperr.Error
}

func reduceSettings(s SettingsState, a action.Action) SettingsState {
	switch a := a.(type) {
	case action.SettingsLoaded:
		s.Settings = a.Settings
		s.Loaded = true
		s.LastError = nil

	case action.SettingsSaved:
		s.Settings = a.Settings
		s.Loaded = true
		s.LastError = nil

	case action.SettingsOpFailed:
		s.LastError = a.Err
	}
	return s
}
