package action

import (
	"shiftscheduler/internal/model"
	"shiftscheduler/pkg/apperr"
)

// ── locations ──

// LoadLocations reloads all locations from persistence.
type LoadLocations struct{}

// LocationsLoaded replaces the location list.
type LocationsLoaded struct {
	Items []model.Location
}

// SaveLocation creates or updates a location. Address/name changes cascade
// into every shift type referencing it.
type SaveLocation struct {
	Location model.Location
}

// LocationSaved confirms a save.
type LocationSaved struct {
	Location model.Location
}

// DeleteLocation removes a location.
type DeleteLocation struct {
	LocationID string
}

// LocationDeleted confirms a delete.
type LocationDeleted struct {
	LocationID string
}

// LocationOpFailed reports any failed location operation.
type LocationOpFailed struct {
	Err *apperr.Error
}

// ── shift types ──

// LoadShiftTypes reloads all shift types from persistence.
type LoadShiftTypes struct{}

// ShiftTypesLoaded replaces the shift-type list.
type ShiftTypesLoaded struct {
	Items []model.ShiftType
}

// SaveShiftType creates or updates a shift type; updates cascade into the
// calendar events already scheduled with it.
type SaveShiftType struct {
	ShiftType model.ShiftType
}

// ShiftTypeSaved confirms a save; CascadedEvents counts rewritten calendar
// events.
type ShiftTypeSaved struct {
	ShiftType      model.ShiftType
	CascadedEvents int
}

// DeleteShiftType removes a shift type.
type DeleteShiftType struct {
	ShiftTypeID string
}

// ShiftTypeDeleted confirms a delete.
type ShiftTypeDeleted struct {
	ShiftTypeID string
}

// ShiftTypeOpFailed reports any failed shift-type operation.
type ShiftTypeOpFailed struct {
	Err *apperr.Error
}

// ── settings ──

// LoadSettings reloads the settings row.
type LoadSettings struct{}

// SettingsLoaded installs settings state.
type SettingsLoaded struct {
	Settings model.Settings
}

// SaveSettings persists edited settings.
type SaveSettings struct {
	Settings model.Settings
}

// SettingsSaved confirms a save.
type SettingsSaved struct {
	Settings model.Settings
}

// SettingsOpFailed reports a failed settings operation.
type SettingsOpFailed struct {
	Err *apperr.Error
}

func (LoadLocations) isAction()     {}
func (LocationsLoaded) isAction()   {}
func (SaveLocation) isAction()      {}
func (LocationSaved) isAction()     {}
func (DeleteLocation) isAction()    {}
func (LocationDeleted) isAction()   {}
func (LocationOpFailed) isAction()  {}
func (LoadShiftTypes) isAction()    {}
func (ShiftTypesLoaded) isAction()  {}
func (SaveShiftType) isAction()     {}
func (ShiftTypeSaved) isAction()    {}
func (DeleteShiftType) isAction()   {}
func (ShiftTypeDeleted) isAction()  {}
func (ShiftTypeOpFailed) isAction() {}
func (LoadSettings) isAction()      {}
func (SettingsLoaded) isAction()    {}
func (SaveSettings) isAction()      {}
func (SettingsSaved) isAction()     {}
func (SettingsOpFailed) isAction()  {}
