package middleware

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"shiftscheduler/internal/action"
	"shiftscheduler/internal/calendar"
	"shiftscheduler/internal/model"
	"shiftscheduler/internal/remote"
	"shiftscheduler/internal/repository"
	"shiftscheduler/internal/state"
	"shiftscheduler/pkg/apperr"
)

// Catalog manages the location and shift-type catalogs and the settings row.
// Every save or delete marks the record dirty and opportunistically fires an
// upload-only sync pass when the remote reports itself available; availability
// is probed live on every trigger, never cached.
type Catalog struct {
	repo     *repository.Repository
	calendar calendar.Service
	remote   remote.Service
	dispatch Dispatcher
	logger   *zap.Logger
	seed     model.Settings
}

// NewCatalog creates the catalog middleware. seed fills the settings row on
// first run.
func NewCatalog(repo *repository.Repository, cal calendar.Service, rem remote.Service, d Dispatcher, logger *zap.Logger, seed model.Settings) *Catalog {
	return &Catalog{
		repo:     repo,
		calendar: cal,
		remote:   rem,
		dispatch: d,
		logger:   logger,
		seed:     seed,
	}
}

func (m *Catalog) Handle(ctx context.Context, a action.Action, prev, next state.State) {
	switch a := a.(type) {
	case action.LoadLocations:
		m.loadLocations(ctx)
	case action.SaveLocation:
		m.saveLocation(ctx, a, next)
	case action.DeleteLocation:
		m.deleteLocation(ctx, a)
	case action.LoadShiftTypes:
		m.loadShiftTypes(ctx)
	case action.SaveShiftType:
		m.saveShiftType(ctx, a, next)
	case action.DeleteShiftType:
		m.deleteShiftType(ctx, a)
	case action.LoadSettings:
		m.loadSettings(ctx)
	case action.SaveSettings:
		m.saveSettings(ctx, a)
	}
}

// ── locations ──

func (m *Catalog) loadLocations(ctx context.Context) {
	items, err := m.repo.Locations.List(ctx)
	if err != nil {
		m.logger.Error("location reload failed", zap.Error(err))
		m.dispatch.Dispatch(action.LocationOpFailed{Err: apperr.PersistenceFailed(err)})
		return
	}
	m.dispatch.Dispatch(action.LocationsLoaded{Items: items})
}

func (m *Catalog) saveLocation(ctx context.Context, a action.SaveLocation, st state.State) {
	loc := a.Location
	if loc.Name == "" {
		m.dispatch.Dispatch(action.LocationOpFailed{Err: apperr.InvalidShiftData("location name must not be empty")})
		return
	}
	if err := m.repo.Locations.Save(ctx, &loc); err != nil {
		m.logger.Error("location save failed", zap.String("location", loc.LocationID), zap.Error(err))
		m.dispatch.Dispatch(action.LocationOpFailed{Err: apperr.PersistenceFailed(err)})
		return
	}

	// A name/address edit flows into every shift type referencing the
	// location, and from there into the calendar events' location text.
	types, err := m.repo.ShiftTypes.ListByLocation(ctx, loc.LocationID)
	if err != nil {
		m.logger.Error("cascade lookup failed", zap.String("location", loc.LocationID), zap.Error(err))
		m.dispatch.Dispatch(action.LocationOpFailed{Err: apperr.PersistenceFailed(err)})
		return
	}
	for i := range types {
		if _, err := m.calendar.CascadeShiftTypeUpdate(ctx, types[i]); err != nil {
			m.logger.Error("calendar cascade failed",
				zap.String("shift_type", types[i].ShiftTypeID), zap.Error(err))
		}
	}

	m.dispatch.Dispatch(action.LocationSaved{Location: loc})
	m.dispatch.Dispatch(action.LoadLocations{})
	m.dispatch.Dispatch(action.LoadShiftTypes{})
	if len(types) > 0 {
		m.dispatch.Dispatch(action.LoadWindow{Pivot: reloadPivot(st)})
	}
	m.maybeUpload(ctx)
}

func (m *Catalog) deleteLocation(ctx context.Context, a action.DeleteLocation) {
	if err := m.repo.Locations.Delete(ctx, a.LocationID); err != nil {
		m.logger.Error("location delete failed", zap.String("location", a.LocationID), zap.Error(err))
		m.dispatch.Dispatch(action.LocationOpFailed{Err: apperr.PersistenceFailed(err)})
		return
	}
	m.dispatch.Dispatch(action.LocationDeleted{LocationID: a.LocationID})
	m.dispatch.Dispatch(action.LoadLocations{})
	m.dispatch.Dispatch(action.LoadShiftTypes{})
	m.maybeUpload(ctx)
}

// ── shift types ──

func (m *Catalog) loadShiftTypes(ctx context.Context) {
	items, err := m.repo.ShiftTypes.List(ctx)
	if err != nil {
		m.logger.Error("shift type reload failed", zap.Error(err))
		m.dispatch.Dispatch(action.ShiftTypeOpFailed{Err: apperr.PersistenceFailed(err)})
		return
	}
	m.dispatch.Dispatch(action.ShiftTypesLoaded{Items: items})
}

func (m *Catalog) saveShiftType(ctx context.Context, a action.SaveShiftType, st state.State) {
	t := a.ShiftType
	if err := t.Validate(); err != nil {
		m.dispatch.Dispatch(action.ShiftTypeOpFailed{Err: apperr.Wrap(err, apperr.KindInvalidShiftData)})
		return
	}
	if err := m.repo.ShiftTypes.Save(ctx, &t); err != nil {
		m.logger.Error("shift type save failed", zap.String("shift_type", t.ShiftTypeID), zap.Error(err))
		m.dispatch.Dispatch(action.ShiftTypeOpFailed{Err: apperr.PersistenceFailed(err)})
		return
	}

	// Events already scheduled with the type follow its new definition.
	// Reload the saved row first so the cascade sees the joined location.
	saved, err := m.repo.ShiftTypes.GetByID(ctx, t.ShiftTypeID)
	if err != nil {
		m.dispatch.Dispatch(action.ShiftTypeOpFailed{Err: apperr.PersistenceFailed(err)})
		return
	}
	cascaded, err := m.calendar.CascadeShiftTypeUpdate(ctx, *saved)
	if err != nil {
		m.logger.Error("calendar cascade failed", zap.String("shift_type", t.ShiftTypeID), zap.Error(err))
		m.dispatch.Dispatch(action.ShiftTypeOpFailed{Err: apperr.Wrap(err, apperr.KindShiftSwitchFailed)})
		return
	}

	m.dispatch.Dispatch(action.ShiftTypeSaved{ShiftType: *saved, CascadedEvents: cascaded})
	m.dispatch.Dispatch(action.LoadShiftTypes{})
	if cascaded > 0 {
		m.dispatch.Dispatch(action.LoadWindow{Pivot: reloadPivot(st)})
	}
	m.maybeUpload(ctx)
}

func (m *Catalog) deleteShiftType(ctx context.Context, a action.DeleteShiftType) {
	if err := m.repo.ShiftTypes.Delete(ctx, a.ShiftTypeID); err != nil {
		m.logger.Error("shift type delete failed", zap.String("shift_type", a.ShiftTypeID), zap.Error(err))
		m.dispatch.Dispatch(action.ShiftTypeOpFailed{Err: apperr.PersistenceFailed(err)})
		return
	}
	m.dispatch.Dispatch(action.ShiftTypeDeleted{ShiftTypeID: a.ShiftTypeID})
	m.dispatch.Dispatch(action.LoadShiftTypes{})
	m.maybeUpload(ctx)
}

// ── settings ──

// loadSettings installs the persisted row, seeding it on first run so the
// change log always has an author identity.
func (m *Catalog) loadSettings(ctx context.Context) {
	s, err := m.repo.Settings.Get(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		seeded := m.seed
		if err := m.repo.Settings.Save(ctx, &seeded); err != nil {
			m.dispatch.Dispatch(action.SettingsOpFailed{Err: apperr.PersistenceFailed(err)})
			return
		}
		m.dispatch.Dispatch(action.SettingsLoaded{Settings: seeded})
		return
	}
	if err != nil {
		m.logger.Error("settings load failed", zap.Error(err))
		m.dispatch.Dispatch(action.SettingsOpFailed{Err: apperr.PersistenceFailed(err)})
		return
	}
	m.dispatch.Dispatch(action.SettingsLoaded{Settings: *s})
}

func (m *Catalog) saveSettings(ctx context.Context, a action.SaveSettings) {
	s := a.Settings
	if s.RetentionDays < 0 {
		m.dispatch.Dispatch(action.SettingsOpFailed{Err: apperr.InvalidShiftData("retention days must not be negative")})
		return
	}
	if err := m.repo.Settings.Save(ctx, &s); err != nil {
		m.logger.Error("settings save failed", zap.Error(err))
		m.dispatch.Dispatch(action.SettingsOpFailed{Err: apperr.PersistenceFailed(err)})
		return
	}
	m.dispatch.Dispatch(action.SettingsSaved{Settings: s})
}

// ── sync trigger ──

// maybeUpload fires an upload-only sync pass when the remote answers its
// health probe right now.
func (m *Catalog) maybeUpload(ctx context.Context) {
	if m.remote == nil || !m.remote.IsAvailable(ctx) {
		return
	}
	m.dispatch.Dispatch(action.StartSync{UploadOnly: true})
}
