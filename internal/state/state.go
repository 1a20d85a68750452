// Package state holds the application state tree and the pure reducers that
// advance it. Reducers are total: they never fail, never touch I/O, and build
// changed slices copy-on-write so snapshots handed to middleware stay frozen.
package state

import "shiftscheduler/internal/action"

// State is the root tree. Each feature's branch is owned exclusively by its
// reducer; other features read it only through snapshots passed to them.
type State struct {
	Schedule   ScheduleState
	Locations  LocationsState
	ShiftTypes ShiftTypesState
	ChangeLog  ChangeLogState
	Settings   SettingsState
	Sync       SyncState
	Lifecycle  LifecycleState
}

// New returns the boot state.
func New() State {
	return State{
		Sync: SyncState{Status: SyncStatusNotConfigured},
	}
}

// Reduce is the composed root reducer: every feature reducer sees every
// action and ignores what is not addressed to it.
func Reduce(s State, a action.Action) State {
	s.Schedule = reduceSchedule(s.Schedule, a)
	s.Locations = reduceLocations(s.Locations, a)
	s.ShiftTypes = reduceShiftTypes(s.ShiftTypes, a)
	s.ChangeLog = reduceChangeLog(s.ChangeLog, a)
	s.Settings = reduceSettings(s.Settings, a)
	s.Sync = reduceSync(s.Sync, a)
	s.Lifecycle = reduceLifecycle(s.Lifecycle, a)
	return s
}
