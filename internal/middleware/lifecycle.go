package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"shiftscheduler/internal/action"
	"shiftscheduler/internal/calendar"
	"shiftscheduler/internal/repository"
	"shiftscheduler/internal/state"
	"shiftscheduler/pkg/apperr"
)

// Lifecycle runs the startup sequence as one ordered chain: restore the
// undo/redo stacks before anything else, load the author settings, obtain
// calendar access, materialize the wide startup window, then warm the
// catalogs and apply the retention purge. The steps dispatch in call order,
// so the stack restoration reduces before any schedule data lands.
type Lifecycle struct {
	repo     *repository.Repository
	calendar calendar.Service
	dispatch Dispatcher
	logger   *zap.Logger
}

// NewLifecycle creates the startup middleware.
func NewLifecycle(repo *repository.Repository, cal calendar.Service, d Dispatcher, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{repo: repo, calendar: cal, dispatch: d, logger: logger}
}

func (m *Lifecycle) Handle(ctx context.Context, a action.Action, prev, next state.State) {
	if _, ok := a.(action.AppStarted); !ok {
		return
	}
	m.start(ctx)
}

func (m *Lifecycle) start(ctx context.Context) {
	// 1. stacks first, so undo/redo availability is correct from first paint
	undo, redo, err := m.repo.Stacks.LoadStacks()
	if err != nil {
		m.logger.Error("stack restoration failed, starting empty", zap.Error(err))
		m.dispatch.Dispatch(action.StackRestorationFailed{Err: apperr.StackRestorationFailed(err)})
	} else {
		m.dispatch.Dispatch(action.StacksRestored{Undo: undo, Redo: redo})
	}

	// 2. author identity for change-log entries
	m.dispatch.Dispatch(action.LoadSettings{})

	// 3. calendar access; denial ends the schedule part of startup
	granted, err := m.calendar.RequestAccess(ctx)
	if err != nil || !granted {
		m.logger.Warn("calendar access denied", zap.Error(err))
		m.dispatch.Dispatch(action.CalendarAccessDenied{Err: apperr.CalendarAccessDenied(err)})
		return
	}
	m.dispatch.Dispatch(action.CalendarAccessGranted{})

	// 4. the wide startup window
	entries, rng, err := m.calendar.LoadExtendedRange(ctx)
	if err != nil {
		m.logger.Error("startup window load failed", zap.Error(err))
		m.dispatch.Dispatch(action.WindowLoadFailed{Err: apperr.Wrap(err, apperr.KindPersistenceFailed)})
	} else {
		m.dispatch.Dispatch(action.WindowLoaded{Entries: entries, Range: rng})
	}

	// 5. catalogs and the visible log
	m.dispatch.Dispatch(action.LoadLocations{})
	m.dispatch.Dispatch(action.LoadShiftTypes{})
	m.dispatch.Dispatch(action.LoadChangeLog{})

	// 6. retention purge when configured
	m.purgeByRetention(ctx)
}

// purgeByRetention reads the retention policy straight from persistence: the
// settings reduction from step 2 may not have landed in any snapshot this
// middleware holds.
func (m *Lifecycle) purgeByRetention(ctx context.Context) {
	s, err := m.repo.Settings.Get(ctx)
	if err != nil || s.RetentionDays <= 0 {
		return
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -s.RetentionDays)
	m.dispatch.Dispatch(action.PurgeChangeLog{Cutoff: cutoff})
}
