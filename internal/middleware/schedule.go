package middleware

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"shiftscheduler/internal/action"
	"shiftscheduler/internal/calendar"
	"shiftscheduler/internal/model"
	"shiftscheduler/internal/repository"
	"shiftscheduler/internal/schedule"
	"shiftscheduler/internal/state"
	"shiftscheduler/pkg/apperr"
)

// Schedule drives the calendar window and every entry edit: loads, the strict
// post-create overlap check with rollback, bulk batches, and overlap
// resolution.
type Schedule struct {
	calendar calendar.Service
	repo     *repository.Repository
	dispatch Dispatcher
	logger   *zap.Logger
	offset   int
}

// NewSchedule creates the schedule middleware with the default window width.
func NewSchedule(cal calendar.Service, repo *repository.Repository, d Dispatcher, logger *zap.Logger) *Schedule {
	return &Schedule{
		calendar: cal,
		repo:     repo,
		dispatch: d,
		logger:   logger,
		offset:   schedule.DefaultMonthOffset,
	}
}

func (m *Schedule) Handle(ctx context.Context, a action.Action, prev, next state.State) {
	switch a := a.(type) {
	case action.LoadWindow:
		m.loadWindow(ctx, a)
	case action.WindowLoaded:
		m.scanLoaded(next)
	case action.DisplayedMonthChanged:
		m.maybeReload(a, next)
	case action.CreateShift:
		m.create(ctx, a)
	case action.SwitchShift:
		m.switchShift(ctx, a, next)
	case action.DeleteShift:
		m.deleteShift(ctx, a, next)
	case action.BulkAdd:
		m.bulkAdd(ctx, a, next)
	case action.BulkAddDistinct:
		m.bulkAddDistinct(ctx, a.Assignments, next)
	case action.BulkDelete:
		m.bulkDelete(ctx, a, next)
	case action.ResolveOverlap:
		m.resolveOverlap(ctx, a, next)
	}
}

// ── window loading ──

func (m *Schedule) loadWindow(ctx context.Context, a action.LoadWindow) {
	offset := a.Offset
	if offset <= 0 {
		offset = m.offset
	}
	entries, rng, err := m.calendar.LoadAroundMonth(ctx, a.Pivot, offset)
	if err != nil {
		m.logger.Error("window load failed", zap.Time("pivot", a.Pivot), zap.Error(err))
		m.dispatch.Dispatch(action.WindowLoadFailed{Err: apperr.Wrap(err, apperr.KindPersistenceFailed)})
		return
	}
	m.dispatch.Dispatch(action.WindowLoaded{Entries: entries, Range: rng})
}

// scanLoaded is the advisory post-load scan: every freshly installed window is
// checked for the first overlapping pair, whoever loaded it. The reducer keeps
// entries sorted by start, which the scan relies on.
func (m *Schedule) scanLoaded(st state.State) {
	if first, second, found := schedule.FindFirstOverlap(st.Schedule.Entries); found {
		m.dispatch.Dispatch(action.OverlapDetected{
			First:  first,
			Second: second,
			Date:   schedule.EarlierDate(first, second),
		})
	}
}

// maybeReload refills the window when navigation reaches an edge month. With
// no range loaded yet this is the initial-load case and stays quiet.
func (m *Schedule) maybeReload(a action.DisplayedMonthChanged, st state.State) {
	if schedule.NeedsReload(st.Schedule.Range, a.Month) {
		m.dispatch.Dispatch(action.LoadWindow{Pivot: model.MonthStart(a.Month), Offset: m.offset})
	}
}

// ── single-entry edits ──

func (m *Schedule) create(ctx context.Context, a action.CreateShift) {
	// 1. resolve and validate the shift type
	t, aerr := m.shiftType(ctx, a.ShiftTypeID)
	if aerr != nil {
		m.dispatch.Dispatch(action.CreateShiftFailed{Err: aerr})
		return
	}

	// 2. write the calendar event
	entry, err := m.calendar.Create(ctx, a.Date, *t, a.Notes)
	if err != nil {
		m.logger.Error("create shift failed", zap.Time("date", a.Date), zap.Error(err))
		m.dispatch.Dispatch(action.CreateShiftFailed{Err: apperr.EventCreationFailed(err)})
		return
	}

	// 3. reload the affected window for the strict post-create check
	entries, rng, err := m.calendar.LoadAroundMonth(ctx, a.Date, m.offset)
	if err != nil {
		// The write cannot be validated, so it does not stand.
		m.rollbackCreate(ctx, entry)
		m.dispatch.Dispatch(action.CreateShiftFailed{Err: apperr.EventCreationFailed(err)})
		return
	}

	// 4. any overlap rolls the write back before control returns
	if conflicts := schedule.Conflicting(entries, entry); len(conflicts) > 0 {
		m.rollbackCreate(ctx, entry)
		titles := make([]string, 0, len(conflicts))
		for _, c := range conflicts {
			titles = append(titles, c.Title)
		}
		m.logger.Warn("create rolled back on overlap",
			zap.Time("date", a.Date), zap.Strings("existing", titles))
		m.dispatch.Dispatch(action.CreateShiftFailed{Err: apperr.OverlappingShifts(model.Midnight(a.Date), titles...)})
		m.dispatch.Dispatch(action.LoadWindow{Pivot: a.Date, Offset: m.offset})
		return
	}

	m.dispatch.Dispatch(action.ShiftCreated{Entry: entry})
	m.dispatch.Dispatch(action.WindowLoaded{Entries: entries, Range: rng})
}

func (m *Schedule) rollbackCreate(ctx context.Context, entry model.ScheduledEntry) {
	if err := m.calendar.Delete(ctx, entry.ID); err != nil {
		m.logger.Error("compensating delete failed", zap.String("entry", entry.ID), zap.Error(err))
	}
}

func (m *Schedule) switchShift(ctx context.Context, a action.SwitchShift, st state.State) {
	// 1. the date must carry a loaded entry
	entry, ok := st.Schedule.EntryOn(a.Date)
	if !ok {
		m.dispatch.Dispatch(action.SwitchShiftFailed{Err: apperr.ShiftNotFound()})
		return
	}

	// 2. resolve and validate the replacement type
	t, aerr := m.shiftType(ctx, a.ShiftTypeID)
	if aerr != nil {
		m.dispatch.Dispatch(action.SwitchShiftFailed{Err: aerr})
		return
	}

	// 3. capture the before snapshot while the old binding is still readable
	oldSnap := m.snapshotFor(ctx, entry)

	// 4. rewrite the calendar event
	if err := m.calendar.Update(ctx, entry.ID, *t, a.Date); err != nil {
		m.logger.Error("switch shift failed", zap.Time("date", a.Date), zap.Error(err))
		m.dispatch.Dispatch(action.SwitchShiftFailed{Err: apperr.ShiftSwitchFailed(err)})
		return
	}

	// 5. log the reversible edit, then refresh window and log views
	logEntry := newLogEntry(st, model.ChangeSwitched, a.Date, oldSnap, t.Snapshot(), a.Reason)
	if err := m.repo.ChangeLog.Append(ctx, []model.ChangeLogEntry{logEntry}); err != nil {
		m.logger.Error("change log append failed", zap.Error(err))
		m.dispatch.Dispatch(action.SwitchShiftFailed{Err: apperr.PersistenceFailed(err)})
		m.dispatch.Dispatch(action.LoadWindow{Pivot: a.Date, Offset: m.offset})
		return
	}
	m.dispatch.Dispatch(action.ChangesLogged{Entries: []model.ChangeLogEntry{logEntry}})
	m.dispatch.Dispatch(action.ShiftSwitched{Date: a.Date})
	m.dispatch.Dispatch(action.LoadWindow{Pivot: a.Date, Offset: m.offset})
	m.dispatch.Dispatch(action.LoadChangeLog{})
}

func (m *Schedule) deleteShift(ctx context.Context, a action.DeleteShift, st state.State) {
	entry, ok := st.Schedule.EntryOn(a.Date)
	if !ok {
		m.dispatch.Dispatch(action.DeleteShiftFailed{Err: apperr.ShiftNotFound()})
		return
	}

	oldSnap := m.snapshotFor(ctx, entry)

	if err := m.calendar.Delete(ctx, entry.ID); err != nil {
		m.logger.Error("delete shift failed", zap.Time("date", a.Date), zap.Error(err))
		m.dispatch.Dispatch(action.DeleteShiftFailed{Err: apperr.EventDeletionFailed(err)})
		return
	}

	logEntry := newLogEntry(st, model.ChangeDeleted, a.Date, oldSnap, nil, a.Reason)
	if err := m.repo.ChangeLog.Append(ctx, []model.ChangeLogEntry{logEntry}); err != nil {
		m.logger.Error("change log append failed", zap.Error(err))
		m.dispatch.Dispatch(action.DeleteShiftFailed{Err: apperr.PersistenceFailed(err)})
		m.dispatch.Dispatch(action.LoadWindow{Pivot: a.Date, Offset: m.offset})
		return
	}
	m.dispatch.Dispatch(action.ChangesLogged{Entries: []model.ChangeLogEntry{logEntry}})
	m.dispatch.Dispatch(action.ShiftDeleted{Date: a.Date})
	m.dispatch.Dispatch(action.LoadWindow{Pivot: a.Date, Offset: m.offset})
	m.dispatch.Dispatch(action.LoadChangeLog{})
}

// ── bulk operations ──

func (m *Schedule) bulkAdd(ctx context.Context, a action.BulkAdd, st state.State) {
	assignments := make([]action.DateAssignment, 0, len(a.Dates))
	for _, d := range a.Dates {
		assignments = append(assignments, action.DateAssignment{Date: d, ShiftTypeID: a.ShiftTypeID})
	}
	m.runBulkAdd(ctx, assignments, a.Notes, st)
}

func (m *Schedule) bulkAddDistinct(ctx context.Context, assignments []action.DateAssignment, st state.State) {
	m.runBulkAdd(ctx, assignments, "", st)
}

// runBulkAdd applies one batch all-or-nothing: occupancy is pre-validated
// across every target date, entries are created in date order, and a
// mid-batch failure compensates the already created entries away before the
// failure is reported.
func (m *Schedule) runBulkAdd(ctx context.Context, assignments []action.DateAssignment, notes string, st state.State) {
	if len(assignments) == 0 {
		m.dispatch.Dispatch(action.BulkAddCompleted{Created: 0})
		return
	}

	// 1. resolve every distinct type once
	types := make(map[string]*model.ShiftType, 2)
	for _, as := range assignments {
		if _, ok := types[as.ShiftTypeID]; ok {
			continue
		}
		t, aerr := m.shiftType(ctx, as.ShiftTypeID)
		if aerr != nil {
			m.dispatch.Dispatch(action.BulkAddFailed{Err: aerr})
			return
		}
		types[as.ShiftTypeID] = t
	}

	// 2. pre-validate occupancy across the whole batch
	dates := make([]time.Time, len(assignments))
	for i, as := range assignments {
		dates[i] = as.Date
	}
	if clashes := schedule.OccupiedDates(st.Schedule.Entries, dates); len(clashes) > 0 {
		m.dispatch.Dispatch(action.BulkAddFailed{Err: apperr.DuplicateShift(clashes[0])})
		return
	}

	// 3. create in date order
	ordered := append([]action.DateAssignment(nil), assignments...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Date.Before(ordered[j].Date) })

	created := make([]model.ScheduledEntry, 0, len(ordered))
	logEntries := make([]model.ChangeLogEntry, 0, len(ordered))
	for _, as := range ordered {
		t := types[as.ShiftTypeID]
		entry, err := m.calendar.Create(ctx, as.Date, *t, notes)
		if err != nil {
			m.logger.Error("bulk add failed mid-batch",
				zap.Time("date", as.Date), zap.Int("created", len(created)), zap.Error(err))
			m.compensateBatch(ctx, created)
			m.dispatch.Dispatch(action.BulkAddFailed{Err: apperr.EventCreationFailed(err)})
			m.dispatch.Dispatch(action.LoadWindow{Pivot: reloadPivot(st), Offset: m.offset})
			return
		}
		created = append(created, entry)
		logEntries = append(logEntries, newLogEntry(st, model.ChangeCreated, as.Date, nil, t.Snapshot(), "bulk added"))
	}

	// 4. batch goes to the append-only log but not onto the undo stack
	if err := m.repo.ChangeLog.Append(ctx, logEntries); err != nil {
		m.logger.Error("change log append failed", zap.Error(err))
		m.dispatch.Dispatch(action.BulkAddFailed{Err: apperr.PersistenceFailed(err)})
		m.dispatch.Dispatch(action.LoadWindow{Pivot: reloadPivot(st), Offset: m.offset})
		return
	}

	m.dispatch.Dispatch(action.BulkAddCompleted{Created: len(created)})
	m.dispatch.Dispatch(action.LoadWindow{Pivot: created[0].Date, Offset: m.offset})
	m.dispatch.Dispatch(action.LoadChangeLog{})
}

// compensateBatch deletes the entries a failed batch already wrote.
func (m *Schedule) compensateBatch(ctx context.Context, created []model.ScheduledEntry) {
	if len(created) == 0 {
		return
	}
	ids := make([]string, len(created))
	for i, e := range created {
		ids[i] = e.ID
	}
	if _, err := m.calendar.DeleteMany(ctx, ids); err != nil {
		m.logger.Error("batch compensation failed", zap.Int("entries", len(ids)), zap.Error(err))
	}
}

func (m *Schedule) bulkDelete(ctx context.Context, a action.BulkDelete, st state.State) {
	// 1. resolve ids against the loaded window; unknown ids drop silently
	var doomed []model.ScheduledEntry
	for _, id := range a.EntryIDs {
		if entry, ok := st.Schedule.EntryByID(id); ok {
			doomed = append(doomed, entry)
		}
	}
	if len(doomed) == 0 {
		m.dispatch.Dispatch(action.BulkDeleteCompleted{Deleted: 0})
		return
	}

	// 2. log first, one entry per item, persisted as a batch
	logEntries := make([]model.ChangeLogEntry, 0, len(doomed))
	for _, e := range doomed {
		logEntries = append(logEntries, newLogEntry(st, model.ChangeDeleted, e.Date, m.snapshotFor(ctx, e), nil, "bulk deleted"))
	}
	if err := m.repo.ChangeLog.Append(ctx, logEntries); err != nil {
		m.logger.Error("change log append failed", zap.Error(err))
		m.dispatch.Dispatch(action.BulkDeleteFailed{Err: apperr.PersistenceFailed(err)})
		return
	}

	// 3. delete the events as a batch
	ids := make([]string, len(doomed))
	for i, e := range doomed {
		ids[i] = e.ID
	}
	deleted, err := m.calendar.DeleteMany(ctx, ids)
	if err != nil {
		m.logger.Error("bulk delete failed", zap.Int("entries", len(ids)), zap.Error(err))
		m.dispatch.Dispatch(action.BulkDeleteFailed{Err: apperr.EventDeletionFailed(err)})
		m.dispatch.Dispatch(action.LoadWindow{Pivot: reloadPivot(st), Offset: m.offset})
		return
	}

	m.dispatch.Dispatch(action.ChangesLogged{Entries: logEntries})
	m.dispatch.Dispatch(action.BulkDeleteCompleted{Deleted: deleted})
	m.dispatch.Dispatch(action.LoadWindow{Pivot: doomed[0].Date, Offset: m.offset})
	m.dispatch.Dispatch(action.LoadChangeLog{})
}

// ── overlap resolution ──

func (m *Schedule) resolveOverlap(ctx context.Context, a action.ResolveOverlap, st state.State) {
	alert := st.Schedule.Overlap
	if alert == nil {
		m.dispatch.Dispatch(action.ResolveOverlapFailed{Err: apperr.ShiftNotFound()})
		return
	}

	var doomed []model.ScheduledEntry
	switch a.KeepEntryID {
	case alert.First.ID:
		doomed = []model.ScheduledEntry{alert.Second}
	case alert.Second.ID:
		doomed = []model.ScheduledEntry{alert.First}
	default:
		m.dispatch.Dispatch(action.ResolveOverlapFailed{Err: apperr.ShiftNotFound()})
		return
	}

	logEntries := make([]model.ChangeLogEntry, 0, len(doomed))
	for _, e := range doomed {
		if err := m.calendar.Delete(ctx, e.ID); err != nil {
			m.logger.Error("overlap resolution delete failed", zap.String("entry", e.ID), zap.Error(err))
			m.dispatch.Dispatch(action.ResolveOverlapFailed{Err: apperr.EventDeletionFailed(err)})
			return
		}
		logEntries = append(logEntries, newLogEntry(st, model.ChangeDeleted, e.Date, m.snapshotFor(ctx, e), nil, "resolved overlapping shifts"))
	}

	if err := m.repo.ChangeLog.Append(ctx, logEntries); err != nil {
		m.logger.Error("change log append failed", zap.Error(err))
		m.dispatch.Dispatch(action.ResolveOverlapFailed{Err: apperr.PersistenceFailed(err)})
		m.dispatch.Dispatch(action.LoadWindow{Pivot: alert.Date, Offset: m.offset})
		return
	}
	m.dispatch.Dispatch(action.ChangesLogged{Entries: logEntries})
	m.dispatch.Dispatch(action.OverlapResolved{Deleted: len(doomed)})
	m.dispatch.Dispatch(action.LoadWindow{Pivot: alert.Date, Offset: m.offset})
	m.dispatch.Dispatch(action.LoadChangeLog{})
}

// ── shared lookups ──

// shiftType resolves and validates a catalog type, mapping the two lookup
// failures onto the error taxonomy.
func (m *Schedule) shiftType(ctx context.Context, id string) (*model.ShiftType, *apperr.Error) {
	t, err := m.repo.ShiftTypes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.InvalidShiftData("unknown shift type " + id)
		}
		return nil, apperr.PersistenceFailed(err)
	}
	if err := t.Validate(); err != nil {
		return nil, apperr.Wrap(err, apperr.KindInvalidShiftData)
	}
	return t, nil
}

// snapshotFor captures the display form of the type behind a loaded entry.
// Entries whose type is gone fall back to their own display fields.
func (m *Schedule) snapshotFor(ctx context.Context, e model.ScheduledEntry) *model.ShiftSnapshot {
	if e.ShiftTypeID != "" {
		if t, err := m.repo.ShiftTypes.GetByID(ctx, e.ShiftTypeID); err == nil {
			return t.Snapshot()
		}
	}
	return &model.ShiftSnapshot{ShiftTypeID: e.ShiftTypeID, Title: e.Title}
}
