package middleware

import (
	"context"

	"go.uber.org/zap"

	"shiftscheduler/internal/action"
	"shiftscheduler/internal/repository"
	"shiftscheduler/internal/state"
	"shiftscheduler/pkg/apperr"
)

// changeLogViewLimit bounds how many log entries a reload materializes for
// display; the metadata query still covers the whole table.
const changeLogViewLimit = 200

// ChangeLog keeps the persisted command log in step with the in-memory
// stacks: it persists both stacks after every stack movement the reducer
// makes, restores them at startup, and serves log reloads and purges.
type ChangeLog struct {
	repo     *repository.Repository
	dispatch Dispatcher
	logger   *zap.Logger
}

// NewChangeLog creates the command-log middleware.
func NewChangeLog(repo *repository.Repository, d Dispatcher, logger *zap.Logger) *ChangeLog {
	return &ChangeLog{repo: repo, dispatch: d, logger: logger}
}

func (m *ChangeLog) Handle(ctx context.Context, a action.Action, prev, next state.State) {
	switch a := a.(type) {
	case action.ChangesLogged:
		m.persistStacks(next)
	case action.Undo:
		m.undo(prev, next)
	case action.Redo:
		m.redo(prev, next)
	case action.RestoreStacks:
		m.restore()
	case action.LoadChangeLog:
		m.load(ctx)
	case action.PurgeChangeLog:
		m.purge(ctx, a)
	}
}

// persistStacks writes both stacks as they stand after the reduction. Stack
// movement has already happened in state; a persistence failure is logged and
// surfaced but not rolled back, the stacks re-persist on the next movement.
func (m *ChangeLog) persistStacks(st state.State) bool {
	cl := st.ChangeLog
	if err := m.repo.Stacks.SaveStacks(cl.UndoStack, cl.RedoStack); err != nil {
		m.logger.Error("persisting undo/redo stacks failed",
			zap.Int("undo", len(cl.UndoStack)),
			zap.Int("redo", len(cl.RedoStack)),
			zap.Error(err))
		return false
	}
	return true
}

// undo runs after the reducer moved the top undo entry onto the redo stack.
// The empty-stack guard reads the pre-reduction snapshot: the reducer left
// state untouched in that case, and the middleware owns the failure report.
func (m *ChangeLog) undo(prev, next state.State) {
	if !prev.ChangeLog.CanUndo() {
		m.dispatch.Dispatch(action.UndoFailed{Err: apperr.UndoStackEmpty()})
		return
	}
	if !m.persistStacks(next) {
		m.dispatch.Dispatch(action.UndoFailed{Err: apperr.PersistenceFailed(nil)})
		return
	}
	m.dispatch.Dispatch(action.LoadWindow{Pivot: reloadPivot(next)})
	m.dispatch.Dispatch(action.LoadChangeLog{})
}

func (m *ChangeLog) redo(prev, next state.State) {
	if !prev.ChangeLog.CanRedo() {
		m.dispatch.Dispatch(action.RedoFailed{Err: apperr.RedoStackEmpty()})
		return
	}
	if !m.persistStacks(next) {
		m.dispatch.Dispatch(action.RedoFailed{Err: apperr.PersistenceFailed(nil)})
		return
	}
	m.dispatch.Dispatch(action.LoadWindow{Pivot: reloadPivot(next)})
	m.dispatch.Dispatch(action.LoadChangeLog{})
}

func (m *ChangeLog) restore() {
	undo, redo, err := m.repo.Stacks.LoadStacks()
	if err != nil {
		m.logger.Error("restoring undo/redo stacks failed", zap.Error(err))
		m.dispatch.Dispatch(action.StackRestorationFailed{Err: apperr.StackRestorationFailed(err)})
		return
	}
	m.dispatch.Dispatch(action.StacksRestored{Undo: undo, Redo: redo})
}

func (m *ChangeLog) load(ctx context.Context) {
	entries, err := m.repo.ChangeLog.List(ctx, changeLogViewLimit)
	if err != nil {
		m.logger.Error("change log reload failed", zap.Error(err))
		m.dispatch.Dispatch(action.ChangeLogLoadFailed{Err: apperr.PersistenceFailed(err)})
		return
	}
	meta, err := m.repo.ChangeLog.Meta(ctx)
	if err != nil {
		m.logger.Error("change log metadata query failed", zap.Error(err))
		m.dispatch.Dispatch(action.ChangeLogLoadFailed{Err: apperr.PersistenceFailed(err)})
		return
	}
	m.dispatch.Dispatch(action.ChangeLogLoaded{Entries: entries, Meta: meta})
}

func (m *ChangeLog) purge(ctx context.Context, a action.PurgeChangeLog) {
	removed, err := m.repo.ChangeLog.PurgeOlderThan(ctx, a.Cutoff)
	if err != nil {
		m.logger.Error("change log purge failed", zap.Time("cutoff", a.Cutoff), zap.Error(err))
		m.dispatch.Dispatch(action.ChangeLogPurgeFailed{Err: apperr.PersistenceFailed(err)})
		return
	}
	m.logger.Info("change log purged", zap.Int64("removed", removed), zap.Time("cutoff", a.Cutoff))
	m.dispatch.Dispatch(action.ChangeLogPurged{Removed: removed})
	m.dispatch.Dispatch(action.LoadChangeLog{})
}
