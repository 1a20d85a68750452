package action

import (
	"time"

	"shiftscheduler/internal/model"
	"shiftscheduler/pkg/apperr"
)

// ChangesLogged records freshly persisted change-log entries. The reducer
// pushes them onto the undo stack (batch order preserved) and clears the redo
// stack; the changelog middleware then persists both stacks.
type ChangesLogged struct {
	Entries []model.ChangeLogEntry
}

// Undo moves the most recent undo-stack entry onto the redo stack.
type Undo struct{}

// Redo is the mirror of Undo.
type Redo struct{}

// UndoFailed reports an undo that could not proceed (empty stack, persistence).
type UndoFailed struct {
	Err *apperr.Error
}

// RedoFailed is the mirror of UndoFailed.
type RedoFailed struct {
	Err *apperr.Error
}

// RestoreStacks asks for the persisted stacks; dispatched during startup
// before any schedule data loads.
type RestoreStacks struct{}

// StacksRestored installs the persisted undo/redo stacks.
type StacksRestored struct {
	Undo []model.ChangeLogEntry
	Redo []model.ChangeLogEntry
}

// StackRestorationFailed reports unusable persisted stacks; the engine starts
// with empty ones.
type StackRestorationFailed struct {
	Err *apperr.Error
}

// LoadChangeLog reloads the visible change log from persistence.
type LoadChangeLog struct{}

// ChangeLogLoaded replaces the visible change log.
type ChangeLogLoaded struct {
	Entries []model.ChangeLogEntry
	Meta    model.ChangeLogMeta
}

// ChangeLogLoadFailed reports a failed change-log reload.
type ChangeLogLoadFailed struct {
	Err *apperr.Error
}

// PurgeChangeLog removes log entries older than Cutoff under the retention
// policy.
type PurgeChangeLog struct {
	Cutoff time.Time
}

// ChangeLogPurged reports how many entries the purge removed.
type ChangeLogPurged struct {
	Removed int64
}

// ChangeLogPurgeFailed reports a failed purge.
type ChangeLogPurgeFailed struct {
	Err *apperr.Error
}

func (ChangesLogged) isAction()          {}
func (Undo) isAction()                   {}
func (Redo) isAction()                   {}
func (UndoFailed) isAction()             {}
func (RedoFailed) isAction()             {}
func (RestoreStacks) isAction()          {}
func (StacksRestored) isAction()         {}
func (StackRestorationFailed) isAction() {}
func (LoadChangeLog) isAction()          {}
func (ChangeLogLoaded) isAction()        {}
func (ChangeLogLoadFailed) isAction()    {}
func (PurgeChangeLog) isAction()         {}
func (ChangeLogPurged) isAction()        {}
func (ChangeLogPurgeFailed) isAction()   {}
