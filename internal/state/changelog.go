package state

import (
	"strconv"

	"shiftscheduler/internal/action"
	"shiftscheduler/internal/model"
	"shiftscheduler/pkg/apperr"
)

// ChangeLogState is the command-log branch. The stacks are disjoint: an entry
// lives on at most one of them, and a new reversible edit clears redo. The
// top of each stack is the last slice element.
type ChangeLogState struct {
	UndoStack []model.ChangeLogEntry
	RedoStack []model.ChangeLogEntry
	Entries   []model.ChangeLogEntry
	Meta      model.ChangeLogMeta
	Restored  bool
	Notice    string
	LastError *apperr.Error
}

// CanUndo reports whether an undo is available.
func (s *ChangeLogState) CanUndo() bool { return len(s.UndoStack) > 0 }

// CanRedo reports whether a redo is available.
func (s *ChangeLogState) CanRedo() bool { return len(s.RedoStack) > 0 }

func reduceChangeLog(s ChangeLogState, a action.Action) ChangeLogState {
	switch a := a.(type) {
	case action.ChangesLogged:
		undo := append([]model.ChangeLogEntry(nil), s.UndoStack...)
		undo = append(undo, a.Entries...)
		s.UndoStack = undo
		s.RedoStack = nil
		s.LastError = nil

	case action.Undo:
		if len(s.UndoStack) == 0 {
			break // middleware reports the empty-stack failure
		}
		top := s.UndoStack[len(s.UndoStack)-1]
		s.UndoStack = append([]model.ChangeLogEntry(nil), s.UndoStack[:len(s.UndoStack)-1]...)
		s.RedoStack = append(append([]model.ChangeLogEntry(nil), s.RedoStack...), top)
		s.Notice = "undid " + string(top.Kind) + " on " + top.Date.Format("2006-01-02")
		s.LastError = nil

	case action.Redo:
		if len(s.RedoStack) == 0 {
			break
		}
		top := s.RedoStack[len(s.RedoStack)-1]
		s.RedoStack = append([]model.ChangeLogEntry(nil), s.RedoStack[:len(s.RedoStack)-1]...)
		s.UndoStack = append(append([]model.ChangeLogEntry(nil), s.UndoStack...), top)
		s.Notice = "redid " + string(top.Kind) + " on " + top.Date.Format("2006-01-02")
		s.LastError = nil

	case action.UndoFailed:
		s.LastError = a.Err

	case action.RedoFailed:
		s.LastError = a.Err

	case action.StacksRestored:
		s.UndoStack = append([]model.ChangeLogEntry(nil), a.Undo...)
		s.RedoStack = append([]model.ChangeLogEntry(nil), a.Redo...)
		s.Restored = true

	case action.StackRestorationFailed:
		s.UndoStack = nil
		s.RedoStack = nil
		s.Restored = true
		s.LastError = a.Err

	case action.ChangeLogLoaded:
		s.Entries = append([]model.ChangeLogEntry(nil), a.Entries...)
		s.Meta = a.Meta

	case action.ChangeLogLoadFailed:
		s.LastError = a.Err

	case action.ChangeLogPurged:
		s.Notice = "purged " + strconv.FormatInt(a.Removed, 10) + " change-log entries"

	case action.ChangeLogPurgeFailed:
		s.LastError = a.Err
	}
	return s
}
