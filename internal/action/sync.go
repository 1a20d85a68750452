package action

import (
	"time"

	"shiftscheduler/internal/model"
	"shiftscheduler/pkg/apperr"
)

// StartSync triggers a sync pass. UploadOnly marks the opportunistic pass a
// local save/delete fires when the remote reports itself available.
type StartSync struct {
	UploadOnly bool
}

// SyncRunning marks the transition from availability checking to transfer.
type SyncRunning struct{}

// SyncNotConfigured reports that no remote is configured; the trigger is
// dropped.
type SyncNotConfigured struct{}

// SyncCompleted reports a conflict-free pass.
type SyncCompleted struct {
	FinishedAt time.Time
	Uploaded   int
	Downloaded int
}

// SyncConflictsFound surfaces the remote's pending conflicts for resolution.
type SyncConflictsFound struct {
	Conflicts []model.Conflict
}

// SyncFailed reports a failed pass.
type SyncFailed struct {
	Err *apperr.Error
}

// ResolveConflict applies the chosen side of one conflict.
type ResolveConflict struct {
	ConflictID string
	Resolution model.Resolution
	// Merged carries the hand-merged payload when Resolution == Merged.
	Merged []byte
}

// ConflictResolved confirms a resolution and drops the conflict from state.
type ConflictResolved struct {
	ConflictID string
}

// ResolveConflictFailed reports a failed resolution.
type ResolveConflictFailed struct {
	Err *apperr.Error
}

// ResetSync clears local sync bookkeeping (cursors; dirty flags stay intact).
// Remote additionally asks the server to drop its pending conflicts.
type ResetSync struct {
	Remote bool
}

// SyncWasReset confirms a reset.
type SyncWasReset struct{}

func (StartSync) isAction()             {}
func (SyncRunning) isAction()           {}
func (SyncNotConfigured) isAction()     {}
func (SyncCompleted) isAction()         {}
func (SyncConflictsFound) isAction()    {}
func (SyncFailed) isAction()            {}
func (ResolveConflict) isAction()       {}
func (ConflictResolved) isAction()      {}
func (ResolveConflictFailed) isAction() {}
func (ResetSync) isAction()             {}
func (SyncWasReset) isAction()          {}
