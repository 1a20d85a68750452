package state

import (
	"time"

	"shiftscheduler/internal/action"
	"shiftscheduler/internal/model"
	"shiftscheduler/pkg/apperr"
)

// SyncStatus tracks where the current (or last) sync pass stands.
type SyncStatus string

const (
	SyncStatusNotConfigured SyncStatus = "not_configured"
	SyncStatusIdle          SyncStatus = "idle"
	SyncStatusChecking      SyncStatus = "checking"
	SyncStatusSyncing       SyncStatus = "syncing"
	SyncStatusCompleted     SyncStatus = "completed"
	SyncStatusConflicts     SyncStatus = "conflicts_pending"
	SyncStatusFailed        SyncStatus = "failed"
)

// SyncState is the sync branch. Conflicts stay pending until each one is
// resolved; resolving the last one completes the pass.
type SyncState struct {
	Status       SyncStatus
	LastSyncedAt *time.Time
	Uploaded     int
	Downloaded   int
	Conflicts    []model.Conflict
	LastError    *apperr.Error
}

// ConflictByID returns the pending conflict with the given id, or nil.
func (s *SyncState) ConflictByID(id string) *model.Conflict {
	for i := range s.Conflicts {
		if s.Conflicts[i].ConflictID == id {
			return &s.Conflicts[i]
		}
	}
	return nil
}

func reduceSync(s SyncState, a action.Action) SyncState {
	switch a := a.(type) {
	case action.StartSync:
		s.Status = SyncStatusChecking
		s.LastError = nil

	case action.SyncNotConfigured:
		s.Status = SyncStatusNotConfigured

	case action.SyncRunning:
		s.Status = SyncStatusSyncing

	case action.SyncCompleted:
		finished := a.FinishedAt
		s.Status = SyncStatusCompleted
		s.LastSyncedAt = &finished
		s.Uploaded = a.Uploaded
		s.Downloaded = a.Downloaded
		s.Conflicts = nil
		s.LastError = nil

	case action.SyncConflictsFound:
		s.Status = SyncStatusConflicts
		s.Conflicts = append([]model.Conflict(nil), a.Conflicts...)

	case action.SyncFailed:
		s.Status = SyncStatusFailed
		s.LastError = a.Err

	case action.ConflictResolved:
		remaining := make([]model.Conflict, 0, len(s.Conflicts))
		for _, c := range s.Conflicts {
			if c.ConflictID != a.ConflictID {
				remaining = append(remaining, c)
			}
		}
		s.Conflicts = remaining
		if len(remaining) == 0 && s.Status == SyncStatusConflicts {
			s.Status = SyncStatusCompleted
		}

	case action.ResolveConflictFailed:
		s.LastError = a.Err

	case action.SyncWasReset:
		s.Status = SyncStatusIdle
		s.LastSyncedAt = nil
		s.Uploaded = 0
		s.Downloaded = 0
		s.Conflicts = nil
		s.LastError = nil
	}
	return s
}
