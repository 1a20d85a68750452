package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"shiftscheduler/internal/action"
	"shiftscheduler/internal/model"
	"shiftscheduler/internal/remote"
	"shiftscheduler/internal/repository"
	"shiftscheduler/internal/state"
	"shiftscheduler/pkg/apperr"
)

// Sync drives the replication protocol: upload dirty records, download what
// the server applied since the last checkpoint, then surface whatever the
// server parked as conflicts. Each pass probes availability fresh.
type Sync struct {
	repo     *repository.Repository
	remote   remote.Service
	dispatch Dispatcher
	logger   *zap.Logger
}

// NewSync creates the sync middleware.
func NewSync(repo *repository.Repository, rem remote.Service, d Dispatcher, logger *zap.Logger) *Sync {
	return &Sync{repo: repo, remote: rem, dispatch: d, logger: logger}
}

func (m *Sync) Handle(ctx context.Context, a action.Action, prev, next state.State) {
	switch a := a.(type) {
	case action.StartSync:
		m.run(ctx, a)
	case action.ResolveConflict:
		m.resolve(ctx, a, next)
	case action.ResetSync:
		m.reset(ctx, a)
	}
}

// run is the full pass: upload, then (unless upload-only) download and ask
// for pending conflicts. The steps sequence themselves; each failure aborts
// the pass with a typed failure action.
func (m *Sync) run(ctx context.Context, a action.StartSync) {
	if m.remote == nil || !m.remote.IsAvailable(ctx) {
		m.dispatch.Dispatch(action.SyncNotConfigured{})
		return
	}
	m.dispatch.Dispatch(action.SyncRunning{})

	uploaded, err := m.upload(ctx)
	if err != nil {
		m.logger.Error("sync upload failed", zap.Error(err))
		m.dispatch.Dispatch(action.SyncFailed{Err: apperr.SyncFailed(err)})
		return
	}

	if a.UploadOnly {
		m.dispatch.Dispatch(action.SyncCompleted{
			FinishedAt: time.Now().UTC(),
			Uploaded:   uploaded,
		})
		return
	}

	downloaded, err := m.download(ctx)
	if err != nil {
		m.logger.Error("sync download failed", zap.Error(err))
		m.dispatch.Dispatch(action.SyncFailed{Err: apperr.SyncFailed(err)})
		return
	}

	conflicts, err := m.remote.PendingConflicts(ctx)
	if err != nil {
		m.logger.Error("conflict query failed", zap.Error(err))
		m.dispatch.Dispatch(action.SyncFailed{Err: apperr.SyncFailed(err)})
		return
	}

	m.dispatch.Dispatch(action.LoadLocations{})
	m.dispatch.Dispatch(action.LoadShiftTypes{})

	if len(conflicts) == 0 {
		m.logger.Info("sync completed",
			zap.Int("uploaded", uploaded), zap.Int("downloaded", downloaded))
		m.dispatch.Dispatch(action.SyncCompleted{
			FinishedAt: time.Now().UTC(),
			Uploaded:   uploaded,
			Downloaded: downloaded,
		})
		return
	}
	m.logger.Warn("sync found conflicts", zap.Int("count", len(conflicts)))
	m.dispatch.Dispatch(action.SyncConflictsFound{Conflicts: conflicts})
}

// upload pushes every dirty record, locations before the shift types that
// reference them. Records the server applied are marked synced at their new
// revision; records it parked as conflicts stay dirty until resolution.
func (m *Sync) upload(ctx context.Context) (int, error) {
	locs, err := m.repo.Locations.ListDirty(ctx)
	if err != nil {
		return 0, err
	}
	types, err := m.repo.ShiftTypes.ListDirty(ctx)
	if err != nil {
		return 0, err
	}

	records := make([]remote.Record, 0, len(locs)+len(types))
	for i := range locs {
		rec, err := remote.RecordFromLocation(&locs[i])
		if err != nil {
			return 0, err
		}
		records = append(records, rec)
	}
	for i := range types {
		rec, err := remote.RecordFromShiftType(&types[i])
		if err != nil {
			return 0, err
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return 0, nil
	}

	results, err := m.remote.UploadPending(ctx, records)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	applied := 0
	for _, res := range results {
		if res.Conflicted {
			continue
		}
		switch res.Kind {
		case model.RecordLocation:
			err = m.repo.Locations.MarkSynced(ctx, res.ID, res.Rev, now)
		case model.RecordShiftType:
			err = m.repo.ShiftTypes.MarkSynced(ctx, res.ID, res.Rev, now)
		default:
			continue
		}
		if err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// download pulls records past the local cursor and installs them. Rows that
// are still dirty locally are skipped: the server has (or will) park those as
// conflicts, and applying the remote side here would discard the local edit.
func (m *Sync) download(ctx context.Context) (int, error) {
	cp, err := m.repo.SyncState.Load()
	if err != nil {
		return 0, err
	}
	records, cursor, err := m.remote.DownloadRemote(ctx, cp.Cursor)
	if err != nil {
		return 0, err
	}

	dirty, err := m.dirtyIDs(ctx)
	if err != nil {
		return 0, err
	}

	applied := 0
	for i := range records {
		rec := &records[i]
		if dirty[string(rec.Kind)+"/"+rec.ID] {
			m.logger.Debug("skipping remote record over dirty local row",
				zap.String("kind", string(rec.Kind)), zap.String("id", rec.ID))
			continue
		}
		if err := m.applyRecord(ctx, rec); err != nil {
			return applied, err
		}
		applied++
	}

	now := time.Now().UTC()
	cp.Cursor = cursor
	cp.LastSyncedAt = &now
	if err := m.repo.SyncState.Save(cp); err != nil {
		return applied, err
	}
	return applied, nil
}

func (m *Sync) dirtyIDs(ctx context.Context) (map[string]bool, error) {
	ids := make(map[string]bool)
	locs, err := m.repo.Locations.ListDirty(ctx)
	if err != nil {
		return nil, err
	}
	for i := range locs {
		ids[string(model.RecordLocation)+"/"+locs[i].LocationID] = true
	}
	types, err := m.repo.ShiftTypes.ListDirty(ctx)
	if err != nil {
		return nil, err
	}
	for i := range types {
		ids[string(model.RecordShiftType)+"/"+types[i].ShiftTypeID] = true
	}
	return ids, nil
}

// applyRecord installs one server-side version wholesale, tombstone or live.
func (m *Sync) applyRecord(ctx context.Context, rec *remote.Record) error {
	switch rec.Kind {
	case model.RecordLocation:
		if rec.Deleted {
			return m.repo.Locations.ApplyRemoteTombstone(ctx, rec.ID, rec.Rev)
		}
		var loc model.Location
		if err := json.Unmarshal(rec.Payload, &loc); err != nil {
			return fmt.Errorf("decode location %s: %w", rec.ID, err)
		}
		loc.LocationID = rec.ID
		return m.repo.Locations.ApplyRemote(ctx, &loc, rec.Rev)

	case model.RecordShiftType:
		if rec.Deleted {
			return m.repo.ShiftTypes.ApplyRemoteTombstone(ctx, rec.ID, rec.Rev)
		}
		var t model.ShiftType
		if err := json.Unmarshal(rec.Payload, &t); err != nil {
			return fmt.Errorf("decode shift type %s: %w", rec.ID, err)
		}
		t.ShiftTypeID = rec.ID
		return m.repo.ShiftTypes.ApplyRemote(ctx, &t, rec.Rev)

	default:
		m.logger.Warn("ignoring record of unknown kind", zap.String("kind", string(rec.Kind)))
		return nil
	}
}

// resolve reports the chosen side to the server and installs the winning
// version locally, clearing the dirty flag the conflict held open.
func (m *Sync) resolve(ctx context.Context, a action.ResolveConflict, st state.State) {
	if st.Sync.ConflictByID(a.ConflictID) == nil {
		m.dispatch.Dispatch(action.ResolveConflictFailed{Err: apperr.SyncFailed(fmt.Errorf("unknown conflict %s", a.ConflictID))})
		return
	}
	winner, err := m.remote.Resolve(ctx, a.ConflictID, a.Resolution, a.Merged)
	if err != nil {
		m.logger.Error("conflict resolution failed", zap.String("conflict", a.ConflictID), zap.Error(err))
		m.dispatch.Dispatch(action.ResolveConflictFailed{Err: apperr.SyncFailed(err)})
		return
	}
	if winner != nil {
		if err := m.applyRecord(ctx, winner); err != nil {
			m.dispatch.Dispatch(action.ResolveConflictFailed{Err: apperr.PersistenceFailed(err)})
			return
		}
	}
	m.logger.Info("conflict resolved",
		zap.String("conflict", a.ConflictID), zap.String("resolution", string(a.Resolution)))
	m.dispatch.Dispatch(action.ConflictResolved{ConflictID: a.ConflictID})
	m.dispatch.Dispatch(action.LoadLocations{})
	m.dispatch.Dispatch(action.LoadShiftTypes{})
}

// reset drops the local checkpoint so the next pass downloads from scratch.
// The remote flag additionally asks the server to discard pending conflicts.
func (m *Sync) reset(ctx context.Context, a action.ResetSync) {
	if err := m.repo.SyncState.Reset(); err != nil {
		m.logger.Error("sync reset failed", zap.Error(err))
		m.dispatch.Dispatch(action.SyncFailed{Err: apperr.PersistenceFailed(err)})
		return
	}
	if a.Remote && m.remote != nil && m.remote.IsAvailable(ctx) {
		if err := m.remote.Reset(ctx); err != nil {
			m.logger.Error("remote sync reset failed", zap.Error(err))
			m.dispatch.Dispatch(action.SyncFailed{Err: apperr.SyncFailed(err)})
			return
		}
	}
	m.dispatch.Dispatch(action.SyncWasReset{})
}
