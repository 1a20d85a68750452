package middleware_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"shiftscheduler/internal/action"
	"shiftscheduler/internal/model"
	"shiftscheduler/internal/remote"
	"shiftscheduler/internal/repository"
	"shiftscheduler/internal/state"
	"shiftscheduler/pkg/apperr"
)

func dirtyLocation(t *testing.T, e *env, name string) model.Location {
	t.Helper()
	loc := model.Location{LocationID: uuid.NewString(), Name: name}
	if err := e.locs.Save(context.Background(), &loc); err != nil {
		t.Fatal(err)
	}
	return loc
}

func TestSyncUnavailableRemote(t *testing.T) {
	e := newEnv(t)
	e.rem.available = false

	e.store.Dispatch(action.StartSync{})
	e.drain(t)

	if got := e.store.State().Sync.Status; got != state.SyncStatusNotConfigured {
		t.Fatalf("status = %q, want not_configured", got)
	}
	if len(e.rem.uploads) != 0 {
		t.Error("unavailable remote still received an upload")
	}
}

func TestFullSyncUploadsDirtyAndAdvancesCursor(t *testing.T) {
	e := newEnv(t)
	loc := dirtyLocation(t, e, "Main ward")

	// one remote-only record waiting past the cursor
	remoteLoc := model.Location{LocationID: uuid.NewString(), Name: "Annex"}
	payload, _ := json.Marshal(&remoteLoc)
	e.rem.downloads = []remote.Record{{Kind: model.RecordLocation, ID: remoteLoc.LocationID, Payload: payload, Rev: 7}}
	e.rem.cursor = 7

	e.store.Dispatch(action.StartSync{})
	e.drain(t)

	st := e.store.State()
	if st.Sync.Status != state.SyncStatusCompleted {
		t.Fatalf("status = %q (err %v), want completed", st.Sync.Status, st.Sync.LastError)
	}
	if st.Sync.Uploaded != 1 || st.Sync.Downloaded != 1 {
		t.Errorf("uploaded=%d downloaded=%d, want 1/1", st.Sync.Uploaded, st.Sync.Downloaded)
	}

	// local row clean at its server revision
	got, err := e.locs.GetByID(context.Background(), loc.LocationID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Dirty || got.RemoteRev == 0 {
		t.Errorf("uploaded row: dirty=%v rev=%d, want clean at server rev", got.Dirty, got.RemoteRev)
	}

	// remote record installed
	if _, err := e.locs.GetByID(context.Background(), remoteLoc.LocationID); err != nil {
		t.Errorf("downloaded location not installed: %v", err)
	}

	// cursor persisted for the next pass
	cp, err := e.syncCp.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cp.Cursor != 7 || cp.LastSyncedAt == nil {
		t.Errorf("checkpoint = %+v, want cursor 7 with timestamp", cp)
	}

	// the sync pass refreshes the catalogs
	cur := e.store.State()
	if cur.Locations.ByID(remoteLoc.LocationID) == nil {
		t.Error("downloaded location missing from state")
	}
}

func TestDownloadSkipsDirtyLocalRows(t *testing.T) {
	e := newEnv(t)
	loc := dirtyLocation(t, e, "Local edit")

	payload, _ := json.Marshal(&model.Location{LocationID: loc.LocationID, Name: "Remote edit"})
	e.rem.downloads = []remote.Record{{Kind: model.RecordLocation, ID: loc.LocationID, Payload: payload, Rev: 3}}
	e.rem.cursor = 3
	// the server parks the stale upload instead of applying it
	e.rem.conflictIDs[loc.LocationID] = true

	e.store.Dispatch(action.StartSync{})
	e.drain(t)

	got, err := e.locs.GetByID(context.Background(), loc.LocationID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Local edit" || !got.Dirty {
		t.Fatalf("dirty row overwritten by download: %+v", got)
	}
}

func TestSyncSurfacesConflictsAndResolveAppliesWinner(t *testing.T) {
	e := newEnv(t)
	loc := dirtyLocation(t, e, "Local name")

	localPayload, _ := json.Marshal(&model.Location{LocationID: loc.LocationID, Name: "Local name"})
	remotePayload, _ := json.Marshal(&model.Location{LocationID: loc.LocationID, Name: "Remote name"})
	conflict := model.Conflict{
		ConflictID: uuid.NewString(),
		Kind:       model.RecordLocation,
		RecordID:   loc.LocationID,
		Local:      model.RecordVersion{Rev: 0, Payload: localPayload},
		Remote:     model.RecordVersion{Rev: 5, Payload: remotePayload},
	}
	e.rem.conflictIDs[loc.LocationID] = true
	e.rem.conflicts = []model.Conflict{conflict}

	e.store.Dispatch(action.StartSync{})
	e.drain(t)

	st := e.store.State()
	if st.Sync.Status != state.SyncStatusConflicts {
		t.Fatalf("status = %q, want conflicts_pending", st.Sync.Status)
	}
	if st.Sync.ConflictByID(conflict.ConflictID) == nil {
		t.Fatal("conflict not surfaced in state")
	}

	e.store.Dispatch(action.ResolveConflict{ConflictID: conflict.ConflictID, Resolution: model.KeepRemote})
	e.drain(t)

	st = e.store.State()
	if st.Sync.LastError != nil {
		t.Fatalf("unexpected error: %v", st.Sync.LastError)
	}
	if len(st.Sync.Conflicts) != 0 {
		t.Error("resolved conflict still pending")
	}
	// resolving the last conflict completes the pass
	if st.Sync.Status != state.SyncStatusCompleted {
		t.Errorf("status = %q, want completed", st.Sync.Status)
	}

	got, err := e.locs.GetByID(context.Background(), loc.LocationID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Remote name" || got.Dirty {
		t.Errorf("winner not applied: %+v", got)
	}
}

func TestResolveUnknownConflict(t *testing.T) {
	e := newEnv(t)

	e.store.Dispatch(action.ResolveConflict{ConflictID: "nope", Resolution: model.KeepLocal})
	e.drain(t)

	if k := apperr.KindOf(e.store.State().Sync.LastError); k != apperr.KindSyncFailed {
		t.Fatalf("LastError kind = %q, want sync_failed", k)
	}
}

func TestResetSyncClearsCheckpoint(t *testing.T) {
	e := newEnv(t)
	if err := e.syncCp.Save(repository.SyncCheckpoint{Cursor: 42}); err != nil {
		t.Fatal(err)
	}

	e.store.Dispatch(action.ResetSync{Remote: true})
	e.drain(t)

	st := e.store.State()
	if st.Sync.Status != state.SyncStatusIdle {
		t.Fatalf("status = %q, want idle", st.Sync.Status)
	}
	cp, err := e.syncCp.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cp.Cursor != 0 {
		t.Errorf("cursor = %d, want 0", cp.Cursor)
	}
	if e.rem.resetCalls != 1 {
		t.Errorf("remote resets = %d, want 1", e.rem.resetCalls)
	}
}

func TestUploadOnlyPassSkipsDownload(t *testing.T) {
	e := newEnv(t)
	dirtyLocation(t, e, "Ward")
	e.rem.downloads = []remote.Record{{Kind: model.RecordLocation, ID: uuid.NewString(), Rev: 9}}
	e.rem.cursor = 9

	e.store.Dispatch(action.StartSync{UploadOnly: true})
	e.drain(t)

	st := e.store.State()
	if st.Sync.Status != state.SyncStatusCompleted {
		t.Fatalf("status = %q, want completed", st.Sync.Status)
	}
	if st.Sync.Uploaded != 1 || st.Sync.Downloaded != 0 {
		t.Errorf("uploaded=%d downloaded=%d, want 1/0", st.Sync.Uploaded, st.Sync.Downloaded)
	}
	cp, _ := e.syncCp.Load()
	if cp.Cursor != 0 {
		t.Errorf("upload-only pass moved the cursor to %d", cp.Cursor)
	}
}
