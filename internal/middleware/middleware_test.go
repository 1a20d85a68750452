package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shiftscheduler/internal/calendar"
	"shiftscheduler/internal/middleware"
	"shiftscheduler/internal/model"
	"shiftscheduler/internal/remote"
	"shiftscheduler/internal/repository"
	"shiftscheduler/internal/schedule"
	"shiftscheduler/internal/store"
)

// The middleware tests run the real engine against map-backed fakes of all
// three collaborators: dispatch an action, drain the store, assert on the
// resulting state and collaborator contents.

var errCorrupt = errors.New("corrupt document")

// ── fake calendar ──

type fakeCalendar struct {
	mu      sync.Mutex
	entries map[string]model.ScheduledEntry

	createErr    error
	failAfter    int // with createErr set, creates allowed before it fires
	createCalls  int
	deletedIDs   []string
	accessDenied bool
}

var _ calendar.Service = (*fakeCalendar)(nil)

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{entries: make(map[string]model.ScheduledEntry), failAfter: -1}
}

func (f *fakeCalendar) IsAuthorized() bool { return !f.accessDenied }

func (f *fakeCalendar) RequestAccess(ctx context.Context) (bool, error) {
	return !f.accessDenied, nil
}

func (f *fakeCalendar) LoadExtendedRange(ctx context.Context) ([]model.ScheduledEntry, model.LoadedRange, error) {
	return f.LoadAroundMonth(ctx, time.Now(), 12)
}

func (f *fakeCalendar) LoadAroundMonth(ctx context.Context, pivot time.Time, offset int) ([]model.ScheduledEntry, model.LoadedRange, error) {
	start, end := schedule.WindowBounds(pivot, offset)
	entries, err := f.LoadBetween(ctx, start, end)
	if err != nil {
		return nil, model.LoadedRange{}, err
	}
	return entries, model.LoadedRange{Start: start, End: end}, nil
}

func (f *fakeCalendar) LoadBetween(ctx context.Context, start, end time.Time) ([]model.ScheduledEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ScheduledEntry
	for _, e := range f.entries {
		if e.StartsAt.Before(end) && start.Before(e.EndsAt) {
			out = append(out, e)
		}
	}
	schedule.SortByStart(out)
	return out, nil
}

func (f *fakeCalendar) Create(ctx context.Context, date time.Time, t model.ShiftType, notes string) (model.ScheduledEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil && (f.failAfter < 0 || f.createCalls >= f.failAfter) {
		return model.ScheduledEntry{}, f.createErr
	}
	f.createCalls++
	day := model.Midnight(date)
	start, end := model.EntryInterval(day, &t)
	id := uuid.NewString()
	e := model.ScheduledEntry{
		ID:          id,
		EventID:     id,
		ShiftTypeID: t.ShiftTypeID,
		Title:       t.Title,
		Date:        day,
		Notes:       notes,
		AllDay:      t.AllDay,
		StartsAt:    start,
		EndsAt:      end,
	}
	f.entries[id] = e
	return e, nil
}

func (f *fakeCalendar) Update(ctx context.Context, id string, t model.ShiftType, date time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return calendar.ErrEventNotFound
	}
	day := model.Midnight(date)
	e.ShiftTypeID = t.ShiftTypeID
	e.Title = t.Title
	e.AllDay = t.AllDay
	e.StartsAt, e.EndsAt = model.EntryInterval(day, &t)
	f.entries[id] = e
	return nil
}

func (f *fakeCalendar) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[id]; !ok {
		return calendar.ErrEventNotFound
	}
	delete(f.entries, id)
	f.deletedIDs = append(f.deletedIDs, id)
	return nil
}

func (f *fakeCalendar) DeleteMany(ctx context.Context, ids []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := f.entries[id]; ok {
			delete(f.entries, id)
			f.deletedIDs = append(f.deletedIDs, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeCalendar) CascadeShiftTypeUpdate(ctx context.Context, t model.ShiftType) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, e := range f.entries {
		if e.ShiftTypeID != t.ShiftTypeID {
			continue
		}
		e.Title = t.Title
		e.StartsAt, e.EndsAt = model.EntryInterval(model.Midnight(e.Date), &t)
		f.entries[id] = e
		n++
	}
	return n, nil
}

func (f *fakeCalendar) ResyncAll(ctx context.Context, types []model.ShiftType) (int, error) {
	return 0, nil
}

func (f *fakeCalendar) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// ── fake repositories ──

type fakeChangeLog struct {
	mu      sync.Mutex
	entries []model.ChangeLogEntry
}

var _ repository.ChangeLogRepository = (*fakeChangeLog)(nil)

func (f *fakeChangeLog) Append(ctx context.Context, entries []model.ChangeLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeChangeLog) List(ctx context.Context, limit int) ([]model.ChangeLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.ChangeLogEntry, len(f.entries))
	for i, e := range f.entries { // newest first
		out[len(f.entries)-1-i] = e
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeChangeLog) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.entries[:0]
	var removed int64
	for _, e := range f.entries {
		if e.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	f.entries = kept
	return removed, nil
}

func (f *fakeChangeLog) Meta(ctx context.Context) (model.ChangeLogMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta := model.ChangeLogMeta{Count: int64(len(f.entries))}
	for i := range f.entries {
		if meta.Oldest == nil || f.entries[i].Timestamp.Before(*meta.Oldest) {
			ts := f.entries[i].Timestamp
			meta.Oldest = &ts
		}
	}
	return meta, nil
}

func (f *fakeChangeLog) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type fakeStacks struct {
	mu         sync.Mutex
	undo, redo []model.ChangeLogEntry
	saves      int
	loadErr    error
}

var _ repository.StackStore = (*fakeStacks)(nil)

func (f *fakeStacks) SaveStacks(undo, redo []model.ChangeLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.undo = append([]model.ChangeLogEntry(nil), undo...)
	f.redo = append([]model.ChangeLogEntry(nil), redo...)
	f.saves++
	return nil
}

func (f *fakeStacks) LoadStacks() ([]model.ChangeLogEntry, []model.ChangeLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, nil, f.loadErr
	}
	return append([]model.ChangeLogEntry(nil), f.undo...),
		append([]model.ChangeLogEntry(nil), f.redo...), nil
}

func (f *fakeStacks) ClearStacks() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.undo, f.redo = nil, nil
	return nil
}

func (f *fakeStacks) sizes() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.undo), len(f.redo)
}

type fakeLocations struct {
	mu    sync.Mutex
	items map[string]*model.Location
}

var _ repository.LocationRepository = (*fakeLocations)(nil)

func newFakeLocations() *fakeLocations {
	return &fakeLocations{items: make(map[string]*model.Location)}
}

func (f *fakeLocations) Save(ctx context.Context, loc *model.Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *loc
	cp.Dirty = true
	f.items[loc.LocationID] = &cp
	loc.Dirty = true
	return nil
}

func (f *fakeLocations) GetByID(ctx context.Context, id string) (*model.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	loc, ok := f.items[id]
	if !ok || loc.Deleted.Valid {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *loc
	return &cp, nil
}

func (f *fakeLocations) List(ctx context.Context) ([]model.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Location
	for _, loc := range f.items {
		if !loc.Deleted.Valid {
			out = append(out, *loc)
		}
	}
	return out, nil
}

func (f *fakeLocations) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	loc, ok := f.items[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	loc.Dirty = true
	loc.Deleted = gorm.DeletedAt{Time: time.Now(), Valid: true}
	return nil
}

func (f *fakeLocations) ListDirty(ctx context.Context) ([]model.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Location
	for _, loc := range f.items {
		if loc.Dirty {
			out = append(out, *loc)
		}
	}
	return out, nil
}

func (f *fakeLocations) MarkSynced(ctx context.Context, id string, rev int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if loc, ok := f.items[id]; ok {
		loc.Dirty = false
		loc.RemoteRev = rev
		loc.SyncedAt = &at
	}
	return nil
}

func (f *fakeLocations) ApplyRemote(ctx context.Context, loc *model.Location, rev int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *loc
	cp.Dirty = false
	cp.RemoteRev = rev
	cp.Deleted = gorm.DeletedAt{}
	f.items[loc.LocationID] = &cp
	return nil
}

func (f *fakeLocations) ApplyRemoteTombstone(ctx context.Context, id string, rev int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if loc, ok := f.items[id]; ok {
		loc.Dirty = false
		loc.RemoteRev = rev
		loc.Deleted = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}
	return nil
}

type fakeShiftTypes struct {
	mu    sync.Mutex
	items map[string]*model.ShiftType
}

var _ repository.ShiftTypeRepository = (*fakeShiftTypes)(nil)

func newFakeShiftTypes() *fakeShiftTypes {
	return &fakeShiftTypes{items: make(map[string]*model.ShiftType)}
}

func (f *fakeShiftTypes) put(t model.ShiftType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[t.ShiftTypeID] = &t
}

func (f *fakeShiftTypes) Save(ctx context.Context, t *model.ShiftType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	cp.Dirty = true
	f.items[t.ShiftTypeID] = &cp
	t.Dirty = true
	return nil
}

func (f *fakeShiftTypes) GetByID(ctx context.Context, id string) (*model.ShiftType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.items[id]
	if !ok || t.Deleted.Valid {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeShiftTypes) List(ctx context.Context) ([]model.ShiftType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ShiftType
	for _, t := range f.items {
		if !t.Deleted.Valid {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeShiftTypes) ListByLocation(ctx context.Context, locationID string) ([]model.ShiftType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ShiftType
	for _, t := range f.items {
		if t.LocationID != nil && *t.LocationID == locationID && !t.Deleted.Valid {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeShiftTypes) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.items[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	t.Dirty = true
	t.Deleted = gorm.DeletedAt{Time: time.Now(), Valid: true}
	return nil
}

func (f *fakeShiftTypes) ListDirty(ctx context.Context) ([]model.ShiftType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ShiftType
	for _, t := range f.items {
		if t.Dirty {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeShiftTypes) MarkSynced(ctx context.Context, id string, rev int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.items[id]; ok {
		t.Dirty = false
		t.RemoteRev = rev
		t.SyncedAt = &at
	}
	return nil
}

func (f *fakeShiftTypes) ApplyRemote(ctx context.Context, t *model.ShiftType, rev int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	cp.Dirty = false
	cp.RemoteRev = rev
	cp.Deleted = gorm.DeletedAt{}
	f.items[t.ShiftTypeID] = &cp
	return nil
}

func (f *fakeShiftTypes) ApplyRemoteTombstone(ctx context.Context, id string, rev int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.items[id]; ok {
		t.Dirty = false
		t.RemoteRev = rev
		t.Deleted = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}
	return nil
}

type fakeSettings struct {
	mu  sync.Mutex
	row *model.Settings
}

var _ repository.SettingsRepository = (*fakeSettings)(nil)

func (f *fakeSettings) Get(ctx context.Context) (*model.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.row == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *f.row
	return &cp, nil
}

func (f *fakeSettings) Save(ctx context.Context, s *model.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.row = &cp
	return nil
}

type fakeSyncState struct {
	mu sync.Mutex
	cp repository.SyncCheckpoint
}

var _ repository.SyncStateStore = (*fakeSyncState)(nil)

func (f *fakeSyncState) Save(cp repository.SyncCheckpoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cp = cp
	return nil
}

func (f *fakeSyncState) Load() (repository.SyncCheckpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cp, nil
}

func (f *fakeSyncState) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cp = repository.SyncCheckpoint{}
	return nil
}

// ── fake remote ──

type fakeRemote struct {
	mu        sync.Mutex
	available bool
	uploads   [][]remote.Record
	conflicts []model.Conflict
	downloads []remote.Record
	cursor    int64
	// conflictIDs marks uploaded record ids the server parks as conflicts.
	conflictIDs map[string]bool
	nextRev     int64
	resetCalls  int
}

var _ remote.Service = (*fakeRemote)(nil)

func newFakeRemote() *fakeRemote {
	return &fakeRemote{available: true, conflictIDs: make(map[string]bool), nextRev: 1}
}

func (f *fakeRemote) IsAvailable(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available
}

func (f *fakeRemote) UploadPending(ctx context.Context, records []remote.Record) ([]remote.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, records)
	results := make([]remote.UploadResult, len(records))
	for i, rec := range records {
		res := remote.UploadResult{Kind: rec.Kind, ID: rec.ID}
		if f.conflictIDs[rec.ID] {
			res.Conflicted = true
		} else {
			res.Rev = f.nextRev
			f.nextRev++
		}
		results[i] = res
	}
	return results, nil
}

func (f *fakeRemote) DownloadRemote(ctx context.Context, after int64) ([]remote.Record, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []remote.Record
	for _, rec := range f.downloads {
		if rec.Rev > after {
			out = append(out, rec)
		}
	}
	return out, f.cursor, nil
}

func (f *fakeRemote) PendingConflicts(ctx context.Context) ([]model.Conflict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Conflict(nil), f.conflicts...), nil
}

func (f *fakeRemote) Resolve(ctx context.Context, conflictID string, res model.Resolution, merged json.RawMessage) (*remote.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.conflicts {
		if c.ConflictID != conflictID {
			continue
		}
		f.conflicts = append(f.conflicts[:i], f.conflicts[i+1:]...)
		delete(f.conflictIDs, c.RecordID)
		winner := remote.Record{Kind: c.Kind, ID: c.RecordID, Rev: f.nextRev}
		f.nextRev++
		switch res {
		case model.KeepLocal:
			winner.Payload = c.Local.Payload
			winner.Deleted = c.Local.Deleted
		case model.KeepRemote:
			winner.Payload = c.Remote.Payload
			winner.Deleted = c.Remote.Deleted
		case model.Merged:
			winner.Payload = merged
		}
		return &winner, nil
	}
	return nil, remote.ErrNotConfigured
}

func (f *fakeRemote) Reset(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetCalls++
	f.conflicts = nil
	return nil
}

// ── harness ──

type env struct {
	store    *store.Store
	cal      *fakeCalendar
	rem      *fakeRemote
	logRepo  *fakeChangeLog
	stacks   *fakeStacks
	locs     *fakeLocations
	types    *fakeShiftTypes
	settings *fakeSettings
	syncCp   *fakeSyncState
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		cal:      newFakeCalendar(),
		rem:      newFakeRemote(),
		logRepo:  &fakeChangeLog{},
		stacks:   &fakeStacks{},
		locs:     newFakeLocations(),
		types:    newFakeShiftTypes(),
		settings: &fakeSettings{},
		syncCp:   &fakeSyncState{},
	}
	repo := &repository.Repository{
		Locations:  e.locs,
		ShiftTypes: e.types,
		ChangeLog:  e.logRepo,
		Settings:   e.settings,
		Stacks:     e.stacks,
		SyncState:  e.syncCp,
	}
	logger := zap.NewNop()
	s := store.New(logger)
	seed := model.Settings{UserID: uuid.NewString(), UserName: "tester"}
	s.Use(
		middleware.NewSchedule(e.cal, repo, s, logger),
		middleware.NewChangeLog(repo, s, logger),
		middleware.NewCatalog(repo, e.cal, e.rem, s, logger, seed),
		middleware.NewSync(repo, e.rem, s, logger),
		middleware.NewLifecycle(repo, e.cal, s, logger),
	)
	e.store = s
	t.Cleanup(s.Close)
	return e
}

func (e *env) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.store.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
}

// seedType registers a timed shift type in the fake repository.
func (e *env) seedType(title string, startMin, endMin int) model.ShiftType {
	t := model.ShiftType{
		ShiftTypeID: uuid.NewString(),
		Symbol:      string(title[0]),
		Title:       title,
		StartMinute: startMin,
		EndMinute:   endMin,
	}
	e.types.put(t)
	return t
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
