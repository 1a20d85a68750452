package repository

import (
	"encoding/json"
	"time"

	"github.com/peterbourgon/diskv/v3"

	"shiftscheduler/internal/model"
)

// Document keys inside the diskv store. The flat transform maps each key to
// one file under the documents directory.
const (
	undoStackDoc      = "undo_stack.json"
	redoStackDoc      = "redo_stack.json"
	syncCheckpointDoc = "sync_checkpoint.json"
)

// NewDocumentStore opens the diskv store that holds the undo/redo stacks and
// the sync checkpoint.
func NewDocumentStore(basePath string) *diskv.Diskv {
	return diskv.New(diskv.Options{
		BasePath:     basePath,
		Transform:    func(s string) []string { return []string{} },
		CacheSizeMax: 1024 * 1024, // 1MB
	})
}

// ── undo/redo stacks ──

// StackStore persists the undo and redo stacks across restarts.
type StackStore interface {
	SaveStacks(undo, redo []model.ChangeLogEntry) error
	LoadStacks() (undo, redo []model.ChangeLogEntry, err error)
	ClearStacks() error
}

type stackStore struct {
	d *diskv.Diskv
}

// NewStackStore creates a StackStore instance.
func NewStackStore(d *diskv.Diskv) StackStore {
	return &stackStore{d: d}
}

func (s *stackStore) SaveStacks(undo, redo []model.ChangeLogEntry) error {
	if err := s.writeStack(undoStackDoc, undo); err != nil {
		return err
	}
	return s.writeStack(redoStackDoc, redo)
}

// LoadStacks returns empty stacks when nothing was persisted yet. A document
// that exists but does not unmarshal is an error; the caller decides whether
// to start over with empty stacks.
func (s *stackStore) LoadStacks() ([]model.ChangeLogEntry, []model.ChangeLogEntry, error) {
	undo, err := s.readStack(undoStackDoc)
	if err != nil {
		return nil, nil, err
	}
	redo, err := s.readStack(redoStackDoc)
	if err != nil {
		return nil, nil, err
	}
	return undo, redo, nil
}

func (s *stackStore) ClearStacks() error {
	for _, key := range []string{undoStackDoc, redoStackDoc} {
		if !s.d.Has(key) {
			continue
		}
		if err := s.d.Erase(key); err != nil {
			return err
		}
	}
	return nil
}

func (s *stackStore) writeStack(key string, entries []model.ChangeLogEntry) error {
	if entries == nil {
		entries = []model.ChangeLogEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.d.Write(key, data)
}

func (s *stackStore) readStack(key string) ([]model.ChangeLogEntry, error) {
	if !s.d.Has(key) {
		return []model.ChangeLogEntry{}, nil
	}
	data, err := s.d.Read(key)
	if err != nil {
		return nil, err
	}
	var entries []model.ChangeLogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ── sync checkpoint ──

// SyncCheckpoint is the locally persisted sync bookkeeping: the download
// cursor (highest remote revision seen), the token issued by the server and
// the time of the last completed pass.
type SyncCheckpoint struct {
	Cursor       int64      `json:"cursor"`
	Token        string     `json:"token,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// SyncStateStore persists the sync checkpoint; Reset wipes it so the next
// pass starts from scratch.
type SyncStateStore interface {
	Save(cp SyncCheckpoint) error
	Load() (SyncCheckpoint, error)
	Reset() error
}

type syncStateStore struct {
	d *diskv.Diskv
}

// NewSyncStateStore creates a SyncStateStore instance.
func NewSyncStateStore(d *diskv.Diskv) SyncStateStore {
	return &syncStateStore{d: d}
}

func (s *syncStateStore) Save(cp SyncCheckpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	return s.d.Write(syncCheckpointDoc, data)
}

// Load returns the zero checkpoint when none was persisted yet.
func (s *syncStateStore) Load() (SyncCheckpoint, error) {
	if !s.d.Has(syncCheckpointDoc) {
		return SyncCheckpoint{}, nil
	}
	data, err := s.d.Read(syncCheckpointDoc)
	if err != nil {
		return SyncCheckpoint{}, err
	}
	var cp SyncCheckpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return SyncCheckpoint{}, err
	}
	return cp, nil
}

func (s *syncStateStore) Reset() error {
	if !s.d.Has(syncCheckpointDoc) {
		return nil
	}
	return s.d.Erase(syncCheckpointDoc)
}
