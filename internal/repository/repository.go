package repository

import (
	"github.com/peterbourgon/diskv/v3"
	"gorm.io/gorm"
)

// Repository is the aggregate entry point to local persistence. Relational
// records live in sqlite through gorm; the undo/redo stacks and sync cursor
// are whole-document writes and live on diskv.
type Repository struct {
	Locations  LocationRepository
	ShiftTypes ShiftTypeRepository
	ChangeLog  ChangeLogRepository
	Settings   SettingsRepository
	Stacks     StackStore
	SyncState  SyncStateStore
}

// NewRepository wires every repository over the shared handles.
func NewRepository(db *gorm.DB, docs *diskv.Diskv) *Repository {
	return &Repository{
		Locations:  NewLocationRepo(db),
		ShiftTypes: NewShiftTypeRepo(db),
		ChangeLog:  NewChangeLogRepo(db),
		Settings:   NewSettingsRepo(db),
		Stacks:     NewStackStore(docs),
		SyncState:  NewSyncStateStore(docs),
	}
}
