package model

import "time"

// ChangeKind is the category of a reversible edit.
type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeSwitched ChangeKind = "switched"
	ChangeDeleted  ChangeKind = "deleted"
)

// ChangeLogEntry is the immutable audit record of one reversible edit — maps
// to change_log_entries. Old/New snapshots are flattened into prefixed
// columns; either side may be absent (created has no Old, deleted no New).
type ChangeLogEntry struct {
	EntryID   string         `gorm:"type:uuid;primaryKey"      json:"entry_id"`
	Timestamp time.Time      `gorm:"not null;index"            json:"timestamp"`
	UserID    string         `gorm:"type:uuid;not null"        json:"user_id"`
	UserName  string         `gorm:"type:varchar(100)"         json:"user_name"`
	Kind      ChangeKind     `gorm:"type:varchar(20);not null" json:"kind"`
	Date      time.Time      `gorm:"not null;index"            json:"date"`
	Old       *ShiftSnapshot `gorm:"embedded;embeddedPrefix:old_" json:"old,omitempty"`
	New       *ShiftSnapshot `gorm:"embedded;embeddedPrefix:new_" json:"new,omitempty"`
	Reason    string         `gorm:"type:varchar(200)"         json:"reason,omitempty"`
}

// TableName sets the table name.
func (ChangeLogEntry) TableName() string { return "change_log_entries" }

// ChangeLogMeta summarizes the log without materializing rows.
type ChangeLogMeta struct {
	Count  int64      `json:"count"`
	Oldest *time.Time `json:"oldest,omitempty"`
}
