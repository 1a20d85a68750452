package model

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel carries the audit columns every persisted record embeds.
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// SyncModel adds the replication bookkeeping for records that travel to the
// remote replica. Dirty marks a local edit not yet uploaded; RemoteRev is the
// last server revision this record was based on (0 = never synced).
type SyncModel struct {
	BaseModel
	Dirty     bool           `gorm:"not null;default:false;index" json:"dirty"`
	SyncedAt  *time.Time     `json:"synced_at,omitempty"`
	RemoteRev int64          `gorm:"not null;default:0"           json:"remote_rev"`
	Deleted   gorm.DeletedAt `gorm:"index"                        json:"deleted_at,omitempty"`
}
