// Package syncserver is the self-hosted replica the `serve` subcommand runs.
// It stores opaque record payloads keyed by (type, id), hands out a monotonic
// revision per accepted write, and parks stale uploads as conflicts instead of
// applying them.
package syncserver

import "time"

// Account is the single credential row. The server is personal: one
// passphrase, stored as a bcrypt hash, covers the whole dataset.
type Account struct {
	AccountID      string    `gorm:"type:uuid;primaryKey" json:"account_id"`
	PassphraseHash string    `gorm:"not null"             json:"-"`
	CreatedAt      time.Time `gorm:"not null"             json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null"             json:"updated_at"`
}

// TableName sets the table name.
func (Account) TableName() string { return "accounts" }

// SyncRecord is the server-side latest version of one logical record. Rev is
// unique across the whole table, so the download cursor is a single integer.
type SyncRecord struct {
	Kind      string    `gorm:"type:varchar(20);primaryKey" json:"type"`
	RecordID  string    `gorm:"type:uuid;primaryKey"        json:"id"`
	Payload   []byte    `json:"payload,omitempty"`
	Rev       int64     `gorm:"not null;uniqueIndex"        json:"rev"`
	Deleted   bool      `gorm:"not null;default:false"      json:"deleted"`
	UpdatedAt time.Time `gorm:"not null"                    json:"updated_at"`
}

// TableName sets the table name.
func (SyncRecord) TableName() string { return "sync_records" }

// ConflictRecord is a parked divergence: an upload whose base revision no
// longer matched the server's. Both sides are kept verbatim until the client
// resolves.
type ConflictRecord struct {
	ConflictID    string    `gorm:"type:uuid;primaryKey" json:"conflict_id"`
	Kind          string    `gorm:"type:varchar(20);not null;index:idx_conflicts_record" json:"kind"`
	RecordID      string    `gorm:"type:uuid;not null;index:idx_conflicts_record"        json:"record_id"`
	LocalPayload  []byte    `json:"local_payload,omitempty"`
	LocalRev      int64     `gorm:"not null" json:"local_rev"`
	LocalDeleted  bool      `gorm:"not null;default:false" json:"local_deleted"`
	RemotePayload []byte    `json:"remote_payload,omitempty"`
	RemoteRev     int64     `gorm:"not null" json:"remote_rev"`
	RemoteDeleted bool      `gorm:"not null;default:false" json:"remote_deleted"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
}

// TableName sets the table name.
func (ConflictRecord) TableName() string { return "conflicts" }
