package model

import "encoding/json"

// RecordKind names a syncable record family.
type RecordKind string

const (
	RecordLocation  RecordKind = "location"
	RecordShiftType RecordKind = "shift_type"
)

// Resolution is the chosen outcome for a conflict.
type Resolution string

const (
	KeepLocal  Resolution = "keep_local"
	KeepRemote Resolution = "keep_remote"
	Merged     Resolution = "merged"
)

// RecordVersion is one side of a divergence: the record payload as JSON plus
// the server revision it descends from.
type RecordVersion struct {
	Rev     int64           `json:"rev"`
	Deleted bool            `json:"deleted"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Conflict pairs the local and remote versions of the same logical record.
// Instances exist only between detection during a sync cycle and resolution.
type Conflict struct {
	ConflictID string        `json:"conflict_id"`
	Kind       RecordKind    `json:"kind"`
	RecordID   string        `json:"record_id"`
	Local      RecordVersion `json:"local"`
	Remote     RecordVersion `json:"remote"`
}
