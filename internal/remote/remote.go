// Package remote talks to the optional sync server. The wire unit is a
// Record: an opaque JSON payload plus the server revision it descends from.
// The server never interprets payloads; it only tracks revisions, tombstones
// and conflicts per (type, id).
package remote

import (
	"context"
	"encoding/json"
	"errors"

	"shiftscheduler/internal/model"
)

var (
	// ErrAuthFailed means the passphrase was rejected.
	ErrAuthFailed = errors.New("remote: authentication failed")
	// ErrNotConfigured means no server URL is set.
	ErrNotConfigured = errors.New("remote: no sync server configured")
)

// Record is one syncable record on the wire. On upload Rev carries the base
// revision the local copy descends from; on download it carries the server
// revision of the returned version.
type Record struct {
	Kind    model.RecordKind `json:"type"`
	ID      string           `json:"id"`
	Payload json.RawMessage  `json:"payload,omitempty"`
	Rev     int64            `json:"rev"`
	Deleted bool             `json:"deleted"`
}

// UploadResult reports what the server did with one uploaded record: either
// applied at a new revision, or parked as a conflict.
type UploadResult struct {
	Kind       model.RecordKind `json:"type"`
	ID         string           `json:"id"`
	Rev        int64            `json:"rev"`
	Conflicted bool             `json:"conflicted"`
}

// Service is the client-side sync contract. Availability is probed live on
// every call site; implementations must not cache it.
type Service interface {
	IsAvailable(ctx context.Context) bool
	UploadPending(ctx context.Context, records []Record) ([]UploadResult, error)
	DownloadRemote(ctx context.Context, after int64) ([]Record, int64, error)
	PendingConflicts(ctx context.Context) ([]model.Conflict, error)
	Resolve(ctx context.Context, conflictID string, res model.Resolution, merged json.RawMessage) (*Record, error)
	Reset(ctx context.Context) error
}

// RecordFromLocation builds the wire record for a local location row.
func RecordFromLocation(loc *model.Location) (Record, error) {
	payload, err := json.Marshal(loc)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Kind:    model.RecordLocation,
		ID:      loc.LocationID,
		Payload: payload,
		Rev:     loc.RemoteRev,
		Deleted: loc.Deleted.Valid,
	}, nil
}

// RecordFromShiftType builds the wire record for a local shift-type row.
func RecordFromShiftType(t *model.ShiftType) (Record, error) {
	bare := *t
	bare.Location = nil
	payload, err := json.Marshal(&bare)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Kind:    model.RecordShiftType,
		ID:      t.ShiftTypeID,
		Payload: payload,
		Rev:     t.RemoteRev,
		Deleted: t.Deleted.Valid,
	}, nil
}
