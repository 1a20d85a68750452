package syncserver

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shiftscheduler/internal/model"
	"shiftscheduler/internal/remote"
	"shiftscheduler/pkg/database"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrBadPassphrase means the presented passphrase does not match.
	ErrBadPassphrase = errors.New("syncserver: passphrase mismatch")
	// ErrConflictNotFound means the conflict id resolves to nothing pending.
	ErrConflictNotFound = errors.New("syncserver: conflict not found")
	// ErrMergedPayloadMissing means a merged resolution arrived without the
	// hand-merged payload.
	ErrMergedPayloadMissing = errors.New("syncserver: merged resolution needs a payload")
)

// Storage is the server's persistence layer: records, conflicts and the
// single account, all on the same sqlite/gorm stack the client uses.
type Storage struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStorage wraps an opened database.
func NewStorage(db *gorm.DB, logger *zap.Logger) *Storage {
	return &Storage{db: db, logger: logger}
}

// Migrate brings the server schema up to date.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return database.RunMigrations(sqlDB, migrationsFS, "migrations", logger)
}

// ── account ──

// EnsureAccount seeds the account row from the configured passphrase on first
// boot and returns the account id. An existing account is left untouched, so
// changing the configured passphrase requires a fresh database.
func (s *Storage) EnsureAccount(passphrase string) (string, error) {
	var acc Account
	err := s.db.First(&acc).Error
	if err == nil {
		return acc.AccountID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash passphrase: %w", err)
	}
	acc = Account{AccountID: uuid.NewString(), PassphraseHash: string(hash)}
	if err := s.db.Create(&acc).Error; err != nil {
		return "", err
	}
	s.logger.Info("sync account created", zap.String("account", acc.AccountID))
	return acc.AccountID, nil
}

// VerifyPassphrase checks the presented passphrase against the stored hash
// and returns the account id on success.
func (s *Storage) VerifyPassphrase(passphrase string) (string, error) {
	var acc Account
	if err := s.db.First(&acc).Error; err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PassphraseHash), []byte(passphrase)); err != nil {
		return "", ErrBadPassphrase
	}
	return acc.AccountID, nil
}

// ── records ──

// Apply processes one upload batch. Each record whose base revision still
// matches the stored one is written at the next revision; a stale base parks
// the upload as a conflict instead. The whole batch commits atomically.
func (s *Storage) Apply(records []remote.Record) ([]remote.UploadResult, error) {
	results := make([]remote.UploadResult, 0, len(records))
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, rec := range records {
			res := remote.UploadResult{Kind: rec.Kind, ID: rec.ID}

			var cur SyncRecord
			err := tx.Where("kind = ? AND record_id = ?", string(rec.Kind), rec.ID).First(&cur).Error
			switch {
			case err == nil && cur.Rev != rec.Rev:
				// Stale base: the server version moved underneath the client.
				if err := parkConflict(tx, &rec, &cur); err != nil {
					return err
				}
				res.Conflicted = true

			case err == nil || errors.Is(err, gorm.ErrRecordNotFound):
				rev, err := nextRev(tx)
				if err != nil {
					return err
				}
				if err := upsertRecord(tx, &rec, rev); err != nil {
					return err
				}
				res.Rev = rev

			default:
				return err
			}
			results = append(results, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ListSince returns every record past the cursor in revision order, plus the
// current cursor position.
func (s *Storage) ListSince(after int64) ([]remote.Record, int64, error) {
	var rows []SyncRecord
	if err := s.db.Where("rev > ?", after).Order("rev ASC").Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	var cursor int64
	if err := s.db.Model(&SyncRecord{}).
		Select("COALESCE(MAX(rev), 0)").
		Scan(&cursor).Error; err != nil {
		return nil, 0, err
	}
	if cursor < after {
		cursor = after // tombstone purge may have dropped the highest rev
	}

	records := make([]remote.Record, len(rows))
	for i, row := range rows {
		records[i] = recordFromRow(&row)
	}
	return records, cursor, nil
}

// ── conflicts ──

// PendingConflicts returns every parked divergence on the wire shape.
func (s *Storage) PendingConflicts() ([]model.Conflict, error) {
	var rows []ConflictRecord
	if err := s.db.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	conflicts := make([]model.Conflict, len(rows))
	for i, row := range rows {
		conflicts[i] = model.Conflict{
			ConflictID: row.ConflictID,
			Kind:       model.RecordKind(row.Kind),
			RecordID:   row.RecordID,
			Local: model.RecordVersion{
				Rev:     row.LocalRev,
				Deleted: row.LocalDeleted,
				Payload: json.RawMessage(row.LocalPayload),
			},
			Remote: model.RecordVersion{
				Rev:     row.RemoteRev,
				Deleted: row.RemoteDeleted,
				Payload: json.RawMessage(row.RemotePayload),
			},
		}
	}
	return conflicts, nil
}

// Resolve closes one conflict: the chosen side becomes the server version at
// a fresh revision and the conflict row disappears. The winning record is
// returned so the resolving client can install it without another download.
func (s *Storage) Resolve(conflictID string, res model.Resolution, merged json.RawMessage) (*remote.Record, error) {
	var winner remote.Record
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var row ConflictRecord
		if err := tx.Where("conflict_id = ?", conflictID).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrConflictNotFound
			}
			return err
		}

		winner = remote.Record{Kind: model.RecordKind(row.Kind), ID: row.RecordID}
		switch res {
		case model.KeepLocal:
			winner.Payload = json.RawMessage(row.LocalPayload)
			winner.Deleted = row.LocalDeleted
		case model.KeepRemote:
			winner.Payload = json.RawMessage(row.RemotePayload)
			winner.Deleted = row.RemoteDeleted
		case model.Merged:
			if len(merged) == 0 {
				return ErrMergedPayloadMissing
			}
			winner.Payload = merged
		default:
			return fmt.Errorf("syncserver: unknown resolution %q", res)
		}

		rev, err := nextRev(tx)
		if err != nil {
			return err
		}
		if err := upsertRecord(tx, &winner, rev); err != nil {
			return err
		}
		winner.Rev = rev

		return tx.Delete(&ConflictRecord{}, "conflict_id = ?", conflictID).Error
	})
	if err != nil {
		return nil, err
	}
	return &winner, nil
}

// Reset drops every pending conflict. Record revisions stay: a resetting
// client re-downloads from scratch and re-uploads what still diverges.
func (s *Storage) Reset() error {
	return s.db.Where("1 = 1").Delete(&ConflictRecord{}).Error
}

// PurgeTombstones removes deleted records whose tombstone is older than the
// cutoff. Clients syncing less often than the horizon miss the deletion and
// resurrect the record on their next upload, so the horizon is configurable.
func (s *Storage) PurgeTombstones(cutoff time.Time) (int64, error) {
	res := s.db.Where("deleted = ? AND updated_at < ?", true, cutoff).Delete(&SyncRecord{})
	return res.RowsAffected, res.Error
}

// ── helpers ──

// nextRev allocates the next global revision inside the caller's transaction.
func nextRev(tx *gorm.DB) (int64, error) {
	var current int64
	err := tx.Model(&SyncRecord{}).Select("COALESCE(MAX(rev), 0)").Scan(&current).Error
	return current + 1, err
}

func upsertRecord(tx *gorm.DB, rec *remote.Record, rev int64) error {
	row := SyncRecord{
		Kind:      string(rec.Kind),
		RecordID:  rec.ID,
		Payload:   []byte(rec.Payload),
		Rev:       rev,
		Deleted:   rec.Deleted,
		UpdatedAt: time.Now().UTC(),
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}, {Name: "record_id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

// parkConflict records the divergence, replacing any previous conflict parked
// for the same record so re-uploads do not pile up duplicates.
func parkConflict(tx *gorm.DB, uploaded *remote.Record, current *SyncRecord) error {
	if err := tx.Where("kind = ? AND record_id = ?", string(uploaded.Kind), uploaded.ID).
		Delete(&ConflictRecord{}).Error; err != nil {
		return err
	}
	row := ConflictRecord{
		ConflictID:    uuid.NewString(),
		Kind:          string(uploaded.Kind),
		RecordID:      uploaded.ID,
		LocalPayload:  []byte(uploaded.Payload),
		LocalRev:      uploaded.Rev,
		LocalDeleted:  uploaded.Deleted,
		RemotePayload: current.Payload,
		RemoteRev:     current.Rev,
		RemoteDeleted: current.Deleted,
		CreatedAt:     time.Now().UTC(),
	}
	return tx.Create(&row).Error
}

func recordFromRow(row *SyncRecord) remote.Record {
	return remote.Record{
		Kind:    model.RecordKind(row.Kind),
		ID:      row.RecordID,
		Payload: json.RawMessage(row.Payload),
		Rev:     row.Rev,
		Deleted: row.Deleted,
	}
}
