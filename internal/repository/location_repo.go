package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shiftscheduler/internal/model"
)

// LocationRepository is the location data-access interface. Save and Delete
// mark the record dirty for the next sync pass; the ApplyRemote pair installs
// server-side versions without re-dirtying them.
type LocationRepository interface {
	Save(ctx context.Context, loc *model.Location) error
	GetByID(ctx context.Context, id string) (*model.Location, error)
	List(ctx context.Context) ([]model.Location, error)
	Delete(ctx context.Context, id string) error

	ListDirty(ctx context.Context) ([]model.Location, error)
	MarkSynced(ctx context.Context, id string, rev int64, at time.Time) error
	ApplyRemote(ctx context.Context, loc *model.Location, rev int64) error
	ApplyRemoteTombstone(ctx context.Context, id string, rev int64) error
}

type locationRepo struct {
	db *gorm.DB
}

// NewLocationRepo creates a LocationRepository instance.
func NewLocationRepo(db *gorm.DB) LocationRepository {
	return &locationRepo{db: db}
}

func (r *locationRepo) Save(ctx context.Context, loc *model.Location) error {
	loc.Dirty = true
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(loc).Error
}

func (r *locationRepo) GetByID(ctx context.Context, id string) (*model.Location, error) {
	var loc model.Location
	err := r.db.WithContext(ctx).
		Where("location_id = ?", id).
		First(&loc).Error
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (r *locationRepo) List(ctx context.Context) ([]model.Location, error) {
	var locations []model.Location
	err := r.db.WithContext(ctx).Order("name ASC").Find(&locations).Error
	return locations, err
}

// Delete soft-deletes so the tombstone can travel to the remote replica.
func (r *locationRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Location{}).
			Where("location_id = ?", id).
			Update("dirty", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("location_id = ?", id).Delete(&model.Location{}).Error
	})
}

func (r *locationRepo) ListDirty(ctx context.Context) ([]model.Location, error) {
	var locations []model.Location
	err := r.db.WithContext(ctx).
		Unscoped().
		Where("dirty = ?", true).
		Order("updated_at ASC").
		Find(&locations).Error
	return locations, err
}

func (r *locationRepo) MarkSynced(ctx context.Context, id string, rev int64, at time.Time) error {
	return r.db.WithContext(ctx).
		Unscoped().
		Model(&model.Location{}).
		Where("location_id = ?", id).
		Updates(map[string]interface{}{
			"dirty":      false,
			"synced_at":  at,
			"remote_rev": rev,
		}).Error
}

// ApplyRemote installs a server version wholesale, resurrecting a locally
// soft-deleted row when the remote copy is live.
func (r *locationRepo) ApplyRemote(ctx context.Context, loc *model.Location, rev int64) error {
	now := time.Now()
	loc.Dirty = false
	loc.RemoteRev = rev
	loc.SyncedAt = &now
	loc.Deleted = gorm.DeletedAt{}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(loc).Error
}

func (r *locationRepo) ApplyRemoteTombstone(ctx context.Context, id string, rev int64) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Unscoped().
		Model(&model.Location{}).
		Where("location_id = ?", id).
		Updates(map[string]interface{}{
			"dirty":      false,
			"synced_at":  now,
			"remote_rev": rev,
			"deleted":    now,
		}).Error
}
