package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shiftscheduler/internal/model"
)

// ShiftTypeRepository is the shift-type data-access interface.
type ShiftTypeRepository interface {
	Save(ctx context.Context, t *model.ShiftType) error
	GetByID(ctx context.Context, id string) (*model.ShiftType, error)
	List(ctx context.Context) ([]model.ShiftType, error)
	ListByLocation(ctx context.Context, locationID string) ([]model.ShiftType, error)
	Delete(ctx context.Context, id string) error

	ListDirty(ctx context.Context) ([]model.ShiftType, error)
	MarkSynced(ctx context.Context, id string, rev int64, at time.Time) error
	ApplyRemote(ctx context.Context, t *model.ShiftType, rev int64) error
	ApplyRemoteTombstone(ctx context.Context, id string, rev int64) error
}

type shiftTypeRepo struct {
	db *gorm.DB
}

// NewShiftTypeRepo creates a ShiftTypeRepository instance.
func NewShiftTypeRepo(db *gorm.DB) ShiftTypeRepository {
	return &shiftTypeRepo{db: db}
}

func (r *shiftTypeRepo) Save(ctx context.Context, t *model.ShiftType) error {
	t.Dirty = true
	t.Location = nil // association rows are never written through here
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(t).Error
}

func (r *shiftTypeRepo) GetByID(ctx context.Context, id string) (*model.ShiftType, error) {
	var t model.ShiftType
	err := r.db.WithContext(ctx).
		Preload("Location").
		Where("shift_type_id = ?", id).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *shiftTypeRepo) List(ctx context.Context) ([]model.ShiftType, error) {
	var types []model.ShiftType
	err := r.db.WithContext(ctx).
		Preload("Location").
		Order("symbol ASC, title ASC").
		Find(&types).Error
	return types, err
}

// ListByLocation returns the shift types a location's name/address flows
// into, so callers can refresh what a location edit affects.
func (r *shiftTypeRepo) ListByLocation(ctx context.Context, locationID string) ([]model.ShiftType, error) {
	var types []model.ShiftType
	err := r.db.WithContext(ctx).
		Preload("Location").
		Where("location_id = ?", locationID).
		Order("symbol ASC").
		Find(&types).Error
	return types, err
}

func (r *shiftTypeRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.ShiftType{}).
			Where("shift_type_id = ?", id).
			Update("dirty", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("shift_type_id = ?", id).Delete(&model.ShiftType{}).Error
	})
}

func (r *shiftTypeRepo) ListDirty(ctx context.Context) ([]model.ShiftType, error) {
	var types []model.ShiftType
	err := r.db.WithContext(ctx).
		Unscoped().
		Where("dirty = ?", true).
		Order("updated_at ASC").
		Find(&types).Error
	return types, err
}

func (r *shiftTypeRepo) MarkSynced(ctx context.Context, id string, rev int64, at time.Time) error {
	return r.db.WithContext(ctx).
		Unscoped().
		Model(&model.ShiftType{}).
		Where("shift_type_id = ?", id).
		Updates(map[string]interface{}{
			"dirty":      false,
			"synced_at":  at,
			"remote_rev": rev,
		}).Error
}

func (r *shiftTypeRepo) ApplyRemote(ctx context.Context, t *model.ShiftType, rev int64) error {
	now := time.Now()
	t.Dirty = false
	t.RemoteRev = rev
	t.SyncedAt = &now
	t.Deleted = gorm.DeletedAt{}
	t.Location = nil
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(t).Error
}

func (r *shiftTypeRepo) ApplyRemoteTombstone(ctx context.Context, id string, rev int64) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Unscoped().
		Model(&model.ShiftType{}).
		Where("shift_type_id = ?", id).
		Updates(map[string]interface{}{
			"dirty":      false,
			"synced_at":  now,
			"remote_rev": rev,
			"deleted":    now,
		}).Error
}
