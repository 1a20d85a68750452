package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"shiftscheduler/internal/model"
)

// ChangeLogRepository is the append-only audit-log interface. Entries are
// immutable once written; the only removal path is the retention purge.
type ChangeLogRepository interface {
	Append(ctx context.Context, entries []model.ChangeLogEntry) error
	List(ctx context.Context, limit int) ([]model.ChangeLogEntry, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Meta(ctx context.Context) (model.ChangeLogMeta, error)
}

type changeLogRepo struct {
	db *gorm.DB
}

// NewChangeLogRepo creates a ChangeLogRepository instance.
func NewChangeLogRepo(db *gorm.DB) ChangeLogRepository {
	return &changeLogRepo{db: db}
}

func (r *changeLogRepo) Append(ctx context.Context, entries []model.ChangeLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

// List returns entries newest first. A non-positive limit returns everything.
func (r *changeLogRepo) List(ctx context.Context, limit int) ([]model.ChangeLogEntry, error) {
	var entries []model.ChangeLogEntry
	db := r.db.WithContext(ctx).Order("timestamp DESC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Find(&entries).Error
	return entries, err
}

func (r *changeLogRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("timestamp < ?", cutoff).
		Delete(&model.ChangeLogEntry{})
	return res.RowsAffected, res.Error
}

// Meta answers count and oldest timestamp with two cheap queries instead of
// materializing the table.
func (r *changeLogRepo) Meta(ctx context.Context) (model.ChangeLogMeta, error) {
	var meta model.ChangeLogMeta
	if err := r.db.WithContext(ctx).
		Model(&model.ChangeLogEntry{}).
		Count(&meta.Count).Error; err != nil {
		return model.ChangeLogMeta{}, err
	}
	if meta.Count == 0 {
		return meta, nil
	}
	var oldest model.ChangeLogEntry
	if err := r.db.WithContext(ctx).
		Order("timestamp ASC").
		First(&oldest).Error; err != nil {
		return model.ChangeLogMeta{}, err
	}
	ts := oldest.Timestamp
	meta.Oldest = &ts
	return meta, nil
}
