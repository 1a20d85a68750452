package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shiftscheduler/internal/model"
)

// SettingsRepository reads and writes the single user-preferences row.
type SettingsRepository interface {
	Get(ctx context.Context) (*model.Settings, error)
	Save(ctx context.Context, s *model.Settings) error
}

type settingsRepo struct {
	db *gorm.DB
}

// NewSettingsRepo creates a SettingsRepository instance.
func NewSettingsRepo(db *gorm.DB) SettingsRepository {
	return &settingsRepo{db: db}
}

func (r *settingsRepo) Get(ctx context.Context) (*model.Settings, error) {
	var s model.Settings
	err := r.db.WithContext(ctx).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *settingsRepo) Save(ctx context.Context, s *model.Settings) error {
	if s.SettingsID == 0 {
		s.SettingsID = 1
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(s).Error
}
