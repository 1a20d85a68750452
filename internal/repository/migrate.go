package repository

import (
	"embed"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"shiftscheduler/pkg/database"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate brings the client schema up to date.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return database.RunMigrations(sqlDB, migrationsFS, "migrations", logger)
}
