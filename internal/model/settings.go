package model

// Settings is the single persisted row of user preferences — maps to settings.
// RetentionDays 0 disables the automatic change-log purge.
type Settings struct {
	SettingsID    int    `gorm:"primaryKey"                 json:"settings_id"`
	UserID        string `gorm:"type:uuid;not null"         json:"user_id"`
	UserName      string `gorm:"type:varchar(100);not null" json:"user_name"`
	RetentionDays int    `gorm:"not null;default:0"         json:"retention_days"`
	BaseModel
}

// TableName sets the table name.
func (Settings) TableName() string { return "settings" }
