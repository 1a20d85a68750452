package model

// Location is a workplace a shift type can point at — maps to locations.
type Location struct {
	LocationID string `gorm:"type:uuid;primaryKey"       json:"location_id"`
	Name       string `gorm:"type:varchar(100);not null" json:"name"`
	Address    string `gorm:"type:varchar(200)"          json:"address,omitempty"`
	SyncModel
}

// TableName sets the table name.
func (Location) TableName() string { return "locations" }
