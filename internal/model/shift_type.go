package model

import (
	"fmt"

	"shiftscheduler/pkg/apperr"
)

const minutesPerDay = 24 * 60

// ShiftType is a reusable shift template — maps to shift_types.
// Non-all-day types carry a time-of-day pair as minutes since midnight; an
// EndMinute at or before StartMinute wraps into the next calendar day.
type ShiftType struct {
	ShiftTypeID string  `gorm:"type:uuid;primaryKey"       json:"shift_type_id"`
	Symbol      string  `gorm:"type:varchar(8);not null"   json:"symbol"`
	Title       string  `gorm:"type:varchar(100);not null" json:"title"`
	Description string  `gorm:"type:varchar(500)"          json:"description,omitempty"`
	LocationID  *string `gorm:"type:uuid;index"            json:"location_id,omitempty"`
	AllDay      bool    `gorm:"not null;default:false"     json:"all_day"`
	StartMinute int     `gorm:"not null;default:0"         json:"start_minute"`
	EndMinute   int     `gorm:"not null;default:0"         json:"end_minute"`
	SyncModel

	Location *Location `gorm:"foreignKey:LocationID;references:LocationID" json:"location,omitempty"`
}

// TableName sets the table name.
func (ShiftType) TableName() string { return "shift_types" }

// DurationMinutes is the effective length with overnight wraparound applied.
// All-day types count as a full day.
func (t *ShiftType) DurationMinutes() int {
	if t.AllDay {
		return minutesPerDay
	}
	d := t.EndMinute - t.StartMinute
	if d <= 0 {
		d += minutesPerDay
	}
	return d
}

// Overnight reports whether the type spans past midnight.
func (t *ShiftType) Overnight() bool {
	return !t.AllDay && t.EndMinute <= t.StartMinute
}

// TimeText renders the duration for display: "09:00-17:30", "22:00-06:00 (+1d)"
// or "all day".
func (t *ShiftType) TimeText() string {
	if t.AllDay {
		return "all day"
	}
	s := fmt.Sprintf("%02d:%02d-%02d:%02d", t.StartMinute/60, t.StartMinute%60, t.EndMinute/60, t.EndMinute%60)
	if t.Overnight() {
		s += " (+1d)"
	}
	return s
}

// Validate enforces the duration invariant: symbol and title present, minutes
// in range, and the effective duration strictly below 24 hours. A wrapped
// EndMinute equal to StartMinute would mean exactly 24h and is rejected.
func (t *ShiftType) Validate() error {
	if t.Symbol == "" {
		return apperr.InvalidShiftData("symbol must not be empty")
	}
	if t.Title == "" {
		return apperr.InvalidShiftData("title must not be empty")
	}
	if t.AllDay {
		return nil
	}
	if t.StartMinute < 0 || t.StartMinute >= minutesPerDay {
		return apperr.InvalidShiftData(fmt.Sprintf("start minute %d out of range", t.StartMinute))
	}
	if t.EndMinute < 0 || t.EndMinute >= minutesPerDay {
		return apperr.InvalidShiftData(fmt.Sprintf("end minute %d out of range", t.EndMinute))
	}
	if t.EndMinute == t.StartMinute {
		return apperr.InvalidShiftData("shift duration must be shorter than 24 hours")
	}
	return nil
}

// Snapshot captures the display fields at this moment. Log entries keep the
// copy so later edits or deletion of the live type cannot rewrite history.
func (t *ShiftType) Snapshot() *ShiftSnapshot {
	s := &ShiftSnapshot{
		ShiftTypeID: t.ShiftTypeID,
		Symbol:      t.Symbol,
		Title:       t.Title,
		Description: t.Description,
		TimeText:    t.TimeText(),
	}
	if t.Location != nil {
		s.LocationName = t.Location.Name
	}
	return s
}

// ShiftSnapshot is an immutable display copy of a ShiftType, embedded into
// change-log entries.
type ShiftSnapshot struct {
	ShiftTypeID  string `gorm:"type:uuid"          json:"shift_type_id"`
	Symbol       string `gorm:"type:varchar(8)"    json:"symbol"`
	Title        string `gorm:"type:varchar(100)"  json:"title"`
	Description  string `gorm:"type:varchar(500)"  json:"description,omitempty"`
	TimeText     string `gorm:"type:varchar(40)"   json:"time_text,omitempty"`
	LocationName string `gorm:"type:varchar(100)"  json:"location_name,omitempty"`
}
