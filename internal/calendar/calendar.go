// Package calendar is the external store scheduled entries live in. The
// engine treats it as a collaborator with its own consistency guarantees:
// middleware calls it, converts failures to typed actions, and never holds
// engine locks across a call.
package calendar

import (
	"context"
	"errors"
	"time"

	"shiftscheduler/internal/model"
)

var (
	// ErrEventNotFound reports an id that resolves to no stored event.
	ErrEventNotFound = errors.New("calendar: event not found")
	// ErrForeignEvent reports a write against a recurring occurrence that
	// only supports occurrence deletion, not editing.
	ErrForeignEvent = errors.New("calendar: recurring occurrences cannot be edited")
	// ErrNotAuthorized reports calendar access that was never granted.
	ErrNotAuthorized = errors.New("calendar: access not granted")
)

// Service is the calendar collaborator.
type Service interface {
	// IsAuthorized reports whether the store is ready for use.
	IsAuthorized() bool
	// RequestAccess obtains (or creates) the store; false means denied.
	RequestAccess(ctx context.Context) (bool, error)

	// LoadExtendedRange materializes the wide startup window around today.
	LoadExtendedRange(ctx context.Context) ([]model.ScheduledEntry, model.LoadedRange, error)
	// LoadAroundMonth materializes the month-aligned window around a pivot.
	LoadAroundMonth(ctx context.Context, pivot time.Time, offset int) ([]model.ScheduledEntry, model.LoadedRange, error)
	// LoadBetween returns entries intersecting the half-open [start, end).
	LoadBetween(ctx context.Context, start, end time.Time) ([]model.ScheduledEntry, error)

	// Create writes one entry for the shift type on the date.
	Create(ctx context.Context, date time.Time, t model.ShiftType, notes string) (model.ScheduledEntry, error)
	// Update rewrites an existing event to a new shift type on a date.
	Update(ctx context.Context, id string, t model.ShiftType, date time.Time) error
	// Delete removes the entry with the given id; a recurring occurrence is
	// excluded from its series rather than deleting the series.
	Delete(ctx context.Context, id string) error
	// DeleteMany removes a batch, silently skipping unknown ids, and reports
	// how many events it removed.
	DeleteMany(ctx context.Context, ids []string) (int, error)

	// CascadeShiftTypeUpdate rewrites every event bound to the shift type so
	// it matches the type's current definition; returns the rewrite count.
	CascadeShiftTypeUpdate(ctx context.Context, t model.ShiftType) (int, error)
	// ResyncAll reconciles every bound event against the given catalog and
	// returns how many drifted events it rewrote.
	ResyncAll(ctx context.Context, types []model.ShiftType) (int, error)
}
