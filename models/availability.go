package models

import "time"

// UserAvailability is a single weekly-recurring window a user can play in.
// Offsets are seconds from Monday 00:00 in the scheduler timezone, both in
// [0, 7*86400], start strictly before end, span at most 16 hours. The
// availability service keeps a user's windows non-overlapping by merging on
// create/update.
type UserAvailability struct {
	ID          int       `json:"id" db:"id"`
	UserID      int       `json:"user_id" db:"user_id"`
	StartOffset int       `json:"start_offset" db:"start_offset"`
	EndOffset   int       `json:"end_offset" db:"end_offset"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// StartDay returns the weekday index (0=Monday) of the window start.
func (a UserAvailability) StartDay() int { return a.StartOffset / 86400 }

// EndDay returns the weekday index (0=Monday) of the window end.
func (a UserAvailability) EndDay() int { return a.EndOffset / 86400 }
