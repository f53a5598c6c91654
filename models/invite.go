package models

import "time"

// TournamentInvite is a shareable join token. Uses is incremented atomically
// under a row lock so max_uses holds under contention.
type TournamentInvite struct {
	ID           int        `json:"id" db:"id"`
	TournamentID int        `json:"tournament_id" db:"tournament_id"`
	Token        string     `json:"token" db:"token"`
	CreatedByID  int        `json:"created_by_id" db:"created_by_id"`
	MaxUses      *int       `json:"max_uses" db:"max_uses"`
	Uses         int        `json:"uses" db:"uses"`
	ExpiresAt    *time.Time `json:"expires_at" db:"expires_at"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}
