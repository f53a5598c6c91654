package models

import "time"

// TournamentParticipant records that a user joined a tournament, whether or
// not they have picked (or formed) a team yet.
type TournamentParticipant struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	UserID       int       `json:"user_id" db:"user_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
