package models

import "time"

type EntrantStatus string

const (
	EntrantStatusActive       EntrantStatus = "ACTIVE"
	EntrantStatusDropped      EntrantStatus = "DROPPED"
	EntrantStatusDisqualified EntrantStatus = "DISQUALIFIED"
)

// TournamentEntrant is the unit that plays a match: a single player when the
// tournament team_size is 1, otherwise a named team with exactly one captain.
type TournamentEntrant struct {
	ID           int           `json:"id" db:"id"`
	TournamentID int           `json:"tournament_id" db:"tournament_id"`
	Name         string        `json:"name" db:"name"`
	Status       EntrantStatus `json:"status" db:"status"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`

	// MemberCount is populated by queries that join memberships; it is not a
	// column on the entrants table.
	MemberCount int `json:"member_count,omitempty" db:"-"`

	Members []TournamentEntrantMember `json:"members,omitempty" db:"-"`
}

// TournamentEntrantMember links a user to an entrant. A partial unique index
// on (entrant_id) WHERE is_captain enforces at most one captain per entrant.
type TournamentEntrantMember struct {
	ID        int       `json:"id" db:"id"`
	EntrantID int       `json:"entrant_id" db:"entrant_id"`
	UserID    int       `json:"user_id" db:"user_id"`
	IsCaptain bool      `json:"is_captain" db:"is_captain"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	User *User `json:"user,omitempty" db:"-"`
}
