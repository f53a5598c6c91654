package models

import "time"

type MatchStatus string

const (
	MatchStatusScheduled MatchStatus = "SCHEDULED"
	MatchStatusLive      MatchStatus = "LIVE"
	MatchStatusFinished  MatchStatus = "FINISHED"
	MatchStatusCanceled  MatchStatus = "CANCELED"
)

// Match is one bracket or league pairing. Entrant slots are nullable: in a
// single-elimination bracket rounds past the first start empty and round-1
// byes hold only one entrant. (stage_id, round_number, match_order) is unique.
type Match struct {
	ID          int         `json:"id" db:"id"`
	StageID     int         `json:"stage_id" db:"stage_id"`
	RoundNumber int         `json:"round_number" db:"round_number"`
	Order       int         `json:"order" db:"match_order"`
	BestOf      int         `json:"best_of" db:"best_of"`
	Status      MatchStatus `json:"status" db:"status"`
	Entrant1ID  *int        `json:"entrant1_id" db:"entrant1_id"`
	Entrant2ID  *int        `json:"entrant2_id" db:"entrant2_id"`
	Score1      *int        `json:"score1" db:"score1"`
	Score2      *int        `json:"score2" db:"score2"`
	WinnerSlot  *int        `json:"winner_slot" db:"winner_slot"`
	ScheduledAt *time.Time  `json:"scheduled_at" db:"scheduled_at"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`

	Entrant1 *TournamentEntrant `json:"entrant1,omitempty" db:"-"`
	Entrant2 *TournamentEntrant `json:"entrant2,omitempty" db:"-"`
}
