package models

import "time"

// TournamentStatus mirrors the tournament_status ENUM in the database.
type TournamentStatus string

const (
	TournamentStatusRegistration TournamentStatus = "REGISTRATION"
	TournamentStatusRunning      TournamentStatus = "RUNNING"
	TournamentStatusFinished     TournamentStatus = "FINISHED"
)

type TournamentVisibility string

const (
	TournamentVisibilityPublic  TournamentVisibility = "PUBLIC"
	TournamentVisibilityPrivate TournamentVisibility = "PRIVATE"
)

// Tournament is the registration-phase container that the structure builder
// turns into a stage plus matches. GameGaps is the post-match cooldown in
// whole minutes applied by the scheduler.
type Tournament struct {
	ID         int                  `json:"id" db:"id"`
	Name       string               `json:"name" db:"name"`
	OwnerID    int                  `json:"owner_id" db:"owner_id"`
	TeamSize   int                  `json:"team_size" db:"team_size"`
	Status     TournamentStatus     `json:"status" db:"status"`
	Visibility TournamentVisibility `json:"visibility" db:"visibility"`
	StartsAt   time.Time            `json:"starts_at" db:"starts_at"`
	EndsAt     time.Time            `json:"ends_at" db:"ends_at"`
	GameGaps   int                  `json:"game_gaps" db:"game_gaps"`
	CreatedAt  time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at" db:"updated_at"`

	LogoKey *string `json:"-" db:"logo_key"`
	LogoURL *string `json:"logo_url,omitempty" db:"-"`

	Owner    *User               `json:"owner,omitempty" db:"-"`
	Entrants []TournamentEntrant `json:"entrants,omitempty" db:"-"`
	Stages   []TournamentStage   `json:"stages,omitempty" db:"-"`
}
