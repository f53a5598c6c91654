package models

import (
	"encoding/json"
	"time"
)

type StageType string

const (
	StageTypeLeague     StageType = "LEAGUE"
	StageTypeSingleElim StageType = "SINGLE_ELIM"
)

// TournamentStage is one phase of a tournament containing matches of a single
// format. Config is an opaque bag whose shape depends on Type.
type TournamentStage struct {
	ID            int             `json:"id" db:"id"`
	TournamentID  int             `json:"tournament_id" db:"tournament_id"`
	Type          StageType       `json:"type" db:"type"`
	Order         int             `json:"order" db:"stage_order"`
	BestOfDefault int             `json:"best_of_default" db:"best_of_default"`
	Config        json.RawMessage `json:"config" db:"config"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// LeagueStageConfig is the Config payload of a LEAGUE stage.
type LeagueStageConfig struct {
	Points      LeaguePoints `json:"points"`
	Tiebreakers []string     `json:"tiebreakers"`
}

type LeaguePoints struct {
	Win  int `json:"win"`
	Loss int `json:"loss"`
}

// SingleElimStageConfig is the Config payload of a SINGLE_ELIM stage.
type SingleElimStageConfig struct {
	BracketSize int `json:"bracket_size"`
}
