package models

import "time"

type TeamJoinRequestStatus string

const (
	TeamJoinRequestPending  TeamJoinRequestStatus = "PENDING"
	TeamJoinRequestAccepted TeamJoinRequestStatus = "ACCEPTED"
	TeamJoinRequestRejected TeamJoinRequestStatus = "REJECTED"
	TeamJoinRequestCanceled TeamJoinRequestStatus = "CANCELED"
)

type TournamentTeamJoinRequest struct {
	ID           int                   `json:"id" db:"id"`
	TournamentID int                   `json:"tournament_id" db:"tournament_id"`
	EntrantID    int                   `json:"entrant_id" db:"entrant_id"`
	RequesterID  int                   `json:"requester_id" db:"requester_id"`
	Status       TeamJoinRequestStatus `json:"status" db:"status"`
	RespondedAt  *time.Time            `json:"responded_at" db:"responded_at"`
	CreatedAt    time.Time             `json:"created_at" db:"created_at"`
}
