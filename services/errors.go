package services

import (
	"errors"
	"fmt"
)

// ValidationError is the domain-validation failure kind. Handlers map it to
// 400; the structure-build task downgrades a scheduling ValidationError to an
// empty scheduling result instead of retrying.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return e.Detail
}

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Detail: fmt.Sprintf(format, args...)}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Shared errors used across services and the HTTP error mapping.
var (
	ErrNotFound = errors.New("requested resource not found")

	ErrTournamentNotFound = errors.New("tournament not found")
	ErrEntrantNotFound    = errors.New("entrant not found")
	ErrInviteNotFound     = errors.New("invite not found")
	ErrUserNotFound       = errors.New("user not found")

	ErrTournamentNameRequired     = errors.New("tournament name is required")
	ErrTournamentInvalidDateRange = errors.New("tournament end must be after start")
	ErrTournamentInvalidTeamSize  = errors.New("tournament team size must be at least 1")
	ErrTournamentInvalidGameGaps  = errors.New("tournament game gap must not be negative")

	ErrTournamentNameConflict = errors.New("tournament name already exists")
	ErrEntrantNameConflict    = errors.New("team name is already taken in this tournament")
	ErrUsernameConflict       = errors.New("username is already in use")
	ErrAlreadyJoined          = errors.New("you have already joined this tournament")

	ErrInviteNotActive     = errors.New("invite is not active")
	ErrInviteExpired       = errors.New("invite has expired")
	ErrInviteUsesExhausted = errors.New("invite usage limit reached")

	ErrJoinNotOpen         = errors.New("tournament is not currently open for joining")
	ErrSoloTournament      = errors.New("this is a solo tournament, teams are not allowed")
	ErrJoinTournamentFirst = errors.New("join the tournament first")
	ErrAlreadyInTeam       = errors.New("you are already in a team")
	ErrTeamFull            = errors.New("team is already full")
	ErrNotTeamMember       = errors.New("you are not a member of this team")
	ErrRequestNotPending   = errors.New("request is not pending")

	ErrAuthenticationFailed = errors.New("invalid username or password")
	ErrPasswordTooShort     = errors.New("password is too short")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")
)
