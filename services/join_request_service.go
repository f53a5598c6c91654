package services

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/aoe4hub/tournament-engine/models"
	"github.com/aoe4hub/tournament-engine/repositories"
)

// JoinRequestService runs the ask-to-join flow of team tournaments: a
// participant requests a spot, the team captain (or a tournament manager)
// accepts or rejects, and acceptance cancels the requester's other pending
// requests.
type JoinRequestService struct {
	db              *sql.DB
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	entrantRepo     repositories.EntrantRepository
	requestRepo     repositories.JoinRequestRepository
	userRepo        repositories.UserRepository
	logger          *slog.Logger
}

func NewJoinRequestService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	entrantRepo repositories.EntrantRepository,
	requestRepo repositories.JoinRequestRepository,
	userRepo repositories.UserRepository,
	logger *slog.Logger,
) *JoinRequestService {
	return &JoinRequestService{
		db:              db,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		entrantRepo:     entrantRepo,
		requestRepo:     requestRepo,
		userRepo:        userRepo,
		logger:          logger,
	}
}

func (s *JoinRequestService) Create(ctx context.Context, tournamentID, userID, entrantID int) (*models.TournamentTeamJoinRequest, error) {
	var request *models.TournamentTeamJoinRequest
	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		tournament, err := s.getTournament(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if tournament.TeamSize <= 1 {
			return ErrSoloTournament
		}

		joined, err := s.participantRepo.Exists(ctx, tx, tournamentID, userID)
		if err != nil {
			return err
		}
		if !joined {
			return ErrJoinTournamentFirst
		}

		isMember, err := s.entrantRepo.UserIsMemberInTournament(ctx, tx, tournamentID, userID)
		if err != nil {
			return err
		}
		if isMember {
			return ErrAlreadyInTeam
		}

		entrant, err := s.entrantRepo.GetByID(ctx, tx, tournamentID, entrantID)
		if err != nil {
			if errors.Is(err, repositories.ErrEntrantNotFound) {
				return ErrEntrantNotFound
			}
			return err
		}

		memberCount, err := s.entrantRepo.CountMembers(ctx, tx, entrant.ID)
		if err != nil {
			return err
		}
		if memberCount >= tournament.TeamSize {
			return ErrTeamFull
		}

		request = &models.TournamentTeamJoinRequest{
			TournamentID: tournamentID,
			EntrantID:    entrantID,
			RequesterID:  userID,
		}
		created, err := s.requestRepo.GetOrCreate(ctx, tx, request)
		if err != nil {
			return err
		}
		if !created && request.Status != models.TeamJoinRequestPending {
			return NewValidationError("you have already requested to join this team")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *JoinRequestService) Respond(ctx context.Context, tournamentID, actorID, requestID int, accept bool) (*models.TournamentTeamJoinRequest, error) {
	var request *models.TournamentTeamJoinRequest
	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		tournament, err := s.getTournament(ctx, tx, tournamentID)
		if err != nil {
			return err
		}

		request, err = s.requestRepo.GetByIDForUpdate(ctx, tx, tournamentID, requestID)
		if err != nil {
			if errors.Is(err, repositories.ErrJoinRequestNotFound) {
				return ErrNotFound
			}
			return err
		}
		if request.Status != models.TeamJoinRequestPending {
			return ErrRequestNotPending
		}

		canManage, err := s.canManage(ctx, tournament, actorID)
		if err != nil {
			return err
		}
		if !canManage {
			isCaptain, err := s.entrantRepo.UserIsCaptain(ctx, tx, request.EntrantID, actorID)
			if err != nil {
				return err
			}
			if !isCaptain {
				return ErrForbiddenOperation
			}
		}

		// Lock the entrant row so concurrent accepts cannot overfill the team.
		if _, err := s.entrantRepo.GetByIDForUpdate(ctx, tx, tournamentID, request.EntrantID); err != nil {
			if errors.Is(err, repositories.ErrEntrantNotFound) {
				return ErrEntrantNotFound
			}
			return err
		}

		now := time.Now()

		if !accept {
			request.Status = models.TeamJoinRequestRejected
			request.RespondedAt = &now
			return s.requestRepo.UpdateStatus(ctx, tx, request.ID, models.TeamJoinRequestRejected, now)
		}

		joined, err := s.participantRepo.Exists(ctx, tx, tournamentID, request.RequesterID)
		if err != nil {
			return err
		}
		if !joined {
			return NewValidationError("requester is not a tournament participant")
		}

		isMember, err := s.entrantRepo.UserIsMemberInTournament(ctx, tx, tournamentID, request.RequesterID)
		if err != nil {
			return err
		}
		if isMember {
			return NewValidationError("requester is already in a team")
		}

		memberCount, err := s.entrantRepo.CountMembers(ctx, tx, request.EntrantID)
		if err != nil {
			return err
		}
		if memberCount >= tournament.TeamSize {
			return ErrTeamFull
		}

		member := &models.TournamentEntrantMember{
			EntrantID: request.EntrantID,
			UserID:    request.RequesterID,
			IsCaptain: false,
		}
		if err := s.entrantRepo.CreateMember(ctx, tx, member); err != nil {
			return err
		}

		request.Status = models.TeamJoinRequestAccepted
		request.RespondedAt = &now
		if err := s.requestRepo.UpdateStatus(ctx, tx, request.ID, models.TeamJoinRequestAccepted, now); err != nil {
			return err
		}

		return s.requestRepo.CancelOtherPending(ctx, tx, tournamentID, request.RequesterID, request.ID, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("team join request resolved",
		"tournament_id", tournamentID,
		"request_id", request.ID,
		"status", request.Status,
	)
	return request, nil
}

func (s *JoinRequestService) Cancel(ctx context.Context, tournamentID, actorID, requestID int) (*models.TournamentTeamJoinRequest, error) {
	var request *models.TournamentTeamJoinRequest
	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		tournament, err := s.getTournament(ctx, tx, tournamentID)
		if err != nil {
			return err
		}

		request, err = s.requestRepo.GetByIDForUpdate(ctx, tx, tournamentID, requestID)
		if err != nil {
			if errors.Is(err, repositories.ErrJoinRequestNotFound) {
				return ErrNotFound
			}
			return err
		}
		if request.Status != models.TeamJoinRequestPending {
			return ErrRequestNotPending
		}

		if request.RequesterID != actorID {
			canManage, err := s.canManage(ctx, tournament, actorID)
			if err != nil {
				return err
			}
			if !canManage {
				return ErrForbiddenOperation
			}
		}

		now := time.Now()
		request.Status = models.TeamJoinRequestCanceled
		request.RespondedAt = &now
		return s.requestRepo.UpdateStatus(ctx, tx, request.ID, models.TeamJoinRequestCanceled, now)
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *JoinRequestService) getTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return tournament, nil
}

func (s *JoinRequestService) canManage(ctx context.Context, tournament *models.Tournament, actorID int) (bool, error) {
	if tournament.OwnerID == actorID {
		return true, nil
	}
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return actor.IsAdmin, nil
}
