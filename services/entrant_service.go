package services

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/aoe4hub/tournament-engine/models"
	"github.com/aoe4hub/tournament-engine/repositories"
)

// EntrantService manages team entrants: forming a team, leaving one and
// removing a player from the tournament. Solo entrants are created by the
// join flow, not here.
type EntrantService struct {
	db              *sql.DB
	tournamentRepo  repositories.TournamentRepository
	entrantRepo     repositories.EntrantRepository
	participantRepo repositories.ParticipantRepository
	userRepo        repositories.UserRepository
	logger          *slog.Logger
}

func NewEntrantService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	entrantRepo repositories.EntrantRepository,
	participantRepo repositories.ParticipantRepository,
	userRepo repositories.UserRepository,
	logger *slog.Logger,
) *EntrantService {
	return &EntrantService{
		db:              db,
		tournamentRepo:  tournamentRepo,
		entrantRepo:     entrantRepo,
		participantRepo: participantRepo,
		userRepo:        userRepo,
		logger:          logger,
	}
}

// CreateEntrant forms a new team with the user as its captain. The user must
// have joined the tournament and not belong to any team yet.
func (s *EntrantService) CreateEntrant(ctx context.Context, tournamentID, userID int, name string) (*models.TournamentEntrant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("team name is required")
	}

	var entrant *models.TournamentEntrant
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

		entrant = &models.TournamentEntrant{
			TournamentID: tournamentID,
			Name:         name,
			Status:       models.EntrantStatusActive,
		}
		if err := s.entrantRepo.Create(ctx, tx, entrant); err != nil {
			if errors.Is(err, repositories.ErrEntrantNameConflict) {
				return ErrEntrantNameConflict
			}
			return err
		}

		member := &models.TournamentEntrantMember{
			EntrantID: entrant.ID,
			UserID:    userID,
			IsCaptain: true,
		}
		return s.entrantRepo.CreateMember(ctx, tx, member)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("team entrant created",
		"tournament_id", tournamentID,
		"entrant_id", entrant.ID,
		"captain_user_id", userID,
	)
	return entrant, nil
}

// Leave removes the user from a team. A departing captain passes the role to
// the oldest remaining member; an emptied team is deleted.
func (s *EntrantService) Leave(ctx context.Context, tournamentID, userID, entrantID int) error {
	return runInTx(ctx, s.db, func(tx *sql.Tx) error {
		tournament, err := s.getTournament(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if tournament.TeamSize <= 1 {
			return ErrSoloTournament
		}

		entrant, err := s.entrantRepo.GetByIDForUpdate(ctx, tx, tournamentID, entrantID)
		if err != nil {
			if errors.Is(err, repositories.ErrEntrantNotFound) {
				return ErrEntrantNotFound
			}
			return err
		}
		if entrant.Status != models.EntrantStatusActive {
			return ErrEntrantNotFound
		}

		member, err := s.entrantRepo.GetMemberForUpdate(ctx, tx, entrantID, userID)
		if err != nil {
			if errors.Is(err, repositories.ErrMemberNotFound) {
				return ErrNotTeamMember
			}
			return err
		}

		wasCaptain := member.IsCaptain

		if err := s.entrantRepo.DeleteMember(ctx, tx, member.ID); err != nil {
			return err
		}

		if wasCaptain {
			replacement, err := s.entrantRepo.OldestMemberForUpdate(ctx, tx, entrantID)
			if err != nil {
				return err
			}
			if replacement != nil {
				if err := s.entrantRepo.SetCaptain(ctx, tx, replacement.ID); err != nil {
					return err
				}
			}
		}

		return s.entrantRepo.DeleteIfEmpty(ctx, tx, entrantID)
	})
}

// RemovePlayer takes a user out of the tournament entirely: participation row,
// memberships and, in solo tournaments, their entrant. Only the user
// themselves or someone who can manage the tournament may do it.
func (s *EntrantService) RemovePlayer(ctx context.Context, tournamentID, actorID, userID int) error {
	return runInTx(ctx, s.db, func(tx *sql.Tx) error {
		tournament, err := s.getTournament(ctx, tx, tournamentID)
		if err != nil {
			return err
		}

		if actorID != userID {
			canManage, err := s.canManage(ctx, tournament, actorID)
			if err != nil {
				return err
			}
			if !canManage {
				return ErrForbiddenOperation
			}
		}

		if err := s.participantRepo.Delete(ctx, tx, tournamentID, userID); err != nil {
			return err
		}

		return s.removeMemberships(ctx, tx, tournament, userID)
	})
}

func (s *EntrantService) removeMemberships(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, userID int) error {
	entrants, err := s.entrantRepo.ListActiveWithMemberCounts(ctx, exec, tournament.ID)
	if err != nil {
		return err
	}

	for _, entrant := range entrants {
		member, err := s.entrantRepo.GetMemberForUpdate(ctx, exec, entrant.ID, userID)
		if err != nil {
			if errors.Is(err, repositories.ErrMemberNotFound) {
				continue
			}
			return err
		}

		if tournament.TeamSize <= 1 {
			if err := s.entrantRepo.DeleteByIDs(ctx, exec, []int{entrant.ID}); err != nil {
				return err
			}
			continue
		}

		wasCaptain := member.IsCaptain
		if err := s.entrantRepo.DeleteMember(ctx, exec, member.ID); err != nil {
			return err
		}

		if wasCaptain {
			replacement, err := s.entrantRepo.OldestMemberForUpdate(ctx, exec, entrant.ID)
			if err != nil {
				return err
			}
			if replacement != nil {
				if err := s.entrantRepo.SetCaptain(ctx, exec, replacement.ID); err != nil {
					return err
				}
			}
		}

		if err := s.entrantRepo.DeleteIfEmpty(ctx, exec, entrant.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *EntrantService) getTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return tournament, nil
}

func (s *EntrantService) canManage(ctx context.Context, tournament *models.Tournament, actorID int) (bool, error) {
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
