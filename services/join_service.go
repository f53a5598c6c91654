package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aoe4hub/tournament-engine/models"
	"github.com/aoe4hub/tournament-engine/repositories"
)

// JoinResult is returned from every join path. ChooseTeam is true when the
// tournament is team-based and the user still has to pick or form a team.
type JoinResult struct {
	Tournament *models.Tournament `json:"tournament"`
	ChooseTeam bool               `json:"choose_team"`
}

// JoinService covers both entry paths into a tournament: the public join and
// the invite-token join. Solo tournaments get an entrant named after the user
// immediately; team tournaments only record participation.
type JoinService struct {
	db              *sql.DB
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	entrantRepo     repositories.EntrantRepository
	inviteRepo      repositories.InviteRepository
	userRepo        repositories.UserRepository
	logger          *slog.Logger
}

func NewJoinService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	entrantRepo repositories.EntrantRepository,
	inviteRepo repositories.InviteRepository,
	userRepo repositories.UserRepository,
	logger *slog.Logger,
) *JoinService {
	return &JoinService{
		db:              db,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		entrantRepo:     entrantRepo,
		inviteRepo:      inviteRepo,
		userRepo:        userRepo,
		logger:          logger,
	}
}

func (s *JoinService) CanJoin(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, userID int) error {
	if tournament.Status != models.TournamentStatusRegistration {
		return ErrJoinNotOpen
	}

	joined, err := s.participantRepo.Exists(ctx, exec, tournament.ID, userID)
	if err != nil {
		return err
	}
	if joined {
		return ErrAlreadyJoined
	}

	isMember, err := s.entrantRepo.UserIsMemberInTournament(ctx, exec, tournament.ID, userID)
	if err != nil {
		return err
	}
	if isMember {
		return ErrAlreadyJoined
	}
	return nil
}

func (s *JoinService) CreateInvite(ctx context.Context, tournamentID, createdByID int, maxUses *int, expiresAt *time.Time) (*models.TournamentInvite, error) {
	token, err := generateInviteToken()
	if err != nil {
		return nil, err
	}

	invite := &models.TournamentInvite{
		TournamentID: tournamentID,
		Token:        token,
		CreatedByID:  createdByID,
		MaxUses:      maxUses,
		ExpiresAt:    expiresAt,
		IsActive:     true,
	}
	if err := s.inviteRepo.Create(ctx, invite); err != nil {
		return nil, err
	}
	return invite, nil
}

func (s *JoinService) JoinPublic(ctx context.Context, tournamentID, userID int) (*JoinResult, error) {
	var result *JoinResult
	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		tournament, err := s.tournamentRepo.GetByID(ctx, tx, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}

		var txErr error
		result, txErr = s.joinUserToTournament(ctx, tx, tournament, userID)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *JoinService) JoinByInvite(ctx context.Context, inviteToken string, userID int) (*JoinResult, error) {
	var result *JoinResult
	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		invite, err := s.inviteRepo.GetByTokenForUpdate(ctx, tx, inviteToken)
		if err != nil {
			if errors.Is(err, repositories.ErrInviteNotFound) {
				return ErrInviteNotFound
			}
			return err
		}

		if err := canUseInvite(invite); err != nil {
			return err
		}

		tournament, err := s.tournamentRepo.GetByID(ctx, tx, invite.TournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}

		result, err = s.joinUserToTournament(ctx, tx, tournament, userID)
		if err != nil {
			return err
		}

		return s.inviteRepo.IncrementUses(ctx, tx, invite.ID)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *JoinService) joinUserToTournament(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, userID int) (*JoinResult, error) {
	if err := s.CanJoin(ctx, exec, tournament, userID); err != nil {
		return nil, err
	}

	participant := &models.TournamentParticipant{
		TournamentID: tournament.ID,
		UserID:       userID,
	}
	if err := s.participantRepo.Create(ctx, exec, participant); err != nil {
		if errors.Is(err, repositories.ErrParticipantConflict) {
			return nil, ErrAlreadyJoined
		}
		return nil, err
	}

	required := tournament.TeamSize
	if required < 1 {
		required = 1
	}
	if required > 1 {
		return &JoinResult{Tournament: tournament, ChooseTeam: true}, nil
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	entrant := &models.TournamentEntrant{
		TournamentID: tournament.ID,
		Name:         strings.TrimSpace(user.Username),
		Status:       models.EntrantStatusActive,
	}
	if err := s.entrantRepo.Create(ctx, exec, entrant); err != nil {
		if errors.Is(err, repositories.ErrEntrantNameConflict) {
			return nil, ErrAlreadyJoined
		}
		return nil, err
	}

	member := &models.TournamentEntrantMember{
		EntrantID: entrant.ID,
		UserID:    userID,
		IsCaptain: true,
	}
	if err := s.entrantRepo.CreateMember(ctx, exec, member); err != nil {
		if errors.Is(err, repositories.ErrMemberConflict) {
			return nil, ErrAlreadyJoined
		}
		return nil, err
	}

	s.logger.Info("user joined tournament",
		"tournament_id", tournament.ID,
		"user_id", userID,
		"entrant_id", entrant.ID,
	)
	return &JoinResult{Tournament: tournament, ChooseTeam: false}, nil
}

func canUseInvite(invite *models.TournamentInvite) error {
	if !invite.IsActive {
		return ErrInviteNotActive
	}
	if invite.ExpiresAt != nil && invite.ExpiresAt.Before(time.Now()) {
		return ErrInviteExpired
	}
	if invite.MaxUses != nil && invite.Uses >= *invite.MaxUses {
		return ErrInviteUsesExhausted
	}
	return nil
}

func generateInviteToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
