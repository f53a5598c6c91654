package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"strings"
	"time"

	"github.com/aoe4hub/tournament-engine/models"
	"github.com/aoe4hub/tournament-engine/repositories"
	"github.com/aoe4hub/tournament-engine/storage"
)

// StructureTaskEnqueuer hands tournament starts off to the background queue.
type StructureTaskEnqueuer interface {
	EnqueueBuildStructure(ctx context.Context, tournamentID int, format models.StageType) (*models.Task, error)
}

type CreateTournamentInput struct {
	Name       string                      `json:"name"`
	TeamSize   int                         `json:"team_size"`
	Visibility models.TournamentVisibility `json:"visibility"`
	StartsAt   time.Time                   `json:"starts_at"`
	EndsAt     time.Time                   `json:"ends_at"`
	GameGaps   int                         `json:"game_gaps"`
}

type TournamentService struct {
	tournamentRepo repositories.TournamentRepository
	userRepo       repositories.UserRepository
	enqueuer       StructureTaskEnqueuer
	uploader       storage.FileUploader
	logger         *slog.Logger
}

func NewTournamentService(
	tournamentRepo repositories.TournamentRepository,
	userRepo repositories.UserRepository,
	enqueuer StructureTaskEnqueuer,
	uploader storage.FileUploader,
	logger *slog.Logger,
) *TournamentService {
	return &TournamentService{
		tournamentRepo: tournamentRepo,
		userRepo:       userRepo,
		enqueuer:       enqueuer,
		uploader:       uploader,
		logger:         logger,
	}
}

func (s *TournamentService) Create(ctx context.Context, ownerID int, input CreateTournamentInput) (*models.Tournament, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTournamentNameRequired
	}
	if input.StartsAt.IsZero() || input.EndsAt.IsZero() || !input.EndsAt.After(input.StartsAt) {
		return nil, ErrTournamentInvalidDateRange
	}
	teamSize := input.TeamSize
	if teamSize == 0 {
		teamSize = 1
	}
	if teamSize < 1 {
		return nil, ErrTournamentInvalidTeamSize
	}
	if input.GameGaps < 0 {
		return nil, ErrTournamentInvalidGameGaps
	}
	visibility := input.Visibility
	if visibility == "" {
		visibility = models.TournamentVisibilityPublic
	}

	tournament := &models.Tournament{
		Name:       name,
		OwnerID:    ownerID,
		TeamSize:   teamSize,
		Status:     models.TournamentStatusRegistration,
		Visibility: visibility,
		StartsAt:   input.StartsAt,
		EndsAt:     input.EndsAt,
		GameGaps:   input.GameGaps,
	}

	if err := s.tournamentRepo.Create(ctx, tournament); err != nil {
		if errors.Is(err, repositories.ErrTournamentNameConflict) {
			return nil, ErrTournamentNameConflict
		}
		return nil, err
	}

	s.logger.Info("tournament created",
		"tournament_id", tournament.ID,
		"owner_id", ownerID,
		"team_size", teamSize,
	)
	return tournament, nil
}

func (s *TournamentService) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	s.populateLogoURL(tournament)
	return tournament, nil
}

func (s *TournamentService) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	tournaments, err := s.tournamentRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range tournaments {
		s.populateLogoURL(&tournaments[i])
	}
	return tournaments, nil
}

func (s *TournamentService) Delete(ctx context.Context, actorID, id int) error {
	tournament, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requireCanManage(ctx, tournament, actorID); err != nil {
		return err
	}
	if err := s.tournamentRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrTournamentNotFound
		}
		return err
	}
	return nil
}

// Start enqueues the structure build for a tournament still in registration.
// The build itself runs in the background worker.
func (s *TournamentService) Start(ctx context.Context, actorID, tournamentID int, format models.StageType) (*models.Task, error) {
	if format != models.StageTypeLeague && format != models.StageTypeSingleElim {
		return nil, NewValidationError("unsupported format: %s", format)
	}

	tournament, err := s.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := s.requireCanManage(ctx, tournament, actorID); err != nil {
		return nil, err
	}
	if tournament.Status != models.TournamentStatusRegistration {
		return nil, NewValidationError("tournament already started or finished")
	}

	task, err := s.enqueuer.EnqueueBuildStructure(ctx, tournamentID, format)
	if err != nil {
		return nil, err
	}

	s.logger.Info("tournament start enqueued",
		"tournament_id", tournamentID,
		"format", format,
		"task_id", task.ID,
	)
	return task, nil
}

func (s *TournamentService) UploadLogo(ctx context.Context, actorID, tournamentID int, file multipart.File, contentType string) (*models.Tournament, error) {
	if s.uploader == nil {
		return nil, NewValidationError("logo storage is not configured")
	}

	tournament, err := s.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := s.requireCanManage(ctx, tournament, actorID); err != nil {
		return nil, err
	}

	ext, err := extensionForContentType(contentType)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("tournaments/%d/logo%s", tournamentID, ext)
	if tournament.LogoKey != nil && *tournament.LogoKey != key {
		if delErr := s.uploader.Delete(ctx, *tournament.LogoKey); delErr != nil {
			s.logger.Warn("failed to delete previous tournament logo",
				"tournament_id", tournamentID,
				"key", *tournament.LogoKey,
				"error", delErr,
			)
		}
	}

	result, err := s.uploader.Upload(ctx, key, contentType, file)
	if err != nil {
		return nil, fmt.Errorf("failed to upload tournament logo: %w", err)
	}

	if err := s.tournamentRepo.UpdateLogoKey(ctx, tournamentID, &result.Key); err != nil {
		return nil, err
	}

	tournament.LogoKey = &result.Key
	s.populateLogoURL(tournament)
	return tournament, nil
}

func (s *TournamentService) populateLogoURL(t *models.Tournament) {
	if t.LogoKey == nil || s.uploader == nil {
		return
	}
	url := s.uploader.GetPublicURL(*t.LogoKey)
	if url != "" {
		t.LogoURL = &url
	}
}

func (s *TournamentService) requireCanManage(ctx context.Context, tournament *models.Tournament, actorID int) error {
	if tournament.OwnerID == actorID {
		return nil
	}
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrForbiddenOperation
		}
		return err
	}
	if !actor.IsAdmin {
		return ErrForbiddenOperation
	}
	return nil
}

func extensionForContentType(contentType string) (string, error) {
	switch contentType {
	case "image/png":
		return ".png", nil
	case "image/jpeg":
		return ".jpg", nil
	case "image/webp":
		return ".webp", nil
	default:
		return "", NewValidationError("unsupported logo content type: %s", contentType)
	}
}
