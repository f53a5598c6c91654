package services

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/aoe4hub/tournament-engine/models"
	"github.com/aoe4hub/tournament-engine/repositories"
)

// BuildStructureResult summarizes a completed structure build.
type BuildStructureResult struct {
	TournamentID   int `json:"tournament_id"`
	StageID        int `json:"stage_id"`
	MatchesCreated int `json:"matches_created"`
}

// StructureService turns a tournament in REGISTRATION into a playable
// structure: it validates the field, delegates to the format service and
// flips the tournament to RUNNING, all inside one transaction.
type StructureService struct {
	db             *sql.DB
	tournamentRepo repositories.TournamentRepository
	entrantRepo    repositories.EntrantRepository
	stageRepo      repositories.StageRepository
	league         *LeagueFormatService
	singleElim     *SingleElimFormatService
	logger         *slog.Logger
}

func NewStructureService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	entrantRepo repositories.EntrantRepository,
	stageRepo repositories.StageRepository,
	league *LeagueFormatService,
	singleElim *SingleElimFormatService,
	logger *slog.Logger,
) *StructureService {
	return &StructureService{
		db:             db,
		tournamentRepo: tournamentRepo,
		entrantRepo:    entrantRepo,
		stageRepo:      stageRepo,
		league:         league,
		singleElim:     singleElim,
		logger:         logger,
	}
}

func (s *StructureService) BuildStructure(ctx context.Context, tournamentID int, format models.StageType) (*BuildStructureResult, error) {
	var result *BuildStructureResult
	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		var txErr error
		result, txErr = s.buildStructureTx(ctx, tx, tournamentID, format)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *StructureService) buildStructureTx(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, format models.StageType) (*BuildStructureResult, error) {
	tournament, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	if tournament.Status != models.TournamentStatusRegistration {
		return nil, NewValidationError("tournament already started or finished")
	}

	exists, err := s.stageRepo.ExistsByTournament(ctx, exec, tournamentID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, NewValidationError("tournament structure already exists")
	}

	entrants, err := s.entrantRepo.ListActiveWithMemberCounts(ctx, exec, tournamentID)
	if err != nil {
		return nil, err
	}

	entrants, err = s.pruneIncompleteTeams(ctx, exec, tournament, entrants)
	if err != nil {
		return nil, err
	}

	if len(entrants) < 2 {
		return nil, NewValidationError("at least 2 entrants are required to start a tournament")
	}

	rng := DeterministicRNG(tournament.ID, format)

	var (
		stage          *models.TournamentStage
		matchesCreated int
	)
	switch format {
	case models.StageTypeLeague:
		stage, matchesCreated, err = s.league.Build(ctx, exec, tournament, entrants)
	case models.StageTypeSingleElim:
		stage, matchesCreated, err = s.singleElim.Build(ctx, exec, tournament, entrants, rng)
	default:
		return nil, NewValidationError("unsupported format: %s", format)
	}
	if err != nil {
		return nil, err
	}

	if err := s.tournamentRepo.UpdateStatus(ctx, exec, tournament.ID, models.TournamentStatusRunning); err != nil {
		return nil, err
	}

	s.logger.Info("tournament structure built",
		"tournament_id", tournament.ID,
		"format", format,
		"stage_id", stage.ID,
		"entrants", len(entrants),
		"matches_created", matchesCreated,
	)

	return &BuildStructureResult{
		TournamentID:   tournament.ID,
		StageID:        stage.ID,
		MatchesCreated: matchesCreated,
	}, nil
}

// pruneIncompleteTeams removes teams whose roster is not exactly team_size
// before the bracket is drawn. Solo tournaments keep every active entrant.
func (s *StructureService) pruneIncompleteTeams(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, entrants []*models.TournamentEntrant) ([]*models.TournamentEntrant, error) {
	if tournament.TeamSize <= 1 {
		return entrants, nil
	}

	eligible := make([]*models.TournamentEntrant, 0, len(entrants))
	var incompleteIDs []int
	for _, e := range entrants {
		if e.MemberCount == tournament.TeamSize {
			eligible = append(eligible, e)
		} else {
			incompleteIDs = append(incompleteIDs, e.ID)
		}
	}

	if len(incompleteIDs) > 0 {
		if err := s.entrantRepo.DeleteByIDs(ctx, exec, incompleteIDs); err != nil {
			return nil, err
		}
		s.logger.Info("removed incomplete teams before structure build",
			"tournament_id", tournament.ID,
			"removed", len(incompleteIDs),
		)
	}
	return eligible, nil
}
