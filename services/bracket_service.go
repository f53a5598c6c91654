package services

import (
	"context"
	"errors"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/aoe4hub/tournament-engine/models"
	"github.com/aoe4hub/tournament-engine/repositories"
)

// BracketView is the read model of a tournament's structure: every stage with
// its matches, entrant references resolved.
type BracketView struct {
	Tournament *models.Tournament `json:"tournament"`
	Stages     []StageView        `json:"stages"`
}

type StageView struct {
	Stage   *models.TournamentStage `json:"stage"`
	Matches []*models.Match         `json:"matches"`
}

// BracketService assembles the bracket read model. Per-stage match lists are
// fetched concurrently.
type BracketService struct {
	tournamentRepo repositories.TournamentRepository
	stageRepo      repositories.StageRepository
	matchRepo      repositories.MatchRepository
	entrantRepo    repositories.EntrantRepository
}

func NewBracketService(
	tournamentRepo repositories.TournamentRepository,
	stageRepo repositories.StageRepository,
	matchRepo repositories.MatchRepository,
	entrantRepo repositories.EntrantRepository,
) *BracketService {
	return &BracketService{
		tournamentRepo: tournamentRepo,
		stageRepo:      stageRepo,
		matchRepo:      matchRepo,
		entrantRepo:    entrantRepo,
	}
}

func (s *BracketService) GetTournamentBracket(ctx context.Context, tournamentID int) (*BracketView, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	stages, err := s.stageRepo.ListByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}

	views := make([]StageView, len(stages))
	g, gctx := errgroup.WithContext(ctx)
	for i, stage := range stages {
		i, stage := i, stage
		g.Go(func() error {
			matches, err := s.matchRepo.ListByStage(gctx, nil, stage.ID)
			if err != nil {
				return err
			}
			views[i] = StageView{Stage: stage, Matches: matches}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.resolveEntrants(ctx, views); err != nil {
		return nil, err
	}

	return &BracketView{Tournament: tournament, Stages: views}, nil
}

func (s *BracketService) resolveEntrants(ctx context.Context, views []StageView) error {
	idSet := make(map[int]struct{})
	for _, v := range views {
		for _, m := range v.Matches {
			if m.Entrant1ID != nil {
				idSet[*m.Entrant1ID] = struct{}{}
			}
			if m.Entrant2ID != nil {
				idSet[*m.Entrant2ID] = struct{}{}
			}
		}
	}
	if len(idSet) == 0 {
		return nil
	}

	ids := make([]int, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	entrants, err := s.entrantRepo.ListByIDs(ctx, nil, ids)
	if err != nil {
		return err
	}

	byID := make(map[int]*models.TournamentEntrant, len(entrants))
	for _, e := range entrants {
		byID[e.ID] = e
	}

	for _, v := range views {
		for _, m := range v.Matches {
			if m.Entrant1ID != nil {
				m.Entrant1 = byID[*m.Entrant1ID]
			}
			if m.Entrant2ID != nil {
				m.Entrant2 = byID[*m.Entrant2ID]
			}
		}
	}
	return nil
}
