package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aoe4hub/tournament-engine/models"
	"github.com/aoe4hub/tournament-engine/repositories"
)

// LeagueFormatService builds a single round-robin stage in which every pair of
// entrants meets exactly once.
type LeagueFormatService struct {
	stageRepo repositories.StageRepository
	matchRepo repositories.MatchRepository
}

func NewLeagueFormatService(stageRepo repositories.StageRepository, matchRepo repositories.MatchRepository) *LeagueFormatService {
	return &LeagueFormatService{stageRepo: stageRepo, matchRepo: matchRepo}
}

func (s *LeagueFormatService) Build(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, entrants []*models.TournamentEntrant) (*models.TournamentStage, int, error) {
	if len(entrants) < 2 {
		return nil, 0, NewValidationError("LEAGUE requires at least 2 entrants")
	}

	config, err := json.Marshal(models.LeagueStageConfig{
		Points:      models.LeaguePoints{Win: 1, Loss: 0},
		Tiebreakers: []string{"diff", "wins"},
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal league stage config: %w", err)
	}

	stage := &models.TournamentStage{
		TournamentID:  tournament.ID,
		Type:          models.StageTypeLeague,
		Order:         0,
		BestOfDefault: 1,
		Config:        config,
	}
	if err := s.stageRepo.Create(ctx, exec, stage); err != nil {
		return nil, 0, fmt.Errorf("failed to create league stage: %w", err)
	}

	rounds := RoundRobinRounds(entrants)

	matches := make([]*models.Match, 0, len(entrants)*(len(entrants)-1)/2)
	for r, pairings := range rounds {
		for o, p := range pairings {
			a, b := p.A.ID, p.B.ID
			matches = append(matches, &models.Match{
				StageID:     stage.ID,
				RoundNumber: r + 1,
				Order:       o,
				BestOf:      stage.BestOfDefault,
				Status:      models.MatchStatusScheduled,
				Entrant1ID:  &a,
				Entrant2ID:  &b,
			})
		}
	}

	if err := s.matchRepo.BulkInsert(ctx, exec, matches); err != nil {
		return nil, 0, fmt.Errorf("failed to insert league matches: %w", err)
	}
	return stage, len(matches), nil
}
