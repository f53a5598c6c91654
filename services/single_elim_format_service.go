package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math/bits"
	"math/rand"

	"github.com/aoe4hub/tournament-engine/models"
	"github.com/aoe4hub/tournament-engine/repositories"
)

// SingleElimFormatService builds a complete single-elimination bracket padded
// to the next power of two, then advances round-1 byes into round 2.
type SingleElimFormatService struct {
	stageRepo repositories.StageRepository
	matchRepo repositories.MatchRepository
}

func NewSingleElimFormatService(stageRepo repositories.StageRepository, matchRepo repositories.MatchRepository) *SingleElimFormatService {
	return &SingleElimFormatService{stageRepo: stageRepo, matchRepo: matchRepo}
}

func (s *SingleElimFormatService) Build(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, entrants []*models.TournamentEntrant, rng *rand.Rand) (*models.TournamentStage, int, error) {
	if len(entrants) < 2 {
		return nil, 0, NewValidationError("SINGLE_ELIM requires at least 2 entrants")
	}

	// Seeding: the keyed RNG shuffle is the seed order.
	rng.Shuffle(len(entrants), func(i, j int) {
		entrants[i], entrants[j] = entrants[j], entrants[i]
	})

	bracketSize := NextPowerOfTwo(len(entrants))
	positions := BracketSeedPositions(bracketSize)

	// ordered[i] holds the entrant whose seed occupies bracket position i;
	// positions without an entrant stay nil and become byes.
	ordered := make([]*models.TournamentEntrant, bracketSize)
	for i, seed := range positions {
		if seed <= len(entrants) {
			ordered[i] = entrants[seed-1]
		}
	}

	config, err := json.Marshal(models.SingleElimStageConfig{BracketSize: bracketSize})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal single-elim stage config: %w", err)
	}

	stage := &models.TournamentStage{
		TournamentID:  tournament.ID,
		Type:          models.StageTypeSingleElim,
		Order:         0,
		BestOfDefault: 1,
		Config:        config,
	}
	if err := s.stageRepo.Create(ctx, exec, stage); err != nil {
		return nil, 0, fmt.Errorf("failed to create single-elim stage: %w", err)
	}

	rounds := bits.TrailingZeros(uint(bracketSize))

	matches := make([]*models.Match, 0, bracketSize-1)
	for roundNumber := 1; roundNumber <= rounds; roundNumber++ {
		numMatches := bracketSize >> roundNumber
		for order := 0; order < numMatches; order++ {
			m := &models.Match{
				StageID:     stage.ID,
				RoundNumber: roundNumber,
				Order:       order,
				BestOf:      stage.BestOfDefault,
				Status:      models.MatchStatusScheduled,
			}
			if roundNumber == 1 {
				if e := ordered[2*order]; e != nil {
					id := e.ID
					m.Entrant1ID = &id
				}
				if e := ordered[2*order+1]; e != nil {
					id := e.ID
					m.Entrant2ID = &id
				}
			}
			matches = append(matches, m)
		}
	}

	if err := s.matchRepo.BulkInsert(ctx, exec, matches); err != nil {
		return nil, 0, fmt.Errorf("failed to insert single-elim matches: %w", err)
	}

	if err := s.advanceByes(ctx, exec, stage, rounds); err != nil {
		return nil, 0, err
	}

	return stage, bracketSize - 1, nil
}

// advanceByes finishes every round-1 match with exactly one entrant in favor
// of that entrant and places the winner into its round-2 slot: entrant1 when
// the parent order is even, entrant2 otherwise.
func (s *SingleElimFormatService) advanceByes(ctx context.Context, exec repositories.SQLExecutor, stage *models.TournamentStage, rounds int) error {
	round1, err := s.matchRepo.ListByStageRound(ctx, exec, stage.ID, 1)
	if err != nil {
		return fmt.Errorf("failed to reload round 1: %w", err)
	}

	var round2 []*models.Match
	if rounds >= 2 {
		round2, err = s.matchRepo.ListByStageRound(ctx, exec, stage.ID, 2)
		if err != nil {
			return fmt.Errorf("failed to reload round 2: %w", err)
		}
	}

	toUpdate := make([]*models.Match, 0)
	for _, m := range round1 {
		var winnerSlot int
		var winnerID *int

		switch {
		case m.Entrant1ID != nil && m.Entrant2ID == nil:
			winnerSlot = 1
			winnerID = m.Entrant1ID
		case m.Entrant2ID != nil && m.Entrant1ID == nil:
			winnerSlot = 2
			winnerID = m.Entrant2ID
		default:
			continue
		}

		wins, err := WinsNeeded(m.BestOf)
		if err != nil {
			return err
		}
		zero := 0
		m.Status = models.MatchStatusFinished
		m.WinnerSlot = &winnerSlot
		if winnerSlot == 1 {
			m.Score1, m.Score2 = &wins, &zero
		} else {
			m.Score1, m.Score2 = &zero, &wins
		}
		toUpdate = append(toUpdate, m)

		if len(round2) > 0 {
			next := round2[m.Order/2]
			if m.Order%2 == 0 {
				next.Entrant1ID = winnerID
			} else {
				next.Entrant2ID = winnerID
			}
			toUpdate = append(toUpdate, next)
		}
	}

	if len(toUpdate) == 0 {
		return nil
	}

	// A round-2 match appears twice when both of its parents are byes;
	// deduplicate by id before writing.
	seen := make(map[int]struct{}, len(toUpdate))
	deduped := make([]*models.Match, 0, len(toUpdate))
	for _, m := range toUpdate {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		deduped = append(deduped, m)
	}

	if err := s.matchRepo.UpdateBracketResults(ctx, exec, deduped); err != nil {
		return fmt.Errorf("failed to persist bye advancement: %w", err)
	}
	return nil
}
