package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aoe4hub/tournament-engine/models"
)

type structureFixture struct {
	svc            *StructureService
	tournamentRepo *fakeTournamentRepo
	entrantRepo    *fakeEntrantRepo
	stageRepo      *fakeStageRepo
	matchRepo      *fakeMatchRepo
}

func newStructureFixture(tournament *models.Tournament, entrants ...*models.TournamentEntrant) *structureFixture {
	tournamentRepo := newFakeTournamentRepo(tournament)
	entrantRepo := newFakeEntrantRepo()
	entrantRepo.active = entrants
	stageRepo := newFakeStageRepo()
	matchRepo := newFakeMatchRepo()

	svc := NewStructureService(
		nil,
		tournamentRepo,
		entrantRepo,
		stageRepo,
		NewLeagueFormatService(stageRepo, matchRepo),
		NewSingleElimFormatService(stageRepo, matchRepo),
		testLogger(),
	)
	return &structureFixture{
		svc:            svc,
		tournamentRepo: tournamentRepo,
		entrantRepo:    entrantRepo,
		stageRepo:      stageRepo,
		matchRepo:      matchRepo,
	}
}

func registrationTournament(id, teamSize int) *models.Tournament {
	return &models.Tournament{
		ID:       id,
		TeamSize: teamSize,
		Status:   models.TournamentStatusRegistration,
	}
}

func soloEntrants(n int) []*models.TournamentEntrant {
	out := make([]*models.TournamentEntrant, n)
	for i := range out {
		out[i] = &models.TournamentEntrant{ID: i + 1, Status: models.EntrantStatusActive, MemberCount: 1}
	}
	return out
}

func TestBuildStructureLeague(t *testing.T) {
	f := newStructureFixture(registrationTournament(5, 1), soloEntrants(4)...)

	result, err := f.svc.buildStructureTx(context.Background(), nil, 5, models.StageTypeLeague)
	require.NoError(t, err)

	assert.Equal(t, 5, result.TournamentID)
	assert.Equal(t, 6, result.MatchesCreated)
	require.Len(t, f.stageRepo.stages, 1)
	assert.Equal(t, f.stageRepo.stages[0].ID, result.StageID)
	assert.Equal(t, models.TournamentStatusRunning, f.tournamentRepo.statuses[5])
}

func TestBuildStructureSingleElim(t *testing.T) {
	f := newStructureFixture(registrationTournament(6, 1), soloEntrants(5)...)

	result, err := f.svc.buildStructureTx(context.Background(), nil, 6, models.StageTypeSingleElim)
	require.NoError(t, err)

	assert.Equal(t, 7, result.MatchesCreated)
	assert.Equal(t, models.TournamentStatusRunning, f.tournamentRepo.statuses[6])
}

func TestBuildStructureTournamentNotFound(t *testing.T) {
	f := newStructureFixture(registrationTournament(1, 1), soloEntrants(2)...)

	_, err := f.svc.buildStructureTx(context.Background(), nil, 999, models.StageTypeLeague)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestBuildStructureRejectsNonRegistrationStatus(t *testing.T) {
	tournament := registrationTournament(2, 1)
	tournament.Status = models.TournamentStatusRunning
	f := newStructureFixture(tournament, soloEntrants(4)...)

	_, err := f.svc.buildStructureTx(context.Background(), nil, 2, models.StageTypeLeague)
	assert.True(t, IsValidationError(err))
	assert.Empty(t, f.stageRepo.stages)
}

func TestBuildStructureRejectsExistingStage(t *testing.T) {
	f := newStructureFixture(registrationTournament(3, 1), soloEntrants(4)...)
	require.NoError(t, f.stageRepo.Create(context.Background(), nil, &models.TournamentStage{TournamentID: 3}))

	_, err := f.svc.buildStructureTx(context.Background(), nil, 3, models.StageTypeLeague)
	assert.True(t, IsValidationError(err))
}

func TestBuildStructureRejectsSmallField(t *testing.T) {
	f := newStructureFixture(registrationTournament(4, 1), soloEntrants(1)...)

	_, err := f.svc.buildStructureTx(context.Background(), nil, 4, models.StageTypeLeague)
	assert.True(t, IsValidationError(err))
	assert.NotEqual(t, models.TournamentStatusRunning, f.tournamentRepo.statuses[4])
}

func TestBuildStructureRejectsUnknownFormat(t *testing.T) {
	f := newStructureFixture(registrationTournament(7, 1), soloEntrants(4)...)

	_, err := f.svc.buildStructureTx(context.Background(), nil, 7, models.StageType("DOUBLE_ELIM"))
	assert.True(t, IsValidationError(err))
}

func TestBuildStructurePrunesIncompleteTeams(t *testing.T) {
	entrants := []*models.TournamentEntrant{
		{ID: 1, Status: models.EntrantStatusActive, MemberCount: 2},
		{ID: 2, Status: models.EntrantStatusActive, MemberCount: 1},
		{ID: 3, Status: models.EntrantStatusActive, MemberCount: 2},
	}
	f := newStructureFixture(registrationTournament(8, 2), entrants...)

	result, err := f.svc.buildStructureTx(context.Background(), nil, 8, models.StageTypeLeague)
	require.NoError(t, err)

	assert.Equal(t, []int{2}, f.entrantRepo.deletedIDs)
	assert.Equal(t, 1, result.MatchesCreated)

	ids := make(map[int]struct{})
	for _, m := range f.matchRepo.matches {
		ids[*m.Entrant1ID] = struct{}{}
		ids[*m.Entrant2ID] = struct{}{}
	}
	assert.NotContains(t, ids, 2)
}

func TestBuildStructurePruningCanEmptyTheField(t *testing.T) {
	entrants := []*models.TournamentEntrant{
		{ID: 1, Status: models.EntrantStatusActive, MemberCount: 1},
		{ID: 2, Status: models.EntrantStatusActive, MemberCount: 3},
	}
	f := newStructureFixture(registrationTournament(9, 2), entrants...)

	_, err := f.svc.buildStructureTx(context.Background(), nil, 9, models.StageTypeLeague)
	assert.True(t, IsValidationError(err))
	assert.ElementsMatch(t, []int{1, 2}, f.entrantRepo.deletedIDs)
}
