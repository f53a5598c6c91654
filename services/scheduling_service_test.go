package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aoe4hub/tournament-engine/models"
	"github.com/aoe4hub/tournament-engine/repositories"
)

// 2026-03-02 is a Monday, so offsets from week start line up with the clock.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type schedulingFixture struct {
	svc              *SchedulingService
	tournamentRepo   *fakeTournamentRepo
	matchRepo        *fakeMatchRepo
	entrantRepo      *fakeEntrantRepo
	availabilityRepo *fakeAvailabilityRepo
}

func newSchedulingFixture(tournament *models.Tournament) *schedulingFixture {
	f := &schedulingFixture{
		tournamentRepo:   newFakeTournamentRepo(tournament),
		matchRepo:        newFakeMatchRepo(),
		entrantRepo:      newFakeEntrantRepo(),
		availabilityRepo: newFakeAvailabilityRepo(),
	}
	f.svc = NewSchedulingService(
		nil,
		f.tournamentRepo,
		f.matchRepo,
		f.entrantRepo,
		f.availabilityRepo,
		time.UTC,
		testLogger(),
	)
	return f
}

func (f *schedulingFixture) addCandidate(matchID, entrant1, entrant2, bestOf, stageOrder int) {
	e1, e2 := entrant1, entrant2
	f.matchRepo.candidates = append(f.matchRepo.candidates, &repositories.ScheduleCandidate{
		Match: &models.Match{
			ID:         matchID,
			BestOf:     bestOf,
			Status:     models.MatchStatusScheduled,
			Entrant1ID: &e1,
			Entrant2ID: &e2,
		},
		StageOrder: stageOrder,
	})
}

func (f *schedulingFixture) addAvailability(userID, startOffset, endOffset int) {
	f.availabilityRepo.rows = append(f.availabilityRepo.rows, &models.UserAvailability{
		ID:          len(f.availabilityRepo.rows) + 1,
		UserID:      userID,
		StartOffset: startOffset,
		EndOffset:   endOffset,
	})
}

func hoursFromMonday(h int) int { return h * 3600 }

func TestSchedulePicksEarliestMutualSlot(t *testing.T) {
	f := newSchedulingFixture(&models.Tournament{
		ID:       1,
		Status:   models.TournamentStatusRunning,
		StartsAt: monday.Add(10 * time.Hour),
		EndsAt:   monday.AddDate(0, 0, 6).Add(22 * time.Hour),
	})

	f.addCandidate(1, 1, 2, 1, 0)
	f.entrantRepo.captains = map[int]int{1: 10, 2: 20}
	f.addAvailability(10, hoursFromMonday(18), hoursFromMonday(20))
	f.addAvailability(20, hoursFromMonday(18), hoursFromMonday(22))

	result, err := f.svc.scheduleTx(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Scheduled)

	require.Len(t, f.matchRepo.scheduledUpdates, 1)
	m := f.matchRepo.scheduledUpdates[0]
	require.NotNil(t, m.ScheduledAt)
	assert.True(t, m.ScheduledAt.Equal(monday.Add(18*time.Hour)), "got %v", m.ScheduledAt)
}

func TestScheduleChainsMatchesWithGap(t *testing.T) {
	f := newSchedulingFixture(&models.Tournament{
		ID:       1,
		Status:   models.TournamentStatusRunning,
		StartsAt: monday.Add(10 * time.Hour),
		EndsAt:   monday.AddDate(0, 0, 6).Add(22 * time.Hour),
		GameGaps: 30,
	})

	f.addCandidate(1, 1, 2, 1, 0)
	f.addCandidate(2, 1, 2, 1, 0)
	f.entrantRepo.captains = map[int]int{1: 10, 2: 20}
	f.addAvailability(10, hoursFromMonday(18), hoursFromMonday(22))
	f.addAvailability(20, hoursFromMonday(18), hoursFromMonday(22))

	result, err := f.svc.scheduleTx(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Scheduled)

	require.Len(t, f.matchRepo.scheduledUpdates, 2)
	first := f.matchRepo.scheduledUpdates[0]
	second := f.matchRepo.scheduledUpdates[1]

	// 60 minutes of play plus the 30-minute gap push the second match to
	// 19:30.
	assert.True(t, first.ScheduledAt.Equal(monday.Add(18*time.Hour)))
	assert.True(t, second.ScheduledAt.Equal(monday.Add(19*time.Hour+30*time.Minute)), "got %v", second.ScheduledAt)
}

func TestScheduleRespectsExistingReservations(t *testing.T) {
	f := newSchedulingFixture(&models.Tournament{
		ID:       1,
		Status:   models.TournamentStatusRunning,
		StartsAt: monday.Add(10 * time.Hour),
		EndsAt:   monday.Add(22 * time.Hour),
	})

	f.addCandidate(1, 1, 2, 1, 0)
	f.entrantRepo.captains = map[int]int{1: 10, 2: 20}
	f.addAvailability(10, hoursFromMonday(18), hoursFromMonday(22))
	f.addAvailability(20, hoursFromMonday(18), hoursFromMonday(22))

	// Captain of entrant 1 already plays an unrelated scheduled match at
	// 18:00; entrant 3's captain is unknown and therefore ignored.
	f.matchRepo.reserved = []*repositories.ReservedSlot{
		{ScheduledAt: monday.Add(18 * time.Hour), Entrant1ID: 1, Entrant2ID: 3, BestOf: 1},
	}

	result, err := f.svc.scheduleTx(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Scheduled)

	m := f.matchRepo.scheduledUpdates[0]
	assert.True(t, m.ScheduledAt.Equal(monday.Add(19*time.Hour)), "got %v", m.ScheduledAt)
}

func TestSchedulePrefersAfternoonFallback(t *testing.T) {
	f := newSchedulingFixture(&models.Tournament{
		ID:       1,
		Status:   models.TournamentStatusRunning,
		StartsAt: monday,
		EndsAt:   monday.AddDate(0, 0, 1),
	})

	// Disjoint availability: no mutual slot exists, so the scheduler falls
	// back to the cheapest feasible slot and prefers an afternoon start.
	f.addCandidate(1, 1, 2, 1, 0)
	f.entrantRepo.captains = map[int]int{1: 10, 2: 20}
	f.addAvailability(10, hoursFromMonday(8), hoursFromMonday(9))
	f.addAvailability(20, hoursFromMonday(16), hoursFromMonday(17))

	result, err := f.svc.scheduleTx(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Scheduled)

	m := f.matchRepo.scheduledUpdates[0]
	require.NotNil(t, m.ScheduledAt)
	assert.True(t, m.ScheduledAt.Equal(monday.Add(12*time.Hour)), "got %v", m.ScheduledAt)
}

func TestScheduleNoCandidatesIsANoop(t *testing.T) {
	f := newSchedulingFixture(&models.Tournament{
		ID:       1,
		Status:   models.TournamentStatusRunning,
		StartsAt: monday,
		EndsAt:   monday.AddDate(0, 0, 1),
	})

	result, err := f.svc.scheduleTx(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Scheduled)
	assert.Empty(t, f.matchRepo.scheduledUpdates)
}

func TestScheduleFailsWithoutAvailability(t *testing.T) {
	f := newSchedulingFixture(&models.Tournament{
		ID:       1,
		Status:   models.TournamentStatusRunning,
		StartsAt: monday,
		EndsAt:   monday.AddDate(0, 0, 1),
	})

	f.addCandidate(1, 1, 2, 1, 0)
	f.entrantRepo.captains = map[int]int{1: 10, 2: 20}
	f.addAvailability(10, hoursFromMonday(8), hoursFromMonday(9))

	_, err := f.svc.scheduleTx(context.Background(), nil, 1)
	require.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "missing availability")
}

func TestScheduleFailsWithoutCaptains(t *testing.T) {
	f := newSchedulingFixture(&models.Tournament{
		ID:       1,
		Status:   models.TournamentStatusRunning,
		StartsAt: monday,
		EndsAt:   monday.AddDate(0, 0, 1),
	})

	f.addCandidate(1, 1, 2, 1, 0)
	f.entrantRepo.captains = map[int]int{1: 10}

	_, err := f.svc.scheduleTx(context.Background(), nil, 1)
	require.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "missing captain")
}

func TestScheduleFailsWhenWindowTooShort(t *testing.T) {
	f := newSchedulingFixture(&models.Tournament{
		ID:       1,
		Status:   models.TournamentStatusRunning,
		StartsAt: monday.Add(10 * time.Hour),
		EndsAt:   monday.Add(10*time.Hour + 30*time.Minute),
	})

	f.addCandidate(1, 1, 2, 1, 0)
	f.entrantRepo.captains = map[int]int{1: 10, 2: 20}
	f.addAvailability(10, hoursFromMonday(10), hoursFromMonday(11))
	f.addAvailability(20, hoursFromMonday(10), hoursFromMonday(11))

	_, err := f.svc.scheduleTx(context.Background(), nil, 1)
	require.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "could not schedule all matches")
}

func TestScheduleRequiresTournamentWindow(t *testing.T) {
	f := newSchedulingFixture(&models.Tournament{ID: 1, Status: models.TournamentStatusRunning})

	_, err := f.svc.scheduleTx(context.Background(), nil, 1)
	assert.True(t, IsValidationError(err))
}

func TestBuildSlotsRoundsUpToGrid(t *testing.T) {
	svc := NewSchedulingService(nil, nil, nil, nil, nil, time.UTC, testLogger())

	start := monday.Add(10*time.Hour + 7*time.Minute)
	end := monday.Add(11 * time.Hour)

	slots, err := svc.buildSlots(start, end)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.True(t, slots[0].Equal(monday.Add(10*time.Hour+15*time.Minute)))
	assert.True(t, slots[2].Equal(monday.Add(10*time.Hour+45*time.Minute)))
}

func TestBuildSlotsKeepsAlignedStart(t *testing.T) {
	svc := NewSchedulingService(nil, nil, nil, nil, nil, time.UTC, testLogger())

	start := monday.Add(10 * time.Hour)
	slots, err := svc.buildSlots(start, start.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, slots, 4)
	assert.True(t, slots[0].Equal(start))
}

func TestComputeUserAvailableStartIndices(t *testing.T) {
	slot0 := monday.Add(10 * time.Hour)
	slots := make([]time.Time, 48)
	for i := range slots {
		slots[i] = slot0.Add(time.Duration(i) * slotMinutes * time.Minute)
	}

	intervals := map[int][]timeInterval{
		// 12:00-14:00 fits a one-hour match starting 12:00 through 13:00.
		10: {{from: slot0.Add(2 * time.Hour), to: slot0.Add(4 * time.Hour)}},
		// Disjoint windows contribute the union of their start indices; the
		// match must fit inside a single window.
		20: {
			{from: slot0.Add(2 * time.Hour), to: slot0.Add(3*time.Hour + 30*time.Minute)},
			{from: slot0.Add(5 * time.Hour), to: slot0.Add(6 * time.Hour)},
		},
		// Interval reaching before the grid clamps to index 0.
		30: {{from: slot0.Add(-time.Hour), to: slot0.Add(2 * time.Hour)}},
	}

	out := computeUserAvailableStartIndices(slots, 4, intervals)

	assert.Equal(t, []int{8, 9, 10, 11, 12}, out[10])
	assert.Equal(t, []int{8, 9, 10, 20}, out[20])
	assert.Equal(t, []int{0, 1, 2, 3, 4}, out[30])
}

func TestReservedIntervalBookkeeping(t *testing.T) {
	reserved := map[int][]interval{}

	reserveInterval(reserved, 10, 8, 4)
	reserveInterval(reserved, 10, 0, 4)
	reserveInterval(reserved, 10, 20, 4)

	require.Equal(t, []interval{{0, 4}, {8, 12}, {20, 24}}, reserved[10])

	assert.True(t, fitsReservedConstraints(reserved[10], 4, 4))
	assert.True(t, fitsReservedConstraints(reserved[10], 12, 8))
	assert.False(t, fitsReservedConstraints(reserved[10], 2, 4))
	assert.False(t, fitsReservedConstraints(reserved[10], 6, 4))
	assert.False(t, fitsReservedConstraints(reserved[10], 10, 2))
	assert.True(t, fitsReservedConstraints(nil, 0, 100))
}

func TestDistanceToList(t *testing.T) {
	list := []int{4, 10, 20}

	assert.Equal(t, 0, distanceToList(10, list))
	assert.Equal(t, 2, distanceToList(6, list))
	assert.Equal(t, 3, distanceToList(7, list))
	assert.Equal(t, 4, distanceToList(0, list))
	assert.Equal(t, 5, distanceToList(25, list))
	assert.Equal(t, 0, distanceToList(7, nil))
}

func TestCountIntersection(t *testing.T) {
	assert.Equal(t, 2, countIntersection([]int{1, 3, 5, 7}, []int{3, 4, 7}))
	assert.Equal(t, 0, countIntersection([]int{1, 2}, []int{3, 4}))
	assert.Equal(t, 0, countIntersection(nil, []int{1}))
}

func TestDurationDivFloorAndCeil(t *testing.T) {
	step := 15 * time.Minute

	assert.Equal(t, 0, ceilDurationDiv(0, step))
	assert.Equal(t, 1, ceilDurationDiv(time.Minute, step))
	assert.Equal(t, 1, ceilDurationDiv(15*time.Minute, step))
	assert.Equal(t, 0, ceilDurationDiv(-time.Minute, step))
	assert.Equal(t, -1, ceilDurationDiv(-16*time.Minute, step))

	assert.Equal(t, 0, floorDurationDiv(0, step))
	assert.Equal(t, 0, floorDurationDiv(14*time.Minute, step))
	assert.Equal(t, 1, floorDurationDiv(15*time.Minute, step))
	assert.Equal(t, -1, floorDurationDiv(-time.Minute, step))
	assert.Equal(t, -2, floorDurationDiv(-16*time.Minute, step))
}

func TestDtToSlotIndex(t *testing.T) {
	slot0 := monday.Add(10 * time.Hour)

	assert.Equal(t, 0, dtToSlotIndex(slot0, slot0))
	assert.Equal(t, 0, dtToSlotIndex(slot0.Add(-time.Hour), slot0))
	assert.Equal(t, 4, dtToSlotIndex(slot0.Add(time.Hour), slot0))
	assert.Equal(t, 4, dtToSlotIndex(slot0.Add(time.Hour+10*time.Minute), slot0))
}
