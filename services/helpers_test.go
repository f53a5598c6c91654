package services

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aoe4hub/tournament-engine/models"
)

func TestDeterministicRNG(t *testing.T) {
	a := DeterministicRNG(42, models.StageTypeSingleElim)
	b := DeterministicRNG(42, models.StageTypeSingleElim)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Int63(), b.Int63())
	}

	c := DeterministicRNG(42, models.StageTypeLeague)
	d := DeterministicRNG(43, models.StageTypeSingleElim)
	base := DeterministicRNG(42, models.StageTypeSingleElim)
	assert.NotEqual(t, base.Int63(), c.Int63())
	assert.NotEqual(t, base.Int63(), d.Int63())
}

func TestWinsNeeded(t *testing.T) {
	cases := []struct {
		bestOf int
		want   int
	}{
		{1, 1},
		{3, 2},
		{5, 3},
		{7, 4},
	}
	for _, c := range cases {
		got, err := WinsNeeded(c.bestOf)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}

	for _, bad := range []int{0, -1, 2, 4} {
		_, err := WinsNeeded(bad)
		assert.True(t, IsValidationError(err), "best_of=%d", bad)
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	cases := map[int]int{
		0: 1, 1: 1, 2: 2, 3: 4, 4: 4, 5: 8, 8: 8, 9: 16, 17: 32,
	}
	for n, want := range cases {
		assert.Equal(t, want, NextPowerOfTwo(n), "n=%d", n)
	}
}

func TestRoundRobinRoundsOddField(t *testing.T) {
	entrants := make([]*models.TournamentEntrant, 5)
	for i := range entrants {
		entrants[i] = &models.TournamentEntrant{ID: i + 1}
	}

	rounds := RoundRobinRounds(entrants)
	require.Len(t, rounds, 5)

	total := 0
	seen := make(map[[2]int]int)
	for _, round := range rounds {
		// One entrant per round sits out via the bye slot.
		assert.Len(t, round, 2)
		for _, p := range round {
			total++
			key := [2]int{p.A.ID, p.B.ID}
			if key[0] > key[1] {
				key[0], key[1] = key[1], key[0]
			}
			seen[key]++
		}
	}
	assert.Equal(t, 10, total)
	assert.Len(t, seen, 10)
	for key, count := range seen {
		assert.Equal(t, 1, count, "pair %v", key)
	}

	// Round 1 drops the fixed entrant's pairing against the bye slot.
	require.Len(t, rounds[0], 2)
	assert.Equal(t, 2, rounds[0][0].A.ID)
	assert.Equal(t, 5, rounds[0][0].B.ID)
	assert.Equal(t, 3, rounds[0][1].A.ID)
	assert.Equal(t, 4, rounds[0][1].B.ID)

	// Odd-indexed rounds swap the pair order.
	require.Len(t, rounds[1], 2)
	assert.Equal(t, 5, rounds[1][0].A.ID)
	assert.Equal(t, 1, rounds[1][0].B.ID)
	assert.Equal(t, 3, rounds[1][1].A.ID)
	assert.Equal(t, 2, rounds[1][1].B.ID)
}

func TestRoundRobinRoundsEvenField(t *testing.T) {
	entrants := make([]*models.TournamentEntrant, 4)
	for i := range entrants {
		entrants[i] = &models.TournamentEntrant{ID: i + 1}
	}

	rounds := RoundRobinRounds(entrants)
	require.Len(t, rounds, 3)
	for _, round := range rounds {
		assert.Len(t, round, 2)
	}
}

func TestBracketSeedPositions(t *testing.T) {
	assert.Equal(t, []int{1, 2}, BracketSeedPositions(2))
	assert.Equal(t, []int{1, 4, 2, 3}, BracketSeedPositions(4))
	assert.Equal(t, []int{1, 8, 4, 5, 2, 7, 3, 6}, BracketSeedPositions(8))

	for _, size := range []int{2, 4, 8, 16, 32} {
		positions := BracketSeedPositions(size)
		require.Len(t, positions, size)

		// Adjacent pairs are round-1 opponents; seeds s and size+1-s meet.
		for i := 0; i < size; i += 2 {
			assert.Equal(t, size+1, positions[i]+positions[i+1], "size=%d pair=%d", size, i/2)
		}

		sorted := append([]int(nil), positions...)
		sort.Ints(sorted)
		for i, s := range sorted {
			assert.Equal(t, i+1, s, "size=%d", size)
		}
	}
}
