package services

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand"

	"github.com/aoe4hub/tournament-engine/models"
)

// DeterministicRNG returns a pseudo-random source seeded from the first 8
// bytes of SHA-256("{tournamentID}:{format}") read big-endian. It is the only
// randomness used while building structures, so two builds of the same
// tournament with the same format produce identical brackets.
func DeterministicRNG(tournamentID int, format models.StageType) *rand.Rand {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", tournamentID, format)))
	seed := binary.BigEndian.Uint64(sum[:8])
	return rand.New(rand.NewSource(int64(seed)))
}

// WinsNeeded returns the number of game wins that decides a best-of series.
func WinsNeeded(bestOf int) (int, error) {
	if bestOf <= 0 || bestOf%2 == 0 {
		return 0, NewValidationError("best_of must be a positive odd number")
	}
	return bestOf/2 + 1, nil
}

// NextPowerOfTwo returns the smallest power of two >= n (1 for n <= 1).
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Pairing is one round-robin match-up; A hosts, B visits.
type Pairing struct {
	A *models.TournamentEntrant
	B *models.TournamentEntrant
}

// RoundRobinRounds pairs entrants with the circle method: entrant 0 stays
// fixed while the rest rotate one position per round. An odd field gets a
// sentinel bye slot whose pairings are dropped. Odd-indexed rounds swap the
// pair order to balance hosting.
func RoundRobinRounds(entrants []*models.TournamentEntrant) [][]Pairing {
	items := make([]*models.TournamentEntrant, len(entrants))
	copy(items, entrants)
	if len(items)%2 == 1 {
		items = append(items, nil)
	}

	n := len(items)
	fixed := items[0]
	rest := items[1:]

	rounds := make([][]Pairing, 0, n-1)
	for r := 0; r < n-1; r++ {
		current := make([]*models.TournamentEntrant, 0, n)
		current = append(current, fixed)
		current = append(current, rest...)

		pairings := make([]Pairing, 0, n/2)
		for i := 0; i < n/2; i++ {
			a := current[i]
			b := current[n-1-i]
			if a == nil || b == nil {
				continue
			}
			if r%2 == 0 {
				pairings = append(pairings, Pairing{A: a, B: b})
			} else {
				pairings = append(pairings, Pairing{A: b, B: a})
			}
		}

		rounds = append(rounds, pairings)
		rest = append([]*models.TournamentEntrant{rest[len(rest)-1]}, rest[:len(rest)-1]...)
	}

	return rounds
}

// BracketSeedPositions returns the standard seeding order of a power-of-two
// bracket: seed s meets seed size+1-s in round 1 (1 vs N, 2 vs N-1, ...).
func BracketSeedPositions(size int) []int {
	if size == 1 {
		return []int{1}
	}
	prev := BracketSeedPositions(size / 2)
	out := make([]int, 0, size)
	for _, s := range prev {
		out = append(out, s, size+1-s)
	}
	return out
}
