package services

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aoe4hub/tournament-engine/models"
	"github.com/aoe4hub/tournament-engine/repositories"
)

const (
	slotMinutes              = 15
	baseMatchDurationMinutes = 60
)

// ScheduleResult summarizes a scheduling pass over one tournament.
type ScheduleResult struct {
	TournamentID int `json:"tournament_id"`
	Scheduled    int `json:"scheduled"`
	Skipped      int `json:"skipped"`
}

// SchedulingService assigns scheduled_at to every unscheduled match of a
// running tournament. It works on a 15-minute slot grid spanning the
// tournament window, expands the captains' weekly availability onto that grid
// and picks, per match, the earliest slot both captains can play; when no
// mutual slot exists it falls back to the feasible slot closest to both
// captains' availability, preferring afternoon starts. Captains of matches
// that already carry a scheduled_at keep those intervals reserved.
type SchedulingService struct {
	db               *sql.DB
	tournamentRepo   repositories.TournamentRepository
	matchRepo        repositories.MatchRepository
	entrantRepo      repositories.EntrantRepository
	availabilityRepo repositories.AvailabilityRepository
	loc              *time.Location
	logger           *slog.Logger
}

func NewSchedulingService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	entrantRepo repositories.EntrantRepository,
	availabilityRepo repositories.AvailabilityRepository,
	loc *time.Location,
	logger *slog.Logger,
) *SchedulingService {
	return &SchedulingService{
		db:               db,
		tournamentRepo:   tournamentRepo,
		matchRepo:        matchRepo,
		entrantRepo:      entrantRepo,
		availabilityRepo: availabilityRepo,
		loc:              loc,
		logger:           logger,
	}
}

func (s *SchedulingService) ScheduleTournamentMatches(ctx context.Context, tournamentID int) (*ScheduleResult, error) {
	var result *ScheduleResult
	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		var txErr error
		result, txErr = s.scheduleTx(ctx, tx, tournamentID)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// interval is a half-open reserved range of slot indices [start, end).
type interval struct {
	start int
	end   int
}

func (s *SchedulingService) scheduleTx(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (*ScheduleResult, error) {
	tournament, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	slots, err := s.buildSlots(tournament.StartsAt, tournament.EndsAt)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, NewValidationError("tournament scheduling window has no available slots")
	}

	gapSlots := 0
	if tournament.GameGaps > 0 {
		gapSlots = ceilDiv(tournament.GameGaps, slotMinutes)
	}

	candidates, err := s.matchRepo.ListUnscheduledForUpdate(ctx, exec, tournamentID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &ScheduleResult{TournamentID: tournamentID}, nil
	}

	entrantIDs := collectEntrantIDs(candidates)

	captains, err := s.entrantRepo.GetCaptains(ctx, exec, entrantIDs)
	if err != nil {
		return nil, err
	}
	if missing := missingKeys(entrantIDs, captains); len(missing) > 0 {
		return nil, NewValidationError("entrants missing captain: %s", joinInts(missing))
	}

	userIDs := make([]int, 0, len(captains))
	seenUsers := make(map[int]struct{}, len(captains))
	for _, uid := range captains {
		if _, ok := seenUsers[uid]; !ok {
			seenUsers[uid] = struct{}{}
			userIDs = append(userIDs, uid)
		}
	}
	sort.Ints(userIDs)

	availabilities, err := s.availabilityRepo.ListByUserIDs(ctx, exec, userIDs)
	if err != nil {
		return nil, err
	}

	userIntervals, err := s.expandWeeklyAvailability(availabilities, userIDs, tournament.StartsAt, tournament.EndsAt)
	if err != nil {
		return nil, err
	}

	matchDurationMinutes := make(map[int]int, len(candidates))
	matchDurationSlots := make(map[int]int, len(candidates))
	durationSet := make(map[int]struct{})
	for _, c := range candidates {
		durationMinutes := baseMatchDurationMinutes * c.Match.BestOf
		durationSlots := ceilDiv(durationMinutes, slotMinutes)
		matchDurationMinutes[c.Match.ID] = durationMinutes
		matchDurationSlots[c.Match.ID] = durationSlots
		durationSet[durationSlots] = struct{}{}
	}

	availableByDuration := make(map[int]map[int][]int, len(durationSet))
	for durationSlots := range durationSet {
		availableByDuration[durationSlots] = computeUserAvailableStartIndices(slots, durationSlots, userIntervals)
	}

	slot0 := slots[0]
	reserved := make(map[int][]interval, len(userIDs))
	for _, uid := range userIDs {
		reserved[uid] = nil
	}

	if err := s.seedExistingReservations(ctx, exec, tournamentID, entrantIDs, captains, slot0, gapSlots, reserved); err != nil {
		return nil, err
	}

	// Schedule the most constrained matches first within each stage: fewer
	// mutual slots means fewer ways to go wrong later.
	flex := make(map[int]int, len(candidates))
	for _, c := range candidates {
		u1 := captains[*c.Match.Entrant1ID]
		u2 := captains[*c.Match.Entrant2ID]
		available := availableByDuration[matchDurationSlots[c.Match.ID]]
		flex[c.Match.ID] = countIntersection(available[u1], available[u2])
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].StageOrder != candidates[j].StageOrder {
			return candidates[i].StageOrder < candidates[j].StageOrder
		}
		return flex[candidates[i].Match.ID] < flex[candidates[j].Match.ID]
	})

	scheduled := make([]*models.Match, 0, len(candidates))
	for _, c := range candidates {
		m := c.Match
		u1 := captains[*m.Entrant1ID]
		u2 := captains[*m.Entrant2ID]
		durationSlots := matchDurationSlots[m.ID]

		idx, ok := s.pickBestSlotIndex(
			slots,
			matchDurationMinutes[m.ID],
			durationSlots,
			gapSlots,
			tournament.EndsAt,
			u1, u2,
			availableByDuration[durationSlots],
			reserved,
		)
		if !ok {
			return nil, NewValidationError("could not schedule all matches within tournament time range")
		}

		at := slots[idx]
		m.ScheduledAt = &at
		scheduled = append(scheduled, m)

		reserveSlots := durationSlots + gapSlots
		reserveInterval(reserved, u1, idx, reserveSlots)
		reserveInterval(reserved, u2, idx, reserveSlots)
	}

	if err := s.matchRepo.UpdateScheduledAt(ctx, exec, scheduled); err != nil {
		return nil, err
	}

	s.logger.Info("scheduled tournament matches",
		"tournament_id", tournamentID,
		"scheduled", len(scheduled),
	)

	return &ScheduleResult{TournamentID: tournamentID, Scheduled: len(scheduled)}, nil
}

// buildSlots lays the 15-minute grid over the tournament window: the first
// slot is starts_at rounded up to the grid, the last one strictly before
// ends_at.
func (s *SchedulingService) buildSlots(startAt, endAt time.Time) ([]time.Time, error) {
	if startAt.IsZero() || endAt.IsZero() {
		return nil, NewValidationError("tournament start and end times must be set")
	}

	start := startAt.In(s.loc).Truncate(time.Minute)
	if delta := (slotMinutes - start.Minute()%slotMinutes) % slotMinutes; delta != 0 {
		start = start.Add(time.Duration(delta) * time.Minute)
	}

	out := make([]time.Time, 0)
	for cur := start; cur.Before(endAt); cur = cur.Add(slotMinutes * time.Minute) {
		out = append(out, cur)
	}
	return out, nil
}

// expandWeeklyAvailability projects each user's weekly windows onto every week
// touching the tournament, clipped to [startAt, endAt). Weeks start Monday
// 00:00 in the scheduler timezone.
func (s *SchedulingService) expandWeeklyAvailability(
	availabilities []*models.UserAvailability,
	userIDs []int,
	startAt, endAt time.Time,
) (map[int][]timeInterval, error) {
	if len(userIDs) == 0 {
		return nil, NewValidationError("no users resolved for scheduling (missing captains?)")
	}

	haveAvail := make(map[int]struct{}, len(availabilities))
	for _, a := range availabilities {
		haveAvail[a.UserID] = struct{}{}
	}
	var missing []int
	for _, uid := range userIDs {
		if _, ok := haveAvail[uid]; !ok {
			missing = append(missing, uid)
		}
	}
	if len(missing) > 0 {
		sort.Ints(missing)
		return nil, NewValidationError("users missing availability: %s", joinInts(missing))
	}

	startLocal := startAt.In(s.loc)
	endLocal := endAt.In(s.loc)

	out := make(map[int][]timeInterval, len(userIDs))
	for _, uid := range userIDs {
		out[uid] = nil
	}

	year, month, day := startLocal.Date()
	daysSinceMonday := (int(startLocal.Weekday()) + 6) % 7
	weekStart := time.Date(year, month, day-daysSinceMonday, 0, 0, 0, 0, s.loc)

	for ws := weekStart; ws.Before(endLocal); ws = ws.AddDate(0, 0, 7) {
		for _, a := range availabilities {
			from := ws.Add(time.Duration(a.StartOffset) * time.Second)
			to := ws.Add(time.Duration(a.EndOffset) * time.Second)

			if from.Before(startLocal) {
				from = startLocal
			}
			if to.After(endLocal) {
				to = endLocal
			}
			if to.After(from) {
				out[a.UserID] = append(out[a.UserID], timeInterval{from: from, to: to})
			}
		}
	}

	var empty []int
	for uid, intervals := range out {
		sort.Slice(intervals, func(i, j int) bool { return intervals[i].from.Before(intervals[j].from) })
		if len(intervals) == 0 {
			empty = append(empty, uid)
		}
	}
	if len(empty) > 0 {
		sort.Ints(empty)
		return nil, NewValidationError("users have no availability within tournament window: %s", joinInts(empty))
	}

	return out, nil
}

type timeInterval struct {
	from time.Time
	to   time.Time
}

// computeUserAvailableStartIndices returns, per user, the sorted slot indices
// at which a match of durationSlots fits entirely inside one of the user's
// availability intervals. The difference array unions the qualifying starts of
// all intervals.
func computeUserAvailableStartIndices(slots []time.Time, durationSlots int, userIntervals map[int][]timeInterval) map[int][]int {
	slot0 := slots[0]
	step := slotMinutes * time.Minute
	duration := time.Duration(durationSlots) * step

	out := make(map[int][]int, len(userIntervals))
	for userID, intervals := range userIntervals {
		diff := make([]int, len(slots)+1)

		for _, iv := range intervals {
			startI := ceilDurationDiv(iv.from.Sub(slot0), step)
			if startI < 0 {
				startI = 0
			}

			endI := floorDurationDiv(iv.to.Add(-duration).Sub(slot0), step)
			if endI >= len(slots) {
				endI = len(slots) - 1
			}

			if endI < startI {
				continue
			}
			diff[startI]++
			diff[endI+1]--
		}

		starts := make([]int, 0)
		cur := 0
		for i := range slots {
			cur += diff[i]
			if cur > 0 {
				starts = append(starts, i)
			}
		}
		out[userID] = starts
	}
	return out
}

// seedExistingReservations blocks out the captains' time around matches that
// already have a scheduled_at, so a re-run never double-books anyone.
func (s *SchedulingService) seedExistingReservations(
	ctx context.Context,
	exec repositories.SQLExecutor,
	tournamentID int,
	entrantIDs []int,
	captains map[int]int,
	slot0 time.Time,
	gapSlots int,
	reserved map[int][]interval,
) error {
	existing, err := s.matchRepo.ListScheduledTouching(ctx, exec, tournamentID, entrantIDs)
	if err != nil {
		return err
	}

	for _, rs := range existing {
		bestOf := rs.BestOf
		if bestOf < 1 {
			bestOf = 1
		}
		durationSlots := ceilDiv(baseMatchDurationMinutes*bestOf, slotMinutes)
		startI := dtToSlotIndex(rs.ScheduledAt, slot0)
		reserveSlots := durationSlots + gapSlots

		if u1, ok := captains[rs.Entrant1ID]; ok {
			reserveInterval(reserved, u1, startI, reserveSlots)
		}
		if u2, ok := captains[rs.Entrant2ID]; ok {
			reserveInterval(reserved, u2, startI, reserveSlots)
		}
	}
	return nil
}

// pickBestSlotIndex first walks the intersection of both captains' available
// start indices and returns the earliest one that fits the window and both
// reservation lists. With no feasible mutual slot it scans the whole grid and
// returns the feasible index minimizing the summed distance (in minutes) to
// each captain's availability, preferring afternoon starts when both captains
// declared any availability.
func (s *SchedulingService) pickBestSlotIndex(
	slots []time.Time,
	durationMinutes, durationSlots, gapSlots int,
	endAt time.Time,
	user1ID, user2ID int,
	available map[int][]int,
	reserved map[int][]interval,
) (int, bool) {
	reserveSlots := durationSlots + gapSlots
	duration := time.Duration(durationMinutes) * time.Minute

	a := available[user1ID]
	b := available[user2ID]

	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			idx := a[i]
			if !slots[idx].Add(duration).After(endAt) &&
				fitsReservedConstraints(reserved[user1ID], idx, reserveSlots) &&
				fitsReservedConstraints(reserved[user2ID], idx, reserveSlots) {
				return idx, true
			}
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}

	preferPM := len(a) > 0 && len(b) > 0

	bestAny, bestAnyCost := -1, 0
	bestPM, bestPMCost := -1, 0

	for idx := 0; idx <= len(slots)-durationSlots; idx++ {
		if slots[idx].Add(duration).After(endAt) {
			continue
		}
		if !fitsReservedConstraints(reserved[user1ID], idx, reserveSlots) {
			continue
		}
		if !fitsReservedConstraints(reserved[user2ID], idx, reserveSlots) {
			continue
		}

		cost := (distanceToList(idx, a) + distanceToList(idx, b)) * slotMinutes

		if bestAny < 0 || cost < bestAnyCost {
			bestAny, bestAnyCost = idx, cost
		}
		if preferPM && s.isPM(slots[idx]) {
			if bestPM < 0 || cost < bestPMCost {
				bestPM, bestPMCost = idx, cost
			}
		}
	}

	if preferPM && bestPM >= 0 {
		return bestPM, true
	}
	if bestAny >= 0 {
		return bestAny, true
	}
	return 0, false
}

func (s *SchedulingService) isPM(t time.Time) bool {
	return t.In(s.loc).Hour() >= 12
}

func countIntersection(a, b []int) int {
	i, j, c := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			c++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return c
}

// distanceToList returns the distance in slots from x to the nearest element
// of the sorted list, 0 for an empty list.
func distanceToList(x int, items []int) int {
	if len(items) == 0 {
		return 0
	}
	pos := sort.SearchInts(items, x)
	best := -1
	if pos < len(items) {
		best = abs(items[pos] - x)
	}
	if pos > 0 {
		if d := abs(items[pos-1] - x); best < 0 || d < best {
			best = d
		}
	}
	return best
}

func dtToSlotIndex(t, slot0 time.Time) int {
	if !t.After(slot0) {
		return 0
	}
	return floorDurationDiv(t.Sub(slot0), slotMinutes*time.Minute)
}

// intervalInsertPos returns the insert position that keeps a user's reserved
// intervals sorted by start.
func intervalInsertPos(intervals []interval, startI int) int {
	return sort.Search(len(intervals), func(k int) bool { return intervals[k].start >= startI })
}

func reserveInterval(reserved map[int][]interval, userID, startI, reserveSlots int) {
	intervals := reserved[userID]
	pos := intervalInsertPos(intervals, startI)
	iv := interval{start: startI, end: startI + reserveSlots}
	intervals = append(intervals, interval{})
	copy(intervals[pos+1:], intervals[pos:])
	intervals[pos] = iv
	reserved[userID] = intervals
}

func fitsReservedConstraints(intervals []interval, startI, reserveSlots int) bool {
	if len(intervals) == 0 {
		return true
	}
	endI := startI + reserveSlots
	pos := intervalInsertPos(intervals, startI)
	if pos > 0 && intervals[pos-1].end > startI {
		return false
	}
	if pos < len(intervals) && endI > intervals[pos].start {
		return false
	}
	return true
}

func collectEntrantIDs(candidates []*repositories.ScheduleCandidate) []int {
	seen := make(map[int]struct{}, len(candidates)*2)
	out := make([]int, 0, len(candidates)*2)
	for _, c := range candidates {
		for _, id := range []int{*c.Match.Entrant1ID, *c.Match.Entrant2ID} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	sort.Ints(out)
	return out
}

func missingKeys(ids []int, m map[int]int) []int {
	var missing []int
	for _, id := range ids {
		if _, ok := m[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ", ")
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func ceilDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a > 0) == (b > 0) {
		q++
	}
	return q
}

// ceilDurationDiv and floorDurationDiv divide durations with mathematical
// ceiling/floor semantics, which matter for instants before the first slot.
func ceilDurationDiv(d, step time.Duration) int {
	q := d / step
	if d%step != 0 && (d > 0) == (step > 0) {
		q++
	}
	return int(q)
}

func floorDurationDiv(d, step time.Duration) int {
	q := d / step
	if d%step != 0 && (d > 0) != (step > 0) {
		q--
	}
	return int(q)
}
