package services

import (
	"context"
	"io"
	"log/slog"
	"sort"

	"github.com/aoe4hub/tournament-engine/models"
	"github.com/aoe4hub/tournament-engine/repositories"
)

// In-memory repository fakes. They ignore the executor argument: the services
// under test are exercised through their unexported *Tx methods with a nil
// executor, so no transaction is ever opened.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTournamentRepo struct {
	tournaments map[int]*models.Tournament
	statuses    map[int]models.TournamentStatus
}

func newFakeTournamentRepo(ts ...*models.Tournament) *fakeTournamentRepo {
	r := &fakeTournamentRepo{
		tournaments: make(map[int]*models.Tournament),
		statuses:    make(map[int]models.TournamentStatus),
	}
	for _, t := range ts {
		r.tournaments[t.ID] = t
	}
	return r
}

func (r *fakeTournamentRepo) Create(ctx context.Context, t *models.Tournament) error {
	t.ID = len(r.tournaments) + 1
	r.tournaments[t.ID] = t
	return nil
}

func (r *fakeTournamentRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	return r.GetByIDForUpdate(ctx, exec, id)
}

func (r *fakeTournamentRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	t, ok := r.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return t, nil
}

func (r *fakeTournamentRepo) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	return nil, nil
}

func (r *fakeTournamentRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	r.statuses[id] = status
	r.tournaments[id].Status = status
	return nil
}

func (r *fakeTournamentRepo) UpdateLogoKey(ctx context.Context, tournamentID int, logoKey *string) error {
	return nil
}

func (r *fakeTournamentRepo) Delete(ctx context.Context, id int) error {
	delete(r.tournaments, id)
	return nil
}

type fakeStageRepo struct {
	stages []*models.TournamentStage
	nextID int
}

func newFakeStageRepo() *fakeStageRepo {
	return &fakeStageRepo{nextID: 1}
}

func (r *fakeStageRepo) Create(ctx context.Context, exec repositories.SQLExecutor, s *models.TournamentStage) error {
	s.ID = r.nextID
	r.nextID++
	r.stages = append(r.stages, s)
	return nil
}

func (r *fakeStageRepo) ExistsByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (bool, error) {
	for _, s := range r.stages {
		if s.TournamentID == tournamentID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeStageRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.TournamentStage, error) {
	out := make([]*models.TournamentStage, 0)
	for _, s := range r.stages {
		if s.TournamentID == tournamentID {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeMatchRepo struct {
	matches []*models.Match
	nextID  int

	candidates []*repositories.ScheduleCandidate
	reserved   []*repositories.ReservedSlot

	bracketUpdates   [][]int
	scheduledUpdates []*models.Match
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{nextID: 1}
}

func (r *fakeMatchRepo) BulkInsert(ctx context.Context, exec repositories.SQLExecutor, matches []*models.Match) error {
	for _, m := range matches {
		m.ID = r.nextID
		r.nextID++
		r.matches = append(r.matches, m)
	}
	return nil
}

func (r *fakeMatchRepo) ListByStageRound(ctx context.Context, exec repositories.SQLExecutor, stageID, roundNumber int) ([]*models.Match, error) {
	out := make([]*models.Match, 0)
	for _, m := range r.matches {
		if m.StageID == stageID && m.RoundNumber == roundNumber {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (r *fakeMatchRepo) ListByStage(ctx context.Context, exec repositories.SQLExecutor, stageID int) ([]*models.Match, error) {
	out := make([]*models.Match, 0)
	for _, m := range r.matches {
		if m.StageID == stageID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMatchRepo) UpdateBracketResults(ctx context.Context, exec repositories.SQLExecutor, matches []*models.Match) error {
	ids := make([]int, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ID)
	}
	r.bracketUpdates = append(r.bracketUpdates, ids)
	return nil
}

func (r *fakeMatchRepo) ListUnscheduledForUpdate(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*repositories.ScheduleCandidate, error) {
	return r.candidates, nil
}

func (r *fakeMatchRepo) ListScheduledTouching(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, entrantIDs []int) ([]*repositories.ReservedSlot, error) {
	return r.reserved, nil
}

func (r *fakeMatchRepo) UpdateScheduledAt(ctx context.Context, exec repositories.SQLExecutor, matches []*models.Match) error {
	r.scheduledUpdates = append(r.scheduledUpdates, matches...)
	return nil
}

type fakeEntrantRepo struct {
	active   []*models.TournamentEntrant
	captains map[int]int

	deletedIDs []int
}

func newFakeEntrantRepo() *fakeEntrantRepo {
	return &fakeEntrantRepo{captains: make(map[int]int)}
}

func (r *fakeEntrantRepo) Create(ctx context.Context, exec repositories.SQLExecutor, e *models.TournamentEntrant) error {
	e.ID = len(r.active) + 1
	r.active = append(r.active, e)
	return nil
}

func (r *fakeEntrantRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, tournamentID, id int) (*models.TournamentEntrant, error) {
	return r.GetByIDForUpdate(ctx, exec, tournamentID, id)
}

func (r *fakeEntrantRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, tournamentID, id int) (*models.TournamentEntrant, error) {
	for _, e := range r.active {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, repositories.ErrEntrantNotFound
}

func (r *fakeEntrantRepo) ListActiveWithMemberCounts(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.TournamentEntrant, error) {
	return r.active, nil
}

func (r *fakeEntrantRepo) ListByIDs(ctx context.Context, exec repositories.SQLExecutor, ids []int) ([]*models.TournamentEntrant, error) {
	want := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]*models.TournamentEntrant, 0)
	for _, e := range r.active {
		if _, ok := want[e.ID]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEntrantRepo) DeleteByIDs(ctx context.Context, exec repositories.SQLExecutor, ids []int) error {
	r.deletedIDs = append(r.deletedIDs, ids...)
	drop := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := r.active[:0]
	for _, e := range r.active {
		if _, gone := drop[e.ID]; !gone {
			kept = append(kept, e)
		}
	}
	r.active = kept
	return nil
}

func (r *fakeEntrantRepo) DeleteIfEmpty(ctx context.Context, exec repositories.SQLExecutor, entrantID int) error {
	return nil
}

func (r *fakeEntrantRepo) CreateMember(ctx context.Context, exec repositories.SQLExecutor, m *models.TournamentEntrantMember) error {
	return nil
}

func (r *fakeEntrantRepo) GetMemberForUpdate(ctx context.Context, exec repositories.SQLExecutor, entrantID, userID int) (*models.TournamentEntrantMember, error) {
	return nil, repositories.ErrMemberNotFound
}

func (r *fakeEntrantRepo) DeleteMember(ctx context.Context, exec repositories.SQLExecutor, memberID int) error {
	return nil
}

func (r *fakeEntrantRepo) CountMembers(ctx context.Context, exec repositories.SQLExecutor, entrantID int) (int, error) {
	return 0, nil
}

func (r *fakeEntrantRepo) UserIsMemberInTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID, userID int) (bool, error) {
	return false, nil
}

func (r *fakeEntrantRepo) UserIsCaptain(ctx context.Context, exec repositories.SQLExecutor, entrantID, userID int) (bool, error) {
	return false, nil
}

func (r *fakeEntrantRepo) OldestMemberForUpdate(ctx context.Context, exec repositories.SQLExecutor, entrantID int) (*models.TournamentEntrantMember, error) {
	return nil, nil
}

func (r *fakeEntrantRepo) SetCaptain(ctx context.Context, exec repositories.SQLExecutor, memberID int) error {
	return nil
}

func (r *fakeEntrantRepo) GetCaptains(ctx context.Context, exec repositories.SQLExecutor, entrantIDs []int) (map[int]int, error) {
	out := make(map[int]int, len(entrantIDs))
	for _, id := range entrantIDs {
		if uid, ok := r.captains[id]; ok {
			out[id] = uid
		}
	}
	return out, nil
}

type fakeAvailabilityRepo struct {
	rows   []*models.UserAvailability
	nextID int

	updatedIDs []int
	deletedIDs []int
}

func newFakeAvailabilityRepo(rows ...*models.UserAvailability) *fakeAvailabilityRepo {
	r := &fakeAvailabilityRepo{nextID: 1}
	for _, row := range rows {
		if row.ID == 0 {
			row.ID = r.nextID
		}
		if row.ID >= r.nextID {
			r.nextID = row.ID + 1
		}
		r.rows = append(r.rows, row)
	}
	return r
}

func (r *fakeAvailabilityRepo) ListByUserIDs(ctx context.Context, exec repositories.SQLExecutor, userIDs []int) ([]*models.UserAvailability, error) {
	want := make(map[int]struct{}, len(userIDs))
	for _, id := range userIDs {
		want[id] = struct{}{}
	}
	out := make([]*models.UserAvailability, 0)
	for _, row := range r.rows {
		if _, ok := want[row.UserID]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeAvailabilityRepo) ListOverlappingForUpdate(ctx context.Context, exec repositories.SQLExecutor, userID, startOffset, endOffset int, excludeID *int) ([]*models.UserAvailability, error) {
	out := make([]*models.UserAvailability, 0)
	for _, row := range r.rows {
		if row.UserID != userID {
			continue
		}
		if excludeID != nil && row.ID == *excludeID {
			continue
		}
		if row.EndOffset >= startOffset && row.StartOffset <= endOffset {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartOffset < out[j].StartOffset })
	return out, nil
}

func (r *fakeAvailabilityRepo) GetForUpdate(ctx context.Context, exec repositories.SQLExecutor, userID, id int) (*models.UserAvailability, error) {
	for _, row := range r.rows {
		if row.UserID == userID && row.ID == id {
			return row, nil
		}
	}
	return nil, nil
}

func (r *fakeAvailabilityRepo) ListByUser(ctx context.Context, userID int) ([]*models.UserAvailability, error) {
	out := make([]*models.UserAvailability, 0)
	for _, row := range r.rows {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeAvailabilityRepo) Create(ctx context.Context, exec repositories.SQLExecutor, a *models.UserAvailability) error {
	a.ID = r.nextID
	r.nextID++
	r.rows = append(r.rows, a)
	return nil
}

func (r *fakeAvailabilityRepo) UpdateOffsets(ctx context.Context, exec repositories.SQLExecutor, id, startOffset, endOffset int) error {
	r.updatedIDs = append(r.updatedIDs, id)
	for _, row := range r.rows {
		if row.ID == id {
			row.StartOffset = startOffset
			row.EndOffset = endOffset
			return nil
		}
	}
	return nil
}

func (r *fakeAvailabilityRepo) DeleteByIDs(ctx context.Context, exec repositories.SQLExecutor, ids []int) error {
	r.deletedIDs = append(r.deletedIDs, ids...)
	drop := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := r.rows[:0]
	for _, row := range r.rows {
		if _, gone := drop[row.ID]; !gone {
			kept = append(kept, row)
		}
	}
	r.rows = kept
	return nil
}

func (r *fakeAvailabilityRepo) Delete(ctx context.Context, userID, id int) error {
	return nil
}

type fakeUserRepo struct {
	users  map[string]*models.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User), nextID: 1}
}

func (r *fakeUserRepo) Create(ctx context.Context, u *models.User) error {
	if _, ok := r.users[u.Username]; ok {
		return repositories.ErrUserUsernameConflict
	}
	u.ID = r.nextID
	r.nextID++
	r.users[u.Username] = u
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	u, ok := r.users[username]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return u, nil
}
