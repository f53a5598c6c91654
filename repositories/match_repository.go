package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aoe4hub/tournament-engine/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound       = errors.New("match not found")
	ErrMatchSlotConflict   = errors.New("match (stage, round, order) conflict")
	ErrMatchEntrantInvalid = errors.New("match entrant conflict or invalid")
)

// ScheduleCandidate is an unscheduled match together with its stage order,
// which the scheduler sorts on.
type ScheduleCandidate struct {
	Match      *models.Match
	StageOrder int
}

// ReservedSlot is a previously scheduled match that constrains the captains of
// the entrants it touches.
type ReservedSlot struct {
	ScheduledAt time.Time
	Entrant1ID  int
	Entrant2ID  int
	BestOf      int
}

type MatchRepository interface {
	// BulkInsert creates all matches in one statement, assigning ids in input
	// order.
	BulkInsert(ctx context.Context, exec SQLExecutor, matches []*models.Match) error
	ListByStageRound(ctx context.Context, exec SQLExecutor, stageID, roundNumber int) ([]*models.Match, error)
	ListByStage(ctx context.Context, exec SQLExecutor, stageID int) ([]*models.Match, error)
	// UpdateBracketResults persists status, winner slot, scores and entrant
	// slots of the given matches.
	UpdateBracketResults(ctx context.Context, exec SQLExecutor, matches []*models.Match) error
	// ListUnscheduledForUpdate locks and returns every SCHEDULED match of the
	// tournament that has no scheduled_at and both entrants present, by id.
	ListUnscheduledForUpdate(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*ScheduleCandidate, error)
	// ListScheduledTouching returns already scheduled matches of the
	// tournament that involve any of the given entrants.
	ListScheduledTouching(ctx context.Context, exec SQLExecutor, tournamentID int, entrantIDs []int) ([]*ReservedSlot, error)
	UpdateScheduledAt(ctx context.Context, exec SQLExecutor, matches []*models.Match) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresMatchRepository) BulkInsert(ctx context.Context, exec SQLExecutor, matches []*models.Match) error {
	if len(matches) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)

	var b strings.Builder
	b.WriteString(`
		INSERT INTO matches
			(stage_id, round_number, match_order, best_of, status, entrant1_id, entrant2_id)
		VALUES `)

	args := make([]interface{}, 0, len(matches)*7)
	for i, m := range matches {
		if i > 0 {
			b.WriteString(", ")
		}
		base := i * 7
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7)
		args = append(args, m.StageID, m.RoundNumber, m.Order, m.BestOf, m.Status, m.Entrant1ID, m.Entrant2ID)
	}
	b.WriteString(" RETURNING id, created_at")

	rows, err := executor.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return r.handleMatchError(err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		if i >= len(matches) {
			return fmt.Errorf("bulk insert returned more rows than matches inserted")
		}
		if scanErr := rows.Scan(&matches[i].ID, &matches[i].CreatedAt); scanErr != nil {
			return scanErr
		}
		i++
	}
	if err = rows.Err(); err != nil {
		return err
	}
	if i != len(matches) {
		return fmt.Errorf("bulk insert returned %d ids for %d matches", i, len(matches))
	}
	return nil
}

const matchColumns = `
	id, stage_id, round_number, match_order, best_of, status,
	entrant1_id, entrant2_id, score1, score2, winner_slot, scheduled_at, created_at`

func scanMatch(row interface{ Scan(...interface{}) error }, m *models.Match) error {
	return row.Scan(
		&m.ID, &m.StageID, &m.RoundNumber, &m.Order, &m.BestOf, &m.Status,
		&m.Entrant1ID, &m.Entrant2ID, &m.Score1, &m.Score2, &m.WinnerSlot, &m.ScheduledAt, &m.CreatedAt,
	)
}

func (r *postgresMatchRepository) ListByStageRound(ctx context.Context, exec SQLExecutor, stageID, roundNumber int) ([]*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + `
		FROM matches
		WHERE stage_id = $1 AND round_number = $2
		ORDER BY match_order`

	return r.queryMatches(ctx, executor, query, stageID, roundNumber)
}

func (r *postgresMatchRepository) ListByStage(ctx context.Context, exec SQLExecutor, stageID int) ([]*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + `
		FROM matches
		WHERE stage_id = $1
		ORDER BY round_number, match_order`

	return r.queryMatches(ctx, executor, query, stageID)
}

func (r *postgresMatchRepository) queryMatches(ctx context.Context, executor SQLExecutor, query string, args ...interface{}) ([]*models.Match, error) {
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		var m models.Match
		if scanErr := scanMatch(rows, &m); scanErr != nil {
			return nil, scanErr
		}
		matches = append(matches, &m)
	}
	return matches, rows.Err()
}

func (r *postgresMatchRepository) UpdateBracketResults(ctx context.Context, exec SQLExecutor, matches []*models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches
		SET status = $1, winner_slot = $2, score1 = $3, score2 = $4, entrant1_id = $5, entrant2_id = $6
		WHERE id = $7`

	for _, m := range matches {
		result, err := executor.ExecContext(ctx, query,
			m.Status, m.WinnerSlot, m.Score1, m.Score2, m.Entrant1ID, m.Entrant2ID, m.ID)
		if err != nil {
			return r.handleMatchError(err)
		}
		if err := checkAffectedRows(result, ErrMatchNotFound); err != nil {
			return err
		}
	}
	return nil
}

func (r *postgresMatchRepository) ListUnscheduledForUpdate(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*ScheduleCandidate, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT m.id, m.stage_id, m.round_number, m.match_order, m.best_of, m.status,
		       m.entrant1_id, m.entrant2_id, m.score1, m.score2, m.winner_slot, m.scheduled_at, m.created_at,
		       s.stage_order
		FROM matches m
		JOIN tournament_stages s ON s.id = m.stage_id
		WHERE s.tournament_id = $1
		  AND m.status = $2
		  AND m.scheduled_at IS NULL
		  AND m.entrant1_id IS NOT NULL
		  AND m.entrant2_id IS NOT NULL
		ORDER BY m.id
		FOR UPDATE OF m`

	rows, err := executor.QueryContext(ctx, query, tournamentID, models.MatchStatusScheduled)
	if err != nil {
		return nil, fmt.Errorf("failed to query unscheduled matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	out := make([]*ScheduleCandidate, 0)
	for rows.Next() {
		var m models.Match
		var stageOrder int
		if scanErr := rows.Scan(
			&m.ID, &m.StageID, &m.RoundNumber, &m.Order, &m.BestOf, &m.Status,
			&m.Entrant1ID, &m.Entrant2ID, &m.Score1, &m.Score2, &m.WinnerSlot, &m.ScheduledAt, &m.CreatedAt,
			&stageOrder,
		); scanErr != nil {
			return nil, scanErr
		}
		out = append(out, &ScheduleCandidate{Match: &m, StageOrder: stageOrder})
	}
	return out, rows.Err()
}

func (r *postgresMatchRepository) ListScheduledTouching(ctx context.Context, exec SQLExecutor, tournamentID int, entrantIDs []int) ([]*ReservedSlot, error) {
	if len(entrantIDs) == 0 {
		return nil, nil
	}
	executor := r.getExecutor(exec)
	query := `
		SELECT m.scheduled_at, m.entrant1_id, m.entrant2_id, m.best_of
		FROM matches m
		JOIN tournament_stages s ON s.id = m.stage_id
		WHERE s.tournament_id = $1
		  AND m.scheduled_at IS NOT NULL
		  AND m.entrant1_id IS NOT NULL
		  AND m.entrant2_id IS NOT NULL
		  AND (m.entrant1_id = ANY($2) OR m.entrant2_id = ANY($2))
		ORDER BY m.scheduled_at, m.id`

	rows, err := executor.QueryContext(ctx, query, tournamentID, pq.Array(entrantIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*ReservedSlot, 0)
	for rows.Next() {
		var s ReservedSlot
		if scanErr := rows.Scan(&s.ScheduledAt, &s.Entrant1ID, &s.Entrant2ID, &s.BestOf); scanErr != nil {
			return nil, scanErr
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *postgresMatchRepository) UpdateScheduledAt(ctx context.Context, exec SQLExecutor, matches []*models.Match) error {
	if len(matches) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)

	var b strings.Builder
	b.WriteString(`
		UPDATE matches AS m
		SET scheduled_at = v.scheduled_at
		FROM (VALUES `)

	args := make([]interface{}, 0, len(matches)*2)
	for i, m := range matches {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "($%d::int, $%d::timestamptz)", i*2+1, i*2+2)
		args = append(args, m.ID, m.ScheduledAt)
	}
	b.WriteString(`) AS v(id, scheduled_at) WHERE m.id = v.id`)

	result, err := executor.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected != int64(len(matches)) {
		return fmt.Errorf("scheduled_at bulk update touched %d of %d matches", affected, len(matches))
	}
	return nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "matches_stage_id_round_number_match_order_key" {
				return ErrMatchSlotConflict
			}
		case "23503":
			switch pqErr.Constraint {
			case "matches_entrant1_id_fkey", "matches_entrant2_id_fkey":
				return ErrMatchEntrantInvalid
			}
		}
	}
	return err
}
