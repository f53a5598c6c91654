package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aoe4hub/tournament-engine/models"
	"github.com/lib/pq"
)

var (
	ErrEntrantNotFound     = errors.New("entrant not found")
	ErrEntrantNameConflict = errors.New("entrant name is already taken in this tournament")
	ErrMemberNotFound      = errors.New("entrant member not found")
	ErrMemberConflict      = errors.New("user is already a member of an entrant in this tournament")
	ErrCaptainConflict     = errors.New("entrant already has a captain")
)

type EntrantRepository interface {
	Create(ctx context.Context, exec SQLExecutor, entrant *models.TournamentEntrant) error
	GetByID(ctx context.Context, exec SQLExecutor, tournamentID, id int) (*models.TournamentEntrant, error)
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, tournamentID, id int) (*models.TournamentEntrant, error)
	// ListActiveWithMemberCounts returns ACTIVE entrants of the tournament with
	// MemberCount populated from distinct memberships.
	ListActiveWithMemberCounts(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.TournamentEntrant, error)
	ListByIDs(ctx context.Context, exec SQLExecutor, ids []int) ([]*models.TournamentEntrant, error)
	DeleteByIDs(ctx context.Context, exec SQLExecutor, ids []int) error
	DeleteIfEmpty(ctx context.Context, exec SQLExecutor, entrantID int) error

	CreateMember(ctx context.Context, exec SQLExecutor, member *models.TournamentEntrantMember) error
	GetMemberForUpdate(ctx context.Context, exec SQLExecutor, entrantID, userID int) (*models.TournamentEntrantMember, error)
	DeleteMember(ctx context.Context, exec SQLExecutor, memberID int) error
	CountMembers(ctx context.Context, exec SQLExecutor, entrantID int) (int, error)
	UserIsMemberInTournament(ctx context.Context, exec SQLExecutor, tournamentID, userID int) (bool, error)
	UserIsCaptain(ctx context.Context, exec SQLExecutor, entrantID, userID int) (bool, error)
	// OldestMemberForUpdate returns the remaining member with the lowest id,
	// locked, or nil when the entrant has no members left.
	OldestMemberForUpdate(ctx context.Context, exec SQLExecutor, entrantID int) (*models.TournamentEntrantMember, error)
	SetCaptain(ctx context.Context, exec SQLExecutor, memberID int) error
	// GetCaptains maps entrant id to captain user id for every entrant in ids
	// that has a captain. Callers detect missing captains by absent keys.
	GetCaptains(ctx context.Context, exec SQLExecutor, entrantIDs []int) (map[int]int, error)
}

type postgresEntrantRepository struct {
	db *sql.DB
}

func NewPostgresEntrantRepository(db *sql.DB) EntrantRepository {
	return &postgresEntrantRepository{db: db}
}

func (r *postgresEntrantRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresEntrantRepository) Create(ctx context.Context, exec SQLExecutor, e *models.TournamentEntrant) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournament_entrants (tournament_id, name, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query, e.TournamentID, e.Name, e.Status).
		Scan(&e.ID, &e.CreatedAt)
	return r.handleEntrantError(err)
}

func (r *postgresEntrantRepository) GetByID(ctx context.Context, exec SQLExecutor, tournamentID, id int) (*models.TournamentEntrant, error) {
	return r.getByID(ctx, exec, tournamentID, id, false)
}

func (r *postgresEntrantRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, tournamentID, id int) (*models.TournamentEntrant, error) {
	return r.getByID(ctx, exec, tournamentID, id, true)
}

func (r *postgresEntrantRepository) getByID(ctx context.Context, exec SQLExecutor, tournamentID, id int, forUpdate bool) (*models.TournamentEntrant, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, tournament_id, name, status, created_at
		FROM tournament_entrants
		WHERE tournament_id = $1 AND id = $2`
	if forUpdate {
		query += " FOR UPDATE"
	}

	e := &models.TournamentEntrant{}
	err := executor.QueryRowContext(ctx, query, tournamentID, id).
		Scan(&e.ID, &e.TournamentID, &e.Name, &e.Status, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntrantNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *postgresEntrantRepository) ListActiveWithMemberCounts(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.TournamentEntrant, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT e.id, e.tournament_id, e.name, e.status, e.created_at,
		       COUNT(DISTINCT m.id) AS member_count
		FROM tournament_entrants e
		LEFT JOIN tournament_entrant_members m ON m.entrant_id = e.id
		WHERE e.tournament_id = $1 AND e.status = $2
		GROUP BY e.id
		ORDER BY e.id`

	rows, err := executor.QueryContext(ctx, query, tournamentID, models.EntrantStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query active entrants for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	entrants := make([]*models.TournamentEntrant, 0)
	for rows.Next() {
		var e models.TournamentEntrant
		if scanErr := rows.Scan(&e.ID, &e.TournamentID, &e.Name, &e.Status, &e.CreatedAt, &e.MemberCount); scanErr != nil {
			return nil, scanErr
		}
		entrants = append(entrants, &e)
	}
	return entrants, rows.Err()
}

func (r *postgresEntrantRepository) ListByIDs(ctx context.Context, exec SQLExecutor, ids []int) ([]*models.TournamentEntrant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	executor := r.getExecutor(exec)
	query := `
		SELECT id, tournament_id, name, status, created_at
		FROM tournament_entrants
		WHERE id = ANY($1)
		ORDER BY id`

	rows, err := executor.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entrants := make([]*models.TournamentEntrant, 0, len(ids))
	for rows.Next() {
		var e models.TournamentEntrant
		if scanErr := rows.Scan(&e.ID, &e.TournamentID, &e.Name, &e.Status, &e.CreatedAt); scanErr != nil {
			return nil, scanErr
		}
		entrants = append(entrants, &e)
	}
	return entrants, rows.Err()
}

func (r *postgresEntrantRepository) DeleteByIDs(ctx context.Context, exec SQLExecutor, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM tournament_entrants WHERE id = ANY($1)`, pq.Array(ids))
	return err
}

func (r *postgresEntrantRepository) DeleteIfEmpty(ctx context.Context, exec SQLExecutor, entrantID int) error {
	executor := r.getExecutor(exec)
	query := `
		DELETE FROM tournament_entrants e
		WHERE e.id = $1
		  AND NOT EXISTS (SELECT 1 FROM tournament_entrant_members m WHERE m.entrant_id = e.id)`
	_, err := executor.ExecContext(ctx, query, entrantID)
	return err
}

func (r *postgresEntrantRepository) CreateMember(ctx context.Context, exec SQLExecutor, m *models.TournamentEntrantMember) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournament_entrant_members (entrant_id, user_id, is_captain)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query, m.EntrantID, m.UserID, m.IsCaptain).
		Scan(&m.ID, &m.CreatedAt)
	return r.handleEntrantError(err)
}

func (r *postgresEntrantRepository) GetMemberForUpdate(ctx context.Context, exec SQLExecutor, entrantID, userID int) (*models.TournamentEntrantMember, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, entrant_id, user_id, is_captain, created_at
		FROM tournament_entrant_members
		WHERE entrant_id = $1 AND user_id = $2
		FOR UPDATE`

	m := &models.TournamentEntrantMember{}
	err := executor.QueryRowContext(ctx, query, entrantID, userID).
		Scan(&m.ID, &m.EntrantID, &m.UserID, &m.IsCaptain, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *postgresEntrantRepository) DeleteMember(ctx context.Context, exec SQLExecutor, memberID int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `DELETE FROM tournament_entrant_members WHERE id = $1`, memberID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMemberNotFound)
}

func (r *postgresEntrantRepository) CountMembers(ctx context.Context, exec SQLExecutor, entrantID int) (int, error) {
	executor := r.getExecutor(exec)
	var count int
	err := executor.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tournament_entrant_members WHERE entrant_id = $1`, entrantID,
	).Scan(&count)
	return count, err
}

func (r *postgresEntrantRepository) UserIsMemberInTournament(ctx context.Context, exec SQLExecutor, tournamentID, userID int) (bool, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM tournament_entrant_members m
			JOIN tournament_entrants e ON e.id = m.entrant_id
			WHERE e.tournament_id = $1 AND m.user_id = $2
		)`
	var exists bool
	err := executor.QueryRowContext(ctx, query, tournamentID, userID).Scan(&exists)
	return exists, err
}

func (r *postgresEntrantRepository) UserIsCaptain(ctx context.Context, exec SQLExecutor, entrantID, userID int) (bool, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT EXISTS (
			SELECT 1 FROM tournament_entrant_members
			WHERE entrant_id = $1 AND user_id = $2 AND is_captain
		)`
	var exists bool
	err := executor.QueryRowContext(ctx, query, entrantID, userID).Scan(&exists)
	return exists, err
}

func (r *postgresEntrantRepository) OldestMemberForUpdate(ctx context.Context, exec SQLExecutor, entrantID int) (*models.TournamentEntrantMember, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, entrant_id, user_id, is_captain, created_at
		FROM tournament_entrant_members
		WHERE entrant_id = $1
		ORDER BY id
		LIMIT 1
		FOR UPDATE`

	m := &models.TournamentEntrantMember{}
	err := executor.QueryRowContext(ctx, query, entrantID).
		Scan(&m.ID, &m.EntrantID, &m.UserID, &m.IsCaptain, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func (r *postgresEntrantRepository) SetCaptain(ctx context.Context, exec SQLExecutor, memberID int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE tournament_entrant_members SET is_captain = TRUE WHERE id = $1`, memberID)
	if err != nil {
		return r.handleEntrantError(err)
	}
	return checkAffectedRows(result, ErrMemberNotFound)
}

func (r *postgresEntrantRepository) GetCaptains(ctx context.Context, exec SQLExecutor, entrantIDs []int) (map[int]int, error) {
	if len(entrantIDs) == 0 {
		return map[int]int{}, nil
	}
	executor := r.getExecutor(exec)
	query := `
		SELECT entrant_id, user_id
		FROM tournament_entrant_members
		WHERE entrant_id = ANY($1) AND is_captain`

	rows, err := executor.QueryContext(ctx, query, pq.Array(entrantIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int]int, len(entrantIDs))
	for rows.Next() {
		var entrantID, userID int
		if scanErr := rows.Scan(&entrantID, &userID); scanErr != nil {
			return nil, scanErr
		}
		out[entrantID] = userID
	}
	return out, rows.Err()
}

func (r *postgresEntrantRepository) handleEntrantError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		switch pqErr.Constraint {
		case "tournament_entrants_tournament_id_name_key":
			return ErrEntrantNameConflict
		case "tournament_entrant_members_entrant_id_user_id_key":
			return ErrMemberConflict
		case "uniq_entrant_captain":
			return ErrCaptainConflict
		}
	}
	return err
}
