package repositories

import (
	"context"
	"database/sql"

	"github.com/aoe4hub/tournament-engine/models"
	"github.com/lib/pq"
)

type AvailabilityRepository interface {
	ListByUserIDs(ctx context.Context, exec SQLExecutor, userIDs []int) ([]*models.UserAvailability, error)
	// ListOverlappingForUpdate locks and returns the user's windows that touch
	// [startOffset, endOffset], optionally excluding one row. Used by the
	// create-or-merge policy.
	ListOverlappingForUpdate(ctx context.Context, exec SQLExecutor, userID, startOffset, endOffset int, excludeID *int) ([]*models.UserAvailability, error)
	GetForUpdate(ctx context.Context, exec SQLExecutor, userID, id int) (*models.UserAvailability, error)
	ListByUser(ctx context.Context, userID int) ([]*models.UserAvailability, error)
	Create(ctx context.Context, exec SQLExecutor, a *models.UserAvailability) error
	UpdateOffsets(ctx context.Context, exec SQLExecutor, id, startOffset, endOffset int) error
	DeleteByIDs(ctx context.Context, exec SQLExecutor, ids []int) error
	Delete(ctx context.Context, userID, id int) error
}

type postgresAvailabilityRepository struct {
	db *sql.DB
}

func NewPostgresAvailabilityRepository(db *sql.DB) AvailabilityRepository {
	return &postgresAvailabilityRepository{db: db}
}

func (r *postgresAvailabilityRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const availabilityColumns = `id, user_id, start_offset, end_offset, created_at`

func (r *postgresAvailabilityRepository) ListByUserIDs(ctx context.Context, exec SQLExecutor, userIDs []int) ([]*models.UserAvailability, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	executor := r.getExecutor(exec)
	query := `SELECT ` + availabilityColumns + `
		FROM user_availabilities
		WHERE user_id = ANY($1)
		ORDER BY user_id, start_offset`

	return r.queryAvailabilities(ctx, executor, query, pq.Array(userIDs))
}

func (r *postgresAvailabilityRepository) ListOverlappingForUpdate(ctx context.Context, exec SQLExecutor, userID, startOffset, endOffset int, excludeID *int) ([]*models.UserAvailability, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + availabilityColumns + `
		FROM user_availabilities
		WHERE user_id = $1
		  AND start_offset <= $2
		  AND end_offset >= $3
		  AND ($4::int IS NULL OR id <> $4)
		ORDER BY start_offset, id
		FOR UPDATE`

	return r.queryAvailabilities(ctx, executor, query, userID, endOffset, startOffset, excludeID)
}

func (r *postgresAvailabilityRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, userID, id int) (*models.UserAvailability, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + availabilityColumns + `
		FROM user_availabilities
		WHERE user_id = $1 AND id = $2
		FOR UPDATE`

	a := &models.UserAvailability{}
	err := executor.QueryRowContext(ctx, query, userID, id).
		Scan(&a.ID, &a.UserID, &a.StartOffset, &a.EndOffset, &a.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func (r *postgresAvailabilityRepository) ListByUser(ctx context.Context, userID int) ([]*models.UserAvailability, error) {
	query := `SELECT ` + availabilityColumns + `
		FROM user_availabilities
		WHERE user_id = $1
		ORDER BY start_offset`

	return r.queryAvailabilities(ctx, r.db, query, userID)
}

func (r *postgresAvailabilityRepository) queryAvailabilities(ctx context.Context, executor SQLExecutor, query string, args ...interface{}) ([]*models.UserAvailability, error) {
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*models.UserAvailability, 0)
	for rows.Next() {
		var a models.UserAvailability
		if scanErr := rows.Scan(&a.ID, &a.UserID, &a.StartOffset, &a.EndOffset, &a.CreatedAt); scanErr != nil {
			return nil, scanErr
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *postgresAvailabilityRepository) Create(ctx context.Context, exec SQLExecutor, a *models.UserAvailability) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO user_availabilities (user_id, start_offset, end_offset)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	return executor.QueryRowContext(ctx, query, a.UserID, a.StartOffset, a.EndOffset).
		Scan(&a.ID, &a.CreatedAt)
}

func (r *postgresAvailabilityRepository) UpdateOffsets(ctx context.Context, exec SQLExecutor, id, startOffset, endOffset int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE user_availabilities SET start_offset = $1, end_offset = $2 WHERE id = $3`,
		startOffset, endOffset, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, sql.ErrNoRows)
}

func (r *postgresAvailabilityRepository) DeleteByIDs(ctx context.Context, exec SQLExecutor, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM user_availabilities WHERE id = ANY($1)`, pq.Array(ids))
	return err
}

func (r *postgresAvailabilityRepository) Delete(ctx context.Context, userID, id int) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM user_availabilities WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, sql.ErrNoRows)
}
