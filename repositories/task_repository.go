package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/aoe4hub/tournament-engine/models"
	"github.com/lib/pq"
)

var ErrTaskNotFound = errors.New("task not found")

type TaskRepository interface {
	Enqueue(ctx context.Context, task *models.Task) error
	// ClaimNext picks the oldest runnable pending task, marks it RUNNING and
	// returns it. FOR UPDATE SKIP LOCKED keeps concurrent workers from
	// claiming the same row. Returns nil when the queue is empty.
	ClaimNext(ctx context.Context, names []string) (*models.Task, error)
	MarkSucceeded(ctx context.Context, id int, result json.RawMessage) error
	// Reschedule records a failed attempt and either re-queues the task at
	// runAt or marks it FAILED when attempts are exhausted.
	Reschedule(ctx context.Context, id int, attempts int, lastError string, runAt time.Time, exhausted bool) error
	GetByID(ctx context.Context, id int) (*models.Task, error)
}

type postgresTaskRepository struct {
	db *sql.DB
}

func NewPostgresTaskRepository(db *sql.DB) TaskRepository {
	return &postgresTaskRepository{db: db}
}

func (r *postgresTaskRepository) Enqueue(ctx context.Context, t *models.Task) error {
	query := `
		INSERT INTO tasks (name, args, status, attempts, max_attempts, run_at)
		VALUES ($1, $2, $3, 0, $4, $5)
		RETURNING id, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		t.Name, t.Args, models.TaskStatusPending, t.MaxAttempts, t.RunAt,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

func (r *postgresTaskRepository) ClaimNext(ctx context.Context, names []string) (*models.Task, error) {
	query := `
		UPDATE tasks
		SET status = $1, updated_at = NOW()
		WHERE id = (
			SELECT id FROM tasks
			WHERE status = $2 AND run_at <= NOW() AND name = ANY($3)
			ORDER BY run_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, name, args, status, attempts, max_attempts, run_at, result, last_error, created_at, updated_at`

	t := &models.Task{}
	err := r.db.QueryRowContext(ctx, query,
		models.TaskStatusRunning, models.TaskStatusPending, pq.Array(names),
	).Scan(
		&t.ID, &t.Name, &t.Args, &t.Status, &t.Attempts, &t.MaxAttempts,
		&t.RunAt, &t.Result, &t.LastError, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTaskRepository) MarkSucceeded(ctx context.Context, id int, result json.RawMessage) error {
	query := `
		UPDATE tasks
		SET status = $1, result = $2, updated_at = NOW()
		WHERE id = $3`

	res, err := r.db.ExecContext(ctx, query, models.TaskStatusSucceeded, result, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(res, ErrTaskNotFound)
}

func (r *postgresTaskRepository) Reschedule(ctx context.Context, id int, attempts int, lastError string, runAt time.Time, exhausted bool) error {
	status := models.TaskStatusPending
	if exhausted {
		status = models.TaskStatusFailed
	}
	query := `
		UPDATE tasks
		SET status = $1, attempts = $2, last_error = $3, run_at = $4, updated_at = NOW()
		WHERE id = $5`

	res, err := r.db.ExecContext(ctx, query, status, attempts, lastError, runAt, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(res, ErrTaskNotFound)
}

func (r *postgresTaskRepository) GetByID(ctx context.Context, id int) (*models.Task, error) {
	query := `
		SELECT id, name, args, status, attempts, max_attempts, run_at, result, last_error, created_at, updated_at
		FROM tasks
		WHERE id = $1`

	t := &models.Task{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.Args, &t.Status, &t.Attempts, &t.MaxAttempts,
		&t.RunAt, &t.Result, &t.LastError, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return t, nil
}
