package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/aoe4hub/tournament-engine/models"
	"github.com/lib/pq"
)

var (
	ErrParticipantNotFound = errors.New("participant not found")
	ErrParticipantConflict = errors.New("user has already joined this tournament")
)

type ParticipantRepository interface {
	Create(ctx context.Context, exec SQLExecutor, p *models.TournamentParticipant) error
	Exists(ctx context.Context, exec SQLExecutor, tournamentID, userID int) (bool, error)
	Delete(ctx context.Context, exec SQLExecutor, tournamentID, userID int) error
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresParticipantRepository) Create(ctx context.Context, exec SQLExecutor, p *models.TournamentParticipant) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournament_participants (tournament_id, user_id)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query, p.TournamentID, p.UserID).
		Scan(&p.ID, &p.CreatedAt)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrParticipantConflict
	}
	return err
}

func (r *postgresParticipantRepository) Exists(ctx context.Context, exec SQLExecutor, tournamentID, userID int) (bool, error) {
	executor := r.getExecutor(exec)
	var exists bool
	err := executor.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tournament_participants WHERE tournament_id = $1 AND user_id = $2)`,
		tournamentID, userID,
	).Scan(&exists)
	return exists, err
}

func (r *postgresParticipantRepository) Delete(ctx context.Context, exec SQLExecutor, tournamentID, userID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx,
		`DELETE FROM tournament_participants WHERE tournament_id = $1 AND user_id = $2`,
		tournamentID, userID)
	return err
}
