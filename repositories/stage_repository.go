package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/aoe4hub/tournament-engine/models"
	"github.com/lib/pq"
)

var (
	ErrStageNotFound      = errors.New("stage not found")
	ErrStageOrderConflict = errors.New("stage order conflict for this tournament")
)

type StageRepository interface {
	Create(ctx context.Context, exec SQLExecutor, stage *models.TournamentStage) error
	ExistsByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (bool, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.TournamentStage, error)
}

type postgresStageRepository struct {
	db *sql.DB
}

func NewPostgresStageRepository(db *sql.DB) StageRepository {
	return &postgresStageRepository{db: db}
}

func (r *postgresStageRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresStageRepository) Create(ctx context.Context, exec SQLExecutor, s *models.TournamentStage) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournament_stages (tournament_id, type, stage_order, best_of_default, config)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		s.TournamentID, s.Type, s.Order, s.BestOfDefault, s.Config,
	).Scan(&s.ID, &s.CreatedAt)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		if pqErr.Constraint == "tournament_stages_tournament_id_stage_order_key" {
			return ErrStageOrderConflict
		}
	}
	return err
}

func (r *postgresStageRepository) ExistsByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (bool, error) {
	executor := r.getExecutor(exec)
	var exists bool
	err := executor.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tournament_stages WHERE tournament_id = $1)`, tournamentID,
	).Scan(&exists)
	return exists, err
}

func (r *postgresStageRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.TournamentStage, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, tournament_id, type, stage_order, best_of_default, config, created_at
		FROM tournament_stages
		WHERE tournament_id = $1
		ORDER BY stage_order`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stages := make([]*models.TournamentStage, 0)
	for rows.Next() {
		var s models.TournamentStage
		if scanErr := rows.Scan(&s.ID, &s.TournamentID, &s.Type, &s.Order, &s.BestOfDefault, &s.Config, &s.CreatedAt); scanErr != nil {
			return nil, scanErr
		}
		stages = append(stages, &s)
	}
	return stages, rows.Err()
}
