package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/aoe4hub/tournament-engine/models"
)

var ErrInviteNotFound = errors.New("invite not found")

type InviteRepository interface {
	Create(ctx context.Context, invite *models.TournamentInvite) error
	// GetByTokenForUpdate locks the invite row so use counting is atomic under
	// concurrent joins.
	GetByTokenForUpdate(ctx context.Context, exec SQLExecutor, token string) (*models.TournamentInvite, error)
	IncrementUses(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresInviteRepository struct {
	db *sql.DB
}

func NewPostgresInviteRepository(db *sql.DB) InviteRepository {
	return &postgresInviteRepository{db: db}
}

func (r *postgresInviteRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresInviteRepository) Create(ctx context.Context, inv *models.TournamentInvite) error {
	query := `
		INSERT INTO tournament_invites (tournament_id, token, created_by_id, max_uses, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, uses, created_at`

	return r.db.QueryRowContext(ctx, query,
		inv.TournamentID, inv.Token, inv.CreatedByID, inv.MaxUses, inv.ExpiresAt, inv.IsActive,
	).Scan(&inv.ID, &inv.Uses, &inv.CreatedAt)
}

func (r *postgresInviteRepository) GetByTokenForUpdate(ctx context.Context, exec SQLExecutor, token string) (*models.TournamentInvite, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, tournament_id, token, created_by_id, max_uses, uses, expires_at, is_active, created_at
		FROM tournament_invites
		WHERE token = $1
		FOR UPDATE`

	inv := &models.TournamentInvite{}
	err := executor.QueryRowContext(ctx, query, token).Scan(
		&inv.ID, &inv.TournamentID, &inv.Token, &inv.CreatedByID,
		&inv.MaxUses, &inv.Uses, &inv.ExpiresAt, &inv.IsActive, &inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInviteNotFound
		}
		return nil, err
	}
	return inv, nil
}

func (r *postgresInviteRepository) IncrementUses(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE tournament_invites SET uses = uses + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrInviteNotFound)
}
