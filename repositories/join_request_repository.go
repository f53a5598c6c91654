package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aoe4hub/tournament-engine/models"
)

var ErrJoinRequestNotFound = errors.New("team join request not found")

type JoinRequestRepository interface {
	// GetOrCreate returns the existing request for (tournament, entrant,
	// requester) or creates a PENDING one. The bool reports whether a row was
	// created.
	GetOrCreate(ctx context.Context, exec SQLExecutor, req *models.TournamentTeamJoinRequest) (bool, error)
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, tournamentID, id int) (*models.TournamentTeamJoinRequest, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TeamJoinRequestStatus, respondedAt time.Time) error
	// CancelOtherPending cancels every other PENDING request of the requester
	// in the tournament, used once one request is accepted.
	CancelOtherPending(ctx context.Context, exec SQLExecutor, tournamentID, requesterID, acceptedID int, respondedAt time.Time) error
}

type postgresJoinRequestRepository struct {
	db *sql.DB
}

func NewPostgresJoinRequestRepository(db *sql.DB) JoinRequestRepository {
	return &postgresJoinRequestRepository{db: db}
}

func (r *postgresJoinRequestRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresJoinRequestRepository) GetOrCreate(ctx context.Context, exec SQLExecutor, req *models.TournamentTeamJoinRequest) (bool, error) {
	executor := r.getExecutor(exec)

	insert := `
		INSERT INTO tournament_team_join_requests (tournament_id, entrant_id, requester_id, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tournament_id, entrant_id, requester_id) DO NOTHING
		RETURNING id, status, responded_at, created_at`

	err := executor.QueryRowContext(ctx, insert,
		req.TournamentID, req.EntrantID, req.RequesterID, models.TeamJoinRequestPending,
	).Scan(&req.ID, &req.Status, &req.RespondedAt, &req.CreatedAt)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	get := `
		SELECT id, tournament_id, entrant_id, requester_id, status, responded_at, created_at
		FROM tournament_team_join_requests
		WHERE tournament_id = $1 AND entrant_id = $2 AND requester_id = $3`

	err = executor.QueryRowContext(ctx, get, req.TournamentID, req.EntrantID, req.RequesterID).Scan(
		&req.ID, &req.TournamentID, &req.EntrantID, &req.RequesterID,
		&req.Status, &req.RespondedAt, &req.CreatedAt,
	)
	return false, err
}

func (r *postgresJoinRequestRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, tournamentID, id int) (*models.TournamentTeamJoinRequest, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, tournament_id, entrant_id, requester_id, status, responded_at, created_at
		FROM tournament_team_join_requests
		WHERE tournament_id = $1 AND id = $2
		FOR UPDATE`

	req := &models.TournamentTeamJoinRequest{}
	err := executor.QueryRowContext(ctx, query, tournamentID, id).Scan(
		&req.ID, &req.TournamentID, &req.EntrantID, &req.RequesterID,
		&req.Status, &req.RespondedAt, &req.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJoinRequestNotFound
		}
		return nil, err
	}
	return req, nil
}

func (r *postgresJoinRequestRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TeamJoinRequestStatus, respondedAt time.Time) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE tournament_team_join_requests SET status = $1, responded_at = $2 WHERE id = $3`,
		status, respondedAt, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrJoinRequestNotFound)
}

func (r *postgresJoinRequestRepository) CancelOtherPending(ctx context.Context, exec SQLExecutor, tournamentID, requesterID, acceptedID int, respondedAt time.Time) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `
		UPDATE tournament_team_join_requests
		SET status = $1, responded_at = $2
		WHERE tournament_id = $3 AND requester_id = $4 AND status = $5 AND id <> $6`,
		models.TeamJoinRequestCanceled, respondedAt, tournamentID, requesterID,
		models.TeamJoinRequestPending, acceptedID)
	return err
}
