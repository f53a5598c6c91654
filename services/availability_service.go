package services

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/aoe4hub/tournament-engine/models"
	"github.com/aoe4hub/tournament-engine/repositories"
)

const (
	weekSeconds = 7 * 86400

	// availabilityMaxSeconds caps one window at 16 hours; merges that would
	// exceed it are rejected rather than silently clipped.
	availabilityMaxSeconds = 16 * 3600
)

// AvailabilityService maintains each user's weekly availability windows and
// keeps them non-overlapping: a new or updated window absorbs everything it
// touches.
type AvailabilityService struct {
	db     *sql.DB
	repo   repositories.AvailabilityRepository
	logger *slog.Logger
}

func NewAvailabilityService(db *sql.DB, repo repositories.AvailabilityRepository, logger *slog.Logger) *AvailabilityService {
	return &AvailabilityService{db: db, repo: repo, logger: logger}
}

// CreateOrMerge stores the window [startOffset, endOffset] for the user,
// merging it with any overlapping windows. With instanceID set it acts as an
// update of that window. The bool reports whether a new row was created.
func (s *AvailabilityService) CreateOrMerge(ctx context.Context, userID, startOffset, endOffset int, instanceID *int) (*models.UserAvailability, bool, error) {
	var (
		out     *models.UserAvailability
		created bool
	)
	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		var txErr error
		out, created, txErr = s.createOrMergeTx(ctx, tx, userID, startOffset, endOffset, instanceID)
		return txErr
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

func (s *AvailabilityService) createOrMergeTx(ctx context.Context, exec repositories.SQLExecutor, userID, startOffset, endOffset int, instanceID *int) (*models.UserAvailability, bool, error) {
	if startOffset < 0 || endOffset > weekSeconds {
		return nil, false, NewValidationError("availability offsets must lie within one week")
	}
	if endOffset <= startOffset {
		return nil, false, NewValidationError("end must be after start (across the week)")
	}
	if endOffset-startOffset > availabilityMaxSeconds {
		return nil, false, NewValidationError("availability span cannot exceed 16 hours")
	}

	var current *models.UserAvailability
	if instanceID != nil {
		var err error
		current, err = s.repo.GetForUpdate(ctx, exec, userID, *instanceID)
		if err != nil {
			return nil, false, err
		}
		if current == nil {
			return nil, false, NewValidationError("availability not found")
		}
	}

	overlaps, err := s.repo.ListOverlappingForUpdate(ctx, exec, userID, startOffset, endOffset, instanceID)
	if err != nil {
		return nil, false, err
	}

	if current != nil {
		overlaps = append([]*models.UserAvailability{current}, overlaps...)
	}

	if len(overlaps) == 0 {
		out := &models.UserAvailability{
			UserID:      userID,
			StartOffset: startOffset,
			EndOffset:   endOffset,
		}
		if err := s.repo.Create(ctx, exec, out); err != nil {
			return nil, false, err
		}

		s.logger.Info("created user availability",
			"user_id", userID,
			"availability_id", out.ID,
		)
		return out, true, nil
	}

	mergedStart := startOffset
	mergedEnd := endOffset
	for _, o := range overlaps {
		if o.StartOffset < mergedStart {
			mergedStart = o.StartOffset
		}
		if o.EndOffset > mergedEnd {
			mergedEnd = o.EndOffset
		}
	}
	if mergedEnd-mergedStart > availabilityMaxSeconds {
		return nil, false, NewValidationError("merged availability span cannot exceed 16 hours")
	}

	target := overlaps[0]
	if err := s.repo.UpdateOffsets(ctx, exec, target.ID, mergedStart, mergedEnd); err != nil {
		return nil, false, err
	}
	target.StartOffset = mergedStart
	target.EndOffset = mergedEnd

	var deleteIDs []int
	for _, o := range overlaps[1:] {
		if o.ID != target.ID {
			deleteIDs = append(deleteIDs, o.ID)
		}
	}
	if err := s.repo.DeleteByIDs(ctx, exec, deleteIDs); err != nil {
		return nil, false, err
	}

	s.logger.Info("merged user availability",
		"user_id", userID,
		"target_id", target.ID,
		"deleted", len(deleteIDs),
	)
	return target, false, nil
}

func (s *AvailabilityService) List(ctx context.Context, userID int) ([]*models.UserAvailability, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *AvailabilityService) Delete(ctx context.Context, userID, id int) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
