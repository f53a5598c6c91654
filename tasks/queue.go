package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aoe4hub/tournament-engine/models"
	"github.com/aoe4hub/tournament-engine/repositories"
)

const (
	TaskBuildTournamentStructure = "build_tournament_structure_task"

	defaultMaxAttempts = 5
)

// BuildStructureArgs is the payload of a structure-build task.
type BuildStructureArgs struct {
	TournamentID int              `json:"tournament_id"`
	Format       models.StageType `json:"format"`
}

// Queue enqueues durable background jobs into the tasks table.
type Queue struct {
	taskRepo repositories.TaskRepository
}

func NewQueue(taskRepo repositories.TaskRepository) *Queue {
	return &Queue{taskRepo: taskRepo}
}

func (q *Queue) EnqueueBuildStructure(ctx context.Context, tournamentID int, format models.StageType) (*models.Task, error) {
	args, err := json.Marshal(BuildStructureArgs{TournamentID: tournamentID, Format: format})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task args: %w", err)
	}

	task := &models.Task{
		Name:        TaskBuildTournamentStructure,
		Args:        args,
		MaxAttempts: defaultMaxAttempts,
		RunAt:       time.Now(),
	}
	if err := q.taskRepo.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}
	return task, nil
}

func (q *Queue) GetTask(ctx context.Context, id int) (*models.Task, error) {
	return q.taskRepo.GetByID(ctx, id)
}
