package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aoe4hub/tournament-engine/models"
	"github.com/aoe4hub/tournament-engine/realtime"
	"github.com/aoe4hub/tournament-engine/repositories"
	"github.com/aoe4hub/tournament-engine/services"
)

const (
	pollInterval = 2 * time.Second
	baseBackoff  = 30 * time.Second
	maxBackoff   = 10 * time.Minute
)

// BuildStructureResultPayload is the stored result of a finished
// structure-build task: the build summary plus the scheduling outcome.
type BuildStructureResultPayload struct {
	TournamentID   int                      `json:"tournament_id"`
	StageID        int                      `json:"stage_id"`
	MatchesCreated int                      `json:"matches_created"`
	Scheduling     *services.ScheduleResult `json:"scheduling"`
}

// Worker polls the tasks table and executes claimed jobs. Several workers can
// run concurrently, in one process or many; the claim query keeps them from
// stepping on each other.
type Worker struct {
	taskRepo   repositories.TaskRepository
	structure  *services.StructureService
	scheduling *services.SchedulingService
	hub        *realtime.Hub
	logger     *slog.Logger
}

func NewWorker(
	taskRepo repositories.TaskRepository,
	structure *services.StructureService,
	scheduling *services.SchedulingService,
	hub *realtime.Hub,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		taskRepo:   taskRepo,
		structure:  structure,
		scheduling: scheduling,
		hub:        hub,
		logger:     logger,
	}
}

// Run starts n polling loops and blocks until ctx is canceled.
func (w *Worker) Run(ctx context.Context, n int) error {
	if n < 1 {
		n = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			return w.loop(gctx)
		})
	}
	return g.Wait()
}

func (w *Worker) loop(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		task, err := w.taskRepo.ClaimNext(ctx, []string{TaskBuildTournamentStructure})
		if err != nil {
			w.logger.Error("failed to claim task", "error", err)
		} else if task != nil {
			w.execute(ctx, task)
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Worker) execute(ctx context.Context, task *models.Task) {
	result, err := w.runTask(ctx, task)
	if err != nil {
		w.fail(ctx, task, err)
		return
	}

	if markErr := w.taskRepo.MarkSucceeded(ctx, task.ID, result); markErr != nil {
		w.logger.Error("failed to mark task succeeded", "task_id", task.ID, "error", markErr)
	}
}

func (w *Worker) runTask(ctx context.Context, task *models.Task) (json.RawMessage, error) {
	switch task.Name {
	case TaskBuildTournamentStructure:
		return w.runBuildStructure(ctx, task)
	default:
		return nil, fmt.Errorf("unknown task name: %s", task.Name)
	}
}

// runBuildStructure builds the tournament structure and then schedules its
// matches. A scheduling validation failure (missing availability, no feasible
// slots) does not fail the task: the structure is already built, so the task
// records an empty scheduling result instead of retrying.
func (w *Worker) runBuildStructure(ctx context.Context, task *models.Task) (json.RawMessage, error) {
	var args BuildStructureArgs
	if err := json.Unmarshal(task.Args, &args); err != nil {
		return nil, fmt.Errorf("invalid task args: %w", err)
	}

	buildResult, err := w.structure.BuildStructure(ctx, args.TournamentID, args.Format)
	if err != nil {
		return nil, err
	}

	w.hub.BroadcastTournamentEvent(args.TournamentID, realtime.EventStructureBuilt, buildResult)

	scheduleResult, err := w.scheduling.ScheduleTournamentMatches(ctx, args.TournamentID)
	if err != nil {
		if !services.IsValidationError(err) {
			return nil, err
		}
		w.logger.Warn("scheduling skipped after structure build",
			"tournament_id", args.TournamentID,
			"reason", err.Error(),
		)
		scheduleResult = &services.ScheduleResult{TournamentID: args.TournamentID}
	} else {
		w.hub.BroadcastTournamentEvent(args.TournamentID, realtime.EventMatchesScheduled, scheduleResult)
	}

	payload := BuildStructureResultPayload{
		TournamentID:   buildResult.TournamentID,
		StageID:        buildResult.StageID,
		MatchesCreated: buildResult.MatchesCreated,
		Scheduling:     scheduleResult,
	}
	return json.Marshal(payload)
}

func (w *Worker) fail(ctx context.Context, task *models.Task, taskErr error) {
	attempts := task.Attempts + 1
	exhausted := attempts >= task.MaxAttempts

	backoff := baseBackoff << (attempts - 1)
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	runAt := time.Now().Add(backoff)

	w.logger.Error("task attempt failed",
		"task_id", task.ID,
		"name", task.Name,
		"attempt", attempts,
		"max_attempts", task.MaxAttempts,
		"exhausted", exhausted,
		"error", taskErr,
	)

	if err := w.taskRepo.Reschedule(ctx, task.ID, attempts, taskErr.Error(), runAt, exhausted); err != nil {
		w.logger.Error("failed to reschedule task", "task_id", task.ID, "error", err)
	}
}
