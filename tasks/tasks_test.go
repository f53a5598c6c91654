package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aoe4hub/tournament-engine/models"
)

type rescheduleCall struct {
	id        int
	attempts  int
	lastError string
	runAt     time.Time
	exhausted bool
}

type fakeTaskRepo struct {
	enqueued    []*models.Task
	reschedules []rescheduleCall
	succeeded   []int
}

func (r *fakeTaskRepo) Enqueue(ctx context.Context, task *models.Task) error {
	task.ID = len(r.enqueued) + 1
	task.Status = models.TaskStatusPending
	r.enqueued = append(r.enqueued, task)
	return nil
}

func (r *fakeTaskRepo) ClaimNext(ctx context.Context, names []string) (*models.Task, error) {
	return nil, nil
}

func (r *fakeTaskRepo) MarkSucceeded(ctx context.Context, id int, result json.RawMessage) error {
	r.succeeded = append(r.succeeded, id)
	return nil
}

func (r *fakeTaskRepo) Reschedule(ctx context.Context, id int, attempts int, lastError string, runAt time.Time, exhausted bool) error {
	r.reschedules = append(r.reschedules, rescheduleCall{
		id:        id,
		attempts:  attempts,
		lastError: lastError,
		runAt:     runAt,
		exhausted: exhausted,
	})
	return nil
}

func (r *fakeTaskRepo) GetByID(ctx context.Context, id int) (*models.Task, error) {
	for _, t := range r.enqueued {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnqueueBuildStructure(t *testing.T) {
	repo := &fakeTaskRepo{}
	queue := NewQueue(repo)

	task, err := queue.EnqueueBuildStructure(context.Background(), 42, models.StageTypeSingleElim)
	require.NoError(t, err)

	assert.Equal(t, TaskBuildTournamentStructure, task.Name)
	assert.Equal(t, defaultMaxAttempts, task.MaxAttempts)
	assert.Equal(t, models.TaskStatusPending, task.Status)
	assert.WithinDuration(t, time.Now(), task.RunAt, time.Second)

	var args BuildStructureArgs
	require.NoError(t, json.Unmarshal(task.Args, &args))
	assert.Equal(t, 42, args.TournamentID)
	assert.Equal(t, models.StageTypeSingleElim, args.Format)
}

func TestWorkerFailReschedulesWithBackoff(t *testing.T) {
	repo := &fakeTaskRepo{}
	w := &Worker{taskRepo: repo, logger: testLogger()}

	task := &models.Task{ID: 9, Name: TaskBuildTournamentStructure, Attempts: 0, MaxAttempts: 5}
	w.fail(context.Background(), task, errors.New("boom"))

	require.Len(t, repo.reschedules, 1)
	call := repo.reschedules[0]
	assert.Equal(t, 9, call.id)
	assert.Equal(t, 1, call.attempts)
	assert.Equal(t, "boom", call.lastError)
	assert.False(t, call.exhausted)
	assert.WithinDuration(t, time.Now().Add(baseBackoff), call.runAt, time.Second)
}

func TestWorkerFailBackoffDoublesPerAttempt(t *testing.T) {
	repo := &fakeTaskRepo{}
	w := &Worker{taskRepo: repo, logger: testLogger()}

	task := &models.Task{ID: 9, Name: TaskBuildTournamentStructure, Attempts: 2, MaxAttempts: 5}
	w.fail(context.Background(), task, errors.New("boom"))

	require.Len(t, repo.reschedules, 1)
	call := repo.reschedules[0]
	assert.Equal(t, 3, call.attempts)
	assert.False(t, call.exhausted)
	assert.WithinDuration(t, time.Now().Add(2*time.Minute), call.runAt, time.Second)
}

func TestWorkerFailMarksExhausted(t *testing.T) {
	repo := &fakeTaskRepo{}
	w := &Worker{taskRepo: repo, logger: testLogger()}

	task := &models.Task{ID: 9, Name: TaskBuildTournamentStructure, Attempts: 4, MaxAttempts: 5}
	w.fail(context.Background(), task, errors.New("boom"))

	require.Len(t, repo.reschedules, 1)
	assert.Equal(t, 5, repo.reschedules[0].attempts)
	assert.True(t, repo.reschedules[0].exhausted)
}

func TestWorkerFailCapsBackoff(t *testing.T) {
	repo := &fakeTaskRepo{}
	w := &Worker{taskRepo: repo, logger: testLogger()}

	task := &models.Task{ID: 9, Name: TaskBuildTournamentStructure, Attempts: 9, MaxAttempts: 20}
	w.fail(context.Background(), task, errors.New("boom"))

	require.Len(t, repo.reschedules, 1)
	assert.WithinDuration(t, time.Now().Add(maxBackoff), repo.reschedules[0].runAt, time.Second)
}

func TestWorkerRejectsUnknownTaskName(t *testing.T) {
	w := &Worker{logger: testLogger()}

	_, err := w.runTask(context.Background(), &models.Task{Name: "mystery_task"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown task name")
}
