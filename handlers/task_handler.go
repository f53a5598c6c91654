package handlers

import (
	"errors"
	"net/http"

	"github.com/aoe4hub/tournament-engine/repositories"
	"github.com/aoe4hub/tournament-engine/tasks"
)

type TaskHandler struct {
	queue *tasks.Queue
}

func NewTaskHandler(queue *tasks.Queue) *TaskHandler {
	return &TaskHandler{queue: queue}
}

// GetByID handles GET /tasks/{taskID}, used to poll a background job started
// with POST /tournaments/{id}/start.
func (h *TaskHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "taskID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	task, err := h.queue.GetTask(r.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrTaskNotFound) {
			notFoundResponse(w)
			return
		}
		serverErrorResponse(w, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"task": task}); err != nil {
		serverErrorResponse(w, err)
	}
}
