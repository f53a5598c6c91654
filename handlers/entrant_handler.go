package handlers

import (
	"net/http"

	"github.com/aoe4hub/tournament-engine/middleware"
	"github.com/aoe4hub/tournament-engine/services"
)

type EntrantHandler struct {
	entrantService *services.EntrantService
}

func NewEntrantHandler(entrantService *services.EntrantService) *EntrantHandler {
	return &EntrantHandler{entrantService: entrantService}
}

type createEntrantInput struct {
	Name string `json:"name"`
}

// Create handles POST /tournaments/{tournamentID}/entrants.
func (h *EntrantHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, "authentication required")
		return
	}

	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	var input createEntrantInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	entrant, err := h.entrantService.CreateEntrant(r.Context(), tournamentID, userID, input.Name)
	if err != nil {
		mapServiceError(w, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"entrant": entrant}); err != nil {
		serverErrorResponse(w, err)
	}
}

// Leave handles POST /tournaments/{tournamentID}/entrants/{entrantID}/leave.
func (h *EntrantHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, "authentication required")
		return
	}

	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	entrantID, err := getIDFromURL(r, "entrantID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	if err := h.entrantService.Leave(r.Context(), tournamentID, userID, entrantID); err != nil {
		mapServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemovePlayer handles DELETE /tournaments/{tournamentID}/players/{userID}.
func (h *EntrantHandler) RemovePlayer(w http.ResponseWriter, r *http.Request) {
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, "authentication required")
		return
	}

	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	if err := h.entrantService.RemovePlayer(r.Context(), tournamentID, actorID, userID); err != nil {
		mapServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
