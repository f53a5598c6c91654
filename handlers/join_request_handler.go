package handlers

import (
	"net/http"

	"github.com/aoe4hub/tournament-engine/middleware"
	"github.com/aoe4hub/tournament-engine/services"
)

type JoinRequestHandler struct {
	requestService *services.JoinRequestService
}

func NewJoinRequestHandler(requestService *services.JoinRequestService) *JoinRequestHandler {
	return &JoinRequestHandler{requestService: requestService}
}

type createJoinRequestInput struct {
	EntrantID int `json:"entrant_id"`
}

// Create handles POST /tournaments/{tournamentID}/join-requests.
func (h *JoinRequestHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	var input createJoinRequestInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	request, err := h.requestService.Create(r.Context(), tournamentID, userID, input.EntrantID)
	if err != nil {
		mapServiceError(w, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"request": request}); err != nil {
		serverErrorResponse(w, err)
	}
}

type respondJoinRequestInput struct {
	Accept bool `json:"accept"`
}

// Respond handles POST /tournaments/{tournamentID}/join-requests/{requestID}/respond.
func (h *JoinRequestHandler) Respond(w http.ResponseWriter, r *http.Request) {
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
	requestID, err := getIDFromURL(r, "requestID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	var input respondJoinRequestInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	request, err := h.requestService.Respond(r.Context(), tournamentID, userID, requestID, input.Accept)
	if err != nil {
		mapServiceError(w, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"request": request}); err != nil {
		serverErrorResponse(w, err)
	}
}

// Cancel handles POST /tournaments/{tournamentID}/join-requests/{requestID}/cancel.
func (h *JoinRequestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
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
	requestID, err := getIDFromURL(r, "requestID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	request, err := h.requestService.Cancel(r.Context(), tournamentID, userID, requestID)
	if err != nil {
		mapServiceError(w, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"request": request}); err != nil {
		serverErrorResponse(w, err)
	}
}
