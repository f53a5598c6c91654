package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/aoe4hub/tournament-engine/middleware"
	"github.com/aoe4hub/tournament-engine/services"
)

var errInviteTokenRequired = errors.New("invite_token is required")

type JoinHandler struct {
	joinService *services.JoinService
}

func NewJoinHandler(joinService *services.JoinService) *JoinHandler {
	return &JoinHandler{joinService: joinService}
}

// JoinPublic handles POST /tournaments/{tournamentID}/join.
func (h *JoinHandler) JoinPublic(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.joinService.JoinPublic(r.Context(), tournamentID, userID)
	if err != nil {
		mapServiceError(w, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, result); err != nil {
		serverErrorResponse(w, err)
	}
}

type joinByInviteInput struct {
	InviteToken string `json:"invite_token"`
}

// JoinByInvite handles POST /tournaments/join-by-invite.
func (h *JoinHandler) JoinByInvite(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, "authentication required")
		return
	}

	var input joinByInviteInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}
	if input.InviteToken == "" {
		badRequestResponse(w, errInviteTokenRequired)
		return
	}

	result, err := h.joinService.JoinByInvite(r.Context(), input.InviteToken, userID)
	if err != nil {
		mapServiceError(w, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, result); err != nil {
		serverErrorResponse(w, err)
	}
}

type createInviteInput struct {
	MaxUses   *int       `json:"max_uses"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// CreateInvite handles POST /tournaments/{tournamentID}/invites.
func (h *JoinHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
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

	var input createInviteInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	invite, err := h.joinService.CreateInvite(r.Context(), tournamentID, userID, input.MaxUses, input.ExpiresAt)
	if err != nil {
		mapServiceError(w, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"invite": invite}); err != nil {
		serverErrorResponse(w, err)
	}
}
