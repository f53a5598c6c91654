package handlers

import (
	"net/http"

	"github.com/aoe4hub/tournament-engine/middleware"
	"github.com/aoe4hub/tournament-engine/services"
)

type AvailabilityHandler struct {
	availabilityService *services.AvailabilityService
}

func NewAvailabilityHandler(availabilityService *services.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availabilityService: availabilityService}
}

type availabilityInput struct {
	StartOffset int `json:"start_offset"`
	EndOffset   int `json:"end_offset"`
}

// Create handles POST /availability.
func (h *AvailabilityHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, "authentication required")
		return
	}

	var input availabilityInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	availability, created, err := h.availabilityService.CreateOrMerge(r.Context(), userID, input.StartOffset, input.EndOffset, nil)
	if err != nil {
		mapServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	if err := writeJSON(w, status, jsonResponse{"availability": availability}); err != nil {
		serverErrorResponse(w, err)
	}
}

// Update handles PUT /availability/{availabilityID}.
func (h *AvailabilityHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, "authentication required")
		return
	}

	id, err := getIDFromURL(r, "availabilityID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	var input availabilityInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	availability, _, err := h.availabilityService.CreateOrMerge(r.Context(), userID, input.StartOffset, input.EndOffset, &id)
	if err != nil {
		mapServiceError(w, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"availability": availability}); err != nil {
		serverErrorResponse(w, err)
	}
}

// List handles GET /availability.
func (h *AvailabilityHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, "authentication required")
		return
	}

	availabilities, err := h.availabilityService.List(r.Context(), userID)
	if err != nil {
		mapServiceError(w, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"availabilities": availabilities}); err != nil {
		serverErrorResponse(w, err)
	}
}

// Delete handles DELETE /availability/{availabilityID}.
func (h *AvailabilityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, "authentication required")
		return
	}

	id, err := getIDFromURL(r, "availabilityID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	if err := h.availabilityService.Delete(r.Context(), userID, id); err != nil {
		mapServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
