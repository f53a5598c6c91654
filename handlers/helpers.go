package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aoe4hub/tournament-engine/services"
)

type jsonResponse map[string]interface{}

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	maxBytes := 1_048_576 // 1MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)
		case err.Error() == "http: request body too large":
			return fmt.Errorf("body must not be larger than %d bytes", maxBytes)
		case errors.As(err, &invalidUnmarshalError):
			panic(err)
		default:
			return err
		}
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	js, err := json.Marshal(data)
	if err != nil {
		return err
	}
	js = append(js, '\n')

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

func errorResponse(w http.ResponseWriter, status int, message interface{}) {
	if err := writeJSON(w, status, jsonResponse{"error": message}); err != nil {
		slog.Error("failed to write error response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func serverErrorResponse(w http.ResponseWriter, err error) {
	slog.Error("internal server error", "error", err)
	errorResponse(w, http.StatusInternalServerError, "the server encountered a problem and could not process your request")
}

func badRequestResponse(w http.ResponseWriter, err error) {
	errorResponse(w, http.StatusBadRequest, err.Error())
}

func notFoundResponse(w http.ResponseWriter) {
	errorResponse(w, http.StatusNotFound, "the requested resource could not be found")
}

func conflictResponse(w http.ResponseWriter, message string) {
	errorResponse(w, http.StatusConflict, message)
}

func unauthorizedResponse(w http.ResponseWriter, message string) {
	errorResponse(w, http.StatusUnauthorized, message)
}

func forbiddenResponse(w http.ResponseWriter) {
	errorResponse(w, http.StatusForbidden, "you do not have permission to perform this action")
}

func getIDFromURL(r *http.Request, param string) (int, error) {
	raw := chi.URLParam(r, param)
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s parameter", param)
	}
	return id, nil
}

// mapServiceError translates the services error taxonomy into HTTP statuses.
// ValidationError and the input sentinels become 400, conflicts 409, lookups
// 404, permission failures 401/403; anything else is a 500.
func mapServiceError(w http.ResponseWriter, err error) {
	switch {
	case services.IsValidationError(err):
		badRequestResponse(w, err)
	case errors.Is(err, services.ErrTournamentNotFound),
		errors.Is(err, services.ErrEntrantNotFound),
		errors.Is(err, services.ErrInviteNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrNotFound):
		notFoundResponse(w)
	case errors.Is(err, services.ErrTournamentNameConflict),
		errors.Is(err, services.ErrEntrantNameConflict),
		errors.Is(err, services.ErrUsernameConflict),
		errors.Is(err, services.ErrAlreadyJoined),
		errors.Is(err, services.ErrAlreadyInTeam),
		errors.Is(err, services.ErrTeamFull):
		conflictResponse(w, err.Error())
	case errors.Is(err, services.ErrTournamentNameRequired),
		errors.Is(err, services.ErrTournamentInvalidDateRange),
		errors.Is(err, services.ErrTournamentInvalidTeamSize),
		errors.Is(err, services.ErrTournamentInvalidGameGaps),
		errors.Is(err, services.ErrInviteNotActive),
		errors.Is(err, services.ErrInviteExpired),
		errors.Is(err, services.ErrInviteUsesExhausted),
		errors.Is(err, services.ErrJoinNotOpen),
		errors.Is(err, services.ErrSoloTournament),
		errors.Is(err, services.ErrJoinTournamentFirst),
		errors.Is(err, services.ErrNotTeamMember),
		errors.Is(err, services.ErrRequestNotPending),
		errors.Is(err, services.ErrPasswordTooShort):
		badRequestResponse(w, err)
	case errors.Is(err, services.ErrAuthenticationFailed):
		unauthorizedResponse(w, err.Error())
	case errors.Is(err, services.ErrForbiddenOperation):
		forbiddenResponse(w)
	default:
		serverErrorResponse(w, err)
	}
}
