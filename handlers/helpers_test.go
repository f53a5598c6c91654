package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aoe4hub/tournament-engine/services"
)

func TestMapServiceError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", services.NewValidationError("bad input"), http.StatusBadRequest},
		{"tournament not found", services.ErrTournamentNotFound, http.StatusNotFound},
		{"generic not found", services.ErrNotFound, http.StatusNotFound},
		{"name conflict", services.ErrTournamentNameConflict, http.StatusConflict},
		{"already joined", services.ErrAlreadyJoined, http.StatusConflict},
		{"team full", services.ErrTeamFull, http.StatusConflict},
		{"join not open", services.ErrJoinNotOpen, http.StatusBadRequest},
		{"invite expired", services.ErrInviteExpired, http.StatusBadRequest},
		{"auth failed", services.ErrAuthenticationFailed, http.StatusUnauthorized},
		{"forbidden", services.ErrForbiddenOperation, http.StatusForbidden},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mapServiceError(rec, c.err)
			assert.Equal(t, c.want, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestReadJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("valid body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
		var p payload
		require.NoError(t, readJSON(httptest.NewRecorder(), r, &p))
		assert.Equal(t, "x", p.Name)
	})

	t.Run("unknown field", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nope":1}`))
		var p payload
		err := readJSON(httptest.NewRecorder(), r, &p)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown key")
	})

	t.Run("empty body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		var p payload
		err := readJSON(httptest.NewRecorder(), r, &p)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must not be empty")
	})

	t.Run("trailing garbage", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}{"name":"y"}`))
		var p payload
		err := readJSON(httptest.NewRecorder(), r, &p)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "single JSON value")
	})

	t.Run("malformed", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
		var p payload
		err := readJSON(httptest.NewRecorder(), r, &p)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "badly-formed")
	})
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, writeJSON(rec, http.StatusCreated, jsonResponse{"id": 7}))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "{\"id\":7}\n", rec.Body.String())
}
