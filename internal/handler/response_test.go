package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onemployment/api/internal/apperror"
	"github.com/onemployment/api/internal/repository"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantError string
		wantField string
	}{
		{"validation", apperror.ValidationFailed("username", "username is required"), http.StatusBadRequest, "username is required", "username"},
		{"unauthorized", apperror.Unauthorized("invalid email or password"), http.StatusUnauthorized, "invalid email or password", ""},
		{"forbidden", &apperror.AppError{Err: apperror.ErrForbidden, Message: "nope"}, http.StatusForbidden, "nope", ""},
		{"not found", apperror.NotFound("repo"), http.StatusNotFound, "repo not found", ""},
		{"conflict", apperror.Conflict("email"), http.StatusConflict, "email already taken", "email"},
		{"too large", apperror.PayloadTooLarge(1024), http.StatusRequestEntityTooLarge, "", ""},
		{"wrapped", fmt.Errorf("service/repo: %w", apperror.NotFound("commit")), http.StatusNotFound, "commit not found", ""},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "internal server error", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeError(rr, httptest.NewRequest(http.MethodGet, "/", nil), quietLogger(), tt.err)

			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body.Error)
			} else {
				assert.NotEmpty(t, body.Error)
			}
			assert.Equal(t, tt.wantField, body.Field)
		})
	}
}

func TestWriteError_InternalDetailsStayInLog(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	rr := httptest.NewRecorder()
	writeError(rr, httptest.NewRequest(http.MethodGet, "/api/repos", nil), logger, errors.New("sqlite: database is locked"))

	assert.NotContains(t, rr.Body.String(), "locked")
	assert.Contains(t, logs.String(), "database is locked")
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Text string `json:"text"`
	}

	t.Run("valid body, unknown fields ignored", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":"hi","author":"someone-else"}`))
		var p payload
		require.NoError(t, decodeJSON(httptest.NewRecorder(), r, &p))
		assert.Equal(t, "hi", p.Text)
	})

	t.Run("empty body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		var p payload
		err := decodeJSON(httptest.NewRecorder(), r, &p)
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})

	t.Run("malformed body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":`))
		var p payload
		err := decodeJSON(httptest.NewRecorder(), r, &p)
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})

	t.Run("oversized body", func(t *testing.T) {
		big := `{"text":"` + strings.Repeat("a", maxJSONBody+10) + `"}`
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
		var p payload
		err := decodeJSON(httptest.NewRecorder(), r, &p)
		assert.ErrorIs(t, err, apperror.ErrPayloadTooLarge)
	})
}

func TestListOptions(t *testing.T) {
	tests := []struct {
		query   string
		want    repository.ListOptions
		wantErr bool
	}{
		{"", repository.ListOptions{}, false},
		{"limit=10&offset=20", repository.ListOptions{Limit: 10, Offset: 20}, false},
		{"limit=1000", repository.ListOptions{Limit: maxPageSize}, false},
		{"limit=-1", repository.ListOptions{}, true},
		{"offset=abc", repository.ListOptions{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/repos/all?"+tt.query, nil)
			opts, err := listOptions(r)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperror.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, opts)
		})
	}
}
