package response

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookcatalog/internal/apperr"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.Invalid("title", "must be provided"), http.StatusUnprocessableEntity},
		{fmt.Errorf("email: %w", apperr.ErrConflict), http.StatusConflict},
		{fmt.Errorf("book 3: %w", apperr.ErrAlreadyOwned), http.StatusConflict},
		{apperr.ErrInvalidCredentials, http.StatusUnauthorized},
		{fmt.Errorf("only authors: %w", apperr.ErrUnauthorized), http.StatusForbidden},
		{fmt.Errorf("book 9: %w", apperr.ErrNotFound), http.StatusNotFound},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRespondError(t *testing.T) {
	ctx := context.Background()
	rr := &Responder{}

	rec := httptest.NewRecorder()
	rr.RespondError(rec, ctx, apperr.NewValidationError(map[string]string{"isbn": "must be exactly 13 characters long"}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, map[string]any{"isbn": "must be exactly 13 characters long"}, decode(t, rec)["fields"])

	rec = httptest.NewRecorder()
	rr.RespondError(rec, ctx, fmt.Errorf("book 9: %w", apperr.ErrNotFound))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Book 9: not found", decode(t, rec)["error"])

	rec = httptest.NewRecorder()
	rr.RespondError(rec, ctx, errors.New("secret detail"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.NotContains(t, body["error"], "secret detail")
	assert.NotEmpty(t, body["err_id"])

	debug := &Responder{DebugMode: true}
	rec = httptest.NewRecorder()
	debug.RespondError(rec, ctx, errors.New("secret detail"))
	assert.Equal(t, "Secret detail", decode(t, rec)["error"])
}

func TestRedirectAndSendJson(t *testing.T) {
	ctx := context.Background()
	rr := &Responder{}

	rec := httptest.NewRecorder()
	rr.Redirect(rec, ctx, http.StatusUnauthorized, "/auth/login?returnUrl=%2Fbooks%2Fnew")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "/auth/login?returnUrl=%2Fbooks%2Fnew", decode(t, rec)["redirect"])

	rec = httptest.NewRecorder()
	rr.SendJsonStatus(rec, ctx, http.StatusCreated, map[string]int{"id": 7})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":7}`, rec.Body.String())
}
