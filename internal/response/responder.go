package response

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"bookcatalog/internal/apperr"
)

type Responder struct {
	DebugMode bool
}

// RespondAndLogError will respond with generic error code (500) and log with slog.LevelError level
func (rr *Responder) RespondAndLogError(w http.ResponseWriter, ctx context.Context, err error) {
	errId := uuid.NewString()
	log(ctx, slog.LevelError, err.Error(), slog.String("err_id", errId))
	rr.renderError(w, ctx, http.StatusInternalServerError, err.Error(), errId)
}

func (rr *Responder) RespondAndLogCustom(w http.ResponseWriter, ctx context.Context, err error, lvl slog.Level, status int) {
	errId := uuid.NewString()
	log(ctx, lvl, err.Error(), slog.String("err_id", errId))
	rr.renderError(w, ctx, status, err.Error(), errId)
}

// RespondError renders failures of the catalog operations. Known failures are reported to the
// caller as they are; anything else is an internal error.
func (rr *Responder) RespondError(w http.ResponseWriter, ctx context.Context, err error) {
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		log(ctx, slog.LevelInfo, err.Error())
		rr.render(w, ctx, http.StatusUnprocessableEntity, map[string]any{
			"error":  "Validation failed",
			"fields": ve.Fields,
		})
		return
	}

	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		errId := uuid.NewString()
		log(ctx, slog.LevelError, err.Error(), slog.String("err_id", errId))
		rr.renderError(w, ctx, status, err.Error(), errId)
		return
	}

	log(ctx, slog.LevelInfo, err.Error())
	rr.render(w, ctx, status, map[string]any{"error": capitalize(err.Error())})
}

// StatusOf maps the error taxonomy onto HTTP statuses.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrAlreadyOwned):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Redirect tells the client it was turned away by an access guard and where to go instead.
func (rr *Responder) Redirect(w http.ResponseWriter, ctx context.Context, status int, location string) {
	rr.render(w, ctx, status, map[string]any{
		"error":    http.StatusText(status),
		"redirect": location,
	})
}

func (rr *Responder) SendJson(w http.ResponseWriter, ctx context.Context, data any) {
	rr.SendJsonStatus(w, ctx, http.StatusOK, data)
}

func (rr *Responder) SendJsonStatus(w http.ResponseWriter, ctx context.Context, status int, data any) {
	bs, err := json.Marshal(data)
	if err != nil {
		rr.RespondAndLogError(w, ctx, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.Copy(w, bytes.NewReader(bs))
}

func (rr *Responder) renderError(w http.ResponseWriter, ctx context.Context, status int, message, errId string) {
	data := map[string]any{"err_id": errId}

	if rr.DebugMode {
		data["error"] = capitalize(message)
	} else {
		data["error"] = "Unknown error occurred while processing your request. Error ID: " + errId
	}

	rr.render(w, ctx, status, data)
}

func (rr *Responder) render(w http.ResponseWriter, ctx context.Context, status int, data map[string]any) {
	bs, err := json.Marshal(data)
	if err == nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	} else {
		log(ctx, slog.LevelError, "cannot marshall error response body: "+err.Error())
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		bs = []byte("unknown error")
	}

	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.Copy(w, bytes.NewReader(bs))
}

func capitalize(message string) string {
	r, s := utf8.DecodeRuneInString(message)
	if r == utf8.RuneError {
		return message
	}
	return string(unicode.ToUpper(r)) + message[s:]
}

// Needed because it skips one more frame item than the slog.Log
func log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	l := slog.Default()

	if !l.Enabled(ctx, level) {
		return
	}

	var pc uintptr
	var pcs [1]uintptr
	// skip [runtime.Callers, this function, this function's caller]
	runtime.Callers(3, pcs[:])
	pc = pcs[0]

	r := slog.NewRecord(time.Now(), level, msg, pc)
	r.AddAttrs(attrs...)
	_ = l.Handler().Handle(ctx, r)
}
