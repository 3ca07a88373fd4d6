package httputil

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/AdamBeresnev/beer-pong/internal/bracket"
)

type errorBody struct {
	Error string `json:"error"`
}

func InternalServerError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slog.ErrorContext(r.Context(), msg, "error", err, "method", r.Method, "path", r.URL.Path)
	writeError(w, http.StatusInternalServerError, "the server encountered a problem and could not process your request")
}

func BadRequest(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if err != nil {
		slog.WarnContext(r.Context(), "bad request", "message", msg, "error", err)
	} else {
		slog.WarnContext(r.Context(), "bad request", "message", msg)
	}
	writeError(w, http.StatusBadRequest, msg)
}

func NotFound(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if err != nil {
		slog.WarnContext(r.Context(), "not found", "message", msg, "error", err)
	} else {
		slog.WarnContext(r.Context(), "not found", "message", msg)
	}
	writeError(w, http.StatusNotFound, msg)
}

// StatusFor maps a domain error to the HTTP status it is reported with.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, bracket.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, bracket.ErrConflict),
		errors.Is(err, bracket.ErrInvalidState),
		errors.Is(err, bracket.ErrTimeWindowExceeded):
		return http.StatusConflict
	case errors.Is(err, bracket.ErrConstraintViolation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err as a JSON error response. Domain errors keep their message;
// anything else is logged and hidden behind a generic 500.
func Error(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := StatusFor(err)
	switch status {
	case http.StatusInternalServerError:
		InternalServerError(w, r, msg, err)
	case http.StatusNotFound:
		NotFound(w, r, err.Error(), nil)
	default:
		slog.InfoContext(r.Context(), "request rejected", "message", msg, "status", status, "error", err)
		writeError(w, status, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	if err := WriteJSON(w, status, errorBody{Error: msg}); err != nil {
		slog.Error("failed to write error response", "error", err)
	}
}
