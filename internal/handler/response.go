package handler

// RESPONSE HELPERS:
// Every non-GraphQL endpoint answers with JSON through these two functions.
//
// ERROR FORMAT:
//   {"error": "USER_NOT_FOUND", "message": "User not found", "field": "id"}
//
// "error" is the same machine-readable code GraphQL clients see in
// extensions.code, so a frontend only has to learn one vocabulary.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/codespaces/internal/apperror"
)

// ErrorResponse is the error body returned by every REST endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`           // apperror code, e.g. "USER_NOT_FOUND"
	Message string `json:"message"`         // human-readable description
	Field   string `json:"field,omitempty"` // first rejected input, if any
}

// writeJSON sends data with the given status. Headers must be set before
// WriteHeader; anything set afterwards is silently dropped.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusOf maps an error category to an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError translates a workflow error into a status code and body.
// Errors that are not *apperror.AppError never leak their text.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		writeJSON(w, statusOf(err), ErrorResponse{
			Error:   string(appErr.Code),
			Message: appErr.Message,
			Field:   appErr.Field(),
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   string(apperror.CodeSomethingWentWrong),
		Message: "Something went wrong",
	})
}
