package handler

// RESPONSE HELPERS:
// Every JSON response goes through writeJSON and every failure through
// writeError, so all endpoints share one error shape:
//
//	{"error": "not_found", "message": "post not found with id abc123"}
//
// Validation failures also carry the offending field:
//
//	{"error": "validation_error", "message": "...", "field": "caption"}

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/storyline/internal/apperror"
	"github.com/sakif/storyline/internal/auth"
	"github.com/sakif/storyline/internal/service"
)

// maxJSONBody caps JSON request bodies. Media goes through multipart.
const maxJSONBody = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Set for validation errors tied to one field
}

// writeJSON sends a JSON response with the given status code.
// Headers must be set before WriteHeader; anything set afterwards is lost.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to a status code.
//
//	ErrValidation   → 400   ErrConflict → 409
//	ErrUnauthorized → 401   ErrUpload   → 422 if rejected locally, else 502
//	ErrForbidden    → 403   ErrDelete   → 502
//	ErrNotFound     → 404   anything else → 500
//
// Errors that are not *apperror.AppError are internal: they are logged with
// their full text and the client gets a generic message.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		logger.Error("internal error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status := http.StatusInternalServerError
	errorType := "internal_error"

	switch {
	case errors.Is(err, apperror.ErrValidation):
		status, errorType = http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		status, errorType = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		status, errorType = http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		status, errorType = http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		status, errorType = http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrUpload):
		if appErr.Cause == nil {
			status, errorType = http.StatusUnprocessableEntity, "invalid_media"
		} else {
			status, errorType = http.StatusBadGateway, "upload_failed"
		}
	case errors.Is(err, apperror.ErrDelete):
		status, errorType = http.StatusBadGateway, "delete_failed"
	}

	if appErr.Cause != nil {
		logger.Warn("request failed",
			slog.String("error", errorType),
			slog.String("cause", appErr.Cause.Error()),
		)
	}

	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: appErr.Message,
		Field:   appErr.Field,
	})
}

// decodeJSON reads a single JSON object into dst. Unknown fields and
// trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperror.ValidationFailed("body", fmt.Sprintf("request body must be at most %d bytes", maxErr.Limit))
		}
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperror.ValidationFailed("body", "request body must contain a single JSON object")
	}
	return nil
}

// currentUser returns the authenticated user id. Routes behind
// auth.RequireAuth always have one.
func currentUser(r *http.Request) (string, error) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return "", apperror.Unauthorized("valid authentication required")
	}
	return id, nil
}

// pageFromQuery reads ?page=&pageSize=. Missing or malformed values fall
// back to the defaults, out-of-range values are clamped by service.NewPage.
func pageFromQuery(r *http.Request) service.Page {
	q := r.URL.Query()
	number, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("pageSize"))
	return service.NewPage(number, size)
}
