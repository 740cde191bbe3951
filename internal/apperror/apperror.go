// Package apperror defines the error taxonomy shared by the repository,
// service and handler layers.
//
// Every domain failure is an *AppError wrapping one of the sentinel errors
// below. Callers classify with errors.Is and read the human-readable message
// with errors.As. Anything that is NOT an *AppError is an internal failure:
// the handler layer logs it and answers with a generic 500.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUpload       = errors.New("media upload failed")
	ErrDelete       = errors.New("media delete failed")
)

type AppError struct {
	Err     error  // sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying failure, logged but never shown to clients
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// InvalidArgument is a validation failure that is not tied to a single
// request field, e.g. following yourself.
func InvalidArgument(message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
	}
}

func Conflict(resource, message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s: %s", resource, message),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// UploadFailed reports a media delegate upload failure. cause may be nil when
// the upload was rejected locally (size, content type).
func UploadFailed(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrUpload,
		Message: message,
		Cause:   cause,
	}
}

// DeleteFailed reports a media delegate delete failure.
func DeleteFailed(mediaID string, cause error) *AppError {
	return &AppError{
		Err:     ErrDelete,
		Message: fmt.Sprintf("deleting media %s", mediaID),
		Cause:   cause,
	}
}
