package apperror

import (
	"errors"
	"io"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("story", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("caption", "caption is too long"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "InvalidArgument wraps ErrValidation",
			err:       InvalidArgument("cannot follow yourself"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("like", "post already liked"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("invalid credentials"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "UploadFailed wraps ErrUpload and its cause",
			err:       UploadFailed("uploading media", io.ErrUnexpectedEOF),
			target:    io.ErrUnexpectedEOF,
			wantMatch: true,
		},
		{
			name:      "DeleteFailed wraps ErrDelete",
			err:       DeleteFailed("m1", io.EOF),
			target:    ErrDelete,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("story", "abc123"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "Forbidden does NOT match ErrNotFound",
			err:       Forbidden("only the owner may delete this story"),
			target:    ErrNotFound,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("post", "abc123"),
			wantMessage: "post not found with id abc123",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("username", "username is required"),
			wantMessage: "username is required",
		},
		{
			name:        "Conflict message includes resource",
			err:         Conflict("follow", "already following this user"),
			wantMessage: "follow: already following this user",
		},
		{
			name:        "UploadFailed without cause",
			err:         UploadFailed("file is too large", nil),
			wantMessage: "file is too large",
		},
		{
			name:        "DeleteFailed includes the cause",
			err:         DeleteFailed("m1", errors.New("no such key")),
			wantMessage: "deleting media m1: no such key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestErrorsAs(t *testing.T) {
	// Wrapped twice, errors.As still finds the AppError and its message.
	err := errors.Join(errors.New("outer"), NotFound("story", "s1"))

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("errors.As() did not find *AppError")
	}
	if appErr.Message != "story not found with id s1" {
		t.Errorf("Message = %q", appErr.Message)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("email", "invalid email format")

	if err.Field != "email" {
		t.Errorf("Field = %q, want %q", err.Field, "email")
	}
}
