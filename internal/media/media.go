// Package media is the boundary to the external media delegate: the service
// that stores image and video bytes and hands back a {mediaID, url}
// reference. Records in the database only ever hold that reference.
//
// Uploads are checked locally (size, sniffed content type) before any bytes
// leave the process, so a rejected file never costs a network round trip.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"

	"github.com/sakif/storyline/internal/apperror"
	"github.com/sakif/storyline/internal/model"
)

// Folders group objects by what they belong to.
const (
	FolderStories = "stories"
	FolderPosts   = "posts"
	FolderAvatars = "avatars"
)

// Store is implemented by every media delegate.
type Store interface {
	// Upload stores the bytes and returns the reference to persist. Errors
	// are apperror.ErrUpload.
	Upload(ctx context.Context, u Upload) (*model.Media, error)
	// Delete removes the object. Errors are apperror.ErrDelete, including
	// an unknown mediaID.
	Delete(ctx context.Context, mediaID string) error
}

// Upload is one file on its way to the delegate. Body must be seekable:
// the content type is sniffed from the first bytes and the body is rewound
// before it is sent.
type Upload struct {
	Body        io.ReadSeeker
	Size        int64
	Folder      string
	Constraints Constraints
}

// Constraints bound what a particular kind of upload may contain.
type Constraints struct {
	MaxBytes     int64
	AllowedTypes []string
}

var (
	imageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
	videoTypes = []string{"video/mp4", "video/webm"}
)

// ImageConstraints accepts still images up to maxBytes (avatars).
func ImageConstraints(maxBytes int64) Constraints {
	return Constraints{MaxBytes: maxBytes, AllowedTypes: imageTypes}
}

// MediaConstraints accepts images and short videos up to maxBytes (stories
// and posts).
func MediaConstraints(maxBytes int64) Constraints {
	return Constraints{MaxBytes: maxBytes, AllowedTypes: slices.Concat(imageTypes, videoTypes)}
}

// sniffLen is how many bytes http.DetectContentType looks at.
const sniffLen = 512

// Check validates u against its constraints and returns the sniffed content
// type. On success the body is positioned at offset 0.
func Check(u Upload) (string, error) {
	if u.Body == nil || u.Size <= 0 {
		return "", apperror.UploadFailed("file is empty", nil)
	}
	c := u.Constraints
	if c.MaxBytes > 0 && u.Size > c.MaxBytes {
		return "", apperror.UploadFailed(
			fmt.Sprintf("file is %d bytes, the limit is %d", u.Size, c.MaxBytes), nil)
	}

	// Read failures on the client's file are invalid uploads, not delegate
	// errors, so they carry no cause.
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(u.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", apperror.UploadFailed("file could not be read", nil)
	}
	if _, err := u.Body.Seek(0, io.SeekStart); err != nil {
		return "", apperror.UploadFailed("file could not be read", nil)
	}

	contentType := http.DetectContentType(head[:n])
	if len(c.AllowedTypes) > 0 && !slices.Contains(c.AllowedTypes, contentType) {
		return "", apperror.UploadFailed(fmt.Sprintf("content type %s is not allowed", contentType), nil)
	}
	return contentType, nil
}

// ErrNotConfigured is the cause attached by Disabled.
var ErrNotConfigured = errors.New("media storage is not configured")

// Disabled is the Store used when no delegate is configured. Everything that
// needs media fails with a typed error; the rest of the API keeps working.
type Disabled struct{}

func (Disabled) Upload(_ context.Context, u Upload) (*model.Media, error) {
	if _, err := Check(u); err != nil {
		return nil, err
	}
	return nil, apperror.UploadFailed("media storage unavailable", ErrNotConfigured)
}

func (Disabled) Delete(_ context.Context, mediaID string) error {
	return apperror.DeleteFailed(mediaID, ErrNotConfigured)
}
