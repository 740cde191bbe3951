package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/sakif/storyline/internal/apperror"
)

const (
	// formFileField is the multipart field that carries the media bytes.
	formFileField = "file"

	// multipartMemory is how much of a multipart body is held in memory
	// before the rest spills to temporary files.
	multipartMemory = 8 << 20

	// multipartOverhead leaves room for boundaries and text fields on top of
	// the media size limit.
	multipartOverhead = 1 << 20
)

// formUpload is a parsed multipart upload. Close must be called once the
// file has been handed to the media store.
type formUpload struct {
	File   multipart.File
	Size   int64
	fields *multipart.Form
}

func (u *formUpload) Value(name string) string {
	if vs := u.fields.Value[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func (u *formUpload) Values(name string) []string {
	return u.fields.Value[name]
}

func (u *formUpload) Close() {
	u.File.Close()
	u.fields.RemoveAll()
}

// parseUpload reads a multipart/form-data request with one file under
// "file". Oversized bodies are cut off by MaxBytesReader before they reach
// the disk.
func parseUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (*formUpload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, apperror.UploadFailed(fmt.Sprintf("upload exceeds the %d byte limit", maxBytes), nil)
		}
		return nil, apperror.ValidationFailed(formFileField, "request must be multipart/form-data")
	}

	file, header, err := r.FormFile(formFileField)
	if err != nil {
		r.MultipartForm.RemoveAll()
		return nil, apperror.ValidationFailed(formFileField, "a file is required")
	}

	return &formUpload{File: file, Size: header.Size, fields: r.MultipartForm}, nil
}
