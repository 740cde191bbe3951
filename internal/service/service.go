// Package service holds the business rules of the application.
//
//	Handler (HTTP) → Service (rules, orchestration) → Repository (storage)
//	                                                → media.Store (delegate)
//	                                                → Notifier (post-commit)
//
// Services take primitives and domain types, never *http.Request, and
// return apperror values that the handler layer maps to status codes.
//
// There are no multi-record transactions at this level. Where two writes
// must not both succeed (a second like, a second follow edge, a taken
// username) the store's uniqueness constraint decides and the loser gets
// apperror.ErrConflict.
package service

import (
	"math"

	"github.com/sakif/storyline/internal/repository"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// MaxCaptionLength applies to story and post captions.
	MaxCaptionLength = 2200
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// NewPage normalizes a page request: a number below 1 becomes 1, a missing
// size becomes DefaultPageSize and sizes above MaxPageSize are capped. The
// number is capped so that the offset still fits in an int; such a page is
// simply empty.
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	if number > math.MaxInt/size {
		number = math.MaxInt / size
	}
	return Page{Number: number, Size: size}
}

// Options converts the page to skip/limit form: skip = (page-1) * size.
func (p Page) Options() repository.ListOptions {
	p = NewPage(p.Number, p.Size)
	return repository.ListOptions{
		Limit:  p.Size,
		Offset: (p.Number - 1) * p.Size,
	}
}
