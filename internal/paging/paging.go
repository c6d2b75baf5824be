// Package paging validates page requests and builds list metadata.
package paging

import (
	"fmt"
	"math"

	"github.com/sundayezeilo/bookmarker/internal/errx"
)

// Params is a 1-based page request.
type Params struct {
	Page    int
	PerPage int
}

// Validate rejects pages below 1 and page sizes outside [1, maxPerPage].
func (p Params) Validate(maxPerPage int) error {
	const op = "paging.Params.Validate"

	if p.Page < 1 {
		return errx.M(op, errx.Invalid, "page must be a positive integer")
	}
	if p.PerPage < 1 {
		return errx.M(op, errx.Invalid, "per_page must be a positive integer")
	}
	if maxPerPage > 0 && p.PerPage > maxPerPage {
		return errx.M(op, errx.Invalid, fmt.Sprintf("per_page cannot exceed %d", maxPerPage))
	}
	return nil
}

// Offset is the number of rows to skip for this page. It saturates at
// math.MaxInt and is never negative.
func (p Params) Offset() int {
	if p.Page <= 1 || p.PerPage <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.PerPage {
		return math.MaxInt
	}
	return (p.Page - 1) * p.PerPage
}

// PastEnd reports whether p starts after the last of total rows.
func (p Params) PastEnd(total int64) bool {
	return p.Page > 1 && int64(p.Offset()) >= total
}

// Meta describes where a page sits in the full result set.
type Meta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
	Total      int64 `json:"total"`
}

// NewMeta computes metadata for p over total rows. A page past the end is
// valid: it reports has_next=false and has_prev=true.
func NewMeta(p Params, total int64) Meta {
	pages := 0
	if total > 0 && p.PerPage > 0 {
		pages = int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	}
	return Meta{
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: pages,
		HasNext:    p.Page < pages,
		HasPrev:    p.Page > 1,
		Total:      total,
	}
}
