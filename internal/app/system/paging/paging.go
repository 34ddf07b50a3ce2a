// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// PageSize is the default number of rows in a paged list.
const PageSize = 50

// MaxPageSize caps a client-supplied ?per_page.
const MaxPageSize = 200

// Request is the page a client asked for.
type Request struct {
	Page int // 1-based
	Size int
}

// Offset is the number of rows to skip.
func (p Request) Offset() int64 { return int64((p.Page - 1) * p.Size) }

// Limit is the number of rows to fetch.
func (p Request) Limit() int64 { return int64(p.Size) }

// Parse reads ?page and ?per_page. Missing or invalid values fall back to
// page 1 and PageSize; per_page is clamped to MaxPageSize.
func Parse(r *http.Request) Request {
	p := Request{Page: positive(query.Get(r, "page"), 1), Size: positive(query.Get(r, "per_page"), PageSize)}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func positive(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// Window describes the rows shown on a page, for the response body.
type Window struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	Start      int   `json:"start"` // 1-based index of the first row shown, 0 when empty
	End        int   `json:"end"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}

// Compute builds the Window for req given the total row count and how many
// rows the page actually holds.
func Compute(req Request, total int64, shown int) Window {
	w := Window{Page: req.Page, PerPage: req.Size, Total: total}
	if req.Size > 0 {
		w.TotalPages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	if shown > 0 {
		w.Start = int(req.Offset()) + 1
		w.End = w.Start + shown - 1
	}
	w.HasPrev = req.Page > 1
	w.HasNext = int64(w.End) < total && shown > 0
	return w
}
