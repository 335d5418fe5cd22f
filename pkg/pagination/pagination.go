package pagination

import (
	"net/http"
	"strconv"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Window describes a slice of a result set as a limit and an offset. Offsets
// are snapped down to a page boundary: the page fetched is Offset / Limit.
type Window struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// DefaultWindow returns the first page with the default limit.
func DefaultWindow() Window {
	return Window{Limit: DefaultLimit}
}

// Normalize clamps the limit into [1, MaxLimit] and the offset to >= 0.
func (w Window) Normalize() Window {
	if w.Limit <= 0 {
		w.Limit = DefaultLimit
	}
	if w.Limit > MaxLimit {
		w.Limit = MaxLimit
	}
	if w.Offset < 0 {
		w.Offset = 0
	}
	return w
}

// PageIndex returns the zero-based page containing Offset.
func (w Window) PageIndex() int {
	w = w.Normalize()
	return w.Offset / w.Limit
}

// Start returns the first row fetched for this window.
func (w Window) Start() int {
	w = w.Normalize()
	return w.PageIndex() * w.Limit
}

// FromRequest reads "limit" and "offset" from the query string. The legacy
// "page"/"per_page" pair is honoured when "offset" is absent.
func FromRequest(r *http.Request) Window {
	q := r.URL.Query()
	w := DefaultWindow()

	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		w.Limit = v
	} else if v, err := strconv.Atoi(q.Get("per_page")); err == nil && v > 0 {
		w.Limit = v
	}

	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v >= 0 {
		w.Offset = v
	} else if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 1 {
		w.Offset = (v - 1) * w.Limit
	}

	return w.Normalize()
}

// Result wraps one page of items with the total match count.
type Result[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	HasNext    bool `json:"has_next"`
}

// NewResult creates a page result. A nil data slice is rendered as [].
func NewResult[T any](data []T, totalCount int, w Window) Result[T] {
	w = w.Normalize()
	if data == nil {
		data = []T{}
	}
	start := w.Start()
	return Result[T]{
		Data:       data,
		TotalCount: totalCount,
		Limit:      w.Limit,
		Offset:     start,
		HasNext:    start+len(data) < totalCount,
	}
}
