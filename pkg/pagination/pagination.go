package pagination

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPageSize = 6
	MaxPageSize     = 100
)

// Params is a page window over a fully materialized, ordered collection.
type Params struct {
	Limit  int
	Offset int
}

// FromPage converts a 1-based page index and a page size into Params,
// clamping out-of-range values.
func FromPage(page, pageSize int) Params {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if page < 1 {
		page = 1
	}
	// keep Offset+Limit representable
	if maxPage := math.MaxInt / pageSize; page > maxPage {
		page = maxPage
	}
	return Params{Limit: pageSize, Offset: (page - 1) * pageSize}
}

// FromContext reads page/pageSize, falling back to limit/offset.
func FromContext(c echo.Context) Params {
	size, _ := strconv.Atoi(c.QueryParam("pageSize"))
	if size <= 0 {
		size, _ = strconv.Atoi(c.QueryParam("limit"))
	}
	if page, err := strconv.Atoi(c.QueryParam("page")); err == nil && page > 0 {
		return FromPage(page, size)
	}

	p := FromPage(1, size)
	if offset, _ := strconv.Atoi(c.QueryParam("offset")); offset > 0 {
		p.Offset = offset
	}
	return p
}

// Page returns the 1-based page index of the window.
func (p Params) Page() int {
	if p.Limit <= 0 {
		return 1
	}
	return p.Offset/p.Limit + 1
}

// HasNext reports whether items remain after this window.
func (p Params) HasNext(total int) bool {
	return total-p.Offset > p.Limit
}

func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

// Slice cuts the window out of items. It never panics on short input.
func Slice[T any](items []T, p Params) []T {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if p.Limit > 0 && p.Limit < end-p.Offset {
		end = p.Offset + p.Limit
	}
	return items[p.Offset:end]
}

// Response wraps one page of results.
type Response struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
	HasMore    bool        `json:"has_more"`
}

func NewResponse(data interface{}, total int, p Params) *Response {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return &Response{
		Data:       data,
		Total:      total,
		Page:       p.Page(),
		PageSize:   p.Limit,
		TotalPages: pages,
		HasMore:    p.HasNext(total),
	}
}
