// internal/app/system/paging/paging.go
package paging

import (
	"math"
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PageSize is the default number of rows returned by list endpoints.
const PageSize = 10

// MaxPageSize caps the ?limit= a client may ask for.
const MaxPageSize = 100

// MaxPage caps ?page= so the skip stays well inside int64.
const MaxPage = 1_000_000

// Params is a parsed page request. Page is 1-based.
type Params struct {
	Page  int
	Limit int
}

// Parse reads ?page= and ?limit= from the request. Missing or invalid values
// fall back to page 1 and PageSize; page is clamped to MaxPage and limit
// to MaxPageSize.
func Parse(r *http.Request) Params {
	p := Params{Page: 1, Limit: PageSize}
	if n, err := strconv.Atoi(query.Get(r, "page")); err == nil && n > 0 {
		p.Page = min(n, MaxPage)
	}
	if n, err := strconv.Atoi(query.Get(r, "limit")); err == nil && n > 0 {
		p.Limit = min(n, MaxPageSize)
	}
	return p
}

// Skip is the number of documents before this page. It is never negative.
func (p Params) Skip() int64 {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	page, limit := int64(p.Page-1), int64(p.Limit)
	if page > math.MaxInt64/limit {
		return math.MaxInt64 / limit * limit
	}
	return page * limit
}

// ApplyToFind sets skip and limit on find.
func (p Params) ApplyToFind(find *options.FindOptions) *options.FindOptions {
	return find.SetSkip(p.Skip()).SetLimit(int64(p.Limit))
}

// Meta is the pagination block included in list responses.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}

// NewMeta computes page counts for total matching documents.
func NewMeta(p Params, total int64) Meta {
	pages := 0
	if p.Limit > 0 {
		pages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return Meta{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: pages,
		HasPrev:    p.Page > 1,
		HasNext:    p.Page < pages,
	}
}

// Page is the generic list envelope.
type Page[T any] struct {
	Items []T  `json:"items"`
	Meta  Meta `json:"meta"`
}

// NewPage wraps items, never returning a nil slice so the JSON is [] not null.
func NewPage[T any](items []T, p Params, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Meta: NewMeta(p, total)}
}
