package shared

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultPerPage is used when the caller does not pass a limit.
	DefaultPerPage = 20
	// MaxPerPage bounds list queries.
	MaxPerPage = 200
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// PageRequest is the common page/sort part of list filters.
type PageRequest struct {
	Page    int
	Limit   int
	SortBy  string
	SortDir string
}

// Offset returns the row offset for the page.
func (p PageRequest) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Desc reports whether descending order was requested.
func (p PageRequest) Desc() bool {
	return strings.EqualFold(p.SortDir, "desc")
}

// PageFromQuery reads page, limit, sort and dir query parameters.
func PageFromQuery(q url.Values) PageRequest {
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	switch {
	case limit < 1:
		limit = DefaultPerPage
	case limit > MaxPerPage:
		limit = MaxPerPage
	}
	return PageRequest{
		Page:    page,
		Limit:   limit,
		SortBy:  strings.TrimSpace(q.Get("sort")),
		SortDir: strings.TrimSpace(q.Get("dir")),
	}
}
