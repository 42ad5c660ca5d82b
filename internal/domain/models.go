// Package domain provides the core models, errors and events of the paper sharing service.
package domain

import (
	"fmt"
	"strings"
)

// Pagination bounds.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// PageRequest selects one page of a listing. Page is 1-based.
type PageRequest struct {
	Page  int
	Limit int
}

// NewPageRequest validates page and limit. Callers apply DefaultPage and
// DefaultLimit for absent parameters; zero is rejected like any other
// out-of-range value.
func NewPageRequest(page, limit int) (PageRequest, error) {
	if page < 1 {
		return PageRequest{}, NewValidationError("page", "must be at least 1")
	}
	if limit < 1 || limit > MaxLimit {
		return PageRequest{}, NewValidationError("limit", fmt.Sprintf("must be between 1 and %d", MaxLimit))
	}
	return PageRequest{Page: page, Limit: limit}, nil
}

// Offset returns the number of rows to skip.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// PageInfo describes the position of a page within a listing.
type PageInfo struct {
	Total       int64 `json:"total"`
	Pages       int64 `json:"pages"`
	CurrentPage int   `json:"currentPage"`
	Limit       int   `json:"limit"`
}

// NewPageInfo builds PageInfo for total rows, with Pages = ceil(total/limit).
func NewPageInfo(req PageRequest, total int64) PageInfo {
	var pages int64
	if req.Limit > 0 {
		pages = (total + int64(req.Limit) - 1) / int64(req.Limit)
	}
	return PageInfo{
		Total:       total,
		Pages:       pages,
		CurrentPage: req.Page,
		Limit:       req.Limit,
	}
}

// SortOrder is the ordering of a paper listing.
type SortOrder string

const (
	// SortRecent orders by upload time, newest first.
	SortRecent SortOrder = "recent"
	// SortTitle orders by title, descending.
	SortTitle SortOrder = "title"
	// SortAuthor is accepted for compatibility and orders like SortRecent.
	SortAuthor SortOrder = "author"
)

// ParseSortOrder parses a sortBy value. Empty input yields SortRecent.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortRecent:
		return SortRecent, nil
	case SortTitle:
		return SortTitle, nil
	case SortAuthor:
		return SortAuthor, nil
	default:
		return "", NewValidationError("sortBy", "must be one of recent, title, author")
	}
}
