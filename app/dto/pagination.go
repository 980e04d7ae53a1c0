package dto

import (
	"strconv"
	"strings"

	"github.com/amirphl/leaddesk/utils"
)

// PageParams is a resolved page request
type PageParams struct {
	Page   int `json:"page"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Pagination is the metadata returned next to every multi-row listing
type Pagination struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	TotalItems   int64 `json:"totalItems"`
	ItemsPerPage int   `json:"itemsPerPage"`
	HasNextPage  bool  `json:"hasNextPage"`
	HasPrevPage  bool  `json:"hasPrevPage"`
	NextPage     *int  `json:"nextPage"`
	PrevPage     *int  `json:"prevPage"`
}

// PageEnvelope wraps one page of rows with its pagination metadata
type PageEnvelope[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// ComputeOffset clamps page and limit to positive values and derives the row offset.
// Non-positive inputs fall back to page 1 and limit 10; limit is capped at utils.MaxLimit.
func ComputeOffset(page, limit int) PageParams {
	if page < 1 {
		page = utils.DefaultPage
	}
	if limit < 1 {
		limit = utils.DefaultLimit
	}
	if limit > utils.MaxLimit {
		limit = utils.MaxLimit
	}
	return PageParams{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// ParsePageParams is ComputeOffset over raw query string values; unparseable values use the defaults
func ParsePageParams(page, limit string) PageParams {
	return ComputeOffset(atoiOrZero(page), atoiOrZero(limit))
}

// BuildPageEnvelope pairs rows with pagination metadata derived from the total match count
func BuildPageEnvelope[T any](rows []T, total int64, page, limit int) PageEnvelope[T] {
	params := ComputeOffset(page, limit)
	if rows == nil {
		rows = []T{}
	}

	totalPages := int((total + int64(params.Limit) - 1) / int64(params.Limit))
	p := Pagination{
		CurrentPage:  params.Page,
		TotalPages:   totalPages,
		TotalItems:   total,
		ItemsPerPage: params.Limit,
		HasNextPage:  params.Page < totalPages,
		HasPrevPage:  params.Page > 1,
	}
	if p.HasNextPage {
		next := params.Page + 1
		p.NextPage = &next
	}
	if p.HasPrevPage {
		prev := params.Page - 1
		p.PrevPage = &prev
	}

	return PageEnvelope[T]{Data: rows, Pagination: p}
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
