package domain

import "math"

// MaxPageSize bounds the number of trades a single page may hold.
const MaxPageSize = 50

// PaginatedResult is one page of items plus the counts needed to navigate the
// rest. It is derived on every read and never stored.
type PaginatedResult[T any] struct {
	Items           []T  `json:"items"`
	PageNumber      int  `json:"pageNumber"`
	PageSize        int  `json:"pageSize"`
	TotalCount      int  `json:"totalCount"`
	TotalPages      int  `json:"totalPages"`
	HasPreviousPage bool `json:"hasPreviousPage"`
	HasNextPage     bool `json:"hasNextPage"`
}

// NewPaginatedResult computes the derived fields. pageSize must be positive;
// callers validate it before reaching the store.
func NewPaginatedResult[T any](items []T, totalCount, pageNumber, pageSize int) PaginatedResult[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = (totalCount + pageSize - 1) / pageSize
	}
	return PaginatedResult[T]{
		Items:           items,
		PageNumber:      pageNumber,
		PageSize:        pageSize,
		TotalCount:      totalCount,
		TotalPages:      totalPages,
		HasPreviousPage: pageNumber > 1,
		HasNextPage:     pageNumber < totalPages,
	}
}

// PageOffset returns the number of rows to skip for a 1-based page. Offsets
// that do not fit in an int saturate at math.MaxInt, which lands past the
// last row of any store.
func PageOffset(pageNumber, pageSize int) int {
	if pageNumber <= 1 || pageSize <= 0 {
		return 0
	}
	if pageNumber-1 > math.MaxInt/pageSize {
		return math.MaxInt
	}
	return (pageNumber - 1) * pageSize
}
