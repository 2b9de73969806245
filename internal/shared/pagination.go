package shared

import "math"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Pagination contains metadata for paginated listings. Page is zero based.
type Pagination struct {
	Page       int `json:"page"`
	Size       int `json:"size"`
	Total      int `json:"totalElements"`
	TotalPages int `json:"totalPages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, size, total int) Pagination {
	page, size = ClampPage(page, size)
	totalPages := int(math.Ceil(float64(total) / float64(size)))
	return Pagination{Page: page, Size: size, Total: total, TotalPages: totalPages}
}

// ClampPage normalises page and size to valid bounds.
func ClampPage(page, size int) (int, int) {
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	if page < 0 {
		page = 0
	}
	return page, size
}

// Offset returns the row offset for page and size.
func (p Pagination) Offset() int {
	return p.Page * p.Size
}
