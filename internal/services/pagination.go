package services

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type PageRequest struct {
	Page  int
	Limit int
}

// Normalize clamps the request to page >= 1 and 1 <= limit <= MaxPageSize.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

type Page[T any] struct {
	Items      []T
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

func NewPage[T any](items []T, total int, req PageRequest) Page[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if req.Limit > 0 {
		totalPages = (total + req.Limit - 1) / req.Limit
	}
	return Page[T]{Items: items, Total: total, Page: req.Page, Limit: req.Limit, TotalPages: totalPages}
}
