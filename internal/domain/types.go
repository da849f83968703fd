package domain

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination carries paging params and totals.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// Normalize clamps page and limit into the accepted range.
func (p Pagination) Normalize() Pagination {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// Offset is the number of rows skipped before the current page.
func (p Pagination) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

// Page is a single page of results.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// RequestContext carries authenticated user info when available.
type RequestContext struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	RequestID string `json:"request_id"`
}
