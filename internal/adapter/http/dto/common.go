package dto

import "github.com/quorvia/erpcore/internal/domain"

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// PageResponse wraps a page of items with totals.
type PageResponse[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
}

// PageFromResult converts a use case page result using the given item converter.
func PageFromResult[T, D any](res domain.PageResult[T], conv func(T) D) PageResponse[D] {
	items := make([]D, len(res.Items))
	for i, item := range res.Items {
		items[i] = conv(item)
	}
	return PageResponse[D]{
		Items:      items,
		Total:      res.Total,
		Page:       res.Page,
		PerPage:    res.PerPage,
		TotalPages: res.TotalPages,
	}
}
