package domain

import (
	"regexp"
	"strings"
)

// Validation constants
const (
	MaxNameLength        = 255
	MaxDescriptionLength = 2000
	MaxCodeLength        = 64
	DefaultPageSize      = 50
	MaxPageSize          = 500
)

var codeRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateCode checks an entity code: non-empty, bounded,
// alphanumeric with dots, dashes and underscores.
func ValidateCode(code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return Validation("code_required", "code is required")
	}
	if len(code) > MaxCodeLength {
		return Validation("code_too_long", "code exceeds %d characters", MaxCodeLength)
	}
	if !codeRegex.MatchString(code) {
		return Validation("code_invalid", "code contains invalid characters")
	}
	return nil
}

// ValidateName checks a display name.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return Validation("name_required", "name is required")
	}
	if len(name) > MaxNameLength {
		return Validation("name_too_long", "name exceeds %d characters", MaxNameLength)
	}
	return nil
}

// Page is a 1-based pagination request.
type Page struct {
	Number  int
	PerPage int
}

// Normalize clamps a page request into valid bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.PerPage <= 0 {
		p.PerPage = DefaultPageSize
	}
	if p.PerPage > MaxPageSize {
		p.PerPage = MaxPageSize
	}
	return p
}

// Offset returns the row offset for the page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.PerPage
}

// PageResult wraps a page of items with totals.
type PageResult[T any] struct {
	Items      []T
	Total      int64
	Page       int
	PerPage    int
	TotalPages int
}

// NewPageResult computes total pages from the request and count.
func NewPageResult[T any](items []T, total int64, p Page) PageResult[T] {
	pages := int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	return PageResult[T]{
		Items:      items,
		Total:      total,
		Page:       p.Number,
		PerPage:    p.PerPage,
		TotalPages: pages,
	}
}
