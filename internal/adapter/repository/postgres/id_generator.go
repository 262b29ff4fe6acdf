package postgres

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// ULIDGenerator generates ULID-based IDs.
type ULIDGenerator struct{}

// NewULIDGenerator creates a new ULIDGenerator.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{}
}

// Generate generates a new ULID.
func (g *ULIDGenerator) Generate() string {
	return ulid.Make().String()
}

// DocumentNumberGenerator formats sortable document numbers from the
// per-year sequences handed out by the repositories.
type DocumentNumberGenerator struct{}

// NewDocumentNumberGenerator creates a new DocumentNumberGenerator.
func NewDocumentNumberGenerator() *DocumentNumberGenerator {
	return &DocumentNumberGenerator{}
}

// Format renders a number like JE-2025-000042.
func (g *DocumentNumberGenerator) Format(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%06d", prefix, year, seq)
}
