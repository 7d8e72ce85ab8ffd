package usecase

import (
	"context"
	"fmt"

	"cdoportal/internal/domain"
	"cdoportal/internal/ports"
)

// List limits.
const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// Catalog serves filtered listings and aggregate stats from the store.
type Catalog struct {
	reader ports.CatalogReader
}

// NewCatalog wraps a store reader.
func NewCatalog(reader ports.CatalogReader) *Catalog {
	return &Catalog{reader: reader}
}

// List validates the filter and returns matching items, newest first.
func (c *Catalog) List(ctx context.Context, kind domain.Kind, filter domain.Filter) ([]domain.Item, error) {
	if _, err := domain.ParseKind(string(kind)); err != nil {
		return nil, err
	}
	if filter.Category != "" && !kind.ValidCategory(filter.Category) {
		return nil, fmt.Errorf("%w: category %q is not valid for %s", domain.ErrInvalidInput, filter.Category, kind)
	}
	filter.Limit = normalizeLimit(filter.Limit)

	items, err := c.reader.List(ctx, kind, filter)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	if items == nil {
		items = []domain.Item{}
	}
	return items, nil
}

// Stats returns aggregates for the whole table of kind.
func (c *Catalog) Stats(ctx context.Context, kind domain.Kind) (domain.Stats, error) {
	if _, err := domain.ParseKind(string(kind)); err != nil {
		return domain.Stats{}, err
	}
	stats, err := c.reader.Stats(ctx, kind)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("stats %s: %w", kind, err)
	}
	stats.Kind = kind
	if stats.BySource == nil {
		stats.BySource = map[string]int{}
	}
	return stats, nil
}

func normalizeLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultListLimit
	case limit < 1:
		return 1
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
