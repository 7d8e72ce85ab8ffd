package scanner

import (
	"context"
	"fmt"

	"cdoportal/internal/domain"
)

// Request is the source descriptor handed to a scanner for one retrieval.
type Request struct {
	Kind     domain.Kind
	Name     string // run-log label, unique per source
	Source   string // label stamped on produced items
	URL      string
	Category string
	Limit    int
	Options  map[string]string
}

// Option returns a descriptor option or def when unset.
func (r Request) Option(key, def string) string {
	if v, ok := r.Options[key]; ok && v != "" {
		return v
	}
	return def
}

// Scanner captures a single protocol implementation (RSS, USAJOBS search, etc.).
// Unreachable or malformed upstream content yields an empty list; errors are
// reserved for descriptors the scanner cannot act on.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.Item, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}
