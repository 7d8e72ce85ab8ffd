package parser

import (
	"context"
	"fmt"
	"log/slog"

	"cdoportal/internal/config"
	"cdoportal/internal/domain"
	"cdoportal/internal/ports"
	"cdoportal/internal/scanner"
)

// StrategySource implements ContentSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	sources  []config.SourceConfig
	logger   *slog.Logger
}

var _ ports.ContentSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sources.
func NewStrategySource(reg *scanner.Registry, sources []config.SourceConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sources:  sources,
		logger:   log,
	}
}

// Sources returns the descriptors of a kind in configuration order.
func (s *StrategySource) Sources(kind domain.Kind) []scanner.Request {
	var out []scanner.Request
	for _, src := range config.SourcesOfKind(s.sources, string(kind)) {
		out = append(out, scanner.Request{
			Kind:     kind,
			Name:     src.Name,
			Source:   src.Label(),
			URL:      src.URL,
			Category: src.Category,
			Limit:    src.Limit,
			Options:  src.Options,
		})
	}
	s.debug("resolved sources", "kind", kind, "count", len(out))
	return out
}

// Fetch executes the scanner configured for the descriptor.
func (s *StrategySource) Fetch(ctx context.Context, req scanner.Request) ([]domain.Item, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	name := s.scannerFor(req.Name)
	strategy, err := s.registry.Resolve(name)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", req.Name, err)
	}

	s.debug("process source", "source", req.Name, "scanner", name)
	results, err := strategy.Scan(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("scan source %s: %w", req.Name, err)
	}

	for i := range results {
		if results[i].Source == "" {
			results[i].Source = req.Source
		}
	}
	s.debug("source produced items", "source", req.Name, "count", len(results))
	return results, nil
}

func (s *StrategySource) scannerFor(name string) string {
	for _, src := range s.sources {
		if src.Name == name && src.Scanner != "" {
			return src.Scanner
		}
	}
	return "rss"
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
