package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"

	"cdoportal/internal/domain"
	"cdoportal/internal/logging"
	"cdoportal/internal/scanner"
)

const defaultFeedLimit = 15

// RSSScanner pulls an RSS or Atom document and normalizes its entries.
type RSSScanner struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
	now       func() time.Time
}

var _ scanner.Scanner = (*RSSScanner)(nil)

// NewRSSScanner wires an HTTP client; a nil client gets a 20s timeout.
func NewRSSScanner(client *http.Client, userAgent string, logger *slog.Logger) *RSSScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if userAgent == "" {
		userAgent = "CDOPortal/1.0"
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &RSSScanner{client: client, userAgent: userAgent, logger: logger, now: time.Now}
}

// Name identifies the strategy inside the registry.
func (s *RSSScanner) Name() string {
	return "rss"
}

// Scan fetches the feed once and returns at most req.Limit items.
// Upstream failures are logged and produce an empty list.
func (s *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Item, error) {
	if _, err := url.ParseRequestURI(req.URL); err != nil {
		return nil, fmt.Errorf("source %s: invalid feed url %q: %w", req.Name, req.URL, err)
	}
	if req.Kind != domain.KindNews && req.Kind != domain.KindPolicy {
		return nil, fmt.Errorf("source %s: rss scanner cannot produce %s items", req.Name, req.Kind)
	}
	if !req.Kind.ValidCategory(req.Category) {
		return nil, fmt.Errorf("source %s: category %q is not valid for %s", req.Name, req.Category, req.Kind)
	}

	feed, err := s.fetchFeed(ctx, req.URL)
	if err != nil {
		s.logger.Warn("feed unavailable", "source", req.Name, "url", req.URL, "error", err)
		return []domain.Item{}, nil
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultFeedLimit
	}

	fetchedAt := s.now().UTC()
	items := make([]domain.Item, 0, limit)
	for _, entry := range feed.Items {
		item, ok := s.normalize(entry, req, fetchedAt)
		if !ok {
			continue
		}
		items = append(items, item)
		if len(items) >= limit {
			break
		}
	}

	s.logger.Debug("feed scanned", "source", req.Name, "entries", len(feed.Items), "items", len(items))
	return items, nil
}

func (s *RSSScanner) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

func (s *RSSScanner) normalize(entry *gofeed.Item, req scanner.Request, fetchedAt time.Time) (domain.Item, bool) {
	if entry == nil {
		return domain.Item{}, false
	}

	title := cleanText(entry.Title)
	link := canonicalURL(entry.Link)
	if title == "" || link == "" {
		return domain.Item{}, false
	}

	summary := cleanText(entry.Description)
	if summary == "" {
		summary = title
	}

	published := fetchedAt
	switch {
	case entry.PublishedParsed != nil:
		published = entry.PublishedParsed.UTC()
	case entry.UpdatedParsed != nil:
		published = entry.UpdatedParsed.UTC()
	}

	return domain.Item{
		Kind:        req.Kind,
		NaturalKey:  link,
		Title:       title,
		Summary:     truncateRunes(summary, summaryMaxRunes),
		URL:         link,
		Source:      req.Source,
		Category:    req.Category,
		PublishedAt: published,
		FetchedAt:   fetchedAt,
	}, true
}
