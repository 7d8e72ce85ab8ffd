package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cdoportal/internal/domain"
	"cdoportal/internal/logging"
	"cdoportal/internal/scanner"
)

const (
	defaultJobsLimit   = 10
	defaultResultsPage = 25
	closingHorizon     = 30 * 24 * time.Hour
)

var remoteTerms = []string{"remote", "telework", "anywhere"}

var clearanceTerms = []struct {
	match string
	level string
}{
	{"top secret", "Top Secret"},
	{"secret", "Secret"},
	{"public trust", "Public Trust"},
}

// USAJobsScanner queries the USAJOBS search API for one keyword.
type USAJobsScanner struct {
	client    *http.Client
	apiKey    string
	userAgent string
	logger    *slog.Logger
	now       func() time.Time
}

var _ scanner.Scanner = (*USAJobsScanner)(nil)

// NewUSAJobsScanner wires credentials for the search API. USAJOBS expects the
// registered e-mail address as the User-Agent.
func NewUSAJobsScanner(client *http.Client, apiKey, userAgent string, logger *slog.Logger) *USAJobsScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &USAJobsScanner{
		client:    client,
		apiKey:    apiKey,
		userAgent: userAgent,
		logger:    logger,
		now:       time.Now,
	}
}

// Name identifies the strategy inside the registry.
func (s *USAJobsScanner) Name() string {
	return "usajobs"
}

// Scan runs one keyword search and maps results into job items.
func (s *USAJobsScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Item, error) {
	if req.Kind != domain.KindJobs {
		return nil, fmt.Errorf("source %s: usajobs scanner cannot produce %s items", req.Name, req.Kind)
	}
	endpoint, err := url.ParseRequestURI(req.URL)
	if err != nil {
		return nil, fmt.Errorf("source %s: invalid search url %q: %w", req.Name, req.URL, err)
	}
	keyword := strings.TrimSpace(req.Option("keyword", ""))
	if keyword == "" {
		return nil, fmt.Errorf("source %s: keyword option is required", req.Name)
	}

	q := endpoint.Query()
	q.Set("Keyword", keyword)
	q.Set("ResultsPerPage", strconv.Itoa(defaultResultsPage))
	endpoint.RawQuery = q.Encode()

	payload, err := s.search(ctx, endpoint.String())
	if err != nil {
		s.logger.Warn("job search unavailable", "source", req.Name, "keyword", keyword, "error", err)
		return []domain.Item{}, nil
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultJobsLimit
	}
	label := req.Source
	if label == "" {
		label = "USAJOBS"
	}

	fetchedAt := s.now().UTC()
	items := make([]domain.Item, 0, limit)
	for i, raw := range payload.SearchResult.Items {
		var result searchItem
		if err := json.Unmarshal(raw, &result); err != nil {
			s.logger.Debug("skip malformed job result", "source", req.Name, "index", i, "error", err)
			continue
		}
		item, ok := s.normalize(result, label, fetchedAt)
		if !ok {
			continue
		}
		items = append(items, item)
		if len(items) >= limit {
			break
		}
	}

	s.logger.Debug("job search scanned", "source", req.Name, "results", len(payload.SearchResult.Items), "items", len(items))
	return items, nil
}

func (s *USAJobsScanner) search(ctx context.Context, endpoint string) (*searchResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if s.userAgent != "" {
		httpReq.Header.Set("User-Agent", s.userAgent)
	}
	if s.apiKey != "" {
		httpReq.Header.Set("Authorization-Key", s.apiKey)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("search returned %s", resp.Status)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode search: %w", err)
	}
	return &payload, nil
}

func (s *USAJobsScanner) normalize(result searchItem, label string, fetchedAt time.Time) (domain.Item, bool) {
	d := result.Descriptor
	if d == nil {
		return domain.Item{}, false
	}

	externalID := strings.TrimSpace(result.MatchedObjectID)
	if externalID == "" {
		externalID = strings.TrimSpace(d.PositionURI)
	}
	if externalID == "" {
		return domain.Item{}, false
	}
	title := cleanText(d.PositionTitle)
	if title == "" {
		title = "Untitled Position"
	}

	link := strings.TrimSpace(d.PositionURI)
	if len(d.ApplyURI) > 0 && strings.TrimSpace(d.ApplyURI[0]) != "" {
		link = strings.TrimSpace(d.ApplyURI[0])
	}
	if link == "" {
		link = "https://www.usajobs.gov/job/" + url.PathEscape(externalID)
	}

	summary := ""
	if d.UserArea != nil && d.UserArea.Details != nil {
		summary = cleanText(d.UserArea.Details.JobSummary)
	}
	if summary == "" {
		summary = cleanText(d.QualificationSummary)
	}

	location := cleanText(d.PositionLocationDisplay)
	if location == "" && len(d.PositionLocation) > 0 {
		location = cleanText(d.PositionLocation[0].LocationName)
	}
	if location == "" {
		location = "Location not specified"
	}
	agency := cleanText(d.OrganizationName)
	if agency == "" {
		agency = "Federal Agency"
	}

	remote := containsAny(strings.ToLower(location), remoteTerms)
	if !remote && d.UserArea != nil && d.UserArea.Details != nil {
		remote = d.UserArea.Details.RemoteIndicator.value
	}

	published := firstTime(d.PositionStartDate, d.PublicationStartDate)
	if published == nil {
		published = &fetchedAt
	}
	closing := firstTime(d.ApplicationCloseDate)
	if closing == nil {
		horizon := fetchedAt.Add(closingHorizon)
		closing = &horizon
	}

	item := domain.Item{
		Kind:        domain.KindJobs,
		NaturalKey:  externalID,
		Title:       title,
		Summary:     truncateRunes(summary, summaryMaxRunes),
		URL:         link,
		Source:      label,
		PublishedAt: published.UTC(),
		FetchedAt:   fetchedAt,
		Agency:      agency,
		Location:    location,
		Remote:      remote,
		ClosingAt:   closing,
	}
	if len(d.PositionRemuneration) > 0 {
		item.SalaryMin = d.PositionRemuneration[0].MinimumRange.value
		item.SalaryMax = d.PositionRemuneration[0].MaximumRange.value
	}
	if level := clearanceFrom(d); level != "" {
		item.ClearanceLevel = &level
	}
	return item, true
}

func clearanceFrom(d *positionDescriptor) string {
	var text string
	if d.UserArea != nil && d.UserArea.Details != nil {
		text = strings.ToLower(d.UserArea.Details.SecurityClearance)
	}
	if text == "" || strings.Contains(text, "not required") || strings.Contains(text, "not applicable") {
		return ""
	}
	for _, term := range clearanceTerms {
		if strings.Contains(text, term.match) {
			return term.level
		}
	}
	return ""
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

var usaJobsTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range usaJobsTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func firstTime(candidates ...string) *time.Time {
	for _, raw := range candidates {
		if t, ok := parseTime(raw); ok {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// searchResponse mirrors the subset of the USAJOBS search payload the portal reads.
// Every level is optional upstream. Results stay raw so one malformed entry
// only costs itself.
type searchResponse struct {
	SearchResult struct {
		Items []json.RawMessage `json:"SearchResultItems"`
	} `json:"SearchResult"`
}

type searchItem struct {
	MatchedObjectID string              `json:"MatchedObjectId"`
	Descriptor      *positionDescriptor `json:"MatchedObjectDescriptor"`
}

type positionDescriptor struct {
	PositionTitle           string         `json:"PositionTitle"`
	PositionURI             string         `json:"PositionURI"`
	ApplyURI                []string       `json:"ApplyURI"`
	OrganizationName        string         `json:"OrganizationName"`
	PositionLocationDisplay string         `json:"PositionLocationDisplay"`
	PositionLocation        []jobLocation  `json:"PositionLocation"`
	PositionRemuneration    []remuneration `json:"PositionRemuneration"`
	QualificationSummary    string         `json:"QualificationSummary"`
	PositionStartDate       string         `json:"PositionStartDate"`
	PublicationStartDate    string         `json:"PublicationStartDate"`
	ApplicationCloseDate    string         `json:"ApplicationCloseDate"`
	UserArea                *userArea      `json:"UserArea"`
}

type jobLocation struct {
	LocationName string `json:"LocationName"`
}

type remuneration struct {
	MinimumRange flexAmount `json:"MinimumRange"`
	MaximumRange flexAmount `json:"MaximumRange"`
}

type userArea struct {
	Details *userAreaDetails `json:"Details"`
}

type userAreaDetails struct {
	JobSummary        string   `json:"JobSummary"`
	SecurityClearance string   `json:"SecurityClearance"`
	RemoteIndicator   flexBool `json:"RemoteIndicator"`
}

// maxAmount bounds salaries; anything at or above it cannot be a real salary
// and would overflow int64.
const maxAmount = 1e12

// flexAmount accepts a salary given as a JSON number or numeric string.
// Unparseable or non-positive amounts decode as absent rather than failing the payload.
type flexAmount struct {
	value *int64
}

func (a *flexAmount) UnmarshalJSON(b []byte) error {
	a.value = nil
	raw := strings.TrimSpace(string(bytes.Trim(b, `"`)))
	raw = strings.NewReplacer("$", "", ",", "").Replace(raw)
	if raw == "" || raw == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 || f >= maxAmount || math.IsNaN(f) {
		return nil
	}
	v := int64(math.Round(f))
	a.value = &v
	return nil
}

// flexBool accepts true/false as a JSON bool or string.
type flexBool struct {
	value bool
}

func (f *flexBool) UnmarshalJSON(b []byte) error {
	raw := strings.ToLower(strings.TrimSpace(string(bytes.Trim(b, `"`))))
	f.value = raw == "true" || raw == "1" || raw == "yes"
	return nil
}
