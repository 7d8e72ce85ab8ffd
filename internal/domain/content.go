package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidInput marks caller mistakes (bad filters, missing prompt fields).
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnknownKind is returned for content kinds the portal does not serve.
	ErrUnknownKind = errors.New("unknown content kind")
	// ErrUpstream wraps failures of external services the request depended on.
	ErrUpstream = errors.New("upstream service failure")
)

// Kind names one content table.
type Kind string

const (
	KindNews   Kind = "news"
	KindPolicy Kind = "policy"
	KindJobs   Kind = "jobs"
)

// Kinds lists every content kind in ingestion order.
var Kinds = []Kind{KindNews, KindPolicy, KindJobs}

// ParseKind validates a kind string coming from config, CLI or HTTP.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

var categories = map[Kind][]string{
	KindNews:   {"policy", "technology", "workforce", "ethics", "community"},
	KindPolicy: {"laws_regulations", "federal_guidance", "standards_practices"},
}

// Categories returns the closed category enumeration of a kind (nil for jobs).
func (k Kind) Categories() []string {
	return categories[k]
}

// ValidCategory reports whether c belongs to the kind's enumeration.
func (k Kind) ValidCategory(c string) bool {
	for _, v := range categories[k] {
		if v == c {
			return true
		}
	}
	return false
}

// Item is one stored piece of content: a news article, a policy document or a job listing.
// NaturalKey is the URL for news and policy and the external source ID for jobs.
type Item struct {
	ID          int64     `json:"id"`
	Kind        Kind      `json:"kind"`
	NaturalKey  string    `json:"naturalKey"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Category    string    `json:"category,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	FetchedAt   time.Time `json:"fetchedAt"`
	CreatedAt   time.Time `json:"createdAt"`

	// Job listing attributes.
	Agency         string     `json:"agency,omitempty"`
	Location       string     `json:"location,omitempty"`
	Remote         bool       `json:"remote"`
	SalaryMin      *int64     `json:"salaryMin,omitempty"`
	SalaryMax      *int64     `json:"salaryMax,omitempty"`
	ClearanceLevel *string    `json:"clearanceLevel,omitempty"`
	ClosingAt      *time.Time `json:"closingAt,omitempty"`
}

// RunStatus is the outcome of one source within an ingestion run.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// FeedRun is an append-only run-log entry for one source.
type FeedRun struct {
	ID            int64     `json:"id"`
	Kind          Kind      `json:"kind"`
	Source        string    `json:"source"`
	LastFetchedAt time.Time `json:"lastFetchedAt"`
	ItemsCount    int       `json:"itemsCount"`
	Status        RunStatus `json:"status"`
	ErrorMessage  string    `json:"errorMessage,omitempty"`
}

// Filter holds optional, AND-combined list predicates. Zero values mean "not set".
type Filter struct {
	Category       string
	Source         string
	Agency         string
	Keyword        string
	ClearanceLevel string
	Remote         *bool
	Limit          int
}

// Stats aggregates a whole content table. Kind selects which grouping is
// rendered: byAgency for jobs, byCategory otherwise.
type Stats struct {
	Kind       Kind           `json:"-"`
	Total      int            `json:"total"`
	ByCategory map[string]int `json:"byCategory,omitempty"`
	ByAgency   map[string]int `json:"byAgency,omitempty"`
	BySource   map[string]int `json:"bySource"`
	LastUpdate *time.Time     `json:"lastUpdate"`
	ActiveJobs *int           `json:"activeJobs,omitempty"`
}

// MarshalJSON always renders the kind's grouping, as {} when the table is empty.
func (s Stats) MarshalJSON() ([]byte, error) {
	type plain Stats
	if s.Kind == KindJobs {
		return json.Marshal(struct {
			plain
			ByCategory map[string]int `json:"byCategory,omitempty"`
			ByAgency   map[string]int `json:"byAgency"`
		}{plain: plain(s), ByAgency: nonNilCounts(s.ByAgency)})
	}
	return json.Marshal(struct {
		plain
		ByCategory map[string]int `json:"byCategory"`
		ByAgency   map[string]int `json:"byAgency,omitempty"`
	}{plain: plain(s), ByCategory: nonNilCounts(s.ByCategory)})
}

func nonNilCounts(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}

// Message is one role-tagged chat message sent to the language model.
type Message struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content"`
}

// Chat roles accepted by the completion service.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
