package ports

import (
	"context"
	"time"

	"cdoportal/internal/domain"
	"cdoportal/internal/scanner"
)

// ItemStore persists content items, deduplicated by natural key.
type ItemStore interface {
	// Upsert inserts the item when its natural key is new and returns the stored row.
	// An existing row is returned unchanged with created=false.
	Upsert(ctx context.Context, item domain.Item) (stored domain.Item, created bool, err error)
}

// RunLog appends ingestion outcomes for observability.
type RunLog interface {
	RecordRun(ctx context.Context, run domain.FeedRun) error
}

// CatalogReader serves the read side of the store.
type CatalogReader interface {
	List(ctx context.Context, kind domain.Kind, filter domain.Filter) ([]domain.Item, error)
	Stats(ctx context.Context, kind domain.Kind) (domain.Stats, error)
}

// ContentSource enumerates configured source descriptors and runs their adapters.
type ContentSource interface {
	Sources(kind domain.Kind) []scanner.Request
	Fetch(ctx context.Context, req scanner.Request) ([]domain.Item, error)
}

// Pacer spaces out network-bound calls within one ingestion run.
type Pacer interface {
	Wait(ctx context.Context) error
}

// IngestMetrics counts per-item and per-source ingestion outcomes.
type IngestMetrics interface {
	ItemProcessed(kind domain.Kind, source, outcome string)
	SourceCompleted(kind domain.Kind, source string, status domain.RunStatus)
}

// Completer is the hosted language model: role-tagged messages in, completion text out.
type Completer interface {
	Complete(ctx context.Context, messages []domain.Message) (string, error)
}

// Notifier streams run digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
