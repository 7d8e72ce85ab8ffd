package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"cdoportal/internal/domain"
	"cdoportal/internal/logging"
	"cdoportal/internal/ports"
	"cdoportal/internal/scanner"
)

// Item outcomes reported to metrics.
const (
	OutcomeCreated  = "created"
	OutcomeExisting = "existing"
	OutcomeFailed   = "failed"
)

// PipelineDeps wires all driven adapters into the ingestion pipeline.
type PipelineDeps struct {
	Source  ports.ContentSource
	Store   ports.ItemStore
	RunLog  ports.RunLog
	Metrics ports.IngestMetrics
	Logger  *slog.Logger
	// Pacing is the minimum gap between two sources of one run; zero disables it.
	Pacing time.Duration
}

// Pipeline implements the sequential source-to-store ingestion workflow.
type Pipeline struct {
	source   ports.ContentSource
	store    ports.ItemStore
	runLog   ports.RunLog
	metrics  ports.IngestMetrics
	logger   *slog.Logger
	newPacer func() ports.Pacer
	now      func() time.Time
}

// SourceResult is the outcome of one source within a run.
type SourceResult struct {
	Source   string
	Returned int
	Stored   int
	Created  int
	Err      error
}

// RunResult summarizes one ingestion run of a kind.
type RunResult struct {
	Kind    domain.Kind
	Stored  int
	Created int
	Sources []SourceResult
}

// Failed counts sources that ended in error.
func (r RunResult) Failed() int {
	n := 0
	for _, s := range r.Sources {
		if s.Err != nil {
			n++
		}
	}
	return n
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	pacing := deps.Pacing
	return &Pipeline{
		source:  deps.Source,
		store:   deps.Store,
		runLog:  deps.RunLog,
		metrics: deps.Metrics,
		logger:  logger,
		// The limiter starts drained, so its first Wait lasts one full interval
		// measured from when the pacer was created.
		newPacer: func() ports.Pacer {
			if pacing <= 0 {
				return rate.NewLimiter(rate.Inf, 1)
			}
			limiter := rate.NewLimiter(rate.Every(pacing), 1)
			limiter.Allow()
			return limiter
		},
		now: time.Now,
	}
}

// Run ingests every configured source of kind, in configuration order.
// A failing source is logged and recorded; the remaining sources still run.
// The returned error is reserved for unknown kinds and cancellation.
func (p *Pipeline) Run(ctx context.Context, kind domain.Kind) (RunResult, error) {
	result := RunResult{Kind: kind}
	if _, err := domain.ParseKind(string(kind)); err != nil {
		return result, err
	}
	if p.source == nil || p.store == nil {
		return result, nil
	}

	sources := p.source.Sources(kind)
	p.logger.Info("ingestion started", "kind", kind, "sources", len(sources))

	var pacer ports.Pacer
	for _, req := range sources {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("ingest %s: %w", kind, err)
		}
		if pacer != nil {
			if err := pacer.Wait(ctx); err != nil {
				return result, fmt.Errorf("ingest %s: %w", kind, err)
			}
		}

		sr := p.ingestSource(ctx, req)
		// Next source starts one pacing interval after this one finished.
		pacer = p.newPacer()
		result.Sources = append(result.Sources, sr)
		result.Stored += sr.Stored
		result.Created += sr.Created

		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("ingest %s: %w", kind, ctxErr)
		}
	}

	p.logger.Info("ingestion finished",
		"kind", kind,
		"stored", result.Stored,
		"created", result.Created,
		"failed_sources", result.Failed(),
	)
	return result, nil
}

// RunAll ingests news, policy and jobs in that order.
func (p *Pipeline) RunAll(ctx context.Context) ([]RunResult, error) {
	results := make([]RunResult, 0, len(domain.Kinds))
	for _, kind := range domain.Kinds {
		res, err := p.Run(ctx, kind)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// SeedSample runs live ingestion for kind and falls back to the fixed seed set
// when nothing was stored. It returns how many items were stored; a seed that
// fails to persist is logged and skipped.
func (p *Pipeline) SeedSample(ctx context.Context, kind domain.Kind) (int, error) {
	res, err := p.Run(ctx, kind)
	if err != nil {
		return 0, err
	}
	if res.Stored > 0 {
		return res.Stored, nil
	}
	if p.store == nil {
		return 0, nil
	}

	seeds := SeedItems(kind, p.now())
	if len(seeds) == 0 {
		p.logger.Warn("no live items and no seed data", "kind", kind)
		return 0, nil
	}

	p.logger.Info("falling back to seed data", "kind", kind, "items", len(seeds))
	count := 0
	for _, item := range seeds {
		if err := ctx.Err(); err != nil {
			return count, fmt.Errorf("seed %s: %w", kind, err)
		}
		_, created, err := p.store.Upsert(ctx, item)
		if err != nil {
			p.logger.Error("seed item failed", "kind", kind, "key", item.NaturalKey, "error", err)
			if p.metrics != nil {
				p.metrics.ItemProcessed(kind, "seed", OutcomeFailed)
			}
			continue
		}
		p.itemMetric(kind, "seed", created)
		count++
	}
	return count, nil
}

func (p *Pipeline) ingestSource(ctx context.Context, req scanner.Request) SourceResult {
	sr := SourceResult{Source: req.Name}

	items, err := p.source.Fetch(ctx, req)
	if err != nil {
		sr.Err = err
		p.finish(ctx, req, sr)
		return sr
	}
	sr.Returned = len(items)

	for _, item := range items {
		item.Kind = req.Kind
		if item.Source == "" {
			item.Source = req.Source
		}

		_, created, err := p.store.Upsert(ctx, item)
		if err != nil {
			p.itemFailed(req)
			sr.Err = fmt.Errorf("upsert %q: %w", item.NaturalKey, err)
			p.finish(ctx, req, sr)
			return sr
		}
		sr.Stored++
		if created {
			sr.Created++
		}
		p.itemMetric(req.Kind, req.Name, created)
	}

	p.logger.Debug("source ingested", "kind", req.Kind, "source", req.Name, "returned", sr.Returned, "stored", sr.Stored, "created", sr.Created)
	p.finish(ctx, req, sr)
	return sr
}

// finish writes the run-log entry and metrics for one source. Run-log
// failures are logged only.
func (p *Pipeline) finish(ctx context.Context, req scanner.Request, sr SourceResult) {
	run := domain.FeedRun{
		Kind:          req.Kind,
		Source:        req.Name,
		LastFetchedAt: p.now().UTC(),
		ItemsCount:    sr.Returned,
		Status:        domain.RunSuccess,
	}
	if sr.Err != nil {
		run.Status = domain.RunError
		run.ItemsCount = sr.Stored
		run.ErrorMessage = truncate(sr.Err.Error(), 500)
		p.logger.Error("source failed", "kind", req.Kind, "source", req.Name, "error", sr.Err)
	}

	if p.metrics != nil {
		p.metrics.SourceCompleted(req.Kind, req.Name, run.Status)
	}

	if p.runLog == nil {
		return
	}
	if err := p.runLog.RecordRun(ctx, run); err != nil {
		p.logger.Error("record feed run", "kind", req.Kind, "source", req.Name, "error", err)
	}
}

func (p *Pipeline) itemMetric(kind domain.Kind, source string, created bool) {
	if p.metrics == nil {
		return
	}
	outcome := OutcomeExisting
	if created {
		outcome = OutcomeCreated
	}
	p.metrics.ItemProcessed(kind, source, outcome)
}

func (p *Pipeline) itemFailed(req scanner.Request) {
	if p.metrics != nil {
		p.metrics.ItemProcessed(req.Kind, req.Name, OutcomeFailed)
	}
}

// BuildDigest renders run results as a plain-text message for notifiers.
func BuildDigest(results []RunResult) string {
	var b strings.Builder
	for _, res := range results {
		fmt.Fprintf(&b, "%s: %d stored, %d new", res.Kind, res.Stored, res.Created)
		if failed := res.Failed(); failed > 0 {
			fmt.Fprintf(&b, ", %d failed sources", failed)
		}
		b.WriteString("\n")
		for _, s := range res.Sources {
			if s.Err != nil {
				fmt.Fprintf(&b, "  - %s: %v\n", s.Source, s.Err)
			}
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
