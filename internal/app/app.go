package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"cdoportal/internal/config"
	"cdoportal/internal/domain"
	"cdoportal/internal/infrastructure/httpapi"
	"cdoportal/internal/infrastructure/llm"
	"cdoportal/internal/infrastructure/metrics"
	"cdoportal/internal/infrastructure/parser"
	"cdoportal/internal/infrastructure/scheduler"
	"cdoportal/internal/infrastructure/storage"
	"cdoportal/internal/infrastructure/telegram"
	"cdoportal/internal/logging"
	"cdoportal/internal/ports"
	"cdoportal/internal/scanner"
	"cdoportal/internal/usecase"
)

const shutdownTimeout = 15 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	pipeline  *usecase.Pipeline
	catalog   *usecase.Catalog
	scheduler *usecase.Scheduler
	server    *echo.Echo
}

// New opens the database, applies the schema and builds every component.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	repo := storage.NewSQLRepository(db, cfg.Database.Driver)
	if err := repo.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewRSSScanner(nil, cfg.Ingestion.UserAgent, baseLogger.With("component", "scanner.rss")))
	registry.Register(parser.NewUSAJobsScanner(nil, cfg.Ingestion.USAJobsAPIKey, cfg.Ingestion.USAJobsAgent, baseLogger.With("component", "scanner.usajobs")))

	source := parser.NewStrategySource(registry, cfg.Sources, baseLogger.With("component", "source"))
	ingestMetrics := metrics.NewIngest()

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:  source,
		Store:   repo,
		RunLog:  repo,
		Metrics: ingestMetrics,
		Logger:  baseLogger.With("component", "pipeline"),
		Pacing:  cfg.Ingestion.Pacing,
	})
	catalog := usecase.NewCatalog(repo)

	var completer ports.Completer
	if cfg.ChatGPT.APIKey != "" {
		completer = llm.NewChatGPTClient(cfg.ChatGPT)
	}
	career := usecase.NewCareer(completer)

	var notifier ports.Notifier
	if tg := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID); tg.Configured() {
		notifier = tg
	}
	sched := usecase.NewScheduler(
		scheduler.NewIntervalScheduler(cfg.Scheduler.Interval, cfg.Scheduler.Location()),
		pipeline,
		notifier,
		baseLogger.With("component", "scheduler"),
	)

	server := httpapi.NewServer(httpapi.Deps{
		Catalog:   catalog,
		Seeder:    pipeline,
		Career:    career,
		Metrics:   ingestMetrics.Handler(),
		JWTSecret: cfg.Auth.JWTSecret,
		Logger:    baseLogger.With("component", "http"),
	})

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		db:        db,
		pipeline:  pipeline,
		catalog:   catalog,
		scheduler: sched,
		server:    server,
	}, nil
}

// Serve runs the HTTP API and the recurring ingestion until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("http server listening", "addr", a.cfg.Server.Addr)
		if err := a.server.Start(a.cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.scheduler.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := a.scheduler.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("scheduler stop: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// Ingest runs the pipeline once for the given kinds, or for all kinds when none are given.
func (a *Application) Ingest(ctx context.Context, kinds ...domain.Kind) ([]usecase.RunResult, error) {
	if len(kinds) == 0 {
		return a.pipeline.RunAll(ctx)
	}
	results := make([]usecase.RunResult, 0, len(kinds))
	for _, kind := range kinds {
		res, err := a.pipeline.Run(ctx, kind)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Seed ingests kind and falls back to the bundled sample set.
func (a *Application) Seed(ctx context.Context, kind domain.Kind) (int, error) {
	return a.pipeline.SeedSample(ctx, kind)
}

// Stats reports table aggregates for kind.
func (a *Application) Stats(ctx context.Context, kind domain.Kind) (domain.Stats, error) {
	return a.catalog.Stats(ctx, kind)
}

// Close releases the database handle.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
