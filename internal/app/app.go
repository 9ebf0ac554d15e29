// Package app wires configuration into a ready-to-use figure service.
package app

import (
	"context"
	"fmt"

	"github.com/spherical-ai/spherical/libs/figure-service/internal/batch"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/config"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/events"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/extract"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/figures"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/history"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/observability"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/source"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/stats"
)

// App holds the wired components.
type App struct {
	Config     *config.Config
	Logger     *observability.Logger
	Service    *extract.Service
	Invoker    *figures.Invoker
	Visualizer *figures.Visualizer // nil when the command cannot be parsed
	History    *history.Store      // nil when disabled
	Publisher  events.Publisher
}

// Options overrides wiring for tests.
type Options struct {
	Runner figures.Runner
}

// Build creates every component described by cfg.
func Build(ctx context.Context, cfg *config.Config, logger *observability.Logger, opts Options) (*App, error) {
	resolver := source.NewResolver(logger, source.Config{
		BaseDir:         cfg.Paths.InputDir,
		DownloadDir:     cfg.Paths.DownloadDir,
		DownloadTimeout: cfg.Download.Timeout,
		MaxBytes:        cfg.Download.MaxBytes,
	}, nil)

	invoker, err := figures.NewInvoker(logger, figures.Config{
		JavaBin:    cfg.Extractor.JavaBin,
		JavaOpts:   cfg.Extractor.JavaOpts,
		JarPath:    cfg.Extractor.JarPath,
		DefaultDPI: cfg.Extractor.DefaultDPI,
		Timeout:    cfg.Extractor.Timeout,
	}, opts.Runner)
	if err != nil {
		return nil, err
	}
	if cfg.Extraction.Preflight {
		invoker.WithPageCounter(source.PageCount)
	}

	visualizer, err := figures.NewVisualizer(logger, cfg.Visualizer.Command, opts.Runner)
	if err != nil {
		logger.Warn().Err(err).Msg("Visualization disabled")
		visualizer = nil
	}

	store, err := history.Open(ctx, cfg.History.Driver, cfg.History.DSN)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	publisher, err := events.New(events.Config{
		Driver:  cfg.Events.Driver,
		Channel: cfg.Events.Channel,
		Redis: events.RedisConfig{
			Addr:     cfg.Events.Redis.Addr,
			Password: cfg.Events.Redis.Password,
			DB:       cfg.Events.Redis.DB,
			PoolSize: cfg.Events.Redis.PoolSize,
			Prefix:   cfg.Events.Redis.Prefix,
		},
	})
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, fmt.Errorf("create event publisher: %w", err)
	}

	orchestrator := batch.NewOrchestrator(logger, invoker, cfg.Extraction.Workers)
	service := extract.NewService(logger, resolver, orchestrator, stats.NewWriter(logger), extract.Config{
		OutputDir:  cfg.Paths.OutputDir,
		DefaultDPI: cfg.Extractor.DefaultDPI,
	}).WithPublisher(publisher)
	if store != nil {
		service.WithHistory(store)
	}

	return &App{
		Config:     cfg,
		Logger:     logger,
		Service:    service,
		Invoker:    invoker,
		Visualizer: visualizer,
		History:    store,
		Publisher:  publisher,
	}, nil
}

// Close releases the history database and the publisher.
func (a *App) Close() error {
	var firstErr error
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			firstErr = err
		}
	}
	if a.History != nil {
		if err := a.History.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
