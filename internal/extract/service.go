// Package extract runs one extraction request end to end: resolve the source,
// run the batch, write statistics, record history and announce completion.
package extract

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spherical-ai/spherical/libs/figure-service/internal/batch"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/domain"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/events"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/observability"
)

// History records finished batches.
type History interface {
	Save(ctx context.Context, result *domain.BatchResult) error
}

// Config holds per-service defaults applied to requests that omit them.
type Config struct {
	OutputDir  string
	DefaultDPI int
}

// Service orchestrates the extraction workflow
type Service struct {
	resolver     domain.Resolver
	orchestrator *batch.Orchestrator
	stats        domain.StatsWriter
	history      History
	publisher    events.Publisher
	cfg          Config
	logger       *observability.Logger
}

// NewService creates a new extraction service
func NewService(logger *observability.Logger, resolver domain.Resolver, orchestrator *batch.Orchestrator, stats domain.StatsWriter, cfg Config) *Service {
	if cfg.DefaultDPI <= 0 {
		cfg.DefaultDPI = 300
	}
	return &Service{
		resolver:     resolver,
		orchestrator: orchestrator,
		stats:        stats,
		publisher:    events.NopPublisher{},
		cfg:          cfg,
		logger:       logger.WithOperation("extract"),
	}
}

// WithHistory records every finished batch in h.
func (s *Service) WithHistory(h History) *Service {
	s.history = h
	return s
}

// WithPublisher announces every finished batch on p.
func (s *Service) WithPublisher(p events.Publisher) *Service {
	if p != nil {
		s.publisher = p
	}
	return s
}

// Extract handles one request. Resolution failures abort with an error and no
// outcomes; per-file failures are reported inside the returned result.
func (s *Service) Extract(ctx context.Context, req domain.ExtractionRequest, progress batch.ProgressFunc) (*domain.BatchResult, error) {
	if req.Source == "" {
		return nil, domain.ValidationError("source is required", nil)
	}
	if req.DPI < 0 {
		return nil, domain.ValidationError("dpi must be positive", nil)
	}

	opts := domain.InvokeOptions{
		OutputDir: req.OutputDir,
		DPI:       req.DPI,
		Visualize: req.Visualize,
	}
	if opts.OutputDir == "" {
		opts.OutputDir = s.cfg.OutputDir
	}
	if opts.DPI == 0 {
		opts.DPI = s.cfg.DefaultDPI
	}

	batchID := uuid.NewString()
	logger := s.logger.WithContext(ctx).WithBatch(batchID)
	started := time.Now()

	paths, err := s.resolver.Resolve(ctx, req.Source)
	if err != nil {
		logger.Warn().Err(err).Str("source", req.Source).Msg("Could not resolve source")
		return nil, err
	}
	logger.Info().Str("source", req.Source).Int("files", len(paths)).Str("output_dir", opts.OutputDir).Msg("Source resolved")

	outcomes := s.orchestrator.Run(ctx, paths, opts, progress)

	result := domain.NewBatchResult(batchID, req.Source, outcomes, started.UTC())
	result.ElapsedSeconds = time.Since(started).Seconds()

	if req.StatFile != "" {
		result.StatFile = req.StatFile
		if err := s.stats.Write(req.StatFile, result); err != nil {
			logger.Error().Err(err).Str("stat_file", req.StatFile).Msg("Failed to write statistics")
			result.StatFileError = err.Error()
		}
	}

	if s.history != nil {
		if err := s.history.Save(ctx, result); err != nil {
			logger.Error().Err(err).Msg("Failed to record batch history")
		}
	}

	if err := s.publisher.Publish(ctx, events.NewBatchCompleted(result)); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish batch event")
	}

	logger.Info().
		Int("total", result.Total).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Int("figures", result.TotalFigures()).
		Float64("elapsed_seconds", result.ElapsedSeconds).
		Msg("Batch complete")

	return result, nil
}
