// Package batch applies the extraction invoker to every resolved PDF of a
// request and collects the outcomes in input order.
package batch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/spherical-ai/spherical/libs/figure-service/internal/domain"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/observability"
)

// ProgressFunc is called once per finished outcome. Calls may come from
// several goroutines when the orchestrator runs with more than one worker.
type ProgressFunc func(done, total int, outcome domain.ExtractionOutcome)

// Orchestrator runs one invocation per path.
type Orchestrator struct {
	invoker domain.Invoker
	workers int
	logger  *observability.Logger
}

// NewOrchestrator creates an orchestrator. workers <= 1 means sequential.
func NewOrchestrator(logger *observability.Logger, invoker domain.Invoker, workers int) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		invoker: invoker,
		workers: workers,
		logger:  logger.WithOperation("batch"),
	}
}

// Workers returns the configured pool size.
func (o *Orchestrator) Workers() int {
	return o.workers
}

// Run invokes the tool on every path and returns exactly one outcome per path,
// in the order of paths. Individual failures never stop the batch.
func (o *Orchestrator) Run(ctx context.Context, paths []string, opts domain.InvokeOptions, progress ProgressFunc) []domain.ExtractionOutcome {
	outcomes := make([]domain.ExtractionOutcome, len(paths))
	if len(paths) == 0 {
		return outcomes
	}

	logger := o.logger.WithContext(ctx)
	logger.Info().Int("files", len(paths)).Int("workers", o.workers).Msg("Starting batch")

	tracker := newTracker(len(paths), progress)

	if o.workers == 1 || len(paths) == 1 {
		for i, path := range paths {
			outcomes[i] = o.invoker.Invoke(ctx, path, opts)
			tracker.done(outcomes[i])
		}
		return outcomes
	}

	// Each goroutine owns one slot of outcomes, so no lock is needed for the
	// slice itself.
	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, path := range paths {
		i, path := i, path // per-iteration copies; go.mod targets Go 1.21 (pre-1.22 loopvar semantics)
		g.Go(func() error {
			outcomes[i] = o.invoker.Invoke(ctx, path, opts)
			tracker.done(outcomes[i])
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}
