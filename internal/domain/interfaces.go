package domain

import "context"

// Resolver turns a source specification into local PDF paths
type Resolver interface {
	// Resolve returns PDF paths in a stable order. Downloads land in the
	// resolver's scratch directory.
	Resolve(ctx context.Context, source string) ([]string, error)
}

// Invoker runs the external figure-extraction tool on one PDF
type Invoker interface {
	// Invoke never returns an error: failures become failure outcomes
	Invoke(ctx context.Context, pdfPath string, opts InvokeOptions) ExtractionOutcome
}

// InvokeOptions carries the per-request parameters of one invocation
type InvokeOptions struct {
	OutputDir string
	DPI       int
	Visualize bool
}

// StatsWriter persists a batch result report
type StatsWriter interface {
	Write(path string, result *BatchResult) error
}
