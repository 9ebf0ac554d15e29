// Package figures drives the external figure-extraction tool: it builds the
// command line, runs one child process per PDF and turns what the tool leaves
// on disk into an outcome.
package figures

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/shlex"

	"github.com/spherical-ai/spherical/libs/figure-service/internal/domain"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/observability"
)

const (
	FiguresSubdir  = "figures"
	MetadataSubdir = "metadata"

	maxErrorText = 4096
)

// Config describes how to launch the tool.
type Config struct {
	JavaBin    string
	JavaOpts   string
	JarPath    string
	DefaultDPI int
	Timeout    time.Duration
}

// PageCounter reports the number of pages of a PDF.
type PageCounter func(path string) (int, error)

// Invoker implements domain.Invoker on top of a Runner.
type Invoker struct {
	cfg       Config
	javaOpts  []string
	runner    Runner
	pageCount PageCounter
	logger    *observability.Logger
}

// NewInvoker creates an invoker. A nil runner means ExecRunner.
func NewInvoker(logger *observability.Logger, cfg Config, runner Runner) (*Invoker, error) {
	opts, err := shlex.Split(cfg.JavaOpts)
	if err != nil {
		return nil, domain.ConfigError("cannot parse java_opts", err)
	}
	if cfg.JavaBin == "" {
		cfg.JavaBin = "java"
	}
	if cfg.DefaultDPI <= 0 {
		cfg.DefaultDPI = 300
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Invoker{
		cfg:      cfg,
		javaOpts: opts,
		runner:   runner,
		logger:   logger.WithOperation("invoke"),
	}, nil
}

// WithPageCounter enables page counting before each run.
func (i *Invoker) WithPageCounter(fn PageCounter) *Invoker {
	i.pageCount = fn
	return i
}

// JarPath returns the configured tool location.
func (i *Invoker) JarPath() string {
	return i.cfg.JarPath
}

// Paths returns the figure prefix directory, the metadata directory and the
// metadata document path the tool writes for pdfPath under outputDir.
func Paths(outputDir, pdfPath string) (figDir, metaDir, metaPath string) {
	figDir = filepath.Join(outputDir, FiguresSubdir)
	metaDir = filepath.Join(outputDir, MetadataSubdir)
	metaPath = filepath.Join(metaDir, Stem(pdfPath)+".json")
	return figDir, metaDir, metaPath
}

// Stem is the PDF file name without its extension; the tool names all of a
// document's artifacts after it.
func Stem(pdfPath string) string {
	base := filepath.Base(pdfPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// BuildArgs returns the argument vector passed to the java binary.
func (i *Invoker) BuildArgs(pdfPath string, opts domain.InvokeOptions) []string {
	figDir, metaDir, _ := Paths(opts.OutputDir, pdfPath)
	dpi := opts.DPI
	if dpi <= 0 {
		dpi = i.cfg.DefaultDPI
	}

	args := make([]string, 0, len(i.javaOpts)+10)
	args = append(args, i.javaOpts...)
	args = append(args,
		"-jar", i.cfg.JarPath,
		pdfPath,
		"-m", withTrailingSep(figDir),
		"-d", withTrailingSep(metaDir),
		"--dpi", strconv.Itoa(dpi),
	)
	if opts.Visualize {
		args = append(args, "-r")
	}
	return args
}

// Invoke runs the tool on one PDF. It never returns an error and never
// panics: every failure becomes a failure outcome.
func (i *Invoker) Invoke(ctx context.Context, pdfPath string, opts domain.InvokeOptions) (outcome domain.ExtractionOutcome) {
	start := time.Now()
	logger := i.logger.WithContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Str("file", pdfPath).Interface("panic", r).Msg("Extraction crashed")
			outcome = domain.FailureOutcome(pdfPath, fmt.Sprintf("internal error: %v", r), time.Since(start))
		}
	}()

	if opts.OutputDir == "" {
		return domain.FailureOutcome(pdfPath, "no output directory configured", time.Since(start))
	}

	figDir, metaDir, metaPath := Paths(opts.OutputDir, pdfPath)
	for _, dir := range []string{figDir, metaDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return domain.FailureOutcome(pdfPath, fmt.Sprintf("cannot create output directory %s: %v", dir, err), time.Since(start))
		}
	}

	// A document left over from an earlier run must not be counted.
	if err := os.Remove(metaPath); err != nil && !os.IsNotExist(err) {
		return domain.FailureOutcome(pdfPath, fmt.Sprintf("cannot remove stale metadata %s: %v", metaPath, err), time.Since(start))
	}

	pages := 0
	if i.pageCount != nil {
		n, err := i.pageCount(pdfPath)
		if err != nil {
			logger.Debug().Err(err).Str("file", pdfPath).Msg("Preflight could not count pages")
		} else {
			pages = n
		}
	}

	runCtx := ctx
	if i.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, i.cfg.Timeout)
		defer cancel()
	}

	args := i.BuildArgs(pdfPath, opts)
	logger.Info().Str("file", pdfPath).Str("command", i.cfg.JavaBin+" "+strings.Join(args, " ")).Msg("Executing extractor")

	res, err := i.runner.Run(runCtx, i.cfg.JavaBin, args...)
	logger.Debug().Str("file", pdfPath).Str("stdout", res.Stdout).Str("stderr", res.Stderr).Msg("Extractor output")

	if err != nil {
		msg := i.failureMessage(runCtx, res, err)
		logger.Error().Str("file", pdfPath).Int("exit_code", res.ExitCode).Msg(msg)
		out := domain.FailureOutcome(pdfPath, msg, time.Since(start))
		out.PageCount = pages
		return out
	}

	figures, err := ReadMetadata(metaPath)
	if err != nil {
		logger.Error().Err(err).Str("file", pdfPath).Msg("Extractor produced unusable metadata")
		out := domain.FailureOutcome(pdfPath, err.Error(), time.Since(start))
		out.PageCount = pages
		return out
	}

	out := domain.SuccessOutcome(pdfPath, figures, time.Since(start))
	out.PageCount = pages
	out.MetadataPath = metaPath

	logger.Info().
		Str("file", pdfPath).
		Int("figures", out.FigureCount).
		Float64("elapsed_seconds", out.ElapsedSeconds).
		Msg("Extraction complete")

	return out
}

func (i *Invoker) failureMessage(ctx context.Context, res Result, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("extraction timed out after %v", i.cfg.Timeout)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return "extraction cancelled"
	}

	detail := strings.TrimSpace(res.Stderr)
	if detail == "" {
		detail = strings.TrimSpace(res.Stdout)
	}
	if detail == "" {
		detail = err.Error()
	}
	detail = tail(detail, maxErrorText)

	if res.ExitCode > 0 {
		return fmt.Sprintf("command failed with return code %d: %s", res.ExitCode, detail)
	}
	return fmt.Sprintf("command failed: %s", detail)
}

// tail returns at most the last n bytes of s without splitting a rune.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}

func withTrailingSep(dir string) string {
	if strings.HasSuffix(dir, string(filepath.Separator)) {
		return dir
	}
	return dir + string(filepath.Separator)
}
