package commands

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical-ai/spherical/libs/figure-service/cmd/figures-cli/ui"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/domain"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/source"
)

type extractOptions struct {
	statFile    string
	outputDir   string
	dpi         int
	render      bool
	workers     int
	jsonOutput  bool
	failOnError bool
}

func newExtractCmd(root *rootOptions) *cobra.Command {
	opts := &extractOptions{}
	cmd := &cobra.Command{
		Use:   "extract <source>",
		Short: "Extract figures from a PDF, a directory of PDFs or a PDF URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, root, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.statFile, "stat-file", "s", "", "write batch statistics to this file (.json or .yaml)")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "output root (default from config)")
	cmd.Flags().IntVar(&opts.dpi, "dpi", 0, "render resolution (default from config)")
	cmd.Flags().BoolVarP(&opts.render, "render", "r", false, "ask the extractor to render page images")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "concurrent extractor processes (default from config)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "print the batch result as JSON")
	cmd.Flags().BoolVar(&opts.failOnError, "fail-on-error", false, "exit non-zero when any file fails")
	return cmd
}

func runExtract(cmd *cobra.Command, root *rootOptions, opts *extractOptions, src string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.workers > 0 {
		root.cfg.Extraction.Workers = opts.workers
	}

	application, err := root.buildApp(ctx)
	if err != nil {
		return err
	}
	defer application.Close()

	// Relative paths on the command line mean the working directory, not
	// paths.input_dir.
	if !source.IsRemote(src) && !filepath.IsAbs(src) && !strings.HasPrefix(src, "~") {
		if abs, err := filepath.Abs(src); err == nil {
			src = abs
		}
	}

	req := domain.ExtractionRequest{
		Source:    src,
		StatFile:  opts.statFile,
		OutputDir: opts.outputDir,
		DPI:       opts.dpi,
		Visualize: opts.render,
	}

	if !opts.jsonOutput {
		ui.Section("Figure Extraction")
		ui.KeyValue("Source", src)
		out := opts.outputDir
		if out == "" {
			out = root.cfg.Paths.OutputDir
		}
		ui.KeyValue("Output", out)
		ui.KeyValue("Workers", strconv.Itoa(root.cfg.Extraction.Workers))
		ui.Newline()
	}

	var spin *ui.Spinner
	var bar *ui.ProgressBar
	progress := func(done, total int, o domain.ExtractionOutcome) {
		if opts.jsonOutput {
			return
		}
		if bar == nil {
			if spin != nil {
				spin.Stop()
			}
			bar = ui.NewProgressBar(int64(total), "Extracting")
		}
		bar.Describe(filepath.Base(o.FilePath))
		bar.Set(int64(done))
	}

	if !opts.jsonOutput {
		spin = ui.NewSpinner("Resolving source and running extractor...")
		spin.Start()
	}
	result, err := application.Service.Extract(ctx, req, progress)
	if bar != nil {
		bar.Finish()
	} else if spin != nil {
		spin.Stop()
	}
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		printBatch(result)
	}

	if opts.failOnError && result.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", result.Failed, result.Total)
	}
	return nil
}

func printBatch(result *domain.BatchResult) {
	if result.Total == 0 {
		ui.Warning("No PDF files found")
		return
	}

	rows := make([][]string, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		pages := "-"
		if o.PageCount > 0 {
			pages = strconv.Itoa(o.PageCount)
		}
		rows = append(rows, []string{
			filepath.Base(o.FilePath),
			string(o.Status),
			strconv.Itoa(o.FigureCount),
			pages,
			ui.FormatDuration(time.Duration(o.ElapsedSeconds * float64(time.Second))),
			ui.Truncate(o.ErrorMessage, 60),
		})
	}
	ui.Table([]string{"FILE", "STATUS", "FIGURES", "PAGES", "TIME", "ERROR"}, rows)
	ui.Newline()

	if ui.Verbose() {
		for _, o := range result.Outcomes {
			for _, f := range o.Figures {
				ui.Step("%s: %s %s (page %d) %s", filepath.Base(o.FilePath), f.FigType, f.Name, f.Page, ui.Truncate(f.Caption, 60))
			}
		}
		ui.Newline()
	}

	elapsed := ui.FormatDuration(time.Duration(result.ElapsedSeconds * float64(time.Second)))
	if result.Failed == 0 {
		ui.Success("%d/%d files extracted, %d figures in %s", result.Succeeded, result.Total, result.TotalFigures(), elapsed)
	} else {
		ui.Warning("%d/%d files extracted, %d failed, %d figures in %s", result.Succeeded, result.Total, result.Failed, result.TotalFigures(), elapsed)
	}
	if result.StatFile != "" {
		if result.StatFileError != "" {
			ui.Error("Statistics not written: %s", result.StatFileError)
		} else {
			ui.Info("Statistics written to %s", result.StatFile)
		}
	}
	ui.Info("Batch %s", result.BatchID)
}
