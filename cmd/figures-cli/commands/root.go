// Package commands implements the figures CLI.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/spherical-ai/spherical/libs/figure-service/cmd/figures-cli/ui"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/app"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/config"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/figures"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/observability"
)

const version = "1.0.0"

type rootOptions struct {
	cfgFile string
	verbose bool
	noColor bool

	cfg    *config.Config
	logger *observability.Logger
	// runner replaces the process runner; nil runs real commands.
	runner figures.Runner
	logOut io.Writer
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{})
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:     "figures-cli",
		Version: version,
		Short:   "Extract figures and tables from academic PDFs",
		Long: `figures-cli runs the pdffigures2 extractor over a PDF file, a directory of PDFs
or a PDF URL, and reports per-file outcomes. It uses the same configuration as
the figure service API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ui.Init(opts.noColor, opts.verbose)
			ui.SetOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())

			path := opts.cfgFile
			if path == "" {
				path = os.Getenv("CONFIG_PATH")
			}
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			opts.cfg = cfg

			level := "warn"
			if opts.verbose {
				level = "debug"
			}
			logOut := opts.logOut
			if logOut == nil {
				logOut = cmd.ErrOrStderr()
			}
			opts.logger = observability.NewLogger(observability.LogConfig{
				Level:       level,
				Format:      "console",
				Output:      logOut,
				ServiceName: "figures-cli",
			})
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "config file path")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newExtractCmd(opts),
		newVisualizeCmd(opts),
		newHistoryCmd(opts),
	)
	return root
}

// buildApp wires the service from the loaded configuration.
func (o *rootOptions) buildApp(ctx context.Context) (*app.App, error) {
	return app.Build(ctx, o.cfg, o.logger, app.Options{Runner: o.runner})
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
