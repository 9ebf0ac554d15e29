package figures

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/shlex"

	"github.com/spherical-ai/spherical/libs/figure-service/internal/domain"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/observability"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/source"
)

// Visualizer runs the tool's visualization entry point on one PDF.
type Visualizer struct {
	command []string
	runner  Runner
	logger  *observability.Logger
}

// NewVisualizer parses command (shell-style) once. A nil runner means ExecRunner.
func NewVisualizer(logger *observability.Logger, command string, runner Runner) (*Visualizer, error) {
	parts, err := shlex.Split(command)
	if err != nil {
		return nil, domain.ConfigError("cannot parse visualizer command", err)
	}
	if len(parts) == 0 {
		return nil, domain.ConfigError("visualizer command is empty", nil)
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Visualizer{
		command: parts,
		runner:  runner,
		logger:  logger.WithOperation("visualize"),
	}, nil
}

// Visualize validates pdfPath and runs the visualization command on it.
// Validation problems are returned as errors; a failing command is reported
// in the result.
func (v *Visualizer) Visualize(ctx context.Context, pdfPath string, intermediate bool) (*domain.VisualizationResult, error) {
	if err := source.ValidatePDFPath(pdfPath); err != nil {
		return nil, err
	}

	args := append([]string{}, v.command[1:]...)
	args = append(args, pdfPath)
	if intermediate {
		args = append(args, "-s")
	}

	v.logger.Info().Str("file", pdfPath).Str("command", v.command[0]+" "+strings.Join(args, " ")).Msg("Executing visualization command")

	res, err := v.runner.Run(ctx, v.command[0], args...)
	if err != nil {
		msg := fmt.Sprintf("Visualization command failed with return code %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
		v.logger.Error().Err(err).Str("file", pdfPath).Msg(msg)
		return &domain.VisualizationResult{Success: false, Message: msg, Output: res.Stdout}, nil
	}

	return &domain.VisualizationResult{
		Success: true,
		Message: "Visualization completed successfully.",
		Output:  res.Stdout,
	}, nil
}
