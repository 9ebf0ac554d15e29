package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/figure-service/internal/config"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/domain"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/events"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/figures"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/observability"
)

// emptyTool succeeds and reports no figures.
type emptyTool struct{}

func (emptyTool) Run(_ context.Context, _ string, args ...string) (figures.Result, error) {
	var pdf, meta string
	for i, a := range args {
		switch a {
		case "-jar":
			pdf = args[i+2]
		case "-d":
			meta = args[i+1]
		}
	}
	return figures.Result{}, os.WriteFile(meta+figures.Stem(pdf)+".json", []byte("[]"), 0o644)
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	root := t.TempDir()
	cfg.Paths.InputDir = filepath.Join(root, "input")
	cfg.Paths.OutputDir = filepath.Join(root, "output")
	cfg.Paths.DownloadDir = filepath.Join(root, "downloads")
	cfg.History.DSN = "file:" + t.Name() + "?mode=memory&cache=shared"
	cfg.Events.Driver = events.DriverMemory
	return cfg
}

func TestBuild_Defaults(t *testing.T) {
	cfg := testConfig(t)
	a, err := Build(context.Background(), cfg, observability.NopLogger(), Options{Runner: emptyTool{}})
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Service)
	assert.NotNil(t, a.Visualizer)
	assert.NotNil(t, a.History)
	assert.IsType(t, &events.MemoryPublisher{}, a.Publisher)
	assert.Equal(t, cfg.Extractor.JarPath, a.Invoker.JarPath())

	require.NoError(t, os.MkdirAll(cfg.Paths.InputDir, 0o755))
	pdf := filepath.Join(cfg.Paths.InputDir, "paper.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4\n%%EOF\n"), 0o644))

	res, err := a.Service.Extract(context.Background(), domain.ExtractionRequest{Source: pdf}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)

	stored, err := a.History.Get(context.Background(), res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, res.Total, stored.Total)
}

func TestBuild_HistoryDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Driver = "none"
	a, err := Build(context.Background(), cfg, observability.NopLogger(), Options{})
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.History)
}

func TestBuild_Errors(t *testing.T) {
	cfg := testConfig(t)
	cfg.Events.Driver = "kafka"
	_, err := Build(context.Background(), cfg, observability.NopLogger(), Options{})
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Extractor.JavaOpts = `"-Xmx`
	_, err = Build(context.Background(), cfg, observability.NopLogger(), Options{})
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
}

func TestBuild_BadVisualizerCommandDisablesVisualization(t *testing.T) {
	cfg := testConfig(t)
	cfg.Visualizer.Command = ""
	a, err := Build(context.Background(), cfg, observability.NopLogger(), Options{})
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.Visualizer)
}
