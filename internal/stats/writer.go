// Package stats writes batch result reports to disk.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/spherical-ai/spherical/libs/figure-service/internal/domain"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/observability"
)

const (
	lockTimeout = 10 * time.Second
	lockRetry   = 50 * time.Millisecond
)

// Format is the on-disk encoding of a report.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the encoding from the file extension.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Writer implements domain.StatsWriter.
type Writer struct {
	logger *observability.Logger
}

// NewWriter creates a stats writer.
func NewWriter(logger *observability.Logger) *Writer {
	return &Writer{logger: logger.WithOperation("stats")}
}

// Write encodes result and replaces path atomically. Concurrent writers to the
// same path are serialized through an exclusive lock on path + ".lock".
func (w *Writer) Write(path string, result *domain.BatchResult) error {
	if path == "" {
		return domain.WriteError("stat file path is empty", nil)
	}
	if result == nil {
		return domain.WriteError("no batch result to write", nil)
	}

	data, err := Encode(FormatFor(path), result)
	if err != nil {
		return domain.WriteError(fmt.Sprintf("cannot encode statistics for %s", path), err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.WriteError(fmt.Sprintf("cannot create directory %s", dir), err)
	}

	fileLock := flock.New(path + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	locked, err := fileLock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return domain.WriteError(fmt.Sprintf("failed to acquire lock on %s", path), err)
	}
	if !locked {
		return domain.WriteError(fmt.Sprintf("could not acquire lock on %s", path), nil)
	}
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			w.logger.Warn().Err(err).Str("path", path).Msg("Failed to release stats lock")
		}
	}()

	if err := writeAtomic(path, data); err != nil {
		return domain.WriteError(fmt.Sprintf("failed to write statistics to %s", path), err)
	}

	w.logger.Info().
		Str("path", path).
		Str("batch_id", result.BatchID).
		Int("total", result.Total).
		Msg("Statistics written")
	return nil
}

// Encode renders result in the given format.
func Encode(format Format, result *domain.BatchResult) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(result)
	default:
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
}

// Read decodes a report written by Writer.
func Read(path string) (*domain.BatchResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("cannot read statistics %s", path), err)
	}
	var result domain.BatchResult
	switch FormatFor(path) {
	case FormatYAML:
		err = yaml.Unmarshal(data, &result)
	default:
		err = json.Unmarshal(data, &result)
	}
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("cannot parse statistics %s", path), err)
	}
	return &result, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
