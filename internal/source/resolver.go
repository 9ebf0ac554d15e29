// Package source resolves an extraction source (file, directory or URL) to
// local PDF paths.
package source

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spherical-ai/spherical/libs/figure-service/internal/domain"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/observability"
)

// Config holds resolver settings.
type Config struct {
	// BaseDir anchors relative local sources; empty means the working directory.
	BaseDir         string
	DownloadDir     string
	DownloadTimeout time.Duration
	MaxBytes        int64
}

// Resolver implements domain.Resolver for local paths and http(s) URLs.
type Resolver struct {
	cfg    Config
	client *http.Client
	logger *observability.Logger
}

// NewResolver creates a resolver. A nil client gets a default one bounded by
// cfg.DownloadTimeout.
func NewResolver(logger *observability.Logger, cfg Config, client *http.Client) *Resolver {
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 2 * time.Minute
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.DownloadTimeout}
	}
	return &Resolver{
		cfg:    cfg,
		client: client,
		logger: logger.WithOperation("resolve"),
	}
}

// Resolve returns the local PDF paths named by src. Directory listings are
// non-recursive and sorted by file name.
func (r *Resolver) Resolve(ctx context.Context, src string) ([]string, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, domain.ValidationError("source cannot be empty", nil)
	}

	if IsRemote(src) {
		path, err := r.download(ctx, src)
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	}

	path, err := absPath(src, r.cfg.BaseDir)
	if err != nil {
		return nil, domain.ValidationError(fmt.Sprintf("invalid path: %s", src), err)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.NotFoundError(fmt.Sprintf("path does not exist: %s", path), err)
		}
		return nil, domain.ValidationError(fmt.Sprintf("cannot access path: %s", path), err)
	}

	if info.IsDir() {
		return r.listDirectory(path)
	}

	if err := ValidatePDFPath(path); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

func (r *Resolver) listDirectory(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, domain.ValidationError(fmt.Sprintf("cannot list directory: %s", dir), err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !IsPDFName(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	// The tool names every artifact after the file stem, so two files that
	// differ only in extension case would share outputs. Keep the first.
	paths := make([]string, 0, len(names))
	seen := make(map[string]string, len(names))
	for _, name := range names {
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if prev, dup := seen[stem]; dup {
			r.logger.Warn().
				Str("dir", dir).
				Str("file", name).
				Str("kept", prev).
				Msg("Skipping PDF whose outputs would collide with another file")
			continue
		}
		seen[stem] = name
		paths = append(paths, filepath.Join(dir, name))
	}

	r.logger.Debug().Str("dir", dir).Int("pdfs", len(paths)).Msg("Listed source directory")
	return paths, nil
}

// IsRemote reports whether src is an http or https URL.
func IsRemote(src string) bool {
	lower := strings.ToLower(src)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func absPath(p, base string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	} else if base != "" && !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	return filepath.Abs(p)
}
