package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/spherical-ai/spherical/libs/figure-service/internal/domain"
)

// download fetches url into the scratch directory under a fresh uuid name.
func (r *Resolver) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", domain.DownloadError(fmt.Sprintf("invalid URL: %s", url), err)
	}
	req.Header.Set("Accept", "application/pdf, */*")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", domain.DownloadError(fmt.Sprintf("failed to download PDF from %s", url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", domain.DownloadError(
			fmt.Sprintf("failed to download PDF from %s", url),
			fmt.Errorf("HTTP %d", resp.StatusCode),
		)
	}

	if err := os.MkdirAll(r.cfg.DownloadDir, 0o755); err != nil {
		return "", domain.IOError("cannot create download directory", err)
	}

	tmp, err := os.CreateTemp(r.cfg.DownloadDir, ".download-*")
	if err != nil {
		return "", domain.IOError("cannot create download file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	body := io.Reader(resp.Body)
	if r.cfg.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, r.cfg.MaxBytes+1)
	}

	n, err := io.Copy(tmp, body)
	closeErr := tmp.Close()
	if err != nil {
		return "", domain.DownloadError(fmt.Sprintf("failed reading body from %s", url), err)
	}
	if closeErr != nil {
		return "", domain.IOError("cannot write download file", closeErr)
	}
	if r.cfg.MaxBytes > 0 && n > r.cfg.MaxBytes {
		return "", domain.DownloadError(
			fmt.Sprintf("PDF at %s exceeds %d bytes", url, r.cfg.MaxBytes), nil)
	}

	path := filepath.Join(r.cfg.DownloadDir, uuid.New().String()+".pdf")
	if err := os.Rename(tmpName, path); err != nil {
		return "", domain.IOError("cannot store downloaded PDF", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	r.logger.Info().
		Str("url", url).
		Str("path", absPath).
		Int64("bytes", n).
		Msg("Downloaded PDF")

	return absPath, nil
}
