package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/figure-service/internal/domain"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/observability"
)

func newTestResolver(t *testing.T, maxBytes int64) (*Resolver, string) {
	t.Helper()
	dl := filepath.Join(t.TempDir(), "downloads")
	return NewResolver(observability.NopLogger(), Config{DownloadDir: dl, MaxBytes: maxBytes}, nil), dl
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n"), 0o644))
}

func TestResolve_SingleFile(t *testing.T) {
	r, _ := newTestResolver(t, 0)
	dir := t.TempDir()
	pdf := filepath.Join(dir, "paper.pdf")
	writeFile(t, pdf)

	paths, err := r.Resolve(context.Background(), pdf)
	require.NoError(t, err)
	assert.Equal(t, []string{pdf}, paths)
}

func TestResolve_UppercaseExtension(t *testing.T) {
	r, _ := newTestResolver(t, 0)
	pdf := filepath.Join(t.TempDir(), "PAPER.PDF")
	writeFile(t, pdf)

	paths, err := r.Resolve(context.Background(), pdf)
	require.NoError(t, err)
	assert.Len(t, paths, 1)
}

func TestResolve_DirectoryListsOnlyPDFsSorted(t *testing.T) {
	r, _ := newTestResolver(t, 0)
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.pdf", "notes.txt", "c.PDF"} {
		writeFile(t, filepath.Join(dir, name))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.pdf"), 0o755))
	writeFile(t, filepath.Join(dir, "nested.pdf", "inner.pdf"))

	paths, err := r.Resolve(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.pdf"),
		filepath.Join(dir, "b.pdf"),
		filepath.Join(dir, "c.PDF"),
	}, paths)
}

func TestResolve_DirectorySkipsStemCollisions(t *testing.T) {
	r, _ := newTestResolver(t, 0)
	dir := t.TempDir()
	for _, name := range []string{"paper.pdf", "paper.PDF", "paper.Pdf", "other.pdf"} {
		writeFile(t, filepath.Join(dir, name))
	}

	paths, err := r.Resolve(context.Background(), dir)
	require.NoError(t, err)
	// "paper.PDF" sorts first and keeps the stem.
	assert.Equal(t, []string{
		filepath.Join(dir, "other.pdf"),
		filepath.Join(dir, "paper.PDF"),
	}, paths)
}

func TestResolve_UnreadableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	r, _ := newTestResolver(t, 0)
	dir := filepath.Join(t.TempDir(), "locked")
	require.NoError(t, os.Mkdir(dir, 0o000))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	_, err := r.Resolve(context.Background(), dir)
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestResolve_RelativeToBaseDir(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "paper.pdf"))
	r := NewResolver(observability.NopLogger(), Config{BaseDir: base, DownloadDir: t.TempDir()}, nil)

	paths, err := r.Resolve(context.Background(), "paper.pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(base, "paper.pdf")}, paths)

	abs := filepath.Join(t.TempDir(), "elsewhere.pdf")
	writeFile(t, abs)
	paths, err = r.Resolve(context.Background(), abs)
	require.NoError(t, err)
	assert.Equal(t, []string{abs}, paths)
}

func TestResolve_EmptyDirectory(t *testing.T) {
	r, _ := newTestResolver(t, 0)
	paths, err := r.Resolve(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestResolve_NotFound(t *testing.T) {
	r, _ := newTestResolver(t, 0)
	_, err := r.Resolve(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeNotFound))
}

func TestResolve_NotAPDF(t *testing.T) {
	r, _ := newTestResolver(t, 0)
	txt := filepath.Join(t.TempDir(), "notes.txt")
	writeFile(t, txt)

	_, err := r.Resolve(context.Background(), txt)
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestResolve_EmptySource(t *testing.T) {
	r, _ := newTestResolver(t, 0)
	_, err := r.Resolve(context.Background(), "   ")
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestResolve_DownloadSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7 remote"))
	}))
	defer srv.Close()

	r, dl := newTestResolver(t, 0)
	paths, err := r.Resolve(context.Background(), srv.URL+"/paper.pdf")
	require.NoError(t, err)
	require.Len(t, paths, 1)

	assert.Equal(t, ".pdf", filepath.Ext(paths[0]))
	absDL, _ := filepath.Abs(dl)
	assert.Equal(t, absDL, filepath.Dir(paths[0]))

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 remote", string(data))

	// no temp files left behind
	entries, err := os.ReadDir(dl)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestResolve_Download404(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	r, dl := newTestResolver(t, 0)
	paths, err := r.Resolve(context.Background(), srv.URL+"/missing.pdf")
	require.Error(t, err)
	assert.Nil(t, paths)
	assert.True(t, domain.IsType(err, domain.ErrorTypeDownload))
	assert.Contains(t, err.Error(), "HTTP 404")

	_, statErr := os.Stat(dl)
	assert.True(t, os.IsNotExist(statErr), "no download directory should be created on failure")
}

func TestResolve_DownloadNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	r, _ := newTestResolver(t, 0)
	_, err := r.Resolve(context.Background(), url+"/paper.pdf")
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeDownload))
}

func TestResolve_DownloadTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	r, dl := newTestResolver(t, 16)
	_, err := r.Resolve(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeDownload))

	entries, err := os.ReadDir(dl)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://arxiv.org/pdf/1234.pdf"))
	assert.True(t, IsRemote("HTTP://example.com/x.pdf"))
	assert.False(t, IsRemote("/data/input/x.pdf"))
	assert.False(t, IsRemote("ftp://example.com/x.pdf"))
}

func TestPageCount_InvalidFile(t *testing.T) {
	pdf := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("not a pdf"), 0o644))

	_, err := PageCount(pdf)
	assert.Error(t, err)
}
