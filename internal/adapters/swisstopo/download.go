package swisstopo

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dachtraufe/traufe/pkg/logger"
	"github.com/dachtraufe/traufe/pkg/metrics"
)

// Downloader fetches asset tiles into a local cache directory. Files are
// cached by name; an existing file is never re-downloaded.
type Downloader struct {
	client *Client
	dir    string
}

// NewDownloader creates a Downloader writing into dir.
func NewDownloader(client *Client, dir string) *Downloader {
	return &Downloader{client: client, dir: dir}
}

// Fetch downloads an asset into the cache subdirectory kind (e.g.
// "buildings" or "dem") and returns the local path. cached is true when
// the file was already present.
func (d *Downloader) Fetch(ctx context.Context, asset Asset, kind string) (string, bool, error) {
	name, err := assetFilename(asset.Href)
	if err != nil {
		return "", false, err
	}

	dir := filepath.Join(d.dir, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("create cache dir: %w", err)
	}

	dest := filepath.Join(dir, name)
	if _, err := os.Stat(dest); err == nil {
		metrics.RecordTileCacheHit()
		d.client.logger.Debug(ctx, "tile cache hit", logger.String("file", dest))
		return dest, true, nil
	}

	start := time.Now()
	if err := d.download(ctx, asset.Href, dest); err != nil {
		metrics.RecordTileDownloadError()
		return "", false, err
	}
	metrics.RecordTileDownloaded()
	metrics.RecordTileDownloadLatency(float64(time.Since(start).Milliseconds()))

	d.client.logger.Info(ctx, "tile downloaded",
		logger.String("url", asset.Href),
		logger.String("file", dest),
		logger.Duration("elapsed", time.Since(start)),
	)
	return dest, false, nil
}

// download streams the asset to a temp file and renames it into place so
// a partial download never poisons the cache.
func (d *Downloader) download(ctx context.Context, href, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("User-Agent", d.client.userAgent)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := d.client.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d for %s", ErrDownload, resp.StatusCode, href)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write body: %v", ErrDownload, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("move into cache: %w", err)
	}
	return nil
}

// assetFilename extracts the filename component of an asset URL.
func assetFilename(href string) (string, error) {
	u, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse asset url %q: %w", href, err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("asset url %q has no filename", href)
	}
	return name, nil
}

// Unzip extracts a zip archive next to itself and returns the extracted
// file paths. Entries escaping the destination directory are rejected.
func Unzip(archivePath string) ([]string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer func() { _ = r.Close() }()

	destDir := filepath.Dir(archivePath)
	var extracted []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := filepath.Clean(f.Name)
		if strings.HasPrefix(name, "..") || filepath.IsAbs(name) {
			return nil, fmt.Errorf("archive entry %q escapes destination", f.Name)
		}

		dest := filepath.Join(destDir, name)
		if err := extractFile(f, dest); err != nil {
			return nil, err
		}
		extracted = append(extracted, dest)
	}
	return extracted, nil
}

func extractFile(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create extraction dir: %w", err)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return nil
}
