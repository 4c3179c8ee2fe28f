package tableparser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/giygas/opioid-maps/logging"
)

// Downloader fetches dataset files into a data directory
type Downloader struct {
	client  *http.Client
	dataDir string
}

// NewDownloader creates a downloader writing into dataDir
func NewDownloader(dataDir string, timeout time.Duration) *Downloader {
	return &Downloader{
		client:  &http.Client{Timeout: timeout},
		dataDir: dataDir,
	}
}

// resolve joins name to the data directory and refuses paths that escape it
func (d *Downloader) resolve(name string) (string, error) {
	base := filepath.Clean(d.dataDir)
	path := filepath.Clean(filepath.Join(base, name))
	if path != base && !strings.HasPrefix(path, base+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid filepath: %s", name)
	}
	return path, nil
}

// Download saves url to name inside the data directory.
// The file is written to a temporary name and renamed, so readers never see a partial file.
func (d *Downloader) Download(ctx context.Context, url string, name string) (string, error) {
	path, err := d.resolve(name)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request for %s: %w", url, err)
	}

	response, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer func() {
		if err := response.Body.Close(); err != nil {
			logging.Warn("Failed to close response body", "error", err)
		}
	}()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download %s: unexpected status %s", url, response.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	written, err := io.Copy(tmp, response.Body)
	closeErr := tmp.Close()
	if err != nil || closeErr != nil {
		_ = os.Remove(tmpName)
		if err == nil {
			err = closeErr
		}
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("failed to move download into place: %w", err)
	}

	logging.Info("Dataset downloaded", "url", url, "path", path, "bytes", written)
	return path, nil
}
