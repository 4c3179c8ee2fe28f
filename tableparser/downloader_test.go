package tableparser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(consumptionCSV))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := NewDownloader(dir, 5*time.Second)

	path, err := d.Download(context.Background(), srv.URL, "raw/map_opioidconsum.csv")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if path != filepath.Join(dir, "raw", "map_opioidconsum.csv") {
		t.Errorf("Unexpected path %s", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != consumptionCSV {
		t.Error("Downloaded content differs")
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "raw"))
	if len(entries) != 1 {
		t.Errorf("Temporary files should not be left behind, got %d entries", len(entries))
	}
}

func TestDownloadErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := NewDownloader(dir, 5*time.Second)

	tests := []struct {
		name    string
		url     string
		file    string
		wantMsg string
	}{
		{"escaping path", srv.URL, "../outside.csv", "invalid filepath"},
		{"bad status", srv.URL, "a.csv", "unexpected status"},
		{"bad url", "://nope", "a.csv", "failed to build request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Download(context.Background(), tt.url, tt.file)
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Expected error containing %q, got %v", tt.wantMsg, err)
			}
		})
	}

	if _, err := os.Stat(filepath.Join(dir, "a.csv")); !os.IsNotExist(err) {
		t.Error("A failed download must not create the file")
	}
}
