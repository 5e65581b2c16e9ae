// Package testutil provides helpers for testing driver provisioning in
// isolation: temporary download directories and in-memory driver archives,
// so tests never touch real catalogs or an installed browser.
package testutil

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// ZipEntry is one file inside a generated test archive. Entries keep their
// declared order, which matters for archives with several matching names.
type ZipEntry struct {
	Name    string
	Content string
}

// BuildZip assembles an in-memory zip archive from the given entries.
func BuildZip(t *testing.T, entries []ZipEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for _, entry := range entries {
		w, err := writer.Create(entry.Name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", entry.Name, err)
		}
		if _, err := w.Write([]byte(entry.Content)); err != nil {
			t.Fatalf("write zip entry %s: %v", entry.Name, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	return buf.Bytes()
}

// DriverArchive builds the modern nested-layout archive for a platform.
func DriverArchive(t *testing.T, platformToken, content string) []byte {
	t.Helper()
	return BuildZip(t, []ZipEntry{
		{Name: "chromedriver-" + platformToken + "/chromedriver", Content: content},
	})
}

// DownloadDir creates an isolated download directory for one test.
func DownloadDir(t *testing.T) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "downloads")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("create download dir: %v", err)
	}
	return dir
}
