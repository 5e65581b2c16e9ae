// Package archive extracts the driver executable from a downloaded zip.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/driverium/driverium/internal/platform"
)

// ErrNoExecutableInArchive indicates the archive holds no entry whose base
// name starts with "chromedriver".
var ErrNoExecutableInArchive = errors.New("no driver executable in archive")

// Extractor extracts driver executables from zip archives.
type Extractor struct{}

// NewExtractor creates a new extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract locates the driver executable in the zip archive and writes it
// under baseDir, returning the extracted file's path.
//
// The remote archive layout changed over time: old archives store the
// executable at the root, new ones nest it in a chromedriver-<platform>
// directory. Root-level entries are redirected into such a directory so
// both layouts land in the same on-disk shape. On Unix-like platforms the
// extracted file always gets mode 0755; zip archives do not reliably
// preserve executable bits across platforms.
func (e *Extractor) Extract(archive []byte, baseDir string, info *platform.Info) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoExecutableInArchive, err)
	}

	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		if !strings.HasPrefix(path.Base(file.Name), "chromedriver") {
			continue
		}

		destDir := baseDir
		if !strings.Contains(file.Name, "/") {
			// Root-level executable: mirror the nested layout.
			destDir = filepath.Join(baseDir, "chromedriver-"+info.Token())
		}

		target := filepath.Join(destDir, filepath.FromSlash(file.Name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return "", fmt.Errorf("illegal entry path: %s", file.Name)
		}

		if err := e.writeEntry(file, target); err != nil {
			return "", err
		}

		if !info.IsWindows() {
			if err := os.Chmod(target, 0755); err != nil {
				os.Remove(target)
				return "", fmt.Errorf("set executable: %w", err)
			}
		}

		return target, nil
	}

	return "", ErrNoExecutableInArchive
}

// writeEntry copies one archive entry to target, removing the partial file
// on any failure.
func (e *Extractor) writeEntry(file *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open archive entry: %w", err)
	}
	defer src.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(target)
		return fmt.Errorf("write file %s: %w", target, err)
	}

	if err := out.Close(); err != nil {
		os.Remove(target)
		return fmt.Errorf("close file %s: %w", target, err)
	}

	return nil
}
