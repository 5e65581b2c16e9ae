// Package cache persists the record describing the currently provisioned
// driver, used to short-circuit future resolutions.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// RecordFile is the metadata file name stored beside the driver.
const RecordFile = "data.json"

// ErrCorruptCache indicates the record file exists but cannot be parsed.
// Callers recover by treating the cache as absent and overwriting it.
var ErrCorruptCache = errors.New("corrupt cache record")

// Record describes one provisioned driver.
type Record struct {
	// Version is the dotted browser version the driver was resolved for.
	Version string `json:"version"`
	// Path is the absolute path of the extracted driver executable.
	Path string `json:"path"`
}

// Store reads and writes driver cache records.
type Store struct{}

// NewStore creates a cache store.
func NewStore() *Store {
	return &Store{}
}

// Load reads the record from dir. A missing file is not an error and
// returns a nil record.
func (s *Store) Load(dir string) (*Record, error) {
	data, err := os.ReadFile(filepath.Join(dir, RecordFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache record: %w", err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCache, err)
	}
	if record.Version == "" || record.Path == "" {
		return nil, fmt.Errorf("%w: missing fields", ErrCorruptCache)
	}

	return &record, nil
}

// Save writes the record into dir, atomically replacing any prior content.
func (s *Store) Save(dir string, record *Record) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode cache record: %w", err)
	}

	if err := renameio.WriteFile(filepath.Join(dir, RecordFile), data, 0644); err != nil {
		return fmt.Errorf("write cache record: %w", err)
	}
	return nil
}

// Invalidate removes the record file and the driver executable it points
// at. Files already gone are not errors.
func (s *Store) Invalidate(dir string, record *Record) error {
	if err := os.Remove(filepath.Join(dir, RecordFile)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cache record: %w", err)
	}
	if record != nil && record.Path != "" {
		if err := os.Remove(record.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove cached driver: %w", err)
		}
	}
	return nil
}
