// Package lockfile guards a driver directory against concurrent
// provisioning. The lock is held across the whole check-cache to
// persist-record span and released on every exit path.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// LockFile is the lock file name inside the driver directory.
	LockFile = "driverium.lock"
	// StaleThreshold is the maximum age of a lock before it is considered
	// abandoned by a crashed process.
	StaleThreshold = 10 * time.Minute
)

// ErrLockHeld indicates another provisioning run currently holds the lock.
var ErrLockHeld = errors.New("driver directory is locked: another provisioning run may be in progress")

// Lock represents an exclusive lock on a driver directory.
type Lock struct {
	path string
	file *os.File
}

// Acquire attempts to take the exclusive lock for dir.
// Uses O_CREATE|O_EXCL for atomic lock creation; a stale lock left behind
// by a crashed process is removed and retried once.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	lockPath := filepath.Join(dir, LockFile)

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		if os.IsExist(err) {
			if stale, _ := isStale(lockPath); stale {
				os.Remove(lockPath)
				file, err = os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
				if err != nil {
					return nil, ErrLockHeld
				}
			} else {
				return nil, ErrLockHeld
			}
		} else {
			return nil, fmt.Errorf("create lock file: %w", err)
		}
	}

	lockData := fmt.Sprintf("pid=%d\ntimestamp=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(lockData); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("write lock data: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("sync lock file: %w", err)
	}

	return &Lock{path: lockPath, file: file}, nil
}

// Release releases the lock. Safe to call more than once.
func (l *Lock) Release() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	if l.path != "" {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove lock file: %w", err)
		}
		l.path = ""
	}

	return nil
}

// isStale checks whether a lock file is older than the stale threshold.
func isStale(lockPath string) (bool, error) {
	info, err := os.Stat(lockPath)
	if err != nil {
		return false, err
	}
	return time.Since(info.ModTime()) > StaleThreshold, nil
}
