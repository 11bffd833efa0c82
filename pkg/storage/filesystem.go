package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileStore keeps rendered export files on disk under one base directory.
// Names may contain subdirectories but never escape the base.
type FileStore struct {
	dir string
}

// NewFileStore creates the base directory if needed and returns a store.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "./exports"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export store: create base dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Save writes data under the given relative name, creating parent
// directories as needed.
func (s *FileStore) Save(name string, data []byte) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export store: prepare dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export store: write %s: %w", name, err)
	}
	return nil
}

// Read returns the stored bytes for name. os.IsNotExist holds for the
// returned error when the file is gone.
func (s *FileStore) Read(name string) ([]byte, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// Remove deletes a stored file; a missing file is not an error.
func (s *FileStore) Remove(name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("export store: remove %s: %w", name, err)
	}
	return nil
}

// Sweep deletes files whose modification time is older than maxAge and
// reports how many were removed.
func (s *FileStore) Sweep(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	err := filepath.WalkDir(s.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("export store: sweep: %w", err)
	}
	return removed, nil
}

// resolve maps a relative name onto the base directory, rejecting absolute
// paths and any traversal outside it.
func (s *FileStore) resolve(name string) (string, error) {
	if name == "" || filepath.IsAbs(name) {
		return "", fmt.Errorf("export store: invalid name %q", name)
	}
	path := filepath.Join(s.dir, filepath.Clean(name))
	if rel, err := filepath.Rel(s.dir, path); err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("export store: invalid name %q", name)
	}
	return path, nil
}
