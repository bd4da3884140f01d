package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// LocalStorage keeps export artifacts on the local filesystem. Used when no
// storage account is configured.
type LocalStorage struct {
	dir string
}

// Ensure LocalStorage implements ArtifactStore
var _ ArtifactStore = (*LocalStorage)(nil)

// NewLocalStorage creates the artifact directory if needed
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &LocalStorage{dir: dir}, nil
}

// Store writes an artifact to the directory
func (s *LocalStorage) Store(filename string, data []byte) error {
	path := filepath.Join(s.dir, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write artifact %s: %w", filename, err)
	}
	logrus.Infof("Stored export artifact %s", path)
	return nil
}

// Retrieve reads an artifact back
func (s *LocalStorage) Retrieve(filename string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.Base(filename)))
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", filename, err)
	}
	return data, nil
}

// List returns artifact names under the given prefix
func (s *LocalStorage) List(prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if prefix == "" || strings.HasPrefix(entry.Name(), prefix) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes an artifact
func (s *LocalStorage) Delete(filename string) error {
	if err := os.Remove(filepath.Join(s.dir, filepath.Base(filename))); err != nil {
		return fmt.Errorf("failed to delete artifact %s: %w", filename, err)
	}
	return nil
}
