package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// LocalStorage stores objects as files under a root directory
type LocalStorage struct {
	root string
	mu   sync.RWMutex
}

var _ StorageInterface = (*LocalStorage)(nil)

// NewLocalStorage creates the root directory if needed
func NewLocalStorage(root string) (*LocalStorage, error) {
	if root == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", root, err)
	}
	return &LocalStorage{root: root}, nil
}

func (s *LocalStorage) path(filename string) (string, error) {
	clean := filepath.Clean("/" + filename)
	if clean == "/" {
		return "", fmt.Errorf("invalid object name %q", filename)
	}
	return filepath.Join(s.root, clean), nil
}

// Store writes data through a temp file and rename so readers never see a partial object
func (s *LocalStorage) Store(filename string, data []byte) error {
	p, err := s.path(filename)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", filename, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", filename, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to store %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to store %s: %w", filename, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to store %s: %w", filename, err)
	}

	return nil
}

// Retrieve reads an object; a missing file yields ErrNotFound
func (s *LocalStorage) Retrieve(filename string) ([]byte, error) {
	p, err := s.path(filename)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return data, nil
}

// List returns object names relative to the root, sorted, that start with prefix
func (s *LocalStorage) List(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			names = append(names, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.root, err)
	}

	sort.Strings(names)
	return names, nil
}

// Delete removes an object; deleting a missing object is not an error
func (s *LocalStorage) Delete(filename string) error {
	p, err := s.path(filename)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", filename, err)
	}
	return nil
}
