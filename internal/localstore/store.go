// Package localstore provides the client-local key/value store backing
// advisory state such as the recent-recipients log. Values are JSON blobs on
// disk; there is no cross-process locking and concurrent writers race with
// last-writer-wins semantics, which is acceptable for advisory data.
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/peterbourgon/diskv/v3"
)

// Store is a diskv-backed JSON key/value store.
type Store struct {
	d *diskv.Diskv
}

// DefaultBasePath returns the per-user data directory for the store.
func DefaultBasePath() string {
	return filepath.Join(xdg.DataHome, "daybook", "store")
}

// Open creates a Store rooted at basePath, creating the directory if needed.
func Open(basePath string) (*Store, error) {
	if basePath == "" {
		basePath = DefaultBasePath()
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("localstore: create base path: %w", err)
	}
	return &Store{d: diskv.New(diskv.Options{
		BasePath:     basePath,
		CacheSizeMax: 1024 * 1024, // 1MB
	})}, nil
}

// Get unmarshals the JSON value stored under key into target. Returns
// os.ErrNotExist when the key has never been written.
func (s *Store) Get(key string, target any) error {
	val, err := s.d.Read(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return os.ErrNotExist
		}
		return fmt.Errorf("localstore: read %q: %w", key, err)
	}
	if err := json.Unmarshal(val, target); err != nil {
		return fmt.Errorf("localstore: decode %q: %w", key, err)
	}
	return nil
}

// Put marshals value as JSON and writes it under key.
func (s *Store) Put(key string, value any) error {
	val, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("localstore: encode %q: %w", key, err)
	}
	if err := s.d.Write(key, val); err != nil {
		return fmt.Errorf("localstore: write %q: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	err := s.d.Erase(key)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("localstore: erase %q: %w", key, err)
	}
	return nil
}
