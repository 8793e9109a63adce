// Package filestore persists processor snapshots as a single JSON file.
// This is the default backend. The file layout has top-level keys
// queue, running, completed, failed, and saved_at, and must stay
// readable across versions.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/phrazzld/batchq/internal/store"
)

// FileStore writes snapshots to a JSON file with an atomic
// write-then-rename so a crash mid-write never corrupts the previous
// snapshot.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// New creates a FileStore writing to the given path.
func New(path string) *FileStore {
	return &FileStore{path: path}
}

// Save serializes the snapshot and replaces the state file.
func (s *FileStore) Save(ctx context.Context, snap *store.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamped := *snap
	if stamped.SavedAt.IsZero() {
		stamped.SavedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(&stamped, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open snapshot file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}

	return nil
}

// Load reads the most recent snapshot from the state file.
// Returns store.ErrNoSnapshot if the file does not exist.
func (s *FileStore) Load(ctx context.Context) (*store.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, store.ErrNoSnapshot
		}
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var snap store.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %s", store.ErrInvalidSnapshot, filepath.Base(s.path))
	}

	return &snap, nil
}
