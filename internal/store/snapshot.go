package store

import (
	"context"
	"errors"
	"time"

	"github.com/phrazzld/batchq/internal/domain"
)

// Common errors returned by snapshot store implementations.
var (
	// ErrNoSnapshot is returned by Load when no previous snapshot exists.
	ErrNoSnapshot = errors.New("no snapshot found")

	// ErrInvalidSnapshot is returned when persisted state cannot be decoded.
	ErrInvalidSnapshot = errors.New("invalid snapshot data")
)

// Snapshot is a point-in-time serialization of the four task
// collections. The JSON keys are the persisted state-file format and
// must not change.
type Snapshot struct {
	Queue     []*domain.Task `json:"queue"`
	Running   []*domain.Task `json:"running"`
	Completed []*domain.Task `json:"completed"`
	Failed    []*domain.Task `json:"failed"`
	SavedAt   time.Time      `json:"saved_at"`
}

// SnapshotStore defines the interface for persisting processor state.
type SnapshotStore interface {
	// Save persists a snapshot, replacing any previous one.
	Save(ctx context.Context, snap *Snapshot) error

	// Load retrieves the most recent snapshot.
	// Returns ErrNoSnapshot if none has been saved.
	Load(ctx context.Context) (*Snapshot, error)
}
