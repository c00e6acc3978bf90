// Package session persists dialogue state between turns. A Snapshot is the
// durable form of one conversation; Store implementations cover in-memory,
// SQLite, Postgres and Redis backends.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/insurlab/advisor/dialogue"
)

// ErrNotFound is returned when no snapshot exists for a thread.
var ErrNotFound = errors.New("session not found")

// Snapshot is the persisted form of one dialogue thread.
type Snapshot struct {
	ThreadID  string         `json:"thread_id"`
	State     dialogue.State `json:"state"`
	UpdatedAt time.Time      `json:"updated_at"`
	Version   int            `json:"version"`
}

// NewSnapshot wraps a dialogue state for its first save.
func NewSnapshot(state dialogue.State) *Snapshot {
	return &Snapshot{
		ThreadID:  state.ThreadID,
		State:     state,
		UpdatedAt: time.Now().UTC(),
		Version:   1,
	}
}

// Store is the persistence interface for dialogue snapshots. Save overwrites
// any existing snapshot for the same thread.
type Store interface {
	// Save stores a snapshot keyed by its thread ID.
	Save(ctx context.Context, snapshot *Snapshot) error

	// Load retrieves the snapshot for a thread, or ErrNotFound.
	Load(ctx context.Context, threadID string) (*Snapshot, error)

	// Delete removes the snapshot for a thread. Deleting a missing thread
	// is not an error.
	Delete(ctx context.Context, threadID string) error

	// List returns the IDs of all stored threads.
	List(ctx context.Context) ([]string, error)
}
