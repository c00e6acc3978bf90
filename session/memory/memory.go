// Package memory provides an in-process session store. Suited to tests and
// single-instance deployments; snapshots do not survive a restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/insurlab/advisor/session"
)

// Store keeps snapshots in a mutex-guarded map.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]session.Snapshot
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{snapshots: make(map[string]session.Snapshot)}
}

// Save stores a copy of the snapshot.
func (s *Store) Save(ctx context.Context, snapshot *session.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.ThreadID] = clone(*snapshot)
	return nil
}

// Load returns a copy of the stored snapshot, or session.ErrNotFound.
func (s *Store) Load(ctx context.Context, threadID string) (*session.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[threadID]
	if !ok {
		return nil, session.ErrNotFound
	}
	out := clone(snapshot)
	return &out, nil
}

// Delete removes the snapshot for a thread.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, threadID)
	return nil
}

// List returns all thread IDs in sorted order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.snapshots))
	for id := range s.snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// clone copies the snapshot deeply enough that callers cannot mutate stored
// state through shared slices.
func clone(snapshot session.Snapshot) session.Snapshot {
	snapshot.State.RawAnswers = append([]string(nil), snapshot.State.RawAnswers...)
	snapshot.State.Satisfied = append([]string(nil), snapshot.State.Satisfied...)
	return snapshot
}
