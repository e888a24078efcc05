package persistence

import (
	"context"
	"sync"

	"bookcal/internal/models"
)

// MemoryStore is an in-process adapter used in tests and as a last
// resort fallback. Snapshots are deep-copied on both paths so callers
// never share slices with the stored state.
type MemoryStore struct {
	mu   sync.Mutex
	snap *models.Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (*models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return nil, nil
	}
	return copySnapshot(s.snap), nil
}

func (s *MemoryStore) Save(_ context.Context, snap *models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = copySnapshot(snap)
	return nil
}

func copySnapshot(snap *models.Snapshot) *models.Snapshot {
	out := &models.Snapshot{
		Bookings:    append([]models.Booking(nil), snap.Bookings...),
		LastUpdated: snap.LastUpdated,
	}
	return out
}
