package persistence

import (
	"context"
	"errors"

	"bookcal/internal/models"
)

// SnapshotKey is the single logical key all backends store the booking
// snapshot under.
const SnapshotKey = "booking-calendar-data"

// ErrCorrupt marks stored data that exists but cannot be decoded. The
// store treats it as absence, not a fatal error.
var ErrCorrupt = errors.New("snapshot data is corrupt")

// Adapter persists the full booking collection as one opaque snapshot.
// Load returns (nil, nil) when no snapshot has been saved yet.
type Adapter interface {
	Load(ctx context.Context) (*models.Snapshot, error)
	Save(ctx context.Context, snap *models.Snapshot) error
}
