package persistence

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"bookcal/internal/models"

	"github.com/rs/zerolog"
)

// FailoverStore writes through a primary adapter and degrades to a
// fallback when the primary errors. The primary is retried after a
// cooldown so a recovered backend picks the traffic back up.
type FailoverStore struct {
	primary   Adapter
	fallback  Adapter
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

const recoveryCooldown = time.Minute

func NewFailoverStore(primary, fallback Adapter, logger *zerolog.Logger) *FailoverStore {
	return &FailoverStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (s *FailoverStore) Load(ctx context.Context) (*models.Snapshot, error) {
	if !s.isDown.Load() {
		snap, err := s.primary.Load(ctx)
		if err == nil || errors.Is(err, ErrCorrupt) {
			// Corrupt data is an answer, not an outage.
			return snap, err
		}
		s.markDown(err)
	}

	if s.shouldRetry() {
		snap, err := s.primary.Load(ctx)
		if err == nil {
			s.isDown.Store(false)
			return snap, nil
		}
		s.lastCheck.Store(time.Now().UnixNano())
	}

	return s.fallback.Load(ctx)
}

func (s *FailoverStore) Save(ctx context.Context, snap *models.Snapshot) error {
	if !s.isDown.Load() {
		err := s.primary.Save(ctx, snap)
		if err == nil {
			return nil
		}
		s.markDown(err)
	}

	if s.shouldRetry() {
		if err := s.primary.Save(ctx, snap); err == nil {
			s.isDown.Store(false)
			return nil
		}
		s.lastCheck.Store(time.Now().UnixNano())
	}

	return s.fallback.Save(ctx, snap)
}

func (s *FailoverStore) markDown(err error) {
	s.logger.Error().Err(err).Msg("Primary snapshot store failed, falling back")
	s.isDown.Store(true)
	s.lastCheck.Store(time.Now().UnixNano())
}

func (s *FailoverStore) shouldRetry() bool {
	return s.isDown.Load() && time.Since(time.Unix(0, s.lastCheck.Load())) > recoveryCooldown
}
