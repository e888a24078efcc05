package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"bookcal/internal/catalog"
	"bookcal/internal/events"
	"bookcal/internal/metrics"
	"bookcal/internal/models"
	"bookcal/internal/persistence"

	"github.com/rs/zerolog"
)

// Store is the single source of truth for bookings. It holds the
// authoritative in-memory collection, enforces the no-overlap invariant
// per apartment and writes the full snapshot through the persistence
// adapter after every successful mutation.
//
// Each mutation either fully applies (mutate + persist) or fully
// rejects; a failed conflict check never touches state. A failed
// snapshot write after the mutation is non-fatal: the in-memory
// collection stays authoritative for the session and the error is
// surfaced wrapped in ErrPersistence.
type Store struct {
	mu       sync.RWMutex
	bookings []models.Booking
	lastID   int64

	catalog *catalog.Catalog
	adapter persistence.Adapter
	bus     *events.EventBus
	logger  *zerolog.Logger
}

// New loads the last snapshot from the adapter. A missing snapshot
// seeds the collection from the supplied forms; a corrupt or unreadable
// one falls back to an empty collection.
func New(ctx context.Context, adapter persistence.Adapter, cat *catalog.Catalog, bus *events.EventBus, logger *zerolog.Logger, seeds []models.BookingForm) (*Store, error) {
	s := &Store{
		catalog: cat,
		adapter: adapter,
		bus:     bus,
		logger:  logger,
	}

	snap, err := adapter.Load(ctx)
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("Snapshot unreadable, starting with an empty collection")
	case snap == nil:
		s.seed(ctx, seeds)
	default:
		s.bookings = append([]models.Booking(nil), snap.Bookings...)
		s.lastID = maxNumericID(s.bookings)
		logger.Info().Int("bookings", len(s.bookings)).Msg("Loaded booking snapshot")
	}

	return s, nil
}

// seed applies bootstrap bookings through the normal validation and
// conflict path, skipping entries that do not hold up.
func (s *Store) seed(ctx context.Context, seeds []models.BookingForm) {
	if len(seeds) == 0 {
		return
	}
	for _, form := range seeds {
		if _, err := s.Add(ctx, form); err != nil {
			s.logger.Warn().Err(err).Str("guest", form.GuestName).Msg("Skipping seed booking")
		}
	}
	s.logger.Info().Int("bookings", len(s.bookings)).Msg("Seeded booking collection")
}

// Bookings returns a copy of the current collection.
func (s *Store) Bookings() []models.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Booking(nil), s.bookings...)
}

func (s *Store) Get(id string) (models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexLocked(id); idx >= 0 {
		return s.bookings[idx], nil
	}
	return models.Booking{}, ErrNotFound
}

// HasConflict reports whether [start, end) intersects any non-cancelled
// booking of the same apartment, ignoring the booking with excludeID.
// This is the single authoritative overlap predicate; the calendar
// projection routes through the same interval test.
func (s *Store) HasConflict(apartmentID string, start, end time.Time, excludeID string) bool {
	start, end = models.Day(start), models.Day(end)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasConflictLocked(apartmentID, start, end, excludeID)
}

func (s *Store) hasConflictLocked(apartmentID string, start, end time.Time, excludeID string) bool {
	for _, b := range s.bookings {
		if b.ID == excludeID {
			continue
		}
		if b.ApartmentID != apartmentID {
			continue
		}
		if b.Status == models.StatusCancelled {
			continue
		}
		if overlaps(start, end, b.StartDate, b.EndDate) {
			return true
		}
	}
	return false
}

// overlaps reports whether two half-open day intervals intersect.
// Abutting intervals (a ends the day b starts) do not overlap: checkout
// day and check-in day may coincide.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// FindActiveBooking returns the booking occupying the apartment on the
// given calendar day, if any. Cancelled bookings never occupy a day.
func (s *Store) FindActiveBooking(date time.Time, apartmentID string) (models.Booking, bool) {
	day := models.Day(date)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bookings {
		if b.ApartmentID != apartmentID || b.Status == models.StatusCancelled {
			continue
		}
		if overlaps(day, day.AddDate(0, 0, 1), b.StartDate, b.EndDate) {
			return b, true
		}
	}
	return models.Booking{}, false
}

// Add validates the form, rejects conflicting intervals and appends a
// freshly stamped booking. The apartment name is denormalized from the
// catalog at this point and never rewritten afterwards.
func (s *Store) Add(ctx context.Context, form models.BookingForm) (models.Booking, error) {
	form.StartDate = models.Day(form.StartDate)
	form.EndDate = models.Day(form.EndDate)
	if err := form.Validate(); err != nil {
		metrics.IncOp("add", "validation")
		return models.Booking{}, err
	}
	apt, ok := s.catalog.ByID(form.ApartmentID)
	if !ok {
		metrics.IncOp("add", "validation")
		return models.Booking{}, fmt.Errorf("%w: unknown apartment %q", ErrValidation, form.ApartmentID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasConflictLocked(form.ApartmentID, form.StartDate, form.EndDate, "") {
		metrics.IncOp("add", "conflict")
		metrics.IncConflict()
		s.logger.Warn().
			Str("apartment_id", form.ApartmentID).
			Time("start", form.StartDate).
			Time("end", form.EndDate).
			Msg("Booking rejected: period already booked")
		return models.Booking{}, ErrConflict
	}

	now := time.Now()
	booking := models.Booking{
		ID:            s.nextIDLocked(now),
		ApartmentID:   apt.ID,
		ApartmentName: apt.Name,
		GuestName:     form.GuestName,
		GuestEmail:    form.GuestEmail,
		GuestPhone:    form.GuestPhone,
		StartDate:     form.StartDate,
		EndDate:       form.EndDate,
		Status:        form.Status,
		Notes:         form.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.bookings = append(s.bookings, booking)

	persistErr := s.persistLocked(ctx)
	s.publish(events.EventBookingCreated, booking)
	if persistErr != nil {
		metrics.IncOp("add", "persistence")
		return booking, persistErr
	}
	metrics.IncOp("add", "ok")
	return booking, nil
}

// Update merges the patch over the existing booking, re-validates the
// merged record and re-checks conflicts excluding the booking itself.
func (s *Store) Update(ctx context.Context, id string, patch models.BookingPatch) (models.Booking, error) {
	return s.update(ctx, id, patch, events.EventBookingUpdated, "update")
}

// Extend moves a booking's end date; everything else stays put. It
// inherits Update's conflict and not-found semantics.
func (s *Store) Extend(ctx context.Context, id string, newEnd time.Time) (models.Booking, error) {
	end := models.Day(newEnd)
	return s.update(ctx, id, models.BookingPatch{EndDate: &end}, events.EventBookingExtended, "extend")
}

func (s *Store) update(ctx context.Context, id string, patch models.BookingPatch, eventType, op string) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		metrics.IncOp(op, "not_found")
		return models.Booking{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	merged := s.bookings[idx]
	if patch.ApartmentID != nil && *patch.ApartmentID != merged.ApartmentID {
		apt, ok := s.catalog.ByID(*patch.ApartmentID)
		if !ok {
			metrics.IncOp(op, "validation")
			return models.Booking{}, fmt.Errorf("%w: unknown apartment %q", ErrValidation, *patch.ApartmentID)
		}
		merged.ApartmentID = apt.ID
		merged.ApartmentName = apt.Name
	}
	if patch.GuestName != nil {
		merged.GuestName = *patch.GuestName
	}
	if patch.GuestEmail != nil {
		merged.GuestEmail = *patch.GuestEmail
	}
	if patch.GuestPhone != nil {
		merged.GuestPhone = *patch.GuestPhone
	}
	if patch.StartDate != nil {
		merged.StartDate = models.Day(*patch.StartDate)
	}
	if patch.EndDate != nil {
		merged.EndDate = models.Day(*patch.EndDate)
	}
	if patch.Status != nil {
		merged.Status = *patch.Status
	}
	if patch.Notes != nil {
		merged.Notes = *patch.Notes
	}

	form := models.BookingForm{
		ApartmentID: merged.ApartmentID,
		GuestName:   merged.GuestName,
		StartDate:   merged.StartDate,
		EndDate:     merged.EndDate,
		Status:      merged.Status,
	}
	if err := form.Validate(); err != nil {
		metrics.IncOp(op, "validation")
		return models.Booking{}, err
	}

	if s.hasConflictLocked(merged.ApartmentID, merged.StartDate, merged.EndDate, id) {
		metrics.IncOp(op, "conflict")
		metrics.IncConflict()
		s.logger.Warn().
			Str("booking_id", id).
			Str("apartment_id", merged.ApartmentID).
			Msg("Booking update rejected: period already booked")
		return models.Booking{}, ErrConflict
	}

	merged.UpdatedAt = time.Now()
	s.bookings[idx] = merged

	persistErr := s.persistLocked(ctx)
	s.publish(eventType, merged)
	if persistErr != nil {
		metrics.IncOp(op, "persistence")
		return merged, persistErr
	}
	metrics.IncOp(op, "ok")
	return merged, nil
}

// Delete removes the booking if present. Deleting an unknown id is a
// no-op, not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	var removed models.Booking
	if idx >= 0 {
		removed = s.bookings[idx]
		s.bookings = append(s.bookings[:idx], s.bookings[idx+1:]...)
	}

	persistErr := s.persistLocked(ctx)
	if idx >= 0 {
		s.publish(events.EventBookingDeleted, removed)
	}
	if persistErr != nil {
		metrics.IncOp("delete", "persistence")
		return persistErr
	}
	metrics.IncOp("delete", "ok")
	return nil
}

func (s *Store) indexLocked(id string) int {
	for i, b := range s.bookings {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// nextIDLocked derives ids from the wall clock in milliseconds, with a
// floor so ids stay strictly increasing inside one millisecond.
func (s *Store) nextIDLocked(now time.Time) string {
	id := now.UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return strconv.FormatInt(id, 10)
}

func maxNumericID(bookings []models.Booking) int64 {
	var max int64
	for _, b := range bookings {
		if n, err := strconv.ParseInt(b.ID, 10, 64); err == nil && n > max {
			max = n
		}
	}
	return max
}

func (s *Store) persistLocked(ctx context.Context) error {
	snap := &models.Snapshot{
		Bookings:    append([]models.Booking(nil), s.bookings...),
		LastUpdated: time.Now(),
	}
	if err := s.adapter.Save(ctx, snap); err != nil {
		metrics.IncPersistenceFailure()
		s.logger.Error().Err(err).Msg("Snapshot write failed, in-memory state stays authoritative")
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (s *Store) publish(eventType string, b models.Booking) {
	payload := events.BookingEventPayload{
		BookingID:     b.ID,
		ApartmentID:   b.ApartmentID,
		ApartmentName: b.ApartmentName,
		GuestName:     b.GuestName,
		StartDate:     b.StartDate,
		EndDate:       b.EndDate,
		Status:        b.Status,
	}
	if err := s.bus.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("Failed to publish booking event")
	}
}
