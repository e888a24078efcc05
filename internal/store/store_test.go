package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"bookcal/internal/catalog"
	"bookcal/internal/models"
	"bookcal/internal/persistence"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]models.Apartment{
		{ID: "apt-1", Name: "Studio Montmartre", MaxGuests: 2, Color: "#8B5CF6"},
		{ID: "apt-2", Name: "Appartement Marais", MaxGuests: 4, Color: "#10B981"},
	})
	require.NoError(t, err)
	return cat
}

// countingAdapter wraps the memory store and counts writes so tests can
// assert that rejected mutations never persist.
type countingAdapter struct {
	*persistence.MemoryStore
	saves int
}

func (a *countingAdapter) Save(ctx context.Context, snap *models.Snapshot) error {
	a.saves++
	return a.MemoryStore.Save(ctx, snap)
}

type failingAdapter struct{}

func (failingAdapter) Load(context.Context) (*models.Snapshot, error) { return nil, nil }
func (failingAdapter) Save(context.Context, *models.Snapshot) error {
	return fmt.Errorf("disk full")
}

func setupStore(t *testing.T) (*Store, *countingAdapter) {
	t.Helper()
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	adapter := &countingAdapter{MemoryStore: persistence.NewMemoryStore()}
	st, err := New(context.Background(), adapter, testCatalog(t), nil, &logger, nil)
	require.NoError(t, err)
	return st, adapter
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func form(apartmentID, guest, start, end, status string) models.BookingForm {
	return models.BookingForm{
		ApartmentID: apartmentID,
		GuestName:   guest,
		StartDate:   day(start),
		EndDate:     day(end),
		Status:      status,
	}
}

func TestAddBooking(t *testing.T) {
	st, adapter := setupStore(t)
	ctx := context.Background()

	b, err := st.Add(ctx, form("apt-1", "Marie Dubois", "2025-07-15", "2025-07-18", models.StatusConfirmed))
	require.NoError(t, err)

	assert.NotEmpty(t, b.ID)
	assert.Equal(t, "Studio Montmartre", b.ApartmentName)
	assert.False(t, b.CreatedAt.IsZero())
	assert.Equal(t, b.CreatedAt, b.UpdatedAt)
	assert.Equal(t, 1, adapter.saves)

	snap, err := adapter.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Len(t, snap.Bookings, 1)
}

func TestAddBookingConflict(t *testing.T) {
	st, adapter := setupStore(t)
	ctx := context.Background()

	_, err := st.Add(ctx, form("apt-1", "Marie Dubois", "2025-07-15", "2025-07-18", models.StatusConfirmed))
	require.NoError(t, err)
	savesBefore := adapter.saves

	// Overlapping stay in the same apartment is rejected.
	_, err = st.Add(ctx, form("apt-1", "Jean Martin", "2025-07-17", "2025-07-20", models.StatusConfirmed))
	assert.ErrorIs(t, err, ErrConflict)

	// The rejection left the collection and storage untouched.
	assert.Len(t, st.Bookings(), 1)
	assert.Equal(t, savesBefore, adapter.saves)
}

func TestAddBookingAbuttingIntervals(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	_, err := st.Add(ctx, form("apt-1", "Marie Dubois", "2025-07-15", "2025-07-18", models.StatusConfirmed))
	require.NoError(t, err)

	// Check-in on the previous guest's checkout day is fine: intervals
	// are half-open.
	_, err = st.Add(ctx, form("apt-1", "Jean Martin", "2025-07-18", "2025-07-20", models.StatusConfirmed))
	assert.NoError(t, err)
	assert.Len(t, st.Bookings(), 2)
}

func TestAddBookingIgnoresCancelled(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	_, err := st.Add(ctx, form("apt-2", "Sophie Lambert", "2025-07-10", "2025-07-15", models.StatusCancelled))
	require.NoError(t, err)

	_, err = st.Add(ctx, form("apt-2", "Anna Schmidt", "2025-07-12", "2025-07-14", models.StatusConfirmed))
	assert.NoError(t, err)
}

func TestAddBookingOtherApartmentNoConflict(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	_, err := st.Add(ctx, form("apt-1", "Marie Dubois", "2025-07-15", "2025-07-18", models.StatusConfirmed))
	require.NoError(t, err)

	_, err = st.Add(ctx, form("apt-2", "Jean Martin", "2025-07-15", "2025-07-18", models.StatusConfirmed))
	assert.NoError(t, err)
}

func TestAddBookingValidation(t *testing.T) {
	st, adapter := setupStore(t)
	ctx := context.Background()

	cases := []struct {
		name string
		form models.BookingForm
	}{
		{"MissingApartment", form("", "Marie", "2025-07-15", "2025-07-18", models.StatusConfirmed)},
		{"MissingGuest", form("apt-1", "", "2025-07-15", "2025-07-18", models.StatusConfirmed)},
		{"EndBeforeStart", form("apt-1", "Marie", "2025-07-18", "2025-07-15", models.StatusConfirmed)},
		{"EndEqualsStart", form("apt-1", "Marie", "2025-07-15", "2025-07-15", models.StatusConfirmed)},
		{"BadStatus", form("apt-1", "Marie", "2025-07-15", "2025-07-18", "archived")},
		{"UnknownApartment", form("apt-9", "Marie", "2025-07-15", "2025-07-18", models.StatusConfirmed)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := st.Add(ctx, tc.form)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	assert.Empty(t, st.Bookings())
	assert.Equal(t, 0, adapter.saves)
}

func TestUpdateBooking(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	b, err := st.Add(ctx, form("apt-1", "Marie Dubois", "2025-07-15", "2025-07-18", models.StatusPending))
	require.NoError(t, err)

	status := models.StatusConfirmed
	notes := "paid in full"
	updated, err := st.Update(ctx, b.ID, models.BookingPatch{Status: &status, Notes: &notes})
	require.NoError(t, err)

	assert.Equal(t, models.StatusConfirmed, updated.Status)
	assert.Equal(t, "paid in full", updated.Notes)
	assert.Equal(t, b.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(b.UpdatedAt) || updated.UpdatedAt.Equal(b.UpdatedAt))
	assert.Equal(t, "Marie Dubois", updated.GuestName)
}

func TestUpdateBookingNotFound(t *testing.T) {
	st, _ := setupStore(t)

	_, err := st.Update(context.Background(), "12345", models.BookingPatch{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateBookingSelfOverlap(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	b, err := st.Add(ctx, form("apt-1", "Marie Dubois", "2025-07-15", "2025-07-18", models.StatusConfirmed))
	require.NoError(t, err)

	// Shifting the stay by one day overlaps only the booking itself,
	// which the conflict check excludes.
	start, end := day("2025-07-16"), day("2025-07-19")
	updated, err := st.Update(ctx, b.ID, models.BookingPatch{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, start, updated.StartDate)
	assert.Equal(t, end, updated.EndDate)
}

func TestUpdateBookingConflict(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	_, err := st.Add(ctx, form("apt-1", "Marie Dubois", "2025-07-15", "2025-07-18", models.StatusConfirmed))
	require.NoError(t, err)
	b, err := st.Add(ctx, form("apt-1", "Jean Martin", "2025-07-20", "2025-07-23", models.StatusConfirmed))
	require.NoError(t, err)

	start := day("2025-07-16")
	_, err = st.Update(ctx, b.ID, models.BookingPatch{StartDate: &start})
	assert.ErrorIs(t, err, ErrConflict)

	// The rejected update changed nothing.
	got, err := st.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, day("2025-07-20"), got.StartDate)
}

func TestUpdateBookingMoveApartment(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	b, err := st.Add(ctx, form("apt-1", "Marie Dubois", "2025-07-15", "2025-07-18", models.StatusConfirmed))
	require.NoError(t, err)

	apt := "apt-2"
	updated, err := st.Update(ctx, b.ID, models.BookingPatch{ApartmentID: &apt})
	require.NoError(t, err)

	// Moving apartments re-stamps the denormalized name.
	assert.Equal(t, "apt-2", updated.ApartmentID)
	assert.Equal(t, "Appartement Marais", updated.ApartmentName)
}

func TestDeleteBooking(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	b, err := st.Add(ctx, form("apt-1", "Marie Dubois", "2025-07-15", "2025-07-18", models.StatusConfirmed))
	require.NoError(t, err)

	require.NoError(t, st.Delete(ctx, b.ID))
	assert.Empty(t, st.Bookings())

	// Deleting again is a no-op, not an error.
	assert.NoError(t, st.Delete(ctx, b.ID))
	assert.NoError(t, st.Delete(ctx, "never-existed"))
}

func TestExtendBooking(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	b, err := st.Add(ctx, form("apt-1", "Marie Dubois", "2025-07-15", "2025-07-18", models.StatusConfirmed))
	require.NoError(t, err)

	extended, err := st.Extend(ctx, b.ID, day("2025-07-21"))
	require.NoError(t, err)
	assert.Equal(t, day("2025-07-21"), extended.EndDate)
	assert.Equal(t, day("2025-07-15"), extended.StartDate)
}

func TestExtendBookingConflict(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	x, err := st.Add(ctx, form("apt-1", "Marie Dubois", "2025-07-15", "2025-07-18", models.StatusConfirmed))
	require.NoError(t, err)
	_, err = st.Add(ctx, form("apt-1", "Jean Martin", "2025-07-20", "2025-07-23", models.StatusConfirmed))
	require.NoError(t, err)

	_, err = st.Extend(ctx, x.ID, day("2025-07-22"))
	assert.ErrorIs(t, err, ErrConflict)

	got, err := st.Get(x.ID)
	require.NoError(t, err)
	assert.Equal(t, day("2025-07-18"), got.EndDate, "failed extend must leave the end date unchanged")
}

func TestExtendBookingNotFound(t *testing.T) {
	st, _ := setupStore(t)

	_, err := st.Extend(context.Background(), "12345", day("2025-07-22"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHasConflictSymmetry(t *testing.T) {
	ctx := context.Background()

	intervals := [][2]string{
		{"2025-07-15", "2025-07-18"},
		{"2025-07-17", "2025-07-20"},
		{"2025-07-18", "2025-07-20"},
		{"2025-07-01", "2025-07-31"},
	}

	for i, a := range intervals {
		for j, b := range intervals {
			if i == j {
				continue
			}
			stA, _ := setupStore(t)
			_, err := stA.Add(ctx, form("apt-1", "A", a[0], a[1], models.StatusConfirmed))
			require.NoError(t, err)
			abOverlap := stA.HasConflict("apt-1", day(b[0]), day(b[1]), "")

			stB, _ := setupStore(t)
			_, err = stB.Add(ctx, form("apt-1", "B", b[0], b[1], models.StatusConfirmed))
			require.NoError(t, err)
			baOverlap := stB.HasConflict("apt-1", day(a[0]), day(a[1]), "")

			assert.Equal(t, abOverlap, baOverlap, "overlap(%v,%v) must equal overlap(%v,%v)", a, b, b, a)
		}
	}
}

func TestFindActiveBooking(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	b, err := st.Add(ctx, form("apt-1", "Marie Dubois", "2025-07-15", "2025-07-18", models.StatusConfirmed))
	require.NoError(t, err)

	// Occupied on every night of the stay, free on the checkout day.
	for _, tc := range []struct {
		date     string
		occupied bool
	}{
		{"2025-07-14", false},
		{"2025-07-15", true},
		{"2025-07-16", true},
		{"2025-07-17", true},
		{"2025-07-18", false},
	} {
		got, ok := st.FindActiveBooking(day(tc.date), "apt-1")
		assert.Equal(t, tc.occupied, ok, "date %s", tc.date)
		if ok {
			assert.Equal(t, b.ID, got.ID)
		}
	}

	_, ok := st.FindActiveBooking(day("2025-07-16"), "apt-2")
	assert.False(t, ok)
}

// FindActiveBooking must agree with HasConflict on a one-day candidate:
// a day renders as occupied exactly when the store would reject it.
func TestProjectionMatchesConflictCheck(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	_, err := st.Add(ctx, form("apt-1", "Marie Dubois", "2025-07-15", "2025-07-18", models.StatusConfirmed))
	require.NoError(t, err)
	_, err = st.Add(ctx, form("apt-1", "Jean Martin", "2025-07-20", "2025-07-22", models.StatusConfirmed))
	require.NoError(t, err)

	for d := day("2025-07-10"); d.Before(day("2025-07-25")); d = d.AddDate(0, 0, 1) {
		_, occupied := st.FindActiveBooking(d, "apt-1")
		conflicts := st.HasConflict("apt-1", d, d.AddDate(0, 0, 1), "")
		assert.Equal(t, conflicts, occupied, "date %s", d.Format("2006-01-02"))
	}
}

func TestCancelledBookingFreesDays(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	b, err := st.Add(ctx, form("apt-1", "Marie Dubois", "2025-07-15", "2025-07-18", models.StatusConfirmed))
	require.NoError(t, err)

	status := models.StatusCancelled
	_, err = st.Update(ctx, b.ID, models.BookingPatch{Status: &status})
	require.NoError(t, err)

	_, ok := st.FindActiveBooking(day("2025-07-16"), "apt-1")
	assert.False(t, ok)
}

func TestPersistenceFailureIsNonFatal(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	st, err := New(context.Background(), failingAdapter{}, testCatalog(t), nil, &logger, nil)
	require.NoError(t, err)

	b, err := st.Add(context.Background(), form("apt-1", "Marie Dubois", "2025-07-15", "2025-07-18", models.StatusConfirmed))
	assert.ErrorIs(t, err, ErrPersistence)

	// The mutation still applied: in-memory state is authoritative.
	assert.NotEmpty(t, b.ID)
	assert.Len(t, st.Bookings(), 1)
}

func TestLoadSnapshot(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	adapter := persistence.NewMemoryStore()
	ctx := context.Background()

	st1, err := New(ctx, adapter, testCatalog(t), nil, &logger, nil)
	require.NoError(t, err)
	b, err := st1.Add(ctx, form("apt-1", "Marie Dubois", "2025-07-15", "2025-07-18", models.StatusConfirmed))
	require.NoError(t, err)

	// A second store over the same adapter sees the saved collection
	// and does not reseed.
	seeds := []models.BookingForm{form("apt-2", "Seed Guest", "2025-08-01", "2025-08-05", models.StatusConfirmed)}
	st2, err := New(ctx, adapter, testCatalog(t), nil, &logger, seeds)
	require.NoError(t, err)

	bookings := st2.Bookings()
	require.Len(t, bookings, 1)
	assert.Equal(t, b.ID, bookings[0].ID)
	assert.Equal(t, b.StartDate, bookings[0].StartDate)
}

func TestSeedWhenEmpty(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	adapter := persistence.NewMemoryStore()
	ctx := context.Background()

	seeds := []models.BookingForm{
		form("apt-1", "Marie Dubois", "2025-07-15", "2025-07-18", models.StatusConfirmed),
		form("apt-1", "Jean Martin", "2025-07-17", "2025-07-20", models.StatusConfirmed), // conflicts, skipped
		form("apt-9", "Nobody", "2025-07-01", "2025-07-02", models.StatusConfirmed),      // unknown apartment, skipped
	}
	st, err := New(ctx, adapter, testCatalog(t), nil, &logger, seeds)
	require.NoError(t, err)

	assert.Len(t, st.Bookings(), 1)

	snap, err := adapter.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Len(t, snap.Bookings, 1)
}

func TestCorruptSnapshotFallsBackEmpty(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	adapter := corruptAdapter{}

	seeds := []models.BookingForm{form("apt-1", "Marie Dubois", "2025-07-15", "2025-07-18", models.StatusConfirmed)}
	st, err := New(context.Background(), adapter, testCatalog(t), nil, &logger, seeds)
	require.NoError(t, err)

	// Corrupt data means empty collection, not reseeding.
	assert.Empty(t, st.Bookings())
}

type corruptAdapter struct{}

func (corruptAdapter) Load(context.Context) (*models.Snapshot, error) {
	return nil, fmt.Errorf("%w: unexpected end of JSON input", persistence.ErrCorrupt)
}
func (corruptAdapter) Save(context.Context, *models.Snapshot) error { return nil }

func TestIDsAreUniqueAndIncreasing(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	var prev string
	for i := 0; i < 50; i++ {
		start := day("2025-01-01").AddDate(0, 0, i*2)
		b, err := st.Add(ctx, models.BookingForm{
			ApartmentID: "apt-1",
			GuestName:   "Guest",
			StartDate:   start,
			EndDate:     start.AddDate(0, 0, 1),
			Status:      models.StatusConfirmed,
		})
		require.NoError(t, err)
		if prev != "" {
			assert.NotEqual(t, prev, b.ID)
		}
		prev = b.ID
	}

	seen := make(map[string]bool)
	for _, b := range st.Bookings() {
		assert.False(t, seen[b.ID], "duplicate id %s", b.ID)
		seen[b.ID] = true
	}
}

func TestConcurrentAddsKeepInvariant(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	const goroutines = 10
	var wg sync.WaitGroup
	wg.Add(goroutines)
	results := make(chan error, goroutines)

	// Everyone races for the same week in the same apartment.
	for i := 0; i < goroutines; i++ {
		go func(n int) {
			defer wg.Done()
			_, err := st.Add(ctx, form("apt-1", fmt.Sprintf("Guest %d", n), "2025-07-15", "2025-07-18", models.StatusConfirmed))
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	success, conflict := 0, 0
	for err := range results {
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrConflict):
			conflict++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, success, "exactly one booking should win the interval")
	assert.Equal(t, goroutines-1, conflict)

	assertNoOverlaps(t, st.Bookings())
}

// assertNoOverlaps checks the core invariant over the whole collection.
func assertNoOverlaps(t *testing.T, bookings []models.Booking) {
	t.Helper()
	for i, a := range bookings {
		for j, b := range bookings {
			if i >= j || a.ApartmentID != b.ApartmentID {
				continue
			}
			if a.Status == models.StatusCancelled || b.Status == models.StatusCancelled {
				continue
			}
			assert.False(t, overlaps(a.StartDate, a.EndDate, b.StartDate, b.EndDate),
				"bookings %s and %s overlap in %s", a.ID, b.ID, a.ApartmentID)
		}
	}
}

func TestDateNormalization(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	// Timestamps with a time-of-day component collapse onto calendar days.
	b, err := st.Add(ctx, models.BookingForm{
		ApartmentID: "apt-1",
		GuestName:   "Marie Dubois",
		StartDate:   time.Date(2025, 7, 15, 14, 30, 0, 0, time.UTC),
		EndDate:     time.Date(2025, 7, 18, 9, 0, 0, 0, time.UTC),
		Status:      models.StatusConfirmed,
	})
	require.NoError(t, err)

	assert.Equal(t, day("2025-07-15"), b.StartDate)
	assert.Equal(t, day("2025-07-18"), b.EndDate)
}
