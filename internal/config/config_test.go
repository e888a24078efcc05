package config

import (
	"os"
	"path/filepath"
	"testing"

	"bookcal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
app:
  name: bookcal-test
  environment: test
storage:
  backend: file
  file_path: data/test.json
apartments:
  - id: apt-1
    name: Studio Montmartre
    max_guests: 2
    color: "#8B5CF6"
  - id: apt-2
    name: Appartement Marais
    max_guests: 4
seed_bookings:
  - apartment_id: apt-1
    guest_name: Marie Dubois
    start_date: "2024-12-15"
    end_date: "2024-12-18"
    status: confirmed
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "bookcal-test", cfg.App.Name)
	assert.Equal(t, "file", cfg.Storage.Backend)
	require.Len(t, cfg.Apartments, 2)
	assert.Equal(t, 2, cfg.Apartments[0].MaxGuests)
	require.Len(t, cfg.SeedBookings, 1)
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "x-api-key", cfg.Auth.Header)
	assert.Equal(t, float64(20), cfg.RateLimit.RPS)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_STORAGE_PATH", "/tmp/from-env.json")
	content := `
storage:
  backend: file
  file_path: ${TEST_STORAGE_PATH}
apartments:
  - id: apt-1
    name: Studio
    max_guests: 2
`
	cfg, err := Load(writeConfig(t, content))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env.json", cfg.Storage.FilePath)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{"NoApartments", func(c *Config) { c.Apartments = nil }, "at least one apartment"},
		{"UnknownBackend", func(c *Config) { c.Storage.Backend = "s3" }, "unknown storage backend"},
		{"FileWithoutPath", func(c *Config) { c.Storage.FilePath = "" }, "file_path"},
		{"RedisWithoutAddress", func(c *Config) { c.Storage.Backend = "redis"; c.Redis.Address = "" }, "redis.address"},
		{"AuthWithoutKeys", func(c *Config) { c.Auth.Enabled = true; c.Auth.Keys = nil }, "auth.keys"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, validConfig))
			require.NoError(t, err)
			tc.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestValidateApartments(t *testing.T) {
	t.Run("Duplicate", func(t *testing.T) {
		err := ValidateApartments([]models.Apartment{
			{ID: "apt-1", Name: "A", MaxGuests: 2},
			{ID: "apt-1", Name: "B", MaxGuests: 2},
		})
		assert.ErrorContains(t, err, "duplicate apartment id")
	})

	t.Run("BadColor", func(t *testing.T) {
		err := ValidateApartments([]models.Apartment{
			{ID: "apt-1", Name: "A", MaxGuests: 2, Color: "purple"},
		})
		assert.ErrorContains(t, err, "invalid color")
	})

	t.Run("NonPositiveGuests", func(t *testing.T) {
		err := ValidateApartments([]models.Apartment{
			{ID: "apt-1", Name: "A", MaxGuests: 0},
		})
		assert.ErrorContains(t, err, "max_guests")
	})
}

func TestSeedBookingForm(t *testing.T) {
	seed := SeedBooking{
		ApartmentID: "apt-1",
		GuestName:   "Marie Dubois",
		StartDate:   "2024-12-15",
		EndDate:     "2024-12-18",
	}

	form, err := seed.Form()
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, form.Status, "status defaults to confirmed")
	assert.Equal(t, 15, form.StartDate.Day())

	seed.EndDate = "not-a-date"
	_, err = seed.Form()
	assert.Error(t, err)
}
