package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"bookcal/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App          AppConfig          `yaml:"app"`
	HTTP         HTTPConfig         `yaml:"http"`
	Storage      StorageConfig      `yaml:"storage"`
	Redis        RedisConfig        `yaml:"redis"`
	Monitoring   MonitoringConfig   `yaml:"monitoring"`
	Logging      LoggingConfig      `yaml:"logging"`
	Auth         AuthConfig         `yaml:"auth"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Telegram     TelegramConfig     `yaml:"telegram"`
	Apartments   []models.Apartment `yaml:"apartments"`
	SeedBookings []SeedBooking      `yaml:"seed_bookings"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
}

// StorageConfig selects the snapshot backend. With failover enabled the
// redis backend is wrapped around the file backend so a redis outage
// degrades to local files instead of losing durability entirely.
type StorageConfig struct {
	Backend    string `yaml:"backend"` // file, sqlite, redis
	FilePath   string `yaml:"file_path"`
	SQLitePath string `yaml:"sqlite_path"`
	Failover   bool   `yaml:"failover"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type AuthConfig struct {
	Enabled bool     `yaml:"enabled"`
	Header  string   `yaml:"header"`
	Keys    []APIKey `yaml:"keys"`
}

type APIKey struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// SeedBooking is a bootstrap reservation applied only when the
// persistence backend holds no snapshot yet. Dates are plain calendar
// days (YYYY-MM-DD).
type SeedBooking struct {
	ApartmentID string `yaml:"apartment_id"`
	GuestName   string `yaml:"guest_name"`
	GuestEmail  string `yaml:"guest_email"`
	GuestPhone  string `yaml:"guest_phone"`
	StartDate   string `yaml:"start_date"`
	EndDate     string `yaml:"end_date"`
	Status      string `yaml:"status"`
	Notes       string `yaml:"notes"`
}

// Form converts a seed entry into a booking form.
func (s SeedBooking) Form() (models.BookingForm, error) {
	start, err := time.Parse("2006-01-02", s.StartDate)
	if err != nil {
		return models.BookingForm{}, fmt.Errorf("seed booking start date %q: %w", s.StartDate, err)
	}
	end, err := time.Parse("2006-01-02", s.EndDate)
	if err != nil {
		return models.BookingForm{}, fmt.Errorf("seed booking end date %q: %w", s.EndDate, err)
	}
	status := s.Status
	if status == "" {
		status = models.StatusConfirmed
	}
	return models.BookingForm{
		ApartmentID: s.ApartmentID,
		GuestName:   s.GuestName,
		GuestEmail:  s.GuestEmail,
		GuestPhone:  s.GuestPhone,
		StartDate:   start,
		EndDate:     end,
		Status:      status,
		Notes:       s.Notes,
	}, nil
}

func Load(configPath string) (*Config, error) {
	// .env is optional; config values reference it via ${VAR} expansion.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expanded := []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func (c *Config) Validate() error {
	if len(c.Apartments) == 0 {
		return errors.New("at least one apartment is required")
	}
	if err := ValidateApartments(c.Apartments); err != nil {
		return err
	}
	switch c.Storage.Backend {
	case "file":
		if c.Storage.FilePath == "" {
			return errors.New("storage.file_path is required for the file backend")
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is required for the sqlite backend")
		}
	case "redis":
		if c.Redis.Address == "" {
			return errors.New("redis.address is required for the redis backend")
		}
		if c.Storage.Failover && c.Storage.FilePath == "" {
			return errors.New("storage.file_path is required for redis failover")
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}
	if c.Auth.Enabled && len(c.Auth.Keys) == 0 {
		return errors.New("auth.keys must not be empty when auth is enabled")
	}
	return nil
}

// ValidateApartments rejects catalogs with duplicate or malformed entries.
func ValidateApartments(apartments []models.Apartment) error {
	seen := make(map[string]bool, len(apartments))
	for _, apt := range apartments {
		if apt.ID == "" {
			return fmt.Errorf("apartment %q has empty id", apt.Name)
		}
		if seen[apt.ID] {
			return fmt.Errorf("duplicate apartment id found: %s", apt.ID)
		}
		seen[apt.ID] = true
		if apt.Name == "" {
			return fmt.Errorf("apartment %s has empty name", apt.ID)
		}
		if apt.MaxGuests <= 0 {
			return fmt.Errorf("apartment %s has non-positive max_guests", apt.ID)
		}
		if apt.Color != "" && !hexColorRe.MatchString(apt.Color) {
			return fmt.Errorf("apartment %s has invalid color %q", apt.ID, apt.Color)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "bookcal"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec == 0 {
		c.HTTP.ReadTimeoutSec = 5
	}
	if c.HTTP.WriteTimeoutSec == 0 {
		c.HTTP.WriteTimeoutSec = 15
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}
	if c.Storage.Backend == "file" && c.Storage.FilePath == "" {
		c.Storage.FilePath = "data/bookings.json"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Auth.Header == "" {
		c.Auth.Header = "x-api-key"
	}
	if c.RateLimit.RPS == 0 {
		c.RateLimit.RPS = 20
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 5
	}
}
