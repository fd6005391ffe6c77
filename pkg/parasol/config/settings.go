package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/norbert12x/parasol/pkg/parasol/internalerr"
)

// Settings holds process configuration read from the environment.
type Settings struct {
	DBDriver string `env:"PARASOL_DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"PARASOL_DB_DSN" envDefault:"parasol.db"`

	FeedURL string `env:"PARASOL_FEED_URL"`

	GeocoderURL       string        `env:"PARASOL_GEOCODER_URL" envDefault:"https://nominatim.openstreetmap.org/search"`
	GeocoderUserAgent string        `env:"PARASOL_GEOCODER_USER_AGENT" envDefault:"parasol/1.0"`
	GeocoderEmail     string        `env:"PARASOL_GEOCODER_EMAIL"`
	GeocodeDelay      time.Duration `env:"PARASOL_GEOCODE_DELAY" envDefault:"500ms"`

	HTTPTimeout   time.Duration `env:"PARASOL_HTTP_TIMEOUT" envDefault:"15s"`
	PageSize      int           `env:"PARASOL_PAGE_SIZE" envDefault:"100"`
	BatchInterval time.Duration `env:"PARASOL_BATCH_INTERVAL" envDefault:"2s"`
	ListenAddr    string        `env:"PARASOL_LISTEN_ADDR" envDefault:":8080"`

	CategoriesPath string `env:"PARASOL_CATEGORIES_PATH"`
	LogLevel       string `env:"PARASOL_LOG_LEVEL" envDefault:"info"`
}

// LoadEnv loads the given .env files that exist and returns how many were
// read. Variables already set in the environment win.
func LoadEnv(files ...string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// LoadSettings reads .env files and parses the environment into Settings.
func LoadSettings(envFiles ...string) (*Settings, error) {
	if _, err := LoadEnv(envFiles...); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	var s Settings
	if err := env.Parse(&s); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the settings for obviously broken values.
func (s *Settings) Validate() error {
	switch s.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown db driver %q: %w", s.DBDriver, internalerr.ErrInvalidConfig)
	}
	if s.DBDSN == "" {
		return fmt.Errorf("empty db dsn: %w", internalerr.ErrInvalidConfig)
	}
	if s.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d: %w", s.PageSize, internalerr.ErrInvalidConfig)
	}
	if s.HTTPTimeout <= 0 || s.BatchInterval <= 0 || s.GeocodeDelay < 0 {
		return fmt.Errorf("durations must be positive: %w", internalerr.ErrInvalidConfig)
	}
	return nil
}
