package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/field-conditions/internal/conditions/providers"
)

var validate = validator.New()

type AppConfig struct {
	Port        string        `validate:"required,numeric"`
	HTTPTimeout time.Duration `validate:"gt=0"`

	// Weather provider.
	WeatherBaseURL string        `validate:"required,url"`
	WeatherTimeout time.Duration `validate:"gte=0"`

	// Imagery provider.
	EarthEngineURL     string        `validate:"required,url"`
	EarthEngineProject string        `validate:"required"`
	EarthEngineToken   string
	VegetationTimeout  time.Duration `validate:"gte=0"`
	NDVICollection     string        `validate:"required"`
	NDVIScale          float64       `validate:"gt=0"`
	NDVIMaxPixels      float64       `validate:"gt=0"`

	// Retry policy shared by both providers.
	RetryMax             int           `validate:"gte=0,lte=10"`
	RetryInitialInterval time.Duration `validate:"gt=0"`
	RetryMaxInterval     time.Duration `validate:"gtefield=RetryInitialInterval"`

	// ConcurrentFetch runs the weather and vegetation fetches in parallel.
	ConcurrentFetch bool

	// Provider health sampling and its in-memory retention.
	HealthInterval   time.Duration `validate:"gt=0"`
	HealthMaxHistory int           // max number of samples per provider (0 = unlimited)
	HealthMaxAge     time.Duration // max age of samples (0 = unlimited)

	LogLevel  string `validate:"oneof=trace debug info warn warning error disabled"`
	LogFormat string `validate:"oneof=json console"`
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}
	cfg := &AppConfig{}
	var err error

	cfg.Port = getenvDefault("PORT", "8080")
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "30s"); err != nil {
		return nil, err
	}

	cfg.WeatherBaseURL = getenvDefault("WEATHER_BASE_URL", providers.DefaultOpenMeteoURL)
	if cfg.WeatherTimeout, err = getenvDuration("WEATHER_TIMEOUT", "20s"); err != nil {
		return nil, err
	}

	cfg.EarthEngineURL = getenvDefault("EE_BASE_URL", providers.DefaultEarthEngineURL)
	cfg.EarthEngineProject = os.Getenv("EE_PROJECT")
	cfg.EarthEngineToken = os.Getenv("EE_ACCESS_TOKEN")
	if cfg.VegetationTimeout, err = getenvDuration("VEGETATION_TIMEOUT", "60s"); err != nil {
		return nil, err
	}
	cfg.NDVICollection = getenvDefault("NDVI_COLLECTION", "COPERNICUS/S2")
	if cfg.NDVIScale, err = getenvFloat("NDVI_SCALE", 10); err != nil {
		return nil, err
	}
	if cfg.NDVIMaxPixels, err = getenvFloat("NDVI_MAX_PIXELS", 1e9); err != nil {
		return nil, err
	}

	cfg.RetryMax = getenvInt("RETRY_MAX", 3)
	if cfg.RetryInitialInterval, err = getenvDuration("RETRY_INITIAL_INTERVAL", "500ms"); err != nil {
		return nil, err
	}
	if cfg.RetryMaxInterval, err = getenvDuration("RETRY_MAX_INTERVAL", "5s"); err != nil {
		return nil, err
	}

	cfg.ConcurrentFetch = getenvBool("CONCURRENT_FETCH", false)

	if cfg.HealthInterval, err = getenvDuration("HEALTH_INTERVAL", "1m"); err != nil {
		return nil, err
	}
	cfg.HealthMaxHistory = getenvInt("HEALTH_MAX_HISTORY", 60) // roughly 1h at 1-minute intervals
	if cfg.HealthMaxAge, err = getenvDuration("HEALTH_MAX_AGE", "1h"); err != nil {
		return nil, err
	}

	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "json")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Backoff returns the retry policy for provider calls.
func (c *AppConfig) Backoff() providers.BackoffConfig {
	return providers.BackoffConfig{
		MaxRetries:      c.RetryMax,
		InitialInterval: c.RetryInitialInterval,
		MaxInterval:     c.RetryMaxInterval,
	}
}

// EarthEngine returns the scene search and reduction settings.
func (c *AppConfig) EarthEngine() providers.EarthEngineConfig {
	ee := providers.DefaultEarthEngineConfig()
	ee.Collection = c.NDVICollection
	ee.Scale = c.NDVIScale
	ee.MaxPixels = c.NDVIMaxPixels
	ee.Backoff = c.Backoff()
	return ee
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
