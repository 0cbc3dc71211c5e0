package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Upstream UpstreamConfig
	Tracking TrackingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string
}

// UpstreamConfig points at the weather and school-status sources.
type UpstreamConfig struct {
	ObservationURL string
	ForecastURL    string
	AlertsURL      string
	StatusURL      string
	UserAgent      string
	Timeout        time.Duration
	StatusCacheTTL time.Duration
}

// TrackingConfig holds the school roster and logging behavior.
type TrackingConfig struct {
	// Schools is the canonical district roster; predictions are logged and
	// resolved per school code.
	Schools []string
}

// defaultSchools is the canonical roster used when SCHOOLS is unset.
var defaultSchools = []string{
	"bethlehem-asd",
	"easton-asd",
	"nazareth-asd",
	"northampton-asd",
	"parkland-sd",
	"saucon-valley-sd",
	"southern-lehigh-sd",
	"whitehall-coplay-sd",
}

// LoadConfig reads configuration from environment variables, applying
// defaults where unset.
func LoadConfig() (*Config, error) {
	serverPort, err := envInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	dbPort, err := envInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	maxOpen, err := envInt("DB_MAX_OPEN_CONNS", 10)
	if err != nil {
		return nil, err
	}
	maxIdle, err := envInt("DB_MAX_IDLE_CONNS", 5)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := envDuration("STATUS_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	upstreamTimeout, err := envDuration("UPSTREAM_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:         envOrDefault("SERVER_HOST", "0.0.0.0"),
			Port:         serverPort,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            envOrDefault("DB_HOST", "localhost"),
			Port:            dbPort,
			User:            envOrDefault("DB_USER", "snowday"),
			Password:        os.Getenv("DB_PASSWORD"),
			Database:        envOrDefault("DB_NAME", "snowday"),
			SSLMode:         envOrDefault("DB_SSLMODE", "disable"),
			MaxOpenConns:    maxOpen,
			MaxIdleConns:    maxIdle,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: envOrDefault("LOG_LEVEL", "info"),
		},
		Upstream: UpstreamConfig{
			ObservationURL: envOrDefault("NWS_OBSERVATION_URL", "https://api.weather.gov/stations/KABE/observations/latest"),
			ForecastURL:    envOrDefault("NWS_FORECAST_URL", "https://api.weather.gov/gridpoints/PHI/49,75/forecast"),
			AlertsURL:      envOrDefault("NWS_ALERTS_URL", "https://api.weather.gov/alerts/active?zone=PAZ061"),
			StatusURL:      envOrDefault("STATUS_SOURCE_URL", "http://localhost:8090/statuses"),
			UserAgent:      envOrDefault("NWS_USER_AGENT", "snowday-platform (contact: ops@snowday.local)"),
			Timeout:        upstreamTimeout,
			StatusCacheTTL: cacheTTL,
		},
		Tracking: TrackingConfig{
			Schools: parseSchools(os.Getenv("SCHOOLS")),
		},
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Host == "" {
		return errors.New("DB_HOST is required")
	}
	if c.Database.Database == "" {
		return errors.New("DB_NAME is required")
	}
	if len(c.Tracking.Schools) == 0 {
		return errors.New("school roster must not be empty")
	}
	if c.Upstream.StatusCacheTTL <= 0 {
		return errors.New("STATUS_CACHE_TTL must be positive")
	}
	return nil
}

// parseSchools splits a comma-separated roster, falling back to the default
// roster when empty.
func parseSchools(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		out := make([]string, len(defaultSchools))
		copy(out, defaultSchools)
		return out
	}
	parts := strings.Split(raw, ",")
	schools := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			schools = append(schools, s)
		}
	}
	return schools
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}
