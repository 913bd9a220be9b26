// Package config assembles pipeline configuration from a .env file and
// environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultLocalTimezone = "America/Chicago"
	DefaultBucketName    = "spotify-listening-history"
	DefaultDataDir       = "./data"
	DefaultAuthAddr      = "127.0.0.1:8000"
	DefaultDashboardAddr = "127.0.0.1:8501"
)

// Config holds all settings used across the pipeline. Not every command needs
// every field; commands validate what they use via the Require* helpers.
type Config struct {
	// Spotify application credentials.
	SpotifyClientID     string
	SpotifyClientSecret string
	RedirectURI         string

	// Parameter store (Postgres) connection string.
	DatabaseURL string

	// Secret-at-rest encryption key for the parameter store, 64 hex chars.
	ParamEncryptionKey string

	// Object storage location: objects live under <DataDir>/<BucketName>.
	DataDir    string
	BucketName string

	// IANA timezone name for localized timestamps.
	LocalTimezone string

	// HTTP listen addresses.
	AuthAddr      string
	DashboardAddr string

	// Logging.
	LogLevel  string
	LogFormat string
}

// Load reads an optional .env file and builds the configuration from the
// environment, applying defaults for unset values.
func Load() Config {
	// Missing .env is fine; real env vars win either way.
	_ = godotenv.Load()

	return Config{
		SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
		RedirectURI:         os.Getenv("REDIRECT_URI"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		ParamEncryptionKey:  os.Getenv("PARAM_ENCRYPTION_KEY"),
		DataDir:             envOr("DATA_DIR", DefaultDataDir),
		BucketName:          envOr("BUCKET_NAME", DefaultBucketName),
		LocalTimezone:       envOr("LOCAL_TIMEZONE", DefaultLocalTimezone),
		AuthAddr:            envOr("AUTH_ADDR", DefaultAuthAddr),
		DashboardAddr:       envOr("DASHBOARD_ADDR", DefaultDashboardAddr),
		LogLevel:            envOr("LOG_LEVEL", "info"),
		LogFormat:           envOr("LOG_FORMAT", "json"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Location resolves the configured timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.LocalTimezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.LocalTimezone, err)
	}
	return loc, nil
}

// RequireSpotify validates the Spotify application credentials.
func (c Config) RequireSpotify() error {
	if c.SpotifyClientID == "" || c.SpotifyClientSecret == "" {
		return fmt.Errorf("please set SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET environment variables")
	}
	return nil
}

// RequireAuthFlow validates settings for the one-time authorization flow.
func (c Config) RequireAuthFlow() error {
	if err := c.RequireSpotify(); err != nil {
		return err
	}
	if c.RedirectURI == "" {
		return fmt.Errorf("please set the REDIRECT_URI environment variable")
	}
	return c.RequireParams()
}

// RequireParams validates parameter store settings.
func (c Config) RequireParams() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("please set the DATABASE_URL environment variable")
	}
	if c.ParamEncryptionKey == "" {
		return fmt.Errorf("please set the PARAM_ENCRYPTION_KEY environment variable")
	}
	return nil
}
