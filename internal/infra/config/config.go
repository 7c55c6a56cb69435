// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Storage   StorageConfig   `yaml:"storage"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Account   AccountConfig   `yaml:"account"`
	Player    PlayerConfig    `yaml:"player"`
	Ads       AdsConfig       `yaml:"ads"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Spotify   SpotifyConfig   `yaml:"spotify"`
}

// ServerConfig represents the control-surface HTTP server configuration.
type ServerConfig struct {
	Addr string `yaml:"addr" default:":8080"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Output string `yaml:"output" default:"stdout"`
	Level  string `yaml:"level" default:"info"`
}

// StorageConfig represents durable state storage configuration.
// An empty path selects the in-memory store (state lost on restart).
type StorageConfig struct {
	Path string `yaml:"path"`
}

// CatalogConfig represents the backend catalog API configuration.
type CatalogConfig struct {
	BaseURL string `yaml:"base_url" validate:"required,url"`
	Token   string `yaml:"token"`
}

// AccountConfig represents the account state the engine runs under.
type AccountConfig struct {
	Authenticated bool `yaml:"authenticated"`
	Premium       bool `yaml:"premium"`
}

// PlayerConfig represents playback policy configuration.
type PlayerConfig struct {
	SkipLimit             int     `yaml:"skip_limit" default:"5" validate:"gte=1"`
	AdIntervalMin         int     `yaml:"ad_interval_min" default:"10" validate:"gte=1"`
	AdFallbackDurationSec int     `yaml:"ad_fallback_duration_sec" default:"10" validate:"gte=1"`
	CanPlayTimeoutMs      int     `yaml:"can_play_timeout_ms" default:"5000" validate:"gte=100,lte=60000"`
	Volume                float64 `yaml:"volume" default:"1.0" validate:"gte=0,lte=1"`
}

// AdsConfig represents ad catalog configuration.
type AdsConfig struct {
	CatalogFile string `yaml:"catalog_file"`
	Watch       bool   `yaml:"watch"`
}

// DiscoveryConfig represents fallback track discovery configuration.
type DiscoveryConfig struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// ProviderConfig represents a single discovery provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required"`
	DisplayName string         `yaml:"display_name" validate:"required"`
	Settings    map[string]any `yaml:"settings"`
}

// SpotifyConfig represents Spotify API configuration. Only required when a
// spotify_playlist discovery provider is configured.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
}

// AdInterval returns the configured ad cadence.
func (c *PlayerConfig) AdInterval() time.Duration {
	return time.Duration(c.AdIntervalMin) * time.Minute
}

// AdFallbackDuration returns the blocking window used when an ad asset fails.
func (c *PlayerConfig) AdFallbackDuration() time.Duration {
	return time.Duration(c.AdFallbackDurationSec) * time.Second
}

// CanPlayTimeout returns the bounded wait for media readiness.
func (c *PlayerConfig) CanPlayTimeout() time.Duration {
	return time.Duration(c.CanPlayTimeoutMs) * time.Millisecond
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for credentials.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("CATALOG_TOKEN"); v != "" {
		c.Catalog.Token = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	// Spotify credentials are only required when a Spotify-backed discovery
	// provider is configured.
	for _, p := range c.Discovery.Providers {
		if p.Type == "spotify_playlist" {
			if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" || c.Spotify.RefreshToken == "" {
				return errors.New("spotify_playlist provider requires spotify credentials")
			}
		}
	}

	return nil
}
