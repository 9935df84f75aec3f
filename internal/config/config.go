package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// DefaultBaseURL is the Open Cloud v2 endpoint root.
	DefaultBaseURL = "https://apis.roblox.com/cloud/v2"
	// UserAgent identifies this client to Open Cloud.
	UserAgent = "Dekkonot/OpenCloudExecutionApp 0.0.0"
)

// Config holds all application configuration
type Config struct {
	// Credentials and target place
	APIKey        string
	PlaceID       string
	UniverseID    string
	VersionNumber string

	// API settings
	BaseURL        string
	RequestTimeout time.Duration

	// Script settings, in seconds
	ScriptTimeout float64

	// Poll settings
	PollTimeout       time.Duration
	RetryDelay        time.Duration
	MaxRetryDelay     time.Duration
	BackoffMultiplier float64

	// Telemetry settings
	OTLPEndpoint string
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		BaseURL:           DefaultBaseURL,
		RequestTimeout:    30 * time.Second,
		ScriptTimeout:     300,
		PollTimeout:       5 * time.Minute,
		RetryDelay:        time.Second,
		MaxRetryDelay:     time.Minute,
		BackoffMultiplier: 1.5,
	}
}

// LoadFromEnvironment loads configuration from environment variables
func (c *Config) LoadFromEnvironment() {
	if apiKey := os.Getenv("OPEN_CLOUD_API_KEY"); apiKey != "" {
		c.APIKey = apiKey
	}

	if baseURL := os.Getenv("OPEN_CLOUD_BASE_URL"); baseURL != "" {
		c.BaseURL = baseURL
	}

	if placeID := os.Getenv("OPEN_CLOUD_PLACE_ID"); placeID != "" {
		c.PlaceID = placeID
	}

	if universeID := os.Getenv("OPEN_CLOUD_UNIVERSE_ID"); universeID != "" {
		c.UniverseID = universeID
	}

	if version := os.Getenv("OPEN_CLOUD_VERSION_NUMBER"); version != "" {
		c.VersionNumber = version
	}

	if timeout := os.Getenv("OPEN_CLOUD_SCRIPT_TIMEOUT"); timeout != "" {
		if t, err := strconv.ParseFloat(timeout, 64); err == nil {
			c.ScriptTimeout = t
		}
	}

	if timeout := os.Getenv("OPEN_CLOUD_REQUEST_TIMEOUT"); timeout != "" {
		if t, err := time.ParseDuration(timeout); err == nil {
			c.RequestTimeout = t
		}
	}

	if timeout := os.Getenv("OPEN_CLOUD_POLL_TIMEOUT"); timeout != "" {
		if t, err := time.ParseDuration(timeout); err == nil {
			c.PollTimeout = t
		}
	}

	if delay := os.Getenv("OPEN_CLOUD_RETRY_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil {
			c.RetryDelay = d
		}
	}

	if delay := os.Getenv("OPEN_CLOUD_MAX_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil {
			c.MaxRetryDelay = d
		}
	}

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		c.OTLPEndpoint = endpoint
	}
}

// ApplyProfile fills the place ids that are still empty from a stored profile.
func (c *Config) ApplyProfile(placeID, universeID, versionNumber string) {
	if c.PlaceID == "" {
		c.PlaceID = placeID
	}
	if c.UniverseID == "" {
		c.UniverseID = universeID
	}
	if c.VersionNumber == "" {
		c.VersionNumber = versionNumber
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got: %v", c.RequestTimeout)
	}

	if c.PollTimeout <= 0 {
		return fmt.Errorf("poll timeout must be positive, got: %v", c.PollTimeout)
	}

	if c.RetryDelay <= 0 {
		return fmt.Errorf("retry delay must be positive, got: %v", c.RetryDelay)
	}

	if c.MaxRetryDelay < c.RetryDelay {
		return fmt.Errorf("max retry delay %v is shorter than retry delay %v", c.MaxRetryDelay, c.RetryDelay)
	}

	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff multiplier must be at least 1, got: %v", c.BackoffMultiplier)
	}

	return nil
}
