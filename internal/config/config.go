// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/scriptoplay/engine/internal/media"
)

// Static errors for configuration validation.
var (
	// ErrFALAPIKeyRequired is returned when FAL_API_KEY is not set.
	ErrFALAPIKeyRequired = errors.New("config: FAL_API_KEY is required")
	// ErrElevenLabsAPIKeyRequired is returned when ELEVENLABS_API_KEY is not set.
	ErrElevenLabsAPIKeyRequired = errors.New("config: ELEVENLABS_API_KEY is required")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Provider credentials
	FALAPIKey        string `env:"FAL_API_KEY, required" json:"-"`        // Masked in JSON
	ElevenLabsAPIKey string `env:"ELEVENLABS_API_KEY, required" json:"-"` // Masked in JSON

	// Model selection
	ImageModel         string `env:"IMAGE_MODEL, default=fal-ai/flux/dev" json:"image_model"`
	ImageFallbackModel string `env:"IMAGE_FALLBACK_MODEL, default=fal-ai/flux/schnell" json:"image_fallback_model"`
	VideoModel         string `env:"VIDEO_MODEL, default=fal-ai/kling-video/v2/master/image-to-video" json:"video_model"`
	MusicModel         string `env:"MUSIC_MODEL, default=cassetteai/music-generator" json:"music_model"`
	DefaultVoice       string `env:"DEFAULT_VOICE, default=21m00Tcm4TlvDq8ikWAM" json:"default_voice"`

	// Optional webhook passed through on video submissions. Polling
	// remains the contract either way.
	VideoWebhookURL string `env:"VIDEO_WEBHOOK_URL" json:"video_webhook_url,omitempty"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/scriptoplay" json:"temp_dir"`

	// Music poll policy
	MusicPollInterval time.Duration `env:"MUSIC_POLL_INTERVAL, default=4s" json:"music_poll_interval"`
	MusicPollAttempts int           `env:"MUSIC_POLL_ATTEMPTS, default=75" json:"music_poll_attempts"`

	// Mixing tunables. Deployment parameters, not contracts.
	DuckThreshold  float64 `env:"DUCK_THRESHOLD, default=0.03" json:"duck_threshold"`
	DuckRatio      float64 `env:"DUCK_RATIO, default=10" json:"duck_ratio"`
	DuckAttackMs   float64 `env:"DUCK_ATTACK_MS, default=50" json:"duck_attack_ms"`
	DuckReleaseMs  float64 `env:"DUCK_RELEASE_MS, default=500" json:"duck_release_ms"`
	DuckMusicVol   float64 `env:"DUCK_MUSIC_VOLUME, default=0.3" json:"duck_music_volume"`
	MuxMusicVolume float64 `env:"MUX_MUSIC_VOLUME, default=0.25" json:"mux_music_volume"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// DuckOptions assembles the media-engine ducking parameters.
func (c *Config) DuckOptions() media.DuckOptions {
	return media.DuckOptions{
		Threshold:   c.DuckThreshold,
		Ratio:       c.DuckRatio,
		AttackMs:    c.DuckAttackMs,
		ReleaseMs:   c.DuckReleaseMs,
		MusicVolume: c.DuckMusicVol,
	}
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "FAL_API_KEY") {
			return nil, ErrFALAPIKeyRequired
		}
		if strings.Contains(err.Error(), "ELEVENLABS_API_KEY") {
			return nil, ErrElevenLabsAPIKeyRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.FALAPIKey == "" {
		return ErrFALAPIKeyRequired
	}
	if c.ElevenLabsAPIKey == "" {
		return ErrElevenLabsAPIKeyRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, ImageModel: %s, VideoModel: %s, MusicModel: %s, TempDir: %s, MusicPollInterval: %s, MusicPollAttempts: %d, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.ImageModel,
		c.VideoModel,
		c.MusicModel,
		c.TempDir,
		c.MusicPollInterval,
		c.MusicPollAttempts,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
