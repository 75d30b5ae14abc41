package stt

import (
	"log/slog"
	"time"
)

// Config holds provider configuration.
type Config struct {
	// APIKey authenticates with the transcription service.
	APIKey string

	// SampleRate of the inbound PCM audio in Hz.
	SampleRate int

	// ReadyTimeout bounds how long Start waits for the session to come up.
	ReadyTimeout time.Duration

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring providers.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithSampleRate sets the inbound audio sample rate.
func WithSampleRate(hz int) Option {
	return func(c *Config) { c.SampleRate = hz }
}

// WithReadyTimeout sets how long Start waits for session readiness.
func WithReadyTimeout(d time.Duration) Option {
	return func(c *Config) { c.ReadyTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns sensible defaults for realtime transcription.
func DefaultConfig() *Config {
	return &Config{
		SampleRate:   16000,
		ReadyTimeout: 500 * time.Millisecond,
		Logger:       slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}
