// Package config provides configuration loading for voxa commands.
// Values come from the environment, with an optional .env file and an
// optional YAML config file layered underneath.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults for the voxa server.
const (
	DefaultPort               = 8080
	DefaultLogLevel           = "info"
	DefaultMaxHistory         = 10
	DefaultSessionIdleTimeout = 24 * time.Hour
	DefaultLLMBaseURL         = "https://api.perplexity.ai"
	DefaultLLMModel           = "sonar"
	DefaultVoiceID            = "en-US-natalie"
	DefaultSampleRate         = 44100
	DefaultUploadDir          = "uploads"
)

// Config holds the full server configuration.
type Config struct {
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	// Backend credentials
	AssemblyAIKey string `yaml:"assemblyai_api_key"`
	MurfAPIKey    string `yaml:"murf_api_key"`
	LLMAPIKey     string `yaml:"llm_api_key"`

	// LLM settings
	LLMBaseURL string `yaml:"llm_base_url"`
	LLMModel   string `yaml:"llm_model"`

	// Voice settings
	VoiceID    string `yaml:"voice_id"`
	SampleRate int    `yaml:"sample_rate"`

	// Session settings
	MaxHistory         int           `yaml:"max_history"`
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`

	// Turn audio persistence; empty disables it
	UploadDir    string `yaml:"upload_dir"`
	PersistAudio bool   `yaml:"persist_audio"`
}

// Load builds the configuration. A .env file in the working directory is
// loaded first if present, then the optional YAML file at path (skipped when
// path is empty or missing), then environment variables override everything.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               DefaultPort,
		LogLevel:           DefaultLogLevel,
		LLMBaseURL:         DefaultLLMBaseURL,
		LLMModel:           DefaultLLMModel,
		VoiceID:            DefaultVoiceID,
		SampleRate:         DefaultSampleRate,
		MaxHistory:         DefaultMaxHistory,
		SessionIdleTimeout: DefaultSessionIdleTimeout,
		UploadDir:          DefaultUploadDir,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	c.LogLevel = Getenv("LOG_LEVEL", c.LogLevel)
	c.AssemblyAIKey = Getenv("ASSEMBLYAI_API_KEY", c.AssemblyAIKey)
	c.MurfAPIKey = Getenv("MURF_API_KEY", c.MurfAPIKey)
	c.LLMAPIKey = Getenv("LLM_API_KEY", c.LLMAPIKey)
	c.LLMBaseURL = Getenv("LLM_BASE_URL", c.LLMBaseURL)
	c.LLMModel = Getenv("LLM_MODEL", c.LLMModel)
	c.VoiceID = Getenv("VOICE_ID", c.VoiceID)
	c.UploadDir = Getenv("UPLOAD_FOLDER", c.UploadDir)
	if v := os.Getenv("MAX_CHAT_HISTORY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxHistory = n
		}
	}
	if v := os.Getenv("SESSION_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.SessionIdleTimeout = d
		}
	}
	if v := os.Getenv("PERSIST_AUDIO"); v != "" {
		c.PersistAudio = v == "1" || v == "true"
	}
}

// Getenv returns the environment value for key, or fallback if unset.
func Getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
