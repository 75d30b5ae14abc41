package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultLLMBaseURL, cfg.LLMBaseURL)
	assert.Equal(t, DefaultLLMModel, cfg.LLMModel)
	assert.Equal(t, DefaultVoiceID, cfg.VoiceID)
	assert.Equal(t, DefaultMaxHistory, cfg.MaxHistory)
	assert.Equal(t, DefaultSessionIdleTimeout, cfg.SessionIdleTimeout)
	assert.False(t, cfg.PersistAudio)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxa.yaml")
	body := `
port: 9090
log_level: debug
voice_id: en-UK-ruby
max_history: 4
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "en-UK-ruby", cfg.VoiceID)
	assert.Equal(t, 4, cfg.MaxHistory)
	// Untouched values keep their defaults
	assert.Equal(t, DefaultLLMModel, cfg.LLMModel)
}

func TestLoadMissingFileIsFine(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Port)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [not a number"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxa.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9090\nllm_model: sonar-pro\n"), 0o644))

	t.Setenv("PORT", "7070")
	t.Setenv("LLM_MODEL", "sonar")
	t.Setenv("MAX_CHAT_HISTORY", "25")
	t.Setenv("SESSION_IDLE_TIMEOUT", "1h")
	t.Setenv("PERSIST_AUDIO", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "sonar", cfg.LLMModel)
	assert.Equal(t, 25, cfg.MaxHistory)
	assert.Equal(t, time.Hour, cfg.SessionIdleTimeout)
	assert.True(t, cfg.PersistAudio)
}

func TestEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	t.Setenv("MAX_CHAT_HISTORY", "-3")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultMaxHistory, cfg.MaxHistory)
}

func TestGetenv(t *testing.T) {
	t.Setenv("VOXA_TEST_KEY", "set")
	assert.Equal(t, "set", Getenv("VOXA_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", Getenv("VOXA_TEST_ABSENT", "fallback"))
}
